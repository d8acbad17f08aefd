package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

type ingestOptions struct {
	eventID string
	workers int
}

type ingestSummary struct {
	ingested atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
	faces    atomic.Int64
}

func newIngestCommand() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:         "ingest <file or directory>...",
		Short:       "Analyse photos from disk into an event",
		Long:        "Analyse photos from disk into an event. Directories are walked recursively; the photo id is the file name without extension. Photos already analysed for the event are skipped.",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{annotationNeedsProvider: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.workers < 1 {
				return fmt.Errorf("--workers must be at least 1")
			}

			paths, err := collectImages(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no images found")
			}

			bar := progressbar.NewOptions(len(paths),
				progressbar.OptionSetDescription("ingesting "+opts.eventID),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			var summary ingestSummary
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(opts.workers)

			for _, path := range paths {
				g.Go(func() error {
					defer func() { _ = bar.Add(1) }()

					analysis, err := current.Photos.IngestFile(ctx, opts.eventID, path)
					switch {
					case errors.Is(err, domain.ErrPhotoExists):
						summary.skipped.Add(1)
						return nil
					case err != nil:
						if ctx.Err() != nil {
							return ctx.Err()
						}
						summary.failed.Add(1)
						logger.Warn("ingest failed", "path", path, "error", err)
						return nil
					}
					summary.ingested.Add(1)
					summary.faces.Add(int64(analysis.FacesDetected()))
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}
			_ = bar.Finish()

			fmt.Fprintf(cmd.OutOrStdout(), "event %s: %d ingested, %d already present, %d failed, %d face(s) detected\n",
				opts.eventID, summary.ingested.Load(), summary.skipped.Load(), summary.failed.Load(), summary.faces.Load())
			if summary.failed.Load() > 0 {
				return fmt.Errorf("%d photo(s) failed, rerun with --verbose for details", summary.failed.Load())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.eventID, "event", "e", "", "Event identifier")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 4, "Photos analysed in parallel")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

// collectImages expands directories into the image files below them, sorted
// and without duplicates.
func collectImages(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(filepath.Clean(arg))
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if imageExtensions[strings.ToLower(filepath.Ext(path))] {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(paths)
	return paths, nil
}
