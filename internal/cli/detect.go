package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/face"
	"github.com/saturnino-fabrica-de-software/photocap/internal/provider"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/annotate"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
)

type detectOptions struct {
	annotatePath string
	asJSON       bool
}

type detectOutput struct {
	Image       string              `json:"image"`
	Width       int                 `json:"width"`
	Height      int                 `json:"height"`
	Faces       []domain.FaceRegion `json:"faces"`
	TextRegions []domain.TextRegion `json:"text_regions"`
	Descriptors []int               `json:"descriptor_lengths"`
}

func newDetectCommand() *cobra.Command {
	var opts detectOptions

	cmd := &cobra.Command{
		Use:         "detect <image>",
		Short:       "Detect faces and text regions in one image without touching the database",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationLocal: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := face.NewFaceProvider(cfg, logger)
			if err != nil {
				return err
			}

			img, err := raster.Load(args[0])
			if err != nil {
				return err
			}

			faces, descriptors, err := provider.Analyze(cmd.Context(), p, img)
			if err != nil {
				return err
			}

			out := detectOutput{
				Image:       args[0],
				Width:       img.Width(),
				Height:      img.Height(),
				Faces:       faces,
				TextRegions: []domain.TextRegion{},
				Descriptors: make([]int, len(descriptors)),
			}
			if td := face.NewTextDetector(cfg, logger); td != nil {
				out.TextRegions = td.Detect(img)
			}
			for i, d := range descriptors {
				out.Descriptors[i] = len(d)
			}

			if opts.annotatePath != "" {
				if err := annotate.Save(img, opts.annotatePath, annotate.Faces(faces), annotate.Texts(out.TextRegions)); err != nil {
					return err
				}
			}

			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			printDetect(cmd.OutOrStdout(), out, opts.annotatePath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.annotatePath, "annotate", "a", "", "Write a copy with face and text boxes to this path (.png or .jpg)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printDetect(w io.Writer, out detectOutput, annotated string) {
	fmt.Fprintf(w, "%s (%dx%d): %d face(s), %d text region(s)\n", out.Image, out.Width, out.Height, len(out.Faces), len(out.TextRegions))
	for i, f := range out.Faces {
		fmt.Fprintf(w, "  #%d x=%d y=%d w=%d h=%d confidence=%.2f descriptor=%d\n",
			i, f.X, f.Y, f.Width, f.Height, f.Confidence, out.Descriptors[i])
	}
	for i, r := range out.TextRegions {
		fmt.Fprintf(w, "  text #%d x=%d y=%d w=%d h=%d area=%.0f\n", i, r.X, r.Y, r.Width, r.Height, r.Area)
	}
	if annotated != "" {
		fmt.Fprintf(w, "annotated copy: %s\n", annotated)
	}
}
