package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
)

// cliClient is the rate limit identity of searches run from the command line.
const cliClient = "cli"

type searchOptions struct {
	eventID   string
	threshold float64
	asJSON    bool
}

func newSearchCommand() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:         "search <query image>",
		Short:       "List the event photos containing the face in the query image",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotationNeedsProvider: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var threshold *float64
			if cmd.Flags().Changed("threshold") {
				threshold = &opts.threshold
			}

			result, err := current.Photos.Search(cmd.Context(), opts.eventID, data, threshold, cliClient)
			if err != nil {
				return err
			}

			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printSearch(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.eventID, "event", "e", "", "Event identifier")
	cmd.Flags().Float64VarP(&opts.threshold, "threshold", "t", 0, "Minimum similarity, inclusive (default: MATCH_THRESHOLD)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func printSearch(w io.Writer, result *domain.SearchResult) {
	fmt.Fprintf(w, "event %s: %d photo(s) scanned, threshold %.2f, %dms\n",
		result.EventID, result.PhotosScanned, result.Threshold, result.LatencyMs)

	if result.Outcome != domain.OutcomeMatched {
		fmt.Fprintln(w, result.Message)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPHOTO\tSIMILARITY\tBAND\tFACE")
	for i, m := range result.Matches {
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%s\t%d,%d %dx%d\n",
			i+1, m.PhotoID, m.Similarity, m.Band, m.Face.X, m.Face.Y, m.Face.Width, m.Face.Height)
	}
	_ = tw.Flush()
}
