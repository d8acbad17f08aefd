package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/metrics"
)

func newStatsCommand() *cobra.Command {
	var (
		eventID string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show analysis counters for an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := current.Photos.Stats(cmd.Context(), eventID)
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "event\t%s\n", stats.EventID)
			fmt.Fprintf(tw, "descriptor version\t%s\n", stats.DescriptorVersion)
			fmt.Fprintf(tw, "photos analysed\t%d\n", stats.PhotosAnalyzed)
			fmt.Fprintf(tw, "faces detected\t%d\n", stats.FacesDetected)
			fmt.Fprintf(tw, "faces with descriptor\t%d\n", stats.FacesDescribed)
			fmt.Fprintf(tw, "stale analyses\t%d\n", stats.StaleAnalyses)
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&eventID, "event", "e", "", "Event identifier")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the counters as JSON")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func newSearchMetricsCommand() *cobra.Command {
	var (
		eventID string
		window  time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "search-metrics",
		Short: "Summarise the searches run against an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := current.Photos.SearchMetrics(cmd.Context(), eventID, window)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
			}
			return printSearchMetrics(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVarP(&eventID, "event", "e", "", "Event identifier")
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "How far back to look")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func printSearchMetrics(w io.Writer, s *metrics.SearchSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "event\t%s\n", s.EventID)
	fmt.Fprintf(tw, "since\t%s\n", s.Since.Format(time.RFC3339))
	fmt.Fprintf(tw, "searches\t%d\n", s.Searches)
	for _, o := range []domain.SearchOutcome{
		domain.OutcomeMatched,
		domain.OutcomeNoMatches,
		domain.OutcomeNoFaceInQuery,
		domain.OutcomeQueryUnprocessable,
	} {
		fmt.Fprintf(tw, "  %s\t%d\n", o, s.Outcomes[o])
	}
	fmt.Fprintf(tw, "match rate\t%.1f%%\n", s.MatchRate*100)
	fmt.Fprintf(tw, "avg results\t%.1f\n", s.AvgResults)
	fmt.Fprintf(tw, "latency avg / p99\t%.0f ms / %.0f ms\n", s.AvgLatencyMs, s.P99LatencyMs)
	return tw.Flush()
}
