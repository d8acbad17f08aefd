package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newReindexCommand() *cobra.Command {
	var eventID string

	cmd := &cobra.Command{
		Use:         "reindex",
		Short:       "Re-extract descriptors stored with an outdated descriptor version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNeedsProvider: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			stale, total, err := current.Photos.StaleAnalyses(ctx, eventID)
			if err != nil {
				return err
			}
			if len(stale) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "event %s: all %d analyses are up to date\n", eventID, total)
				return nil
			}

			bar := progressbar.NewOptions(len(stale),
				progressbar.OptionSetDescription("reindexing "+eventID),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			failed := 0
			for _, analysis := range stale {
				if err := current.Photos.ReindexAnalysis(ctx, analysis); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failed++
					logger.Warn("reindex failed", "photo_id", analysis.PhotoID, "error", err)
				}
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			fmt.Fprintf(cmd.OutOrStdout(), "event %s: %d reindexed, %d up to date, %d failed\n",
				eventID, len(stale)-failed, total-len(stale), failed)
			if failed > 0 {
				return fmt.Errorf("%d analyses failed to reindex", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&eventID, "event", "e", "", "Event identifier")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}
