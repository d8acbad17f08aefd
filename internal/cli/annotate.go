package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAnnotateCommand() *cobra.Command {
	var eventID, photoID, out string

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Draw the stored face boxes of an analysed photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current.Photos.Annotate(cmd.Context(), eventID, photoID, out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&eventID, "event", "e", "", "Event identifier")
	cmd.Flags().StringVarP(&photoID, "photo", "p", "", "Photo identifier")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (.png or .jpg)")
	for _, f := range []string{"event", "photo", "out"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
