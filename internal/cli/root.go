// Package cli implements the photocap command line: batch ingestion of an
// event's photos, offline search, reindexing and schema migrations.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/photocap/internal/app"
	"github.com/saturnino-fabrica-de-software/photocap/internal/config"
)

// Version is the application version.
const Version = "0.1.0"

// Command annotations read by setup.
const (
	annotationLocal         = "local"          // no database
	annotationMigrations    = "migrations"     // database/sql only, no app
	annotationNeedsProvider = "needs_provider" // fail early without a face provider
)

var (
	cfg     *config.Config
	logger  *slog.Logger
	current *app.App
	verbose bool
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "photocap",
		Short:         "Find an attendee's photos in an event corpus by face",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if current != nil {
				current.Close()
				current = nil
			}
		},
	}

	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline details to stderr")

	root.AddCommand(
		newDetectCommand(),
		newIngestCommand(),
		newSearchCommand(),
		newReindexCommand(),
		newStatsCommand(),
		newSearchMetricsCommand(),
		newAnnotateCommand(),
		newMigrateCommand(),
	)
	return root
}

func setup(cmd *cobra.Command) error {
	logger = newLogger(cmd.ErrOrStderr())

	var err error
	if cmd.Annotations[annotationLocal] == "true" {
		cfg, err = config.LoadLocal()
		return err
	}

	cfg, err = config.Load()
	if err != nil {
		return err
	}
	if cmd.Annotations[annotationMigrations] == "true" {
		return nil
	}

	current, err = app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	if !current.Capability.Available() && cmd.Annotations[annotationNeedsProvider] == "true" {
		return fmt.Errorf("face provider unavailable: %s", current.Capability.Reason)
	}
	return nil
}

// newLogger keeps stdout for command output.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command until completion or SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
