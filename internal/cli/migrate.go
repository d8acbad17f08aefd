package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/photocap/internal/database"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "migrate",
		Short:       "Manage the database schema",
		Annotations: map[string]string{annotationMigrations: "true"},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:         "up",
			Short:       "Apply pending migrations",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{annotationMigrations: "true"},
			RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator, _ []string) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			}),
		},
		&cobra.Command{
			Use:         "down",
			Short:       "Roll back the last migration (drops stored analyses)",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{annotationMigrations: "true"},
			RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator, _ []string) error {
				if cfg.IsProduction() {
					return fmt.Errorf("refusing to roll back in production")
				}
				if err := m.Down(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			}),
		},
		&cobra.Command{
			Use:         "version",
			Short:       "Print the current schema version",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{annotationMigrations: "true"},
			RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator, _ []string) error {
				return printVersion(cmd, m)
			}),
		},
		&cobra.Command{
			Use:         "force <version>",
			Short:       "Set the schema version without running migrations",
			Args:        cobra.ExactArgs(1),
			Annotations: map[string]string{annotationMigrations: "true"},
			RunE: withMigrator(func(cmd *cobra.Command, m *database.Migrator, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				if err := m.Force(version); err != nil {
					return err
				}
				return printVersion(cmd, m)
			}),
		},
	)
	return cmd
}

type migratorFunc func(cmd *cobra.Command, m *database.Migrator, args []string) error

// withMigrator opens a database/sql connection for golang-migrate and closes
// both when fn returns.
func withMigrator(fn migratorFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		dbName, err := database.DatabaseName(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		db, err := database.NewPool(database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return err
		}

		m, err := database.NewMigrator(db, dbName)
		if err != nil {
			_ = db.Close()
			return err
		}
		// closes db as well
		defer func() { _ = m.Close() }()

		return fn(cmd, m, args)
	}
}

func printVersion(cmd *cobra.Command, m *database.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: last migration incomplete)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}
