package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vrsandeep/anisync-go/internal/config"
	"github.com/vrsandeep/anisync-go/internal/core"
	"github.com/vrsandeep/anisync-go/internal/db"
	"github.com/vrsandeep/anisync-go/internal/logger"
	"github.com/vrsandeep/anisync-go/internal/models"
)

// newMigrateCommand applies the migrations found on disk, for upgrading a
// database without starting the server.
func newMigrateCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations from a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := logger.Init(cfg.Log.Level, cfg.Log.Pretty); err != nil {
				return err
			}
			database, err := db.InitDB(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer database.Close()

			driver, err := sqlite3.WithInstance(database, &sqlite3.Config{})
			if err != nil {
				return fmt.Errorf("could not create sqlite3 migration driver: %w", err)
			}
			m, err := migrate.NewWithDatabaseInstance("file://"+dir, "sqlite3", driver)
			if err != nil {
				return fmt.Errorf("failed to create migrate instance: %w", err)
			}
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("an error occurred while applying migrations: %w", err)
			}
			version, dirty, err := m.Version()
			if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "Directory holding the migration files")
	return cmd
}

// withApp runs fn against a fully wired application.
func withApp(fn func(cmd *cobra.Command, app *core.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := core.New("cli")
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(cmd, app)
	}
}

func newPassCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pass",
		Short: "Run one reconciliation pass and print its report",
		RunE: withApp(func(cmd *cobra.Command, app *core.App) error {
			if err := app.Loop().TriggerNow(); err != nil {
				return err
			}
			app.Loop().Wait()
			report := app.Loop().LastPass()
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report != nil && report.Error != "" {
				return errors.New(report.Error)
			}
			return nil
		}),
	}
}

func newEpisodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "episode <source-id> <episode>",
		Short: "Create the task of one episode from stored releases",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			episode, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid episode %q", args[1])
			}
			return withApp(func(cmd *cobra.Command, app *core.App) error {
				if err := app.RunForOne(sourceID, episode); err != nil {
					return err
				}
				app.Loop().Wait()
				return printJSON(cmd.OutOrStdout(), app.Loop().LastPass())
			})(cmd, args)
		},
	}
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile download status and retry pending renames",
		RunE: withApp(func(cmd *cobra.Command, app *core.App) error {
			report, err := app.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		}),
	}
}

func newReconcileFilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-files",
		Short: "Record tasks for videos already in the download directory",
		RunE: withApp(func(cmd *cobra.Command, app *core.App) error {
			added, err := app.Sync().ReconcileFromExistingFiles(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("added", added).Msg("Reconciled existing files")
			return printJSON(cmd.OutOrStdout(), map[string]int{"added": added})
		}),
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newBroadcastCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast <year> <season>",
		Short: "Scrape one broadcast season (1 spring to 4 winter) into the catalogue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil || year <= 0 {
				return fmt.Errorf("invalid year %q", args[0])
			}
			n, err := strconv.Atoi(args[1])
			season := models.Season(n)
			if err != nil || !season.Valid() {
				return fmt.Errorf("invalid season %q", args[1])
			}
			return withApp(func(cmd *cobra.Command, app *core.App) error {
				added, err := app.Pipeline().UpdateBroadcast(cmd.Context(), year, season)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"added": added})
			})(cmd, args)
		},
	}
}
