package commands

import (
	"context"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sirstudly/littlehotelier-sub001/config"
	"github.com/sirstudly/littlehotelier-sub001/db"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/job"
	"github.com/sirstudly/littlehotelier-sub001/logger"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the lhjobs database",
	Long: `Database maintenance.

Examples:
  lhjobs db migrate    # apply pending schema migrations
  lhjobs db stats      # row counts and file size`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		database, err := db.Open(cfg.Database.Path, logger.Logger.Named("db"))
		if err != nil {
			return errors.Wrap(err, "failed to open database")
		}
		defer database.Close()

		before, err := db.Status(database)
		if err != nil {
			return err
		}
		if err := db.Migrate(database, logger.Logger.Named("db")); err != nil {
			return err
		}
		after, err := db.Status(database)
		if err != nil {
			return err
		}

		data := pterm.TableData{{"VERSION", "FILE", "APPLIED"}}
		applied := 0
		for i, m := range after {
			if before[i].AppliedAt == nil {
				applied++
			}
			data = append(data, []string{m.Version, m.File, formatTime(m.AppliedAt)})
		}
		pterm.Success.Printfln("Database %s is up to date (%d migration(s) applied now)", cfg.Database.Path, applied)
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts and database size",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := context.Background()
		counts, err := job.NewStore(database).CountByStatus(ctx)
		if err != nil {
			return err
		}
		var allocations, definitions int
		if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM allocations`).Scan(&allocations); err != nil {
			return errors.Wrap(err, "failed to count allocations")
		}
		if err := database.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_jobs`).Scan(&definitions); err != nil {
			return errors.Wrap(err, "failed to count definitions")
		}

		data := pterm.TableData{
			{"Database", cfg.Database.Path},
			{"Jobs submitted", strconv.Itoa(counts[job.StatusSubmitted])},
			{"Jobs processing", strconv.Itoa(counts[job.StatusProcessing])},
			{"Jobs completed", strconv.Itoa(counts[job.StatusCompleted])},
			{"Jobs failed", strconv.Itoa(counts[job.StatusFailed])},
			{"Allocations", strconv.Itoa(allocations)},
			{"Schedule definitions", strconv.Itoa(definitions)},
		}
		if info, err := os.Stat(cfg.Database.Path); err == nil {
			data = append(data, []string{"File size", strconv.FormatInt(info.Size()/1024, 10) + " KiB"})
		}
		return pterm.DefaultTable.WithData(data).Render()
	},
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}
