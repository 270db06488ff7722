package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/sirstudly/littlehotelier-sub001/cmd/lhjobs/commands"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/logger"
)

var rootCmd = &cobra.Command{
	Use:   "lhjobs",
	Short: "lhjobs - hospitality back-office job runner",
	Long: `lhjobs - scheduled and ad hoc back-office jobs for a hostel property.

Recurring definitions submit jobs when they are overdue; a single runner
claims submitted jobs oldest first and executes them one at a time.

Available commands:
  run       - Evaluate schedules and process submitted jobs once
  daemon    - Run cycles on a cron schedule until interrupted
  submit    - Submit an ad hoc job
  jobs      - Inspect jobs
  schedule  - Manage recurring definitions
  db        - Database maintenance
  config    - Show effective configuration

Examples:
  lhjobs run                                  # one cycle, suitable for cron
  lhjobs submit allocation-scraper start_date=2024-05-01 end_date=2024-05-31
  lhjobs jobs ls --status failed`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		logger.Logger.Debugw("Logger initialized", "level", logger.LevelName(verbosity), "json", jsonLogs)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON for log collectors")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.DaemonCmd)
	rootCmd.AddCommand(commands.SubmitCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.ScheduleCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
