package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sirstudly/littlehotelier-sub001/config"
	"github.com/sirstudly/littlehotelier-sub001/logger"
)

// RunCmd runs one scheduler pass and one processing cycle
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate schedules and process submitted jobs once",
	Long: `Run one cycle: submit a job for every overdue schedule definition, then
claim and execute submitted jobs oldest first until none remain.

Only one runner holds the processor lock at a time; if another runner holds
it this command exits quietly with status 0. Store or lock failures exit
non-zero.

Examples:
  lhjobs run
  lhjobs run --no-schedule     # only drain the queue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noSchedule, _ := cmd.Flags().GetBool("no-schedule")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := a.runCycle(logger.WithComponent(ctx, "run"), !noSchedule)
		if err != nil {
			return err
		}
		printCycle(res)
		return nil
	},
}

func printCycle(res cycleResult) {
	s := res.Summary
	if s.LockHeld {
		pterm.Info.Println("Another runner holds the processor lock, nothing to do")
		return
	}
	if len(res.Submitted) > 0 {
		pterm.Info.Printfln("Submitted %d scheduled job(s)", len(res.Submitted))
	}
	if s.Recovered > 0 {
		pterm.Warning.Printfln("Recovered %d job(s) left processing by a crashed runner", s.Recovered)
	}
	if s.Claimed() == 0 {
		pterm.Info.Println("No submitted jobs")
		return
	}
	printer := pterm.Success
	if s.Failed > 0 {
		printer = pterm.Warning
	}
	printer.Printfln("Run %s: %d completed, %d failed, %d conflict(s) in %s",
		s.RunID, s.Completed, s.Failed, s.Conflicts, s.Duration.Round(time.Millisecond))
}

func init() {
	RunCmd.Flags().Bool("no-schedule", false, "Skip schedule evaluation")
}
