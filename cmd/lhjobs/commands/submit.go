package commands

import (
	"context"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sirstudly/littlehotelier-sub001/config"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/job"
	"github.com/sirstudly/littlehotelier-sub001/schedule"
)

// SubmitCmd submits an ad hoc job
var SubmitCmd = &cobra.Command{
	Use:   "submit <job-type> [name=value ...]",
	Short: "Submit an ad hoc job",
	Long: `Submit a job outside any schedule. It is picked up by the next run.

Parameter values may use TODAY, TODAY+N and TODAY-N, resolved now.

Examples:
  lhjobs submit allocation-scraper start_date=TODAY end_date=TODAY+30
  lhjobs submit bookings-enrichment allocation_job_id=42 start_date=2024-05-01 end_date=2024-05-31
  lhjobs submit housekeeping retention_days=60`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(args[1:])
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.registry.Has(args[0]) {
			pterm.Warning.Printfln("No handler for %q; the job will fail when run. Known types: %s",
				args[0], strings.Join(a.registry.Names(), ", "))
		}

		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		j, err := newAdHocJob(args[0], params, time.Now().In(loc))
		if err != nil {
			return err
		}
		if err := a.jobs.CreateJob(context.Background(), j); err != nil {
			return errors.Wrap(err, "failed to submit job")
		}
		pterm.Success.Printfln("Submitted %s job %d", j.Type, j.ID)
		return nil
	},
}

// parseParams reads name=value arguments.
func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.NewInvalidRequestError("parameter %q is not name=value", arg)
		}
		params[name] = value
	}
	return params, nil
}

// newAdHocJob resolves date tokens the way scheduled jobs do.
func newAdHocJob(jobType string, params map[string]string, now time.Time) (*job.Job, error) {
	resolved := make(map[string]string, len(params))
	for name, value := range params {
		resolved[name] = schedule.ResolveToken(value, now)
	}
	return job.New(jobType, resolved)
}
