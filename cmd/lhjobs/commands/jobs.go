package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sirstudly/littlehotelier-sub001/allocation"
	"github.com/sirstudly/littlehotelier-sub001/config"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/job"
)

// JobsCmd groups job inspection commands
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect jobs",
	Long: `Inspect submitted, processing and finished jobs.

Examples:
  lhjobs jobs ls                    # newest 20 jobs
  lhjobs jobs ls --status failed    # only failures
  lhjobs jobs status 42             # details, params and failure cause`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		return runJobsLs(statusFilter, limit)
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.NewInvalidRequestError("%q is not a job id", args[0])
		}
		return runJobsStatus(id)
	},
}

func init() {
	jobsLsCmd.Flags().String("status", "", "Filter by status (submitted, processing, completed, failed)")
	jobsLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to display")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsStatusCmd)
}

func runJobsLs(statusFilter string, limit int) error {
	var status *job.Status
	if statusFilter != "" {
		if !job.IsValidStatus(statusFilter) {
			return errors.NewInvalidRequestError("unknown status %q", statusFilter)
		}
		s := job.Status(statusFilter)
		status = &s
	}

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
	store := job.NewStore(database)
	jobs, err := store.ListJobs(ctx, status, limit)
	if err != nil {
		return errors.Wrap(err, "failed to list jobs")
	}
	if len(jobs) == 0 {
		pterm.Info.Println("No jobs found")
		return nil
	}

	data := pterm.TableData{{"ID", "TYPE", "STATUS", "CREATED", "STARTED", "FINISHED", "ERROR"}}
	for _, j := range jobs {
		data = append(data, []string{
			strconv.FormatInt(j.ID, 10),
			j.Type,
			string(j.Status),
			formatTime(&j.CreatedDate),
			formatTime(j.StartDate),
			formatTime(j.EndDate),
			truncate(j.ErrorMessage, 50),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to count jobs")
	}
	pterm.Printfln("\nShown: %d  submitted: %d  processing: %d  completed: %d  failed: %d",
		len(jobs), counts[job.StatusSubmitted], counts[job.StatusProcessing],
		counts[job.StatusCompleted], counts[job.StatusFailed])
	return nil
}

func runJobsStatus(id int64) error {
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
	j, err := job.NewStore(database).GetJob(ctx, id)
	if err != nil {
		return err
	}

	pterm.DefaultSection.Printfln("Job %d", j.ID)
	rows := pterm.TableData{
		{"Type", j.Type},
		{"Status", string(j.Status)},
		{"Created", formatTime(&j.CreatedDate)},
		{"Started", formatTime(j.StartDate)},
		{"Finished", formatTime(j.EndDate)},
		{"Updated", formatTime(&j.LastUpdatedDate)},
	}
	if d := j.Duration(); d > 0 {
		rows = append(rows, []string{"Duration", d.String()})
	}
	if j.ErrorMessage != "" {
		rows = append(rows, []string{"Error", j.ErrorMessage})
	}
	n, err := allocation.NewStore(database).CountByJob(ctx, j.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		rows = append(rows, []string{"Allocations", strconv.Itoa(n)})
	}
	if err := pterm.DefaultTable.WithData(rows).Render(); err != nil {
		return err
	}

	if len(j.Params) > 0 {
		pterm.DefaultSection.WithLevel(2).Println("Parameters")
		names := make([]string, 0, len(j.Params))
		for name := range j.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		params := pterm.TableData{}
		for _, name := range names {
			params = append(params, []string{name, j.Params[name]})
		}
		return pterm.DefaultTable.WithData(params).Render()
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n-3])
}
