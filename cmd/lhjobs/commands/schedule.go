package commands

import (
	"context"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/sirstudly/littlehotelier-sub001/config"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/schedule"
)

// ScheduleCmd groups recurring definition commands
var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring job definitions",
	Long: `Manage recurring job definitions. A definition repeats either every N
minutes or once a day at HH:MM; its parameter template may use TODAY,
TODAY+N and TODAY-N.

Examples:
  lhjobs schedule ls
  lhjobs schedule import schedules.yaml
  lhjobs schedule disable 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var scheduleLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List definitions with their next run",
	RunE: func(cmd *cobra.Command, args []string) error {
		activeOnly, _ := cmd.Flags().GetBool("active")
		return withScheduleStore(func(ctx context.Context, store *schedule.Store, loc *time.Location) error {
			return listDefinitions(ctx, store, activeOnly, time.Now().In(loc))
		})
	},
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import definitions from a YAML or TOML file",
	Long: `Import definitions from a file with a top-level "definitions" list.

Example (YAML):
  definitions:
    - job_type: allocation-scraper
      description: nightly calendar snapshot
      repeat_daily_at: "02:30"
      params:
        start_date: TODAY
        end_date: TODAY+30`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduleStore(func(ctx context.Context, store *schedule.Store, _ *time.Location) error {
			defs, err := schedule.ImportFile(ctx, store, args[0])
			if err != nil {
				return err
			}
			for _, d := range defs {
				pterm.Success.Printfln("Imported definition %d: %s %s", d.ID, d.JobType, d.Rule())
			}
			return nil
		})
	},
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable <definition-id>",
	Short: "Activate a definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(args[0], true)
	},
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable <definition-id>",
	Short: "Deactivate a definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(args[0], false)
	},
}

func init() {
	scheduleLsCmd.Flags().Bool("active", false, "Only show active definitions")

	ScheduleCmd.AddCommand(scheduleLsCmd)
	ScheduleCmd.AddCommand(scheduleImportCmd)
	ScheduleCmd.AddCommand(scheduleEnableCmd)
	ScheduleCmd.AddCommand(scheduleDisableCmd)
}

func withScheduleStore(fn func(context.Context, *schedule.Store, *time.Location) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(context.Background(), schedule.NewStore(database), loc)
}

func listDefinitions(ctx context.Context, store *schedule.Store, activeOnly bool, now time.Time) error {
	defs, err := store.ListDefinitions(ctx, activeOnly)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		pterm.Info.Println("No schedule definitions")
		return nil
	}

	data := pterm.TableData{{"ID", "TYPE", "RULE", "ACTIVE", "LAST RUN", "NEXT RUN", "DESCRIPTION"}}
	for _, d := range defs {
		next := "-"
		if d.Active {
			if t, err := d.NextRun(now); err != nil {
				next = "invalid: " + err.Error()
			} else {
				next = formatTime(&t)
			}
		}
		data = append(data, []string{
			strconv.FormatInt(d.ID, 10),
			d.JobType,
			d.Rule(),
			strconv.FormatBool(d.Active),
			formatTime(d.LastRunDate),
			next,
			truncate(d.Description, 40),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func setActive(rawID string, active bool) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return errors.NewInvalidRequestError("%q is not a definition id", rawID)
	}
	return withScheduleStore(func(ctx context.Context, store *schedule.Store, _ *time.Location) error {
		if err := store.SetActive(ctx, id, active); err != nil {
			return err
		}
		state := "disabled"
		if active {
			state = "enabled"
		}
		pterm.Success.Printfln("Definition %d %s", id, state)
		return nil
	})
}
