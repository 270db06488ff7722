package commands

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sirstudly/littlehotelier-sub001/config"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/logger"
)

// DaemonCmd runs cycles on a cron schedule
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run cycles on daemon.cycle_schedule until interrupted",
	Long: `Run the same cycle as 'lhjobs run' on daemon.cycle_schedule (cron syntax
or @every, in daemon.timezone). A cycle that is still running when the next
one is due is skipped.

Config files are watched; on change the schedule is replaced and the next
cycle uses the new settings. An invalid config keeps the previous one.
daemon.timezone is read at startup only.

Examples:
  lhjobs daemon
  LHJOBS_DAEMON_CYCLE_SCHEDULE="@every 1m" lhjobs daemon -v`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		d, err := newDaemon(cfg, logger.Logger.Named("daemon"))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			return err
		}
		pterm.Info.Printfln("lhjobs daemon started, cycle schedule %q", cfg.Daemon.CycleSchedule)
		pterm.Info.Println("Press Ctrl+C to stop")

		<-ctx.Done()
		pterm.Info.Println("Stopping, waiting for the running cycle to finish...")
		d.Stop()
		return nil
	},
}

// daemon owns the cron scheduler and the current app. A reloaded config is
// parked in pending and swapped in by the next cycle. running is held for a
// whole cycle: a rescheduled cron entry gets its own SkipIfStillRunning, so
// overlap is also refused here and the app is never closed under a cycle.
type daemon struct {
	running  sync.Mutex
	mu       sync.Mutex
	cfg      *config.Config
	app      *app
	pending  *config.Config
	cron     *cron.Cron
	entry    cron.EntryID
	schedule string
	watcher  *config.ConfigWatcher
	ctx      context.Context
	log      *zap.SugaredLogger
}

func newDaemon(cfg *config.Config, log *zap.SugaredLogger) (*daemon, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.Wrap(err, "daemon.timezone")
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, err
	}
	cl := cronLogger{log}
	return &daemon{
		cfg: cfg,
		app: a,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}, nil
}

func (d *daemon) Start(ctx context.Context) error {
	d.ctx = logger.WithComponent(ctx, "daemon")
	id, err := d.cron.AddFunc(d.cfg.Daemon.CycleSchedule, d.cycle)
	if err != nil {
		return errors.Wrapf(err, "daemon.cycle_schedule %q", d.cfg.Daemon.CycleSchedule)
	}
	d.entry = id
	d.schedule = d.cfg.Daemon.CycleSchedule

	if files := config.ActiveFiles(); len(files) > 0 {
		w, err := config.NewConfigWatcher(files, d.log.Named("config"))
		if err != nil {
			d.log.Warnw("Config watching disabled", logger.FieldError, err)
		} else {
			w.OnReload(d.reload)
			w.Start()
			d.watcher = w
		}
	}

	d.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running cycle.
func (d *daemon) Stop() {
	if d.watcher != nil {
		d.watcher.Stop()
	}
	<-d.cron.Stop().Done()
	d.running.Lock()
	defer d.running.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.app != nil {
		d.app.Close()
	}
}

func (d *daemon) cycle() {
	if !d.running.TryLock() {
		d.log.Infow("Cycle skipped, previous cycle still running")
		return
	}
	defer d.running.Unlock()

	a, err := d.current()
	if err != nil {
		d.log.Errorw("Could not apply reloaded config, keeping previous", logger.FieldError, err)
	}

	res, err := a.runCycle(d.ctx, true)
	if err != nil {
		d.log.Errorw("Cycle failed", logger.FieldError, err)
		return
	}
	s := res.Summary
	if s.LockHeld {
		d.log.Infow("Cycle skipped, lock held by another runner")
		return
	}
	d.log.Infow("Cycle finished",
		logger.FieldRunID, s.RunID,
		"submitted", len(res.Submitted),
		"recovered", s.Recovered,
		"completed", s.Completed,
		"failed", s.Failed,
		"conflicts", s.Conflicts,
		logger.FieldDurationMS, s.Duration.Milliseconds())
}

// current swaps in a pending config, if any, and returns the app to use.
// Callers hold running.
func (d *daemon) current() (*app, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return d.app, nil
	}
	cfg := d.pending
	d.pending = nil

	a, err := newApp(cfg)
	if err != nil {
		return d.app, err
	}
	d.app.Close()
	d.app = a
	d.cfg = cfg
	return d.app, nil
}

// reload reschedules on a new cycle schedule and parks cfg for the next
// cycle.
func (d *daemon) reload(cfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cfg.Daemon.CycleSchedule != d.schedule {
		id, err := d.cron.AddFunc(cfg.Daemon.CycleSchedule, d.cycle)
		if err != nil {
			return errors.Wrapf(err, "daemon.cycle_schedule %q", cfg.Daemon.CycleSchedule)
		}
		d.cron.Remove(d.entry)
		d.log.Infow("Cycle schedule changed",
			"from", d.schedule,
			"to", cfg.Daemon.CycleSchedule)
		d.entry = id
		d.schedule = cfg.Daemon.CycleSchedule
	}
	d.pending = cfg
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, logger.FieldError, err)...)
}
