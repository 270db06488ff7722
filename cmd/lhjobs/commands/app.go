package commands

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/sirstudly/littlehotelier-sub001/allocation"
	"github.com/sirstudly/littlehotelier-sub001/config"
	"github.com/sirstudly/littlehotelier-sub001/db"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/handlers"
	"github.com/sirstudly/littlehotelier-sub001/job"
	"github.com/sirstudly/littlehotelier-sub001/logger"
	"github.com/sirstudly/littlehotelier-sub001/processor"
	"github.com/sirstudly/littlehotelier-sub001/schedule"
	"github.com/sirstudly/littlehotelier-sub001/scrape"
	"github.com/sirstudly/littlehotelier-sub001/version"
)

// openDatabase opens and migrates the configured database.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := db.OpenWithMigrations(cfg.Database.Path, logger.Logger.Named("db"))
	return database, errors.Wrap(err, "failed to open database")
}

// app is everything a processing cycle needs, built from one config.
type app struct {
	cfg         *config.Config
	db          *sql.DB
	jobs        *job.Store
	schedules   *schedule.Store
	allocations *allocation.Store
	registry    *job.Registry
	evaluator   *schedule.Evaluator
	loop        *processor.Loop
	log         *zap.SugaredLogger
}

func newApp(cfg *config.Config) (*app, error) {
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return buildApp(cfg, database)
}

// buildApp wires stores, handlers and the processor loop around database.
func buildApp(cfg *config.Config, database *sql.DB) (*app, error) {
	log := logger.Logger
	a := &app{
		cfg:         cfg,
		db:          database,
		jobs:        job.NewStore(database),
		schedules:   schedule.NewStore(database),
		allocations: allocation.NewStore(database),
		registry:    job.NewRegistry(),
		log:         log,
	}

	blockPrivateIP := cfg.Scrape.BlockPrivateIP
	client := scrape.NewClient(scrape.ClientOptions{
		Timeout:           cfg.Scrape.Timeout,
		RequestsPerMinute: cfg.Scrape.RequestsPerMinute,
		BlockPrivateIP:    &blockPrivateIP,
	}, log.Named("scrape"))

	handlers.Register(a.registry, handlers.Deps{
		Jobs:        a.jobs,
		Allocations: a.allocations,
		Scraper:     scrape.NewCloudbeds(client, cfg.Scrape.GridURL, cfg.Scrape.BookingsURL),
		Credentials: scrape.Credentials{
			BaseURL:    cfg.Scrape.BaseURL,
			PropertyID: cfg.Scrape.PropertyID,
			Cookie:     cfg.Scrape.Cookie,
			UserAgent:  userAgent(cfg),
		},
		LabelSeparator: cfg.Scrape.LabelSeparator,
		WindowDays:     cfg.Scrape.WindowDays,
		Logger:         log.Named("handlers"),
	})

	locker, err := processor.NewFileLocker(cfg.Processor.LockPath)
	if err != nil {
		database.Close()
		return nil, err
	}
	a.loop = processor.NewLoop(a.jobs, a.registry, locker, log.Named("processor"))
	a.loop.SetMetrics(processor.NewMetrics(), cfg.Processor.MetricsTextfile)

	a.evaluator = schedule.NewEvaluator(a.schedules, log.Named("schedule"))
	if loc, err := cfg.Location(); err == nil {
		a.evaluator.SetLocation(loc)
	}
	return a, nil
}

// userAgent defaults to a browser-like agent tagged with the build version.
func userAgent(cfg *config.Config) string {
	if cfg.Scrape.UserAgent != "" {
		return cfg.Scrape.UserAgent
	}
	return scrape.DefaultUserAgent + " " + version.Get().UserAgent()
}

func (a *app) Close() error {
	return a.db.Close()
}

// cycleResult is one scheduler pass plus one processing cycle.
type cycleResult struct {
	Submitted []int64
	Summary   processor.Summary
}

// runCycle submits overdue definitions then drains the queue. Definition
// configuration errors are logged and do not stop processing.
func (a *app) runCycle(ctx context.Context, evaluate bool) (cycleResult, error) {
	var res cycleResult
	if evaluate {
		ids, err := a.evaluator.SubmitOverdue(ctx)
		res.Submitted = ids
		if err != nil {
			a.log.Warnw("Some schedule definitions could not be evaluated", logger.FieldError, err)
		}
	}

	summary, err := a.loop.RunCycle(ctx)
	res.Summary = summary
	return res, err
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
