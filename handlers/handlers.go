// Package handlers implements the job types lhjobs can run.
package handlers

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sirstudly/littlehotelier-sub001/allocation"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/job"
	"github.com/sirstudly/littlehotelier-sub001/logger"
	"github.com/sirstudly/littlehotelier-sub001/scrape"
)

// Job type tags.
const (
	TypeAllocationScraper  = "allocation-scraper"
	TypeBookingsEnrichment = "bookings-enrichment"
	TypeHousekeeping       = "housekeeping"
)

// DefaultWindowDays is the calendar span fetched per grid request.
const DefaultWindowDays = 14

// DefaultRetentionDays is how long housekeeping keeps finished jobs.
const DefaultRetentionDays = 30

// Deps are the collaborators shared by the handlers.
type Deps struct {
	Jobs           *job.Store
	Allocations    *allocation.Store
	Scraper        scrape.GridScraper
	Credentials    scrape.Credentials
	LabelSeparator string
	WindowDays     int
	Logger         *zap.SugaredLogger
}

// Register adds every handler to reg.
func Register(reg *job.Registry, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = logger.ComponentLogger("handlers")
	}
	if deps.WindowDays <= 0 {
		deps.WindowDays = DefaultWindowDays
	}

	enricher := &Enricher{
		scraper:     deps.Scraper,
		allocations: deps.Allocations,
		logger:      deps.Logger.Named("enrichment"),
	}

	reg.Register(NewAllocationScraper(deps, enricher))
	reg.Register(NewBookingsEnrichment(deps, enricher))
	reg.Register(NewHousekeeping(deps.Jobs, deps.Logger.Named("housekeeping")))
}

// requireParam returns a non-empty parameter or an error naming it.
func requireParam(j *job.Job, name string) (string, error) {
	v, ok := j.Param(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", errors.NewInvalidRequestError("job %d (%s) is missing parameter %q", j.ID, j.Type, name)
	}
	return strings.TrimSpace(v), nil
}

// intParam parses an optional integer parameter.
func intParam(j *job.Job, name string, def int) (int, error) {
	v := strings.TrimSpace(j.ParamOr(name, ""))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.NewInvalidRequestError("job %d parameter %s=%q is not an integer", j.ID, name, v)
	}
	return n, nil
}

// dateRangeParams reads start_date and end_date.
func dateRangeParams(j *job.Job) (scrape.DateRange, error) {
	start, err := requireParam(j, "start_date")
	if err != nil {
		return scrape.DateRange{}, err
	}
	end, err := requireParam(j, "end_date")
	if err != nil {
		return scrape.DateRange{}, err
	}
	r, err := scrape.ParseDateRange(start, end)
	return r, errors.Wrapf(err, "job %d", j.ID)
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
