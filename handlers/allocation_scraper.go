package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sirstudly/littlehotelier-sub001/allocation"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/grid"
	"github.com/sirstudly/littlehotelier-sub001/job"
	"github.com/sirstudly/littlehotelier-sub001/logger"
	"github.com/sirstudly/littlehotelier-sub001/scrape"
)

// AllocationScraper scrapes the calendar for a date range, stores the
// reconstructed allocations and enriches them from the bookings listing.
//
// Params: start_date, end_date (2006-01-02), window_days (optional).
type AllocationScraper struct {
	scraper     scrape.GridScraper
	credentials scrape.Credentials
	parser      *grid.Parser
	allocations *allocation.Store
	enricher    *Enricher
	windowDays  int
	logger      *zap.SugaredLogger
}

// NewAllocationScraper creates the allocation-scraper handler.
func NewAllocationScraper(deps Deps, enricher *Enricher) *AllocationScraper {
	log := deps.Logger.Named("allocation-scraper")
	return &AllocationScraper{
		scraper:     deps.Scraper,
		credentials: deps.Credentials,
		parser:      grid.NewParser(deps.LabelSeparator, log),
		allocations: deps.Allocations,
		enricher:    enricher,
		windowDays:  deps.WindowDays,
		logger:      log,
	}
}

func (h *AllocationScraper) Name() string {
	return TypeAllocationScraper
}

func (h *AllocationScraper) Execute(ctx context.Context, j *job.Job) error {
	r, err := dateRangeParams(j)
	if err != nil {
		return err
	}
	windowDays, err := intParam(j, "window_days", h.windowDays)
	if err != nil {
		return err
	}

	session, err := h.credentials.NewSession()
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx, h.logger).With(logger.FieldSessionID, session.ID)
	start := time.Now()

	seen := make(map[string]bool)
	var allocs []*allocation.Allocation
	for _, w := range r.Windows(windowDays) {
		doc, err := h.scraper.ScrapeGrid(ctx, session, w)
		if err != nil {
			return errors.Wrapf(err, "job %d", j.ID)
		}
		parsed := h.parser.Parse(doc, j.ID)
		dupes := 0
		for _, a := range parsed {
			// bookings spanning a window edge appear in both windows
			if seen[a.Key()] {
				dupes++
				continue
			}
			seen[a.Key()] = true
			allocs = append(allocs, a)
		}
		log.Debugw("Scraped calendar window",
			"window", w.String(),
			logger.FieldCount, len(parsed),
			"duplicates", dupes)
	}

	if err := h.allocations.Insert(ctx, allocs); err != nil {
		return errors.Wrapf(err, "job %d", j.ID)
	}
	log.Infow("Stored allocations",
		logger.FieldCount, len(allocs),
		"range", r.String(),
		logger.FieldDurationMS, elapsedMS(start))

	if len(allocs) == 0 {
		log.Warnw("Calendar produced no allocations", "range", r.String())
		return nil
	}

	if _, err := h.enricher.Enrich(ctx, session, j.ID, r, windowDays); err != nil {
		return errors.Wrapf(err, "job %d: allocations stored, enrichment failed", j.ID)
	}
	return nil
}
