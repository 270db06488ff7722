package handlers

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/sirstudly/littlehotelier-sub001/allocation"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/job"
	"github.com/sirstudly/littlehotelier-sub001/logger"
	"github.com/sirstudly/littlehotelier-sub001/scrape"
)

// Enricher fills booking detail into a job's allocations from the bookings
// listing, matched by reservation id.
type Enricher struct {
	scraper     scrape.GridScraper
	allocations *allocation.Store
	logger      *zap.SugaredLogger
}

// Enrich returns the number of allocation rows updated.
func (e *Enricher) Enrich(ctx context.Context, s *scrape.Session, jobID int64, r scrape.DateRange, windowDays int) (int64, error) {
	log := logger.FromContext(ctx, e.logger).With(
		logger.FieldJobID, jobID,
		logger.FieldSessionID, s.ID)

	var updated int64
	matched := make(map[string]bool)
	for _, w := range r.Windows(windowDays) {
		doc, err := e.scraper.ScrapeBookings(ctx, s, w)
		if err != nil {
			return updated, err
		}
		for _, row := range scrape.ParseBookings(doc) {
			n, err := e.allocations.Enrich(ctx, jobID, row.ReservationID, allocation.Enrichment{
				BookingReference: row.BookingReference,
				BookingSource:    row.BookingSource,
				BookedDate:       row.BookedDate,
				Notes:            row.Notes,
			})
			if err != nil {
				return updated, err
			}
			if n > 0 {
				matched[row.ReservationID] = true
			}
			updated += n
		}
	}

	ids, err := e.allocations.ReservationIDs(ctx, jobID)
	if err != nil {
		return updated, err
	}
	missing := 0
	for _, id := range ids {
		if !matched[id] {
			missing++
			log.Debugw("Reservation not in bookings listing", logger.FieldReservation, id)
		}
	}

	log.Infow("Enriched allocations",
		"rows", updated,
		"reservations", len(matched),
		"unmatched", missing)
	return updated, nil
}

// BookingsEnrichment re-runs enrichment for an earlier scrape.
//
// Params: allocation_job_id, start_date, end_date.
type BookingsEnrichment struct {
	jobs        *job.Store
	credentials scrape.Credentials
	enricher    *Enricher
	windowDays  int
}

// NewBookingsEnrichment creates the bookings-enrichment handler.
func NewBookingsEnrichment(deps Deps, enricher *Enricher) *BookingsEnrichment {
	return &BookingsEnrichment{
		jobs:        deps.Jobs,
		credentials: deps.Credentials,
		enricher:    enricher,
		windowDays:  deps.WindowDays,
	}
}

func (h *BookingsEnrichment) Name() string {
	return TypeBookingsEnrichment
}

func (h *BookingsEnrichment) Execute(ctx context.Context, j *job.Job) error {
	raw, err := requireParam(j, "allocation_job_id")
	if err != nil {
		return err
	}
	target, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return errors.NewInvalidRequestError("job %d: allocation_job_id %q is not a job id", j.ID, raw)
	}

	source, err := h.jobs.GetJob(ctx, target)
	if err != nil {
		return errors.Wrapf(err, "job %d", j.ID)
	}
	if source.Type != TypeAllocationScraper {
		return errors.NewInvalidRequestError("job %d: job %d is a %s job, not %s",
			j.ID, target, source.Type, TypeAllocationScraper)
	}

	r, err := dateRangeParams(j)
	if err != nil {
		return err
	}
	session, err := h.credentials.NewSession()
	if err != nil {
		return err
	}

	_, err = h.enricher.Enrich(ctx, session, target, r, h.windowDays)
	return errors.Wrapf(err, "job %d", j.ID)
}
