package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sirstudly/littlehotelier-sub001/allocation"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	lhtest "github.com/sirstudly/littlehotelier-sub001/internal/testing"
	"github.com/sirstudly/littlehotelier-sub001/internal/util"
	"github.com/sirstudly/littlehotelier-sub001/job"
	"github.com/sirstudly/littlehotelier-sub001/scrape"
)

// fakeScraper serves one calendar page per window start date.
type fakeScraper struct {
	grids     map[string]string
	bookings  string
	gridErr   error
	gridCalls []string
	sessions  map[string]bool
}

func (f *fakeScraper) ScrapeGrid(ctx context.Context, s *scrape.Session, r scrape.DateRange) (*goquery.Document, error) {
	f.gridCalls = append(f.gridCalls, r.String())
	f.sessions[s.ID] = true
	if f.gridErr != nil {
		return nil, f.gridErr
	}
	return goquery.NewDocumentFromReader(strings.NewReader(f.grids[r.Start.Format(scrape.DateLayout)]))
}

func (f *fakeScraper) ScrapeBookings(ctx context.Context, s *scrape.Session, r scrape.DateRange) (*goquery.Document, error) {
	f.sessions[s.ID] = true
	return goquery.NewDocumentFromReader(strings.NewReader(f.bookings))
}

func booking(date, style, id, guest string) string {
	return fmt.Sprintf(`<div class="calendar-day" data-date="%s">
  <div class="calendar-booking confirmed" style="%s" data-reservation-id="%s"
       data-guest-name="%s" data-total="£80.00" data-occupancy="1 / 0 / 0"></div>
</div>`, date, style, id, guest)
}

func page(bed string, cells ...string) string {
	return `<html><body><div class="calendar-room-type" data-room-type-id="rt-1">Dorm</div>
<div class="calendar-row"><div class="calendar-bed" data-bed-name="` + bed + `"></div>` +
		strings.Join(cells, "\n") + `</div></body></html>`
}

const bookingsPage = `<table>
<tr class="booking-row" data-reservation-id="R1">
  <td class="booking-reference">BDC-1</td><td class="booking-source">Booking.com</td>
  <td class="booked-date" data-date="2024-04-01"></td>
</tr>
<tr class="booking-row" data-reservation-id="R-ELSEWHERE">
  <td class="booking-reference">X</td>
</tr>
</table>`

type harness struct {
	jobs        *job.Store
	allocations *allocation.Store
	registry    *job.Registry
	scraper     *fakeScraper
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database := lhtest.CreateTestDB(t)
	h := &harness{
		jobs:        job.NewStore(database),
		allocations: allocation.NewStore(database),
		registry:    job.NewRegistry(),
		scraper:     &fakeScraper{grids: map[string]string{}, sessions: map[string]bool{}},
	}
	Register(h.registry, Deps{
		Jobs:        h.jobs,
		Allocations: h.allocations,
		Scraper:     h.scraper,
		Credentials: scrape.Credentials{BaseURL: "https://hotels.example.com", PropertyID: "7"},
		Logger:      zaptest.NewLogger(t).Sugar(),
	})
	return h
}

func (h *harness) submit(t *testing.T, jobType string, params map[string]string) *job.Job {
	t.Helper()
	j, err := job.New(jobType, params)
	require.NoError(t, err)
	require.NoError(t, h.jobs.CreateJob(context.Background(), j))
	return j
}

func TestRegisterAllTypes(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{TypeAllocationScraper, TypeBookingsEnrichment, TypeHousekeeping}, h.registry.Names())
}

func TestAllocationScraperDedupesAcrossWindows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// R1 spans the window edge and is rendered in both windows
	h.scraper.grids["2024-05-01"] = page("Room 1 - Bed A",
		booking("2024-05-02", "left: 0px; width: 117px", "R1", "Alice"),
		booking("2024-05-03", "left: 0px; width: 56px", "R2", "Bob"))
	h.scraper.grids["2024-05-04"] = page("Room 1 - Bed A",
		booking("2024-05-04", "left: -92px; width: 117px", "R1", "Alice"),
		`<div class="calendar-day" data-date="2024-05-05"><div class="calendar-booking" style="left: x" data-reservation-id="BAD"></div></div>`)
	h.scraper.bookings = bookingsPage

	j := h.submit(t, TypeAllocationScraper, map[string]string{
		"start_date":  "2024-05-01",
		"end_date":    "2024-05-06",
		"window_days": "3",
	})
	require.NoError(t, h.registry.Execute(ctx, j))

	assert.Equal(t, []string{"2024-05-01..2024-05-03", "2024-05-04..2024-05-06"}, h.scraper.gridCalls)
	assert.Len(t, h.scraper.sessions, 1, "one session per execution")

	allocs, err := h.allocations.ListByJob(ctx, j.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 2)

	assert.Equal(t, "R1", *allocs[0].ReservationID)
	assert.Equal(t, "Room 1", allocs[0].Room)
	assert.Equal(t, "Bed A", *allocs[0].Bed)
	assert.Equal(t, "2024-05-02", allocs[0].CheckinDate.Format(allocation.DateLayout))
	assert.Equal(t, "2024-05-04", allocs[0].CheckoutDate.Format(allocation.DateLayout))
	assert.Equal(t, "BDC-1", allocs[0].BookingReference)
	assert.Equal(t, "Booking.com", allocs[0].BookingSource)
	require.NotNil(t, allocs[0].BookedDate)

	assert.Equal(t, "R2", *allocs[1].ReservationID)
	assert.Empty(t, allocs[1].BookingReference)
}

func TestAllocationScraperParamErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.registry.Execute(ctx, h.submit(t, TypeAllocationScraper, map[string]string{"end_date": "2024-05-01"}))
	assert.True(t, errors.IsInvalidRequestError(err))

	err = h.registry.Execute(ctx, h.submit(t, TypeAllocationScraper, map[string]string{
		"start_date": "2024-05-01", "end_date": "2024-05-02", "window_days": "two",
	}))
	assert.True(t, errors.IsInvalidRequestError(err))

	err = h.registry.Execute(ctx, h.submit(t, TypeAllocationScraper, map[string]string{
		"start_date": "TODAY", "end_date": "2024-05-02",
	}))
	assert.Error(t, err)
	assert.Empty(t, h.scraper.gridCalls)
}

func TestAllocationScraperFetchFailureStoresNothing(t *testing.T) {
	h := newHarness(t)
	h.scraper.gridErr = errors.Wrap(scrape.ErrSessionExpired, "calendar")

	j := h.submit(t, TypeAllocationScraper, map[string]string{"start_date": "2024-05-01", "end_date": "2024-05-02"})
	err := h.registry.Execute(context.Background(), j)
	assert.True(t, errors.Is(err, scrape.ErrSessionExpired))

	n, err := h.allocations.CountByJob(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBookingsEnrichment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	scrapeJob := h.submit(t, TypeAllocationScraper, nil)
	require.NoError(t, h.allocations.Insert(ctx, []*allocation.Allocation{{
		JobID:         scrapeJob.ID,
		Room:          "Room 1",
		ReservationID: util.Ptr("R1"),
		CheckinDate:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		CheckoutDate:  time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}}))
	h.scraper.bookings = bookingsPage

	j := h.submit(t, TypeBookingsEnrichment, map[string]string{
		"allocation_job_id": fmt.Sprint(scrapeJob.ID),
		"start_date":        "2024-05-01",
		"end_date":          "2024-05-02",
	})
	require.NoError(t, h.registry.Execute(ctx, j))

	allocs, err := h.allocations.ListByJob(ctx, scrapeJob.ID)
	require.NoError(t, err)
	assert.Equal(t, "BDC-1", allocs[0].BookingReference)

	err = h.registry.Execute(ctx, h.submit(t, TypeBookingsEnrichment, map[string]string{
		"allocation_job_id": "9999", "start_date": "2024-05-01", "end_date": "2024-05-02",
	}))
	assert.True(t, errors.IsNotFoundError(err))

	err = h.registry.Execute(ctx, h.submit(t, TypeBookingsEnrichment, map[string]string{
		"allocation_job_id": fmt.Sprint(j.ID), "start_date": "2024-05-01", "end_date": "2024-05-02",
	}))
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestHousekeeping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	old := h.submit(t, "report", nil)
	require.NoError(t, h.jobs.UpdateStatus(ctx, old.ID, job.StatusProcessing, job.StatusSubmitted))
	require.NoError(t, h.jobs.UpdateStatus(ctx, old.ID, job.StatusCompleted, job.StatusProcessing))
	pending := h.submit(t, "report", nil)

	hk := NewHousekeeping(h.jobs, zaptest.NewLogger(t).Sugar())
	hk.timeNow = func() time.Time { return time.Now().AddDate(0, 0, 40) }

	require.NoError(t, hk.Execute(ctx, h.submit(t, TypeHousekeeping, map[string]string{"retention_days": "30"})))

	_, err := h.jobs.GetJob(ctx, old.ID)
	assert.True(t, errors.IsNotFoundError(err))
	_, err = h.jobs.GetJob(ctx, pending.ID)
	assert.NoError(t, err, "unfinished jobs are kept")

	err = hk.Execute(ctx, h.submit(t, TypeHousekeeping, map[string]string{"retention_days": "0"}))
	assert.True(t, errors.IsInvalidRequestError(err))
}
