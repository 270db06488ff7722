package scrape

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// DateLayout is the date format used in scrape URLs and job parameters.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses start and end in DateLayout.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return DateRange{}, errors.Wrapf(err, "start date %q", start)
	}
	e, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return DateRange{}, errors.Wrapf(err, "end date %q", end)
	}
	r := DateRange{Start: s, End: e}
	return r, r.Validate()
}

// Validate rejects ranges that end before they start.
func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return errors.NewInvalidRequestError("date range %s ends before it starts", r)
	}
	return nil
}

// Days is the number of calendar days in the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Windows splits the range into consecutive windows of at most days days.
func (r DateRange) Windows(days int) []DateRange {
	if days <= 0 || r.Days() <= days {
		return []DateRange{r}
	}
	var out []DateRange
	for start := r.Start; !start.After(r.End); start = start.AddDate(0, 0, days) {
		end := start.AddDate(0, 0, days-1)
		if end.After(r.End) {
			end = r.End
		}
		out = append(out, DateRange{Start: start, End: end})
	}
	return out
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// GridScraper fetches the pages a scrape job needs.
type GridScraper interface {
	ScrapeGrid(ctx context.Context, s *Session, r DateRange) (*goquery.Document, error)
	ScrapeBookings(ctx context.Context, s *Session, r DateRange) (*goquery.Document, error)
}

// Default URL templates. Placeholders: {base} {property} {start} {end}.
const (
	DefaultGridURL     = "{base}/connect/{property}/calendar?start_date={start}&end_date={end}"
	DefaultBookingsURL = "{base}/connect/{property}/reservations?checkin_from={start}&checkin_to={end}"
)

// Cloudbeds is the GridScraper for the Cloudbeds back office.
type Cloudbeds struct {
	client      *Client
	gridURL     string
	bookingsURL string
}

// NewCloudbeds creates a scraper. Empty templates take the defaults.
func NewCloudbeds(client *Client, gridURL, bookingsURL string) *Cloudbeds {
	if gridURL == "" {
		gridURL = DefaultGridURL
	}
	if bookingsURL == "" {
		bookingsURL = DefaultBookingsURL
	}
	return &Cloudbeds{client: client, gridURL: gridURL, bookingsURL: bookingsURL}
}

// ScrapeGrid fetches the occupancy calendar for r.
func (c *Cloudbeds) ScrapeGrid(ctx context.Context, s *Session, r DateRange) (*goquery.Document, error) {
	doc, err := c.client.FetchDocument(ctx, s, expandURL(c.gridURL, s, r))
	return doc, errors.Wrapf(err, "calendar %s", r)
}

// ScrapeBookings fetches the reservations listing for r.
func (c *Cloudbeds) ScrapeBookings(ctx context.Context, s *Session, r DateRange) (*goquery.Document, error) {
	doc, err := c.client.FetchDocument(ctx, s, expandURL(c.bookingsURL, s, r))
	return doc, errors.Wrapf(err, "bookings %s", r)
}

func expandURL(tmpl string, s *Session, r DateRange) string {
	return strings.NewReplacer(
		"{base}", s.BaseURL,
		"{property}", url.PathEscape(s.PropertyID),
		"{start}", url.QueryEscape(r.Start.Format(DateLayout)),
		"{end}", url.QueryEscape(r.End.Format(DateLayout)),
	).Replace(tmpl)
}
