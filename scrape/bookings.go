package scrape

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// BookingRow is one reservation from the bookings listing, carrying the
// fields the calendar does not show.
type BookingRow struct {
	ReservationID    string
	BookingReference string
	BookingSource    string
	BookedDate       *time.Time
	Notes            string
}

// bookedDateLayouts are the formats the listing has used for booked dates.
var bookedDateLayouts = []string{DateLayout, "2 Jan 2006", "02/01/2006", "Jan 2, 2006"}

// ParseBookings reads every "tr.booking-row[data-reservation-id]" row.
// Rows without a reservation id are ignored; an unreadable booked date is
// left nil.
func ParseBookings(doc *goquery.Document) []BookingRow {
	var rows []BookingRow
	doc.Find("tr.booking-row").Each(func(_ int, tr *goquery.Selection) {
		id := strings.TrimSpace(tr.AttrOr("data-reservation-id", ""))
		if id == "" {
			return
		}
		row := BookingRow{
			ReservationID:    id,
			BookingReference: cellText(tr, ".booking-reference"),
			BookingSource:    cellText(tr, ".booking-source"),
			Notes:            cellText(tr, ".notes"),
		}

		booked := tr.Find(".booked-date").First()
		raw := booked.AttrOr("data-date", "")
		if raw == "" {
			raw = strings.TrimSpace(booked.Text())
		}
		row.BookedDate = parseBookedDate(raw)

		rows = append(rows, row)
	})
	return rows
}

func cellText(tr *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(tr.Find(selector).First().Text()), " ")
}

func parseBookedDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range bookedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
