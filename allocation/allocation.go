// Package allocation stores the per-job occupancy records reconstructed
// from a reservation calendar.
package allocation

import (
	"time"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// Status tags derived from calendar markup.
const (
	StatusClosed     = "closed"
	StatusCheckedIn  = "checked-in"
	StatusCheckedOut = "checked-out"
	StatusConfirmed  = "confirmed"
)

// DateLayout is the storage format of checkin, checkout and booked dates.
const DateLayout = "2006-01-02"

// Allocation is one room/bed occupancy for a date range, owned by the job
// that scraped it. Closures have no reservation id and carry StatusClosed.
type Allocation struct {
	ID         int64
	JobID      int64
	RoomTypeID string
	Room       string
	Bed        *string

	ReservationID *string
	GuestName     string
	CheckinDate   time.Time
	CheckoutDate  time.Time

	PaymentTotal       *float64
	PaymentOutstanding *float64
	RatePlanName       string
	PaymentStatus      string
	Occupancy          *int
	Status             string

	// Filled by the enrichment pass.
	BookingReference string
	BookingSource    string
	BookedDate       *time.Time
	Notes            string

	DataHref    string
	CreatedDate time.Time
}

// Nights is the number of nights between checkin and checkout.
func (a *Allocation) Nights() int {
	return int(a.CheckoutDate.Sub(a.CheckinDate).Hours() / 24)
}

// IsClosure reports whether the record blocks the room rather than holding a guest.
func (a *Allocation) IsClosure() bool {
	return a.Status == StatusClosed
}

// Key identifies the same occupancy seen in overlapping scrape windows.
func (a *Allocation) Key() string {
	bed := ""
	if a.Bed != nil {
		bed = *a.Bed
	}
	res := ""
	if a.ReservationID != nil {
		res = *a.ReservationID
	}
	return res + "|" + a.Room + "|" + bed + "|" + a.CheckinDate.Format(DateLayout)
}

// Validate enforces the non-null room and date range.
func (a *Allocation) Validate() error {
	if a.Room == "" {
		return errors.New("allocation has no room")
	}
	if a.CheckinDate.IsZero() || a.CheckoutDate.IsZero() {
		return errors.Newf("allocation for room %s has no dates", a.Room)
	}
	if !a.CheckoutDate.After(a.CheckinDate) {
		return errors.Newf("allocation for room %s: checkout %s not after checkin %s",
			a.Room, a.CheckoutDate.Format(DateLayout), a.CheckinDate.Format(DateLayout))
	}
	return nil
}

// Enrichment is the booking detail merged into allocations after parsing.
type Enrichment struct {
	BookingReference string
	BookingSource    string
	BookedDate       *time.Time
	Notes            string
}
