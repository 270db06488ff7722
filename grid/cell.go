package grid

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirstudly/littlehotelier-sub001/allocation"
	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// Markup classes.
const (
	classClosed     = "room-closed"
	classCheckedIn  = "checked-in"
	classCheckedOut = "checked-out"
	classConfirmed  = "confirmed"
)

// Cell is the literal attributes of one booking element and its day column.
type Cell struct {
	DataDate string // column date, 2006-01-02
	Style    string
	Classes  []string
	Text     string

	ReservationID string
	GuestName     string
	Total         string
	Balance       string
	RatePlan      string
	PaymentStatus string
	Occupancy     string
	Href          string
}

// HasClass reports whether the element carries class.
func (c Cell) HasClass(class string) bool {
	return slices.Contains(c.Classes, class)
}

// RowContext is the state carried forward from earlier elements of the grid.
type RowContext struct {
	RoomTypeID string
	Room       string
	Bed        *string
}

// Build is the outcome of BuildAllocation. Warnings are geometry or field
// irregularities that did not prevent the record from being built.
type Build struct {
	Allocation *allocation.Allocation
	Warnings   []string
}

// BuildAllocation converts one booking element into an allocation for jobID.
// It has no side effects; an error means the element is unusable.
func BuildAllocation(cell Cell, row RowContext, jobID int64) (Build, error) {
	var out Build
	warn := func(format string, args ...interface{}) {
		out.Warnings = append(out.Warnings, fmt.Sprintf(format, args...))
	}

	if row.Room == "" {
		return out, errors.New("booking element appears before any bed row")
	}

	column, err := time.Parse(allocation.DateLayout, strings.TrimSpace(cell.DataDate))
	if err != nil {
		return out, errors.Wrapf(err, "day column date %q", cell.DataDate)
	}

	pos, err := ParseStyle(cell.Style)
	if err != nil {
		return out, err
	}

	shift, exact := DayShift(pos.LeftPx)
	if !exact {
		warn("left offset %dpx is not on a day boundary, using day shift %d", pos.LeftPx, shift)
	}
	nights, exact := Nights(pos.WidthPx)
	if !exact {
		warn("width %dpx is not a whole number of nights, using %d", pos.WidthPx, nights)
	}
	if nights < 1 {
		return out, errors.Newf("width %dpx gives %d nights", pos.WidthPx, nights)
	}

	checkin := column.AddDate(0, 0, shift)
	a := &allocation.Allocation{
		JobID:        jobID,
		RoomTypeID:   row.RoomTypeID,
		Room:         row.Room,
		Bed:          row.Bed,
		CheckinDate:  checkin,
		CheckoutDate: checkin.AddDate(0, 0, nights),
		DataHref:     cell.Href,
	}

	if cell.HasClass(classClosed) {
		a.Status = allocation.StatusClosed
		a.GuestName = strings.TrimSpace(cell.Text)
		out.Allocation = a
		return out, nil
	}

	id := strings.TrimSpace(cell.ReservationID)
	if id == "" {
		return out, errors.New("reservation element has no reservation id")
	}
	a.ReservationID = &id
	a.GuestName = strings.TrimSpace(cell.GuestName)
	if a.GuestName == "" {
		a.GuestName = strings.TrimSpace(cell.Text)
	}
	a.RatePlanName = strings.TrimSpace(cell.RatePlan)
	a.PaymentStatus = strings.TrimSpace(cell.PaymentStatus)

	if a.PaymentTotal, err = ParseMoney(cell.Total); err != nil {
		return out, errors.Wrap(err, "payment total")
	}
	if a.PaymentOutstanding, err = ParseMoney(cell.Balance); err != nil {
		return out, errors.Wrap(err, "payment outstanding")
	}

	if strings.TrimSpace(cell.Occupancy) != "" {
		n, ok := ParseOccupancy(cell.Occupancy)
		if !ok {
			warn("occupancy %q is not adults/children/infants, using %d", cell.Occupancy, n)
		}
		a.Occupancy = &n
	}

	switch {
	case cell.HasClass(classCheckedIn):
		a.Status = allocation.StatusCheckedIn
	case cell.HasClass(classCheckedOut):
		a.Status = allocation.StatusCheckedOut
	case cell.HasClass(classConfirmed):
		a.Status = allocation.StatusConfirmed
	}

	out.Allocation = a
	return out, nil
}
