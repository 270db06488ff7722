package grid

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sirstudly/littlehotelier-sub001/allocation"
	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/logger"
)

// Calendar selectors, matched together so elements are visited in
// document order.
const (
	selectorRoomType = ".calendar-room-type"
	selectorBed      = ".calendar-bed"
	selectorBooking  = ".calendar-booking"
	selectorDay      = "[data-date]"

	scanSelector = selectorRoomType + ", " + selectorBed + ", " + selectorBooking
)

// Parser turns a rendered calendar document into allocations.
type Parser struct {
	separator string
	logger    *zap.SugaredLogger
}

// NewParser creates a parser splitting bed labels on separator
// (DefaultLabelSeparator when empty).
func NewParser(separator string, log *zap.SugaredLogger) *Parser {
	if separator == "" {
		separator = DefaultLabelSeparator
	}
	if log == nil {
		log = logger.ComponentLogger("grid")
	}
	return &Parser{separator: separator, logger: log}
}

// Parse scans doc and returns every allocation it could build. An element
// that fails is logged and skipped; it never stops the scan.
func (p *Parser) Parse(doc *goquery.Document, jobID int64) []*allocation.Allocation {
	log := p.logger.With(logger.FieldJobID, jobID)

	var (
		row     RowContext
		allocs  []*allocation.Allocation
		skipped int
	)

	doc.Find(scanSelector).Each(func(i int, sel *goquery.Selection) {
		a, err := p.visit(sel, &row, jobID, log)
		if err != nil {
			skipped++
			log.Warnw("Skipping calendar element",
				"element", i,
				"room", row.Room,
				logger.FieldError, err)
			return
		}
		if a != nil {
			allocs = append(allocs, a)
		}
	})

	log.Infow("Parsed calendar grid",
		logger.FieldCount, len(allocs),
		"skipped", skipped)
	return allocs
}

// visit handles one element. Row markers update row; bookings produce an
// allocation. A panic is returned as an error.
func (p *Parser) visit(sel *goquery.Selection, row *RowContext, jobID int64, log *zap.SugaredLogger) (a *allocation.Allocation, err error) {
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, errors.Newf("panic while reading element: %v", r)
		}
	}()

	switch {
	case sel.Is(selectorRoomType):
		id, ok := sel.Attr("data-room-type-id")
		if !ok {
			return nil, errors.New("room type element has no data-room-type-id")
		}
		row.RoomTypeID = strings.TrimSpace(id)
		return nil, nil

	case sel.Is(selectorBed):
		label := sel.AttrOr("data-bed-name", "")
		if strings.TrimSpace(label) == "" {
			label = sel.Text()
		}
		room, bed := SplitLabel(label, p.separator)
		if room == "" {
			row.Room, row.Bed = "", nil
			return nil, errors.New("bed element has an empty label")
		}
		row.Room, row.Bed = room, bed
		return nil, nil
	}

	cell, err := readCell(sel)
	if err != nil {
		return nil, err
	}
	build, err := BuildAllocation(cell, *row, jobID)
	if err != nil {
		return nil, err
	}
	for _, w := range build.Warnings {
		log.Warnw("Calendar geometry irregular",
			"room", row.Room,
			logger.FieldReservation, cell.ReservationID,
			"warning", w)
	}
	return build.Allocation, nil
}

// readCell copies the attributes of a booking element and its day column.
func readCell(sel *goquery.Selection) (Cell, error) {
	day := sel.Closest(selectorDay)
	if day.Length() == 0 {
		return Cell{}, errors.New("booking element is not inside a day column")
	}

	href, _ := sel.Find("a[href]").First().Attr("href")
	if href == "" {
		href = sel.AttrOr("href", "")
	}

	return Cell{
		DataDate:      day.AttrOr("data-date", ""),
		Style:         sel.AttrOr("style", ""),
		Classes:       strings.Fields(sel.AttrOr("class", "")),
		Text:          strings.TrimSpace(sel.Text()),
		ReservationID: sel.AttrOr("data-reservation-id", ""),
		GuestName:     sel.AttrOr("data-guest-name", ""),
		Total:         sel.AttrOr("data-total", ""),
		Balance:       sel.AttrOr("data-balance", ""),
		RatePlan:      sel.AttrOr("data-rate-plan", ""),
		PaymentStatus: sel.AttrOr("data-payment-status", ""),
		Occupancy:     sel.AttrOr("data-occupancy", ""),
		Href:          href,
	}, nil
}
