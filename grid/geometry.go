// Package grid reconstructs dated allocations from the Cloudbeds calendar,
// where each booking is an absolutely positioned element inside a day
// column and its dates are only recoverable from the rendered geometry.
package grid

import (
	"strconv"
	"strings"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// Calendar geometry in pixels.
const (
	BaseOffsetPx       = 30 // left offset of a booking starting one day before its column
	DayWidthPx         = 61 // one day column including its border
	SingleNightWidthPx = 56 // rendered width of a one-night booking
)

// DayShift returns how many days before its column a booking starts.
// Non-negative offsets start in the column itself. exact is false when the
// offset does not land on a day boundary; the truncated shift is still
// returned.
func DayShift(leftPx int) (shift int, exact bool) {
	if leftPx >= 0 {
		return 0, true
	}
	d := leftPx - BaseOffsetPx
	return d / DayWidthPx, d%DayWidthPx == 0
}

// Nights returns the number of nights a booking of widthPx spans. exact is
// false when the width is not a whole number of days; the truncated count
// is still returned.
func Nights(widthPx int) (nights int, exact bool) {
	if widthPx == SingleNightWidthPx {
		return 1, true
	}
	d := widthPx - SingleNightWidthPx
	return 1 + d/DayWidthPx, d%DayWidthPx == 0
}

// Position is the left offset and width of a booking element.
type Position struct {
	LeftPx  int
	WidthPx int
}

// ParseStyle reads left and width from an inline style such as
// "left: -92px; width: 117px". Both properties are required.
func ParseStyle(style string) (Position, error) {
	var pos Position
	var haveLeft, haveWidth bool

	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "left" && name != "width" {
			continue
		}

		px, err := parsePixels(value)
		if err != nil {
			return Position{}, errors.Wrapf(err, "style %s", name)
		}
		if name == "left" {
			pos.LeftPx, haveLeft = px, true
		} else {
			pos.WidthPx, haveWidth = px, true
		}
	}

	if !haveLeft || !haveWidth {
		return Position{}, errors.Newf("style %q lacks left or width", style)
	}
	return pos, nil
}

// parsePixels accepts "117px", "117", "-92.0px". Fractions are truncated.
func parsePixels(value string) (int, error) {
	v := strings.TrimSuffix(strings.TrimSpace(strings.ToLower(value)), "px")
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Newf("%q is not a pixel value", strings.TrimSpace(value))
	}
	return int(f), nil
}
