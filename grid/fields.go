package grid

import (
	"strconv"
	"strings"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// DefaultLabelSeparator splits "Room 12 - Bed A" into room and bed.
const DefaultLabelSeparator = " - "

// SplitLabel splits a compound bed label on the first sep. Without sep the
// whole label is the room and bed is nil (private room).
func SplitLabel(label, sep string) (room string, bed *string) {
	label = strings.TrimSpace(label)
	if sep == "" {
		return label, nil
	}
	r, b, ok := strings.Cut(label, sep)
	if !ok {
		return label, nil
	}
	b = strings.TrimSpace(b)
	if b == "" {
		return strings.TrimSpace(r), nil
	}
	return strings.TrimSpace(r), &b
}

// ParseMoney parses an amount such as "£1,234.50", "Rs. 1,000" or
// "1.234,50 €". Currency text around the number is dropped and a minus sign
// before the first digit makes the amount negative. When both '.' and ','
// appear, the later one is the decimal point; a lone ',' groups thousands.
// Blank input and input without digits yield nil.
func ParseMoney(s string) (*float64, error) {
	first := strings.IndexFunc(s, isDigit)
	if first < 0 {
		return nil, nil
	}
	last := strings.LastIndexFunc(s, isDigit)
	body := s[first : last+1]

	decimal := '.'
	if dot := strings.LastIndex(body, "."); dot >= 0 && strings.LastIndex(body, ",") > dot {
		decimal = ','
	}

	var b strings.Builder
	if strings.ContainsRune(s[:first], '-') {
		b.WriteByte('-')
	}
	points := 0
	for _, r := range body {
		switch {
		case isDigit(r):
			b.WriteRune(r)
		case r == decimal:
			points++
			b.WriteByte('.')
		case r == '.' || r == ',' || r == ' ' || r == '\u00a0':
			// grouping
		default:
			return nil, errors.Newf("%q is not an amount", s)
		}
	}
	if points > 1 {
		return nil, errors.Newf("%q has more than one decimal point", s)
	}

	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return nil, errors.Newf("%q is not an amount", s)
	}
	return &v, nil
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// ParseOccupancy sums an "adults / children / infants" triplet. Parts that
// are not integers are skipped. ok is false when the input is not exactly
// three parts; the sum of the parseable parts is still returned.
func ParseOccupancy(s string) (total int, ok bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	parts := strings.Split(s, "/")
	for _, p := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			total += n
		}
	}
	return total, len(parts) == 3
}
