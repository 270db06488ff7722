package schedule

import (
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the ISO date format substituted for TODAY tokens.
const DateLayout = "2006-01-02"

var todayToken = regexp.MustCompile(`^TODAY(?:([+-])(\d+))?$`)

// ResolveToken replaces a whole-value TODAY, TODAY+N or TODAY-N token with
// the ISO date relative to now. Any other value is returned verbatim.
func ResolveToken(value string, now time.Time) string {
	m := todayToken.FindStringSubmatch(value)
	if m == nil {
		return value
	}

	days := 0
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return value
		}
		days = n
		if m[1] == "-" {
			days = -n
		}
	}
	return now.AddDate(0, 0, days).Format(DateLayout)
}
