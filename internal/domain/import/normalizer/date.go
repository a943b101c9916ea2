package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried verbatim before any heuristic. Month names are matched
// case-insensitively by time.Parse.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
}

var italianMonths = map[string]time.Month{
	"gen": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"mag": time.May,
	"giu": time.June,
	"lug": time.July,
	"ago": time.August,
	"set": time.September,
	"ott": time.October,
	"nov": time.November,
	"dic": time.December,
}

var (
	italianDateRe = regexp.MustCompile(`(?i)^(\d{1,2})[\s\-/.]+(gen|feb|mar|apr|mag|giu|lug|ago|set|ott|nov|dic)[a-z]*\.?[\s\-/.]+(\d{2,4})\b`)
	numericDateRe = regexp.MustCompile(`^(\d{1,4})[/.\-](\d{1,2})[/.\-](\d{1,4})(?:$|\D)`)
)

// DateStrategies is the ordered list ParseDate runs.
var DateStrategies = []Strategy[time.Time]{
	{Name: "layout", Apply: parseLayoutDate},
	{Name: "italian-month", Apply: parseItalianDate},
	{Name: "numeric-parts", Apply: parseNumericDate},
}

// ParseDate converts a raw date cell into a calendar date at UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if s == "" {
		return time.Time{}, false
	}
	t, _, ok := FirstMatch(s, DateStrategies)
	return t, ok
}

// FormatDate renders a date in the canonical YYYY-MM-DD form.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func parseLayoutDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func parseItalianDate(s string) (time.Time, bool) {
	m := italianDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month := italianMonths[strings.ToLower(m[2])]
	year := expandYear(m[3])
	return buildDate(year, int(month), day)
}

// parseNumericDate splits D/M/Y style dates. A four digit first part means
// year first; a first part above 12 must be the day; otherwise month first.
func parseNumericDate(s string) (time.Time, bool) {
	m := numericDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])

	if len(m[1]) == 4 {
		if len(m[3]) > 2 {
			return time.Time{}, false
		}
		c, _ := strconv.Atoi(m[3])
		return buildDate(a, b, c)
	}
	if len(m[1]) == 3 || len(m[3]) < 2 {
		return time.Time{}, false
	}

	year := expandYear(m[3])
	if a > 12 {
		return buildDate(year, b, a)
	}
	return buildDate(year, a, b)
}

func expandYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) <= 2 {
		y += 2000
	}
	return y
}

func buildDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}
