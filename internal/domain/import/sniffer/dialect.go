package sniffer

import (
	"strings"
)

// Date orders reported by ProbeDialect.
const (
	OrderDayFirst   = "DMY"
	OrderMonthFirst = "MDY"
	OrderYearFirst  = "YMD"
	OrderUnknown    = ""
)

// Dialect is the regional formatting inferred from sampled amount and date
// cells. It is informational: value parsing does not depend on it.
type Dialect struct {
	DecimalSeparator rune    `json:"decimal_separator"`
	DateOrder        string  `json:"date_order,omitempty"`
	Confidence       float64 `json:"confidence"`
}

// ProbeDialect votes on the decimal separator and date order of a file.
func ProbeDialect(amounts, dates []string) Dialect {
	d := Dialect{DecimalSeparator: '.', Confidence: 0.5}

	european, us := 0, 0
	for _, v := range amounts {
		switch analyzeAmountFormat(v) {
		case 1:
			european++
		case -1:
			us++
		}
	}
	if european > us {
		d.DecimalSeparator = ','
	}
	if total := european + us; total > 0 {
		d.Confidence = float64(max(european, us)) / float64(total)
	}

	dayFirst, monthFirst, yearFirst := false, false, false
	for _, v := range dates {
		switch analyzeDateFormat(v) {
		case OrderDayFirst:
			dayFirst = true
		case OrderMonthFirst:
			monthFirst = true
		case OrderYearFirst:
			yearFirst = true
		}
	}
	switch {
	case yearFirst && !dayFirst && !monthFirst:
		d.DateOrder = OrderYearFirst
	case dayFirst && !monthFirst:
		d.DateOrder = OrderDayFirst
	case monthFirst && !dayFirst:
		d.DateOrder = OrderMonthFirst
	case d.DecimalSeparator == ',':
		d.DateOrder = OrderDayFirst
	}
	return d
}

// analyzeAmountFormat returns 1 for a decimal comma, -1 for a decimal point
// and 0 when the value does not tell.
func analyzeAmountFormat(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' {
			return r
		}
		return -1
	}, val)
	if cleaned == "" {
		return 0
	}

	lastComma, lastDot := strings.LastIndex(cleaned, ","), strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return 1
		}
		return -1
	case lastComma >= 0:
		if len(cleaned)-lastComma-1 <= 2 {
			return 1
		}
	case lastDot >= 0:
		if len(cleaned)-lastDot-1 <= 2 {
			return -1
		}
	}
	return 0
}

// analyzeDateFormat classifies a numeric date by the magnitude of its parts.
// Dates whose first two parts are both twelve or less tell nothing.
func analyzeDateFormat(val string) string {
	parts := strings.FieldsFunc(strings.TrimSpace(val), func(r rune) bool {
		return r == '/' || r == '-' || r == '.' || r == ' '
	})
	if len(parts) < 3 {
		return OrderUnknown
	}
	first, ok1 := leadingInt(parts[0])
	second, ok2 := leadingInt(parts[1])
	if !ok1 {
		return OrderUnknown
	}
	if len(parts[0]) == 4 {
		return OrderYearFirst
	}
	if !ok2 {
		// "12 feb 2024" style dates always lead with the day.
		return OrderDayFirst
	}
	switch {
	case first > 12 && first <= 31:
		return OrderDayFirst
	case second > 12 && second <= 31:
		return OrderMonthFirst
	}
	return OrderUnknown
}

func leadingInt(s string) (int, bool) {
	n, digits := 0, 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
		digits++
	}
	return n, digits > 0
}
