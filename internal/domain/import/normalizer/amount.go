package normalizer

import (
	"strings"

	"github.com/shopspring/decimal"
)

var amountStrategies = []Strategy[decimal.Decimal]{
	{Name: "plain", Apply: parsePlainAmount},
	{Name: "decimal-comma", Apply: parseDecimalComma},
	{Name: "last-separator", Apply: parseLastSeparator},
	{Name: "grouped", Apply: parseGroupedAmount},
}

// ParseAmount converts a raw cell into a signed decimal. Text that cannot be
// read as a number yields zero, which the row extractor treats as a skip.
func ParseAmount(s string) decimal.Decimal {
	d, _ := ParseAmountStrict(s)
	return d
}

// ParseAmountStrict is ParseAmount with an explicit success flag.
func ParseAmountStrict(s string) (decimal.Decimal, bool) {
	digits, negative, ok := stripAmount(s)
	if !ok {
		return decimal.Zero, false
	}
	d, _, ok := FirstMatch(digits, amountStrategies)
	if !ok {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// stripAmount keeps digits and separators and resolves the sign markers:
// a leading minus, a trailing minus or surrounding parentheses.
func stripAmount(s string) (string, bool, bool) {
	kept := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-', r == '(', r == ')':
			return r
		}
		return -1
	}, s)
	if kept == "" {
		return "", false, false
	}

	negative := false
	if strings.HasPrefix(kept, "(") && strings.HasSuffix(kept, ")") {
		negative = true
		kept = kept[1 : len(kept)-1]
	}
	if strings.HasSuffix(kept, "-") {
		negative = true
		kept = strings.TrimSuffix(kept, "-")
	}
	if strings.HasPrefix(kept, "-") {
		negative = true
		kept = strings.TrimPrefix(kept, "-")
	}
	if kept == "" || strings.ContainsAny(kept, "-()") {
		return "", false, false
	}
	return kept, negative, true
}

func parsePlainAmount(s string) (decimal.Decimal, bool) {
	if strings.Contains(s, ",") || strings.Count(s, ".") > 1 {
		return decimal.Zero, false
	}
	return fromString(s)
}

func parseDecimalComma(s string) (decimal.Decimal, bool) {
	if strings.Contains(s, ".") || strings.Count(s, ",") != 1 {
		return decimal.Zero, false
	}
	return fromString(strings.Replace(s, ",", ".", 1))
}

func parseLastSeparator(s string) (decimal.Decimal, bool) {
	lastComma, lastDot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	if lastComma < 0 || lastDot < 0 {
		return decimal.Zero, false
	}
	if lastComma > lastDot {
		s = strings.ReplaceAll(s, ".", "")
		return fromString(strings.Replace(s, ",", ".", 1))
	}
	return fromString(strings.ReplaceAll(s, ",", ""))
}

// parseGroupedAmount handles a single separator repeated as thousands grouping.
func parseGroupedAmount(s string) (decimal.Decimal, bool) {
	if strings.Count(s, ",") > 1 && !strings.Contains(s, ".") {
		return fromString(strings.ReplaceAll(s, ",", ""))
	}
	if strings.Count(s, ".") > 1 && !strings.Contains(s, ",") {
		return fromString(strings.ReplaceAll(s, ".", ""))
	}
	return decimal.Zero, false
}

func fromString(s string) (decimal.Decimal, bool) {
	if s == "" || s == "." || strings.Count(s, ".") > 1 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
