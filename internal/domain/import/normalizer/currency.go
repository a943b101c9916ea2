package normalizer

import (
	"strings"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/patterns"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/table"
)

// dollarVariants disambiguate the bare "$" glyph when a country prefix is
// present. Longer prefixes come first so "US$" wins over "S$".
var dollarVariants = []struct{ prefix, code string }{
	{"NZ$", "NZD"},
	{"HK$", "HKD"},
	{"US$", "USD"},
	{"R$", "BRL"},
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"S$", "SGD"},
}

// CurrencyOf extracts an ISO code from a cell: an exact code in any case,
// then an embedded upper-case code, then a known glyph.
func (c *Classifier) CurrencyOf(s string) (string, bool) {
	v := strings.Trim(strings.TrimSpace(s), `"'`)
	if v == "" {
		return "", false
	}
	if c.lib.IsCurrencyCode(strings.ToUpper(v)) {
		return strings.ToUpper(v), true
	}
	if code := c.lib.CurrencyCode.FindString(v); code != "" {
		return code, true
	}
	upper := strings.ToUpper(v)
	for _, dv := range dollarVariants {
		if strings.Contains(upper, dv.prefix) {
			return dv.code, true
		}
	}
	if glyph := c.lib.CurrencyGlyph.FindString(v); glyph != "" {
		return patterns.Glyphs[glyph], true
	}
	return "", false
}

// UnknownCurrency is reported when no cell of a row names a currency.
const UnknownCurrency = "UNKNOWN"

// ExtractCurrency reads the currency of a row from the mapped primary column,
// then the fallback columns in order, then every remaining cell.
func (c *Classifier) ExtractCurrency(row table.Row, primary string, fallbacks []string) string {
	seen := make(map[string]struct{}, len(fallbacks)+1)
	check := func(h string) (string, bool) {
		if h == "" {
			return "", false
		}
		if _, done := seen[h]; done {
			return "", false
		}
		seen[h] = struct{}{}
		return c.CurrencyOf(row.Value(h))
	}

	if code, ok := check(primary); ok {
		return code
	}
	for _, h := range fallbacks {
		if code, ok := check(h); ok {
			return code
		}
	}
	for _, h := range row.Headers() {
		if code, ok := check(h); ok {
			return code
		}
	}
	return UnknownCurrency
}
