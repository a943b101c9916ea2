// Package patterns holds the read-only pattern library used to recognise dates,
// amounts, currencies and column roles in unlabeled statement exports.
// A Library is built once at startup and shared by pointer; nothing in it is
// mutated after construction.
package patterns

import (
	"regexp"
	"strings"
)

// Glyphs maps currency symbols to the ISO code they stand for.
var Glyphs = map[string]string{
	"€": "EUR",
	"$": "USD",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
	"₽": "RUB",
}

// Library is the shared set of regular expressions and keyword sets.
type Library struct {
	// DatePatterns are anchored at the start of the value, most specific first.
	DatePatterns []*regexp.Regexp
	// AmountPatterns must match the whole cleaned value.
	AmountPatterns []*regexp.Regexp

	CurrencyCode  *regexp.Regexp
	CurrencyGlyph *regexp.Regexp

	DateKeywords     *KeywordSet
	AmountKeywords   *KeywordSet
	CurrencyKeywords *KeywordSet
	TitleKeywords    *KeywordSet
	DebitKeywords    *KeywordSet
	CreditKeywords   *KeywordSet
	LegendKeywords   *KeywordSet
	BannerKeywords   *KeywordSet

	codes map[string]struct{}
}

// New compiles a library for the given ISO currency codes.
func New(currencyCodes []string) *Library {
	codes := make(map[string]struct{}, len(currencyCodes))
	quoted := make([]string, 0, len(currencyCodes))
	for _, c := range currencyCodes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := codes[c]; dup {
			continue
		}
		codes[c] = struct{}{}
		quoted = append(quoted, regexp.QuoteMeta(c))
	}

	glyphs := make([]string, 0, len(Glyphs))
	for g := range Glyphs {
		glyphs = append(glyphs, regexp.QuoteMeta(g))
	}
	glyphClass := strings.Join(glyphs, "")

	return &Library{
		DatePatterns: []*regexp.Regexp{
			regexp.MustCompile(`^\d{4}[-/.]\d{1,2}[-/.]\d{1,2}`),
			regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}`),
			regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}`),
			regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}`),
			regexp.MustCompile(`^\d{1,2}[-/.]\d{1,2}[-/.]\d{2}\b`),
			regexp.MustCompile(`(?i)^\d{1,2}[\s\-/.]+(gen|feb|mar|apr|mag|giu|lug|ago|set|ott|nov|dic)[a-z]*\.?[\s\-/.]+\d{2,4}`),
			regexp.MustCompile(`(?i)^\d{1,2}[\s\-/.]+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?[\s\-/.,]+\d{2,4}`),
		},
		AmountPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^[-+]?\d+(\.\d+)?$`),
			regexp.MustCompile(`^[-+]?\d+,\d+$`),
			regexp.MustCompile(`^[-+]?[` + glyphClass + `][-+]?\d[\d.,']*$`),
			regexp.MustCompile(`^[-+]?\d[\d.,']*[` + glyphClass + `]$`),
			regexp.MustCompile(`^[-+]?\d{1,3}([.,']\d{3})+([.,]\d{1,2})?$`),
			regexp.MustCompile(`^"[-+]?\d[\d.,']*"$`),
			regexp.MustCompile(`^\(\d[\d.,']*\)$`),
			regexp.MustCompile(`^\d[\d.,']*-$`),
		},
		CurrencyCode:     regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		CurrencyGlyph:    regexp.MustCompile(`[` + glyphClass + `]`),
		DateKeywords:     NewKeywordSet(dateKeywords, dateExact),
		AmountKeywords:   NewKeywordSet(amountKeywords, amountExact),
		CurrencyKeywords: NewKeywordSet(currencyKeywords, currencyExact),
		TitleKeywords:    NewKeywordSet(titleKeywords, titleExact),
		DebitKeywords:    NewKeywordSet(debitKeywords, nil),
		CreditKeywords:   NewKeywordSet(creditKeywords, nil),
		LegendKeywords:   NewKeywordSet(legendHeaderKeywords, nil),
		BannerKeywords:   NewKeywordSet(bannerKeywords, nil),
		codes:            codes,
	}
}

// Default returns a library for the full supported currency list.
func Default() *Library {
	return New(SupportedCurrencies)
}

// IsCurrencyCode reports whether code is one of the supported ISO codes.
func (l *Library) IsCurrencyCode(code string) bool {
	_, ok := l.codes[strings.ToUpper(code)]
	return ok
}
