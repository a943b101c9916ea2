package normalizer

import (
	"strings"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/patterns"
)

// Classifier holds pure predicates over single cell values.
type Classifier struct {
	lib *patterns.Library
}

// NewClassifier creates a classifier over the shared pattern library.
func NewClassifier(lib *patterns.Library) *Classifier {
	return &Classifier{lib: lib}
}

// Library returns the pattern library the classifier was built with.
func (c *Classifier) Library() *patterns.Library {
	return c.lib
}

// LooksLikeDate reports whether s starts like a date in one of the known formats.
func (c *Classifier) LooksLikeDate(s string) bool {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if len(s) < 6 {
		return false
	}
	for _, re := range c.lib.DatePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// LooksLikeAmount reports whether s is a monetary value once quotes, spaces
// and a leading or trailing ISO code are removed.
func (c *Classifier) LooksLikeAmount(s string) bool {
	if s == "" {
		return false
	}
	cleaned := c.cleanAmount(s)
	if cleaned == "" {
		return false
	}
	for _, re := range c.lib.AmountPatterns {
		if re.MatchString(cleaned) {
			return true
		}
	}
	return false
}

// LooksLikeCurrency reports whether s carries a currency code or glyph.
func (c *Classifier) LooksLikeCurrency(s string) bool {
	_, ok := c.CurrencyOf(s)
	return ok
}

func (c *Classifier) cleanAmount(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\u00a0', '\u202f', '"', '\'':
			return -1
		}
		return r
	}, s)
	if len(cleaned) > 3 {
		if c.lib.IsCurrencyCode(cleaned[:3]) && isUpperASCII(cleaned[:3]) {
			cleaned = cleaned[3:]
		} else if tail := cleaned[len(cleaned)-3:]; c.lib.IsCurrencyCode(tail) && isUpperASCII(tail) {
			cleaned = cleaned[:len(cleaned)-3]
		}
	}
	return cleaned
}

func isUpperASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
