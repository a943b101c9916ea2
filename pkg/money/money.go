// Package money provides currency-safe amounts in integer minor units on top
// of go-money, with decimal conversion for parsed statement values.
package money

import (
	"encoding/json"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	CHF = "CHF"
	JPY = "JPY"
)

// defaultFraction is used for codes go-money does not know, such as the
// UNKNOWN placeholder of statements without a currency column.
const defaultFraction = 2

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units and a currency code.
func New(amountMinor int64, currencyCode string) *Money {
	return &Money{m: money.New(amountMinor, strings.ToUpper(currencyCode))}
}

// NewFromDecimal creates Money from a decimal value, rounding half away from
// zero to the currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	multiplier := decimal.New(1, int32(Fraction(currencyCode)))
	return New(amount.Mul(multiplier).Round(0).IntPart(), currencyCode)
}

// Zero returns a zero Money value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Known reports whether go-money recognizes the ISO code.
func Known(currencyCode string) bool {
	return money.GetCurrency(strings.ToUpper(currencyCode)) != nil
}

// Fraction returns the number of minor-unit digits of a currency.
func Fraction(currencyCode string) int {
	if c := money.GetCurrency(strings.ToUpper(currencyCode)); c != nil {
		return c.Fraction
	}
	return defaultFraction
}

// Format renders a decimal amount in the currency's display template, or as
// a plain number followed by the code when the currency is unknown.
func Format(amount decimal.Decimal, currencyCode string) string {
	if !Known(currencyCode) {
		return strings.TrimSpace(amount.StringFixed(defaultFraction) + " " + currencyCode)
	}
	code := strings.ToUpper(currencyCode)
	return money.New(NewFromDecimal(amount, code).Amount(), code).Display()
}

// Amount returns the amount in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero returns true if the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative returns true if the amount is below zero.
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Negate returns the value with the opposite sign.
func (m *Money) Negate() *Money {
	if m == nil || m.m == nil {
		return Zero(USD)
	}
	return &Money{m: m.m.Negative()}
}

// Add adds two Money values. Returns error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Subtract subtracts other from m. Returns error if currencies don't match.
func (m *Money) Subtract(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		if other == nil {
			return Zero(USD), nil
		}
		return other.Negate(), nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Subtract(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// Display returns a formatted string for display (e.g., "€1,234.56").
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	if !Known(m.Currency()) {
		return strings.TrimSpace(m.String() + " " + m.Currency())
	}
	return m.m.Display()
}

// String returns the amount as a decimal string (e.g., "1234.56").
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(Fraction(m.Currency())))
}

// ToDecimal converts minor units back to a decimal amount.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return decimal.New(m.m.Amount(), -int32(Fraction(m.Currency())))
}

// MarshalJSON encodes the amount in minor units with its display form.
func (m *Money) MarshalJSON() ([]byte, error) {
	if m == nil || m.m == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(map[string]any{
		"amount":   m.Amount(),
		"currency": m.Currency(),
		"display":  m.Display(),
	})
}
