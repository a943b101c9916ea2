// Package parser turns an unlabeled statement export into provisional
// transactions: it locates the table, maps its columns and extracts each row.
package parser

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/mapper"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/sniffer"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/table"
)

// Direction carries the sign of a parsed amount.
type Direction string

const (
	DirectionIncome   Direction = "INCOME"
	DirectionExpenses Direction = "EXPENSES"
)

// ParsedTransaction is one provisional transaction. Amount is never negative;
// the sign lives in Direction.
type ParsedTransaction struct {
	Date          string          `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     Direction       `json:"direction"`
	Currency      string          `json:"currency"`
	Title         string          `json:"title"`
	Merchant      string          `json:"merchant,omitempty"`
	CategoryHint  string          `json:"category_hint,omitempty"`
	DateDefaulted bool            `json:"date_defaulted,omitempty"`
	Row           int             `json:"row"`
	OriginalRow   table.Row       `json:"original_row"`
}

// SignedAmount returns the amount with the direction applied.
func (t ParsedTransaction) SignedAmount() decimal.Decimal {
	if t.Direction == DirectionExpenses {
		return t.Amount.Neg()
	}
	return t.Amount
}

// ParseError describes a failure. Row is the 1-based data row, or 0 when the
// whole input failed.
type ParseError struct {
	Row     int    `json:"row,omitempty"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
	RawData string `json:"raw_data,omitempty"`
}

func (e ParseError) Error() string {
	if e.Row == 0 {
		return e.Message
	}
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ParseResult is the outcome of one parse call. It is not modified after
// Parse returns.
type ParseResult struct {
	Transactions     []ParsedTransaction `json:"transactions"`
	Mapping          mapper.FieldMapping `json:"mapping"`
	Errors           []ParseError        `json:"errors"`
	DetectedStartRow int                 `json:"detected_start_row"`
	Delimiter        rune                `json:"-"`
	Headers          []string            `json:"headers"`
	Fingerprint      string              `json:"fingerprint,omitempty"`
	Dialect          sniffer.Dialect     `json:"dialect"`
	TotalRows        int                 `json:"total_rows"`
	SkippedRows      int                 `json:"skipped_rows"`
}

// RowErrors returns the errors tied to a specific row.
func (r *ParseResult) RowErrors() []ParseError {
	var out []ParseError
	for _, e := range r.Errors {
		if e.Row > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Failed reports whether no table could be extracted at all.
func (r *ParseResult) Failed() bool {
	return len(r.Transactions) == 0 && len(r.Errors) > 0 && len(r.RowErrors()) == 0
}

// ErrorStrings renders every error as text.
func (r *ParseResult) ErrorStrings() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Error()
	}
	return out
}
