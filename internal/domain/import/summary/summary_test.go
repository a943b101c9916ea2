package summary

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/parser"
)

func tx(row int, date, amount string, dir parser.Direction, currency, title string) parser.ParsedTransaction {
	return parser.ParsedTransaction{
		Row:       row,
		Date:      date,
		Amount:    decimal.RequireFromString(amount),
		Direction: dir,
		Currency:  currency,
		Title:     title,
	}
}

func TestSummarize(t *testing.T) {
	txs := []parser.ParsedTransaction{
		tx(1, "2024-03-05", "45.10", parser.DirectionExpenses, "EUR", "Esselunga"),
		tx(2, "2024-03-01", "2500.00", parser.DirectionIncome, "EUR", "Stipendio"),
		tx(3, "2024-03-20", "12.00", parser.DirectionExpenses, "CHF", "Migros"),
		tx(4, "2024-02-28", "3.50", parser.DirectionExpenses, "UNKNOWN", "Bar"),
	}

	s := Summarize(txs)

	assert.Equal(t, 4, s.TotalTransactions)
	assert.True(t, decimal.RequireFromString("2500").Equal(s.TotalIncome))
	assert.True(t, decimal.RequireFromString("60.60").Equal(s.TotalExpenses))
	assert.Equal(t, DateRange{From: "2024-02-28", To: "2024-03-20"}, s.DateRange)
	assert.Equal(t, []string{"CHF", "EUR", "UNKNOWN"}, s.Currencies)

	require.Len(t, s.ByCurrency, 3)
	eur := s.ByCurrency[1]
	assert.Equal(t, "EUR", eur.Currency)
	assert.Equal(t, 2, eur.Count)
	assert.True(t, decimal.RequireFromString("2454.90").Equal(eur.Net))
	assert.Contains(t, eur.Display, "€")

	unknown := s.ByCurrency[2]
	assert.Equal(t, "-3.50 UNKNOWN", unknown.Display)
	assert.Empty(t, s.PossibleDuplicates)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)

	assert.Zero(t, s.TotalTransactions)
	assert.True(t, s.TotalIncome.IsZero())
	assert.True(t, s.TotalExpenses.IsZero())
	assert.Equal(t, DateRange{}, s.DateRange)
	assert.NotNil(t, s.Currencies)
	assert.Empty(t, s.Currencies)
	assert.Empty(t, s.ByCurrency)
}

func TestFindDuplicates(t *testing.T) {
	txs := []parser.ParsedTransaction{
		tx(1, "2024-03-05", "45.10", parser.DirectionExpenses, "EUR", "ESSELUNGA MILANO"),
		tx(2, "2024-03-05", "45.1", parser.DirectionExpenses, "EUR", "Esselunga Milan"),
		tx(3, "2024-03-05", "45.10", parser.DirectionIncome, "EUR", "Esselunga Milano"),
		tx(4, "2024-03-06", "45.10", parser.DirectionExpenses, "EUR", "Esselunga Milano"),
		tx(5, "2024-03-05", "45.10", parser.DirectionExpenses, "EUR", "Netflix"),
	}

	dups := FindDuplicates(txs)

	require.Len(t, dups, 1)
	assert.Equal(t, 1, dups[0].FirstRow)
	assert.Equal(t, 2, dups[0].SecondRow)
	assert.Equal(t, "2024-03-05", dups[0].Date)
}
