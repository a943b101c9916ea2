// Package summary folds parsed transactions into totals for display.
package summary

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/parser"
	"github.com/FACorreiaa/echo-statements/pkg/money"
)

// maxTitleDistance is the Levenshtein distance under which two titles on the
// same day with the same amount are reported as possible duplicates.
const maxTitleDistance = 2

// DateRange spans the earliest and latest transaction dates (YYYY-MM-DD).
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CurrencyTotal is the income and expense total of one currency.
type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Count    int             `json:"count"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
	Display  string          `json:"display"`
}

// Duplicate names two rows that look like the same transaction.
type Duplicate struct {
	FirstRow  int    `json:"first_row"`
	SecondRow int    `json:"second_row"`
	Date      string `json:"date"`
	Title     string `json:"title"`
}

// Summary is a derived view over a transaction list. It is recomputed on
// every call.
type Summary struct {
	TotalTransactions  int             `json:"total_transactions"`
	TotalIncome        decimal.Decimal `json:"total_income"`
	TotalExpenses      decimal.Decimal `json:"total_expenses"`
	DateRange          DateRange       `json:"date_range"`
	Currencies         []string        `json:"currencies"`
	ByCurrency         []CurrencyTotal `json:"by_currency"`
	PossibleDuplicates []Duplicate     `json:"possible_duplicates,omitempty"`
}

// Summarize computes totals, the date span and the currency set.
func Summarize(txs []parser.ParsedTransaction) Summary {
	s := Summary{
		TotalTransactions: len(txs),
		TotalIncome:       decimal.Zero,
		TotalExpenses:     decimal.Zero,
		Currencies:        []string{},
	}

	perCurrency := make(map[string]*CurrencyTotal)
	for _, tx := range txs {
		ct, ok := perCurrency[tx.Currency]
		if !ok {
			ct = &CurrencyTotal{Currency: tx.Currency, Income: decimal.Zero, Expenses: decimal.Zero}
			perCurrency[tx.Currency] = ct
			s.Currencies = append(s.Currencies, tx.Currency)
		}
		ct.Count++

		switch tx.Direction {
		case parser.DirectionIncome:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
			ct.Income = ct.Income.Add(tx.Amount)
		case parser.DirectionExpenses:
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
			ct.Expenses = ct.Expenses.Add(tx.Amount)
		}

		if tx.Date != "" {
			if s.DateRange.From == "" || tx.Date < s.DateRange.From {
				s.DateRange.From = tx.Date
			}
			if tx.Date > s.DateRange.To {
				s.DateRange.To = tx.Date
			}
		}
	}

	sort.Strings(s.Currencies)
	s.ByCurrency = make([]CurrencyTotal, 0, len(s.Currencies))
	for _, code := range s.Currencies {
		ct := perCurrency[code]
		ct.Net = ct.Income.Sub(ct.Expenses)
		ct.Display = money.Format(ct.Net, code)
		s.ByCurrency = append(s.ByCurrency, *ct)
	}
	s.PossibleDuplicates = FindDuplicates(txs)
	return s
}

// FindDuplicates reports pairs of transactions with the same date, amount and
// direction whose titles differ by at most two edits.
func FindDuplicates(txs []parser.ParsedTransaction) []Duplicate {
	type key struct {
		date      string
		amount    string
		direction parser.Direction
	}
	groups := make(map[key][]int)
	var order []key
	for i, tx := range txs {
		k := key{date: tx.Date, amount: tx.Amount.String(), direction: tx.Direction}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	var dups []Duplicate
	for _, k := range order {
		idx := groups[k]
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				first, second := txs[idx[a]], txs[idx[b]]
				ta, tb := strings.ToLower(first.Title), strings.ToLower(second.Title)
				if fuzzy.LevenshteinDistance(ta, tb) <= maxTitleDistance {
					dups = append(dups, Duplicate{
						FirstRow:  first.Row,
						SecondRow: second.Row,
						Date:      first.Date,
						Title:     first.Title,
					})
				}
			}
		}
	}
	return dups
}
