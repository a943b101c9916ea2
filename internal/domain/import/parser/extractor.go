package parser

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/mapper"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/table"
)

type rowState int

const (
	stateLocateAmount rowState = iota
	stateLocateDate
	stateParseAmount
	stateParseDate
	stateExtractCurrency
	stateResolveTitle
	stateEmit
)

func (s rowState) String() string {
	switch s {
	case stateLocateAmount:
		return "locate amount"
	case stateLocateDate:
		return "locate date"
	case stateParseAmount:
		return "parse amount"
	case stateParseDate:
		return "parse date"
	case stateExtractCurrency:
		return "extract currency"
	case stateResolveTitle:
		return "resolve title"
	case stateEmit:
		return "emit"
	}
	return "unknown"
}

type rowOutcome int

const (
	outcomeEmitted rowOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// located is a cell chosen for a role.
type located struct {
	header string
	value  string
	// sign is -1 for a debit column, +1 for a credit column and 0 otherwise.
	sign int
}

type extractor struct {
	engine  *Engine
	mapping mapper.FieldMapping
}

// extract runs one row through the state machine. index is 0-based.
func (x *extractor) extract(row table.Row, index int) (tx ParsedTransaction, outcome rowOutcome, perr ParseError) {
	rowNum := index + 1
	state := stateLocateAmount

	defer func() {
		if r := recover(); r != nil {
			x.engine.logger.Warn("recovered panic while extracting row",
				slog.Int("row", rowNum),
				slog.String("state", state.String()),
				slog.Any("panic", r))
			tx = ParsedTransaction{}
			outcome = outcomeFailed
			perr = ParseError{Row: rowNum, Message: fmt.Sprintf("unexpected failure during %s: %v", state, r), RawData: row.Text()}
		}
	}()

	var (
		amountCell, dateCell located
		amount               decimal.Decimal
		ok                   bool
	)
	tx = ParsedTransaction{Row: rowNum, OriginalRow: row}

	for {
		switch state {
		case stateLocateAmount:
			amountCell, ok = x.locateAmount(row)
			if !ok {
				return ParsedTransaction{}, outcomeFailed, ParseError{Row: rowNum, Column: x.mapping.Amount.Primary, Message: "no amount found", RawData: row.Text()}
			}
			state = stateLocateDate

		case stateLocateDate:
			dateCell, ok = x.locate(row, x.mapping.Date, x.engine.classifier.LooksLikeDate)
			if !ok {
				return ParsedTransaction{}, outcomeFailed, ParseError{Row: rowNum, Column: x.mapping.Date.Primary, Message: "no date found", RawData: row.Text()}
			}
			state = stateParseAmount

		case stateParseAmount:
			amount, ok = normalizer.ParseAmountStrict(amountCell.value)
			if !ok {
				return ParsedTransaction{}, outcomeFailed, ParseError{Row: rowNum, Column: amountCell.header, Message: fmt.Sprintf("unparseable amount %q", amountCell.value), RawData: row.Text()}
			}
			if amount.IsZero() {
				return ParsedTransaction{}, outcomeSkipped, ParseError{}
			}
			switch amountCell.sign {
			case -1:
				amount = amount.Abs().Neg()
			case 1:
				amount = amount.Abs()
			}
			tx.Amount = amount.Abs()
			tx.Direction = DirectionIncome
			if amount.IsNegative() {
				tx.Direction = DirectionExpenses
			}
			state = stateParseDate

		case stateParseDate:
			d, parsed := normalizer.ParseDate(dateCell.value)
			if !parsed {
				d = x.engine.now().UTC()
				tx.DateDefaulted = true
				x.engine.logger.Warn("unparseable date, using today",
					slog.Int("row", rowNum),
					slog.String("column", dateCell.header),
					slog.String("value", dateCell.value))
			}
			tx.Date = normalizer.FormatDate(d)
			state = stateExtractCurrency

		case stateExtractCurrency:
			tx.Currency = x.engine.classifier.ExtractCurrency(row, x.mapping.Currency.Primary, x.mapping.Currency.Fallbacks)
			state = stateResolveTitle

		case stateResolveTitle:
			tx.Title = x.resolveTitle(row)
			if tx.Title == "" {
				tx.Title = fmt.Sprintf("Transaction %d", rowNum)
			} else {
				m := x.engine.sanitizer.Sanitize(tx.Title)
				tx.Merchant, tx.CategoryHint = m.Name, m.CategoryHint
			}
			state = stateEmit

		case stateEmit:
			return tx, outcomeEmitted, ParseError{}
		}
	}
}

// locateAmount prefers an explicit debit/credit pair, then the usual chain.
func (x *extractor) locateAmount(row table.Row) (located, bool) {
	if split := x.mapping.Split; split != nil {
		if v := row.Value(split.Debit); v != "" && x.engine.classifier.LooksLikeAmount(v) && !normalizer.ParseAmount(v).IsZero() {
			return located{header: split.Debit, value: v, sign: -1}, true
		}
		if v := row.Value(split.Credit); v != "" && x.engine.classifier.LooksLikeAmount(v) && !normalizer.ParseAmount(v).IsZero() {
			return located{header: split.Credit, value: v, sign: 1}, true
		}
	}
	return x.locate(row, x.mapping.Amount, x.engine.classifier.LooksLikeAmount)
}

// locate resolves a role: primary column, then fallbacks, then every other
// column, accepting the first value the validator agrees with.
func (x *extractor) locate(row table.Row, rm mapper.RoleMapping, valid func(string) bool) (located, bool) {
	tried := make(map[string]struct{}, len(rm.Fallbacks)+1)
	try := func(h string) (located, bool) {
		if h == "" {
			return located{}, false
		}
		if _, done := tried[h]; done {
			return located{}, false
		}
		tried[h] = struct{}{}
		v := row.Value(h)
		if v == "" || !valid(v) {
			return located{}, false
		}
		return located{header: h, value: v}, true
	}

	if c, ok := try(rm.Primary); ok {
		return c, true
	}
	for _, h := range rm.Fallbacks {
		if c, ok := try(h); ok {
			return c, true
		}
	}
	for _, h := range row.Headers() {
		if c, ok := try(h); ok {
			return c, true
		}
	}
	return located{}, false
}

func (x *extractor) resolveTitle(row table.Row) string {
	if t := normalizer.CleanDescription(row.Value(x.mapping.Title.Primary)); t != "" {
		return t
	}
	for _, h := range x.mapping.Title.Fallbacks {
		if t := normalizer.CleanDescription(row.Value(h)); t != "" {
			return t
		}
	}
	return ""
}
