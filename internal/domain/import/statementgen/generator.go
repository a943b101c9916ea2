// Package statementgen produces synthetic bank statement exports for
// benchmarks, property tests and local demos.
package statementgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// Layout selects the shape of a generated export.
type Layout int

const (
	// LayoutEnglish is a comma separated export with ISO dates and dot decimals.
	LayoutEnglish Layout = iota
	// LayoutItalian is a semicolon separated export with D/M/Y dates and comma decimals.
	LayoutItalian
	// LayoutSplit reports money out and money in as two unsigned columns.
	LayoutSplit
)

// Row is one generated transaction as the bank would print it, plus the
// signed value it represents.
type Row struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Currency    string
}

// Statement is a generated export.
type Statement struct {
	Text    string
	Banners int
	Rows    []Row
}

// Generator wraps a seeded faker so output is reproducible.
type Generator struct {
	faker *gofakeit.Faker
}

// New returns a generator. A zero seed picks a random one.
func New(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Statement renders n rows in the given layout below a few banner lines.
func (g *Generator) Statement(layout Layout, n int, currency string) Statement {
	rows := g.Rows(n, currency)
	banners := g.banners(layout)

	var sb strings.Builder
	for _, b := range banners {
		sb.WriteString(b)
		sb.WriteByte('\n')
	}
	switch layout {
	case LayoutItalian:
		sb.WriteString("Data operazione;Descrizione;Importo;Divisa\n")
		for _, r := range rows {
			fmt.Fprintf(&sb, "%s;%s;%s;%s\n", r.Date.Format("02/01/2006"), r.Description, european(r.Amount), r.Currency)
		}
	case LayoutSplit:
		sb.WriteString("Data;Causale;Uscite;Entrate\n")
		for _, r := range rows {
			out, in := "", ""
			if r.Amount.IsNegative() {
				out = european(r.Amount.Abs())
			} else {
				in = european(r.Amount)
			}
			fmt.Fprintf(&sb, "%s;%s;%s;%s\n", r.Date.Format("02/01/2006"), r.Description, out, in)
		}
	default:
		sb.WriteString("Date,Description,Amount,Currency\n")
		for _, r := range rows {
			fmt.Fprintf(&sb, "%s,%s,%s,%s\n", r.Date.Format("2006-01-02"), r.Description, r.Amount.StringFixed(2), r.Currency)
		}
	}

	return Statement{Text: sb.String(), Banners: len(banners), Rows: rows}
}

// Rows generates n transactions with non-zero amounts inside the last year.
func (g *Generator) Rows(n int, currency string) []Row {
	end := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(-1, 0, 0)

	rows := make([]Row, n)
	for i := range rows {
		cents := int64(g.faker.Number(1, 250000))
		amount := decimal.New(cents, -2)
		desc := g.expenseDescription()
		if g.faker.Number(0, 9) == 0 {
			amount = decimal.New(int64(g.faker.Number(50000, 500000)), -2)
			desc = g.incomeDescription()
		} else {
			amount = amount.Neg()
		}
		d := g.faker.DateRange(start, end)
		rows[i] = Row{
			Date:        time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			Description: desc,
			Amount:      amount,
			Currency:    currency,
		}
	}
	return rows
}

func (g *Generator) banners(layout Layout) []string {
	name := strings.ReplaceAll(g.faker.Name(), ",", "")
	if layout == LayoutEnglish {
		return []string{
			"Account statement",
			"Holder: " + name,
		}
	}
	return []string{
		"Estratto conto",
		"Intestatario: " + name,
		"Periodo dal 01/01/2024 al 31/12/2024",
	}
}

func (g *Generator) expenseDescription() string {
	return descriptions[g.faker.Number(0, len(descriptions)-1)]
}

func (g *Generator) incomeDescription() string {
	return incomeDescriptions[g.faker.Number(0, len(incomeDescriptions)-1)]
}

func european(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var grouped strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(c)
	}
	out := grouped.String() + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}

var descriptions = []string{
	"PAGAMENTO POS ESSELUNGA",
	"Spesa supermercato",
	"ADDEBITO SDD NETFLIX.COM",
	"Trenitalia biglietto",
	"AMZN Mktp IT",
	"Bar del Corso",
	"Farmacia Centrale",
	"Bolletta Enel",
	"Ristorante da Mario",
	"Carburante Q8",
	"Spotify abbonamento",
	"Prelievo bancomat",
}

var incomeDescriptions = []string{
	"Bonifico a vostro favore STIPENDIO",
	"Rimborso spese",
	"Giroconto da conto deposito",
	"Accredito interessi",
}
