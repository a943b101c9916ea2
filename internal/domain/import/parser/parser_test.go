package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/patterns"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/statementgen"
)

var fixedNow = time.Date(2024, time.June, 1, 9, 30, 0, 0, time.UTC)

func newTestEngine(opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewEngine(patterns.Default(), opts...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParse_ItalianEndToEnd(t *testing.T) {
	text := "Data,Descrizione,Importo\n12 feb 2024,Spesa supermercato,-45,90\n"

	result := newTestEngine().Parse(text)

	require.Empty(t, result.Errors)
	require.Len(t, result.Transactions, 1)
	tx := result.Transactions[0]
	assert.Equal(t, "2024-02-12", tx.Date)
	assert.Equal(t, "Spesa supermercato", tx.Title)
	assert.True(t, dec("45.90").Equal(tx.Amount), tx.Amount.String())
	assert.Equal(t, DirectionExpenses, tx.Direction)
	assert.Equal(t, normalizer.UnknownCurrency, tx.Currency)
	assert.Equal(t, "Supermercato", tx.Merchant)
	assert.Equal(t, "Groceries", tx.CategoryHint)
	assert.False(t, tx.DateDefaulted)
	assert.Equal(t, 1, tx.Row)
	assert.Equal(t, 0, result.DetectedStartRow)
}

func TestParse_TableStartAfterBanners(t *testing.T) {
	text := strings.Join([]string{
		"ACME Bank - Account statement",
		"Generated on 2024-03-01",
		"Date,Description,Amount",
		"2024-01-15,Coffee,-4.50",
		"2024-01-16,Salary,2500.00",
		"2024-01-17,Groceries,-62.10",
		"2024-01-18,Rent,-900.00",
		"2024-01-19,Refund,15.00",
	}, "\n")

	result := newTestEngine().Parse(text)

	assert.Equal(t, 2, result.DetectedStartRow)
	assert.Positive(t, result.Mapping.Confidence)
	assert.Len(t, result.Transactions, 5)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, result.Headers)
	assert.Equal(t, ',', result.Delimiter)
	assert.NotEmpty(t, result.Fingerprint)
}

func TestParse_GracefulPartialFailure(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Date,Description,Amount\n")
	for i := 1; i <= 10; i++ {
		amount := fmt.Sprintf("-%d.00", i)
		if i == 4 {
			amount = ""
		}
		fmt.Fprintf(&sb, "2024-01-%02d,Purchase %d,%s\n", i, i, amount)
	}

	result := newTestEngine().Parse(sb.String())

	assert.Len(t, result.Transactions, 9)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Error(), "row 4")
	assert.Equal(t, 10, result.TotalRows)
}

func TestParse_ZeroAmountRowsAreDropped(t *testing.T) {
	text := strings.Join([]string{
		"Date,Description,Amount",
		"2024-01-01,Fee waived,0.00",
		"2024-01-02,Coffee,-3.20",
		"2024-01-03,Adjustment,0,00",
		"2024-01-04,Salary,1000",
	}, "\n")

	result := newTestEngine().Parse(text)

	require.Len(t, result.Transactions, 2)
	for _, tx := range result.Transactions {
		assert.False(t, tx.Amount.IsZero())
	}
	assert.Equal(t, 2, result.SkippedRows)
	assert.Empty(t, result.Errors)
}

func TestParse_UnparseableAmountIsRowError(t *testing.T) {
	text := strings.Join([]string{
		"Data;Descrizione;Importo",
		"2024-01-10;Pranzo;-12,00",
		"2024-01-11;Bonifico;€1,2,3.4,5",
		"2024-01-12;Rimborso;0,00",
	}, "\n")

	result := newTestEngine().Parse(text)

	require.Len(t, result.Transactions, 1)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "Importo", result.Errors[0].Column)
	assert.Contains(t, result.Errors[0].Message, "unparseable amount")
	assert.Equal(t, 1, result.SkippedRows)
}

func TestParse_UnpaddedYearFirstDates(t *testing.T) {
	text := "Date,Description,Amount\n2024-4-3,Coffee,-3.50\n2024/4/13,Books,-20.00\n2024-04-15T10:22:00+0200,Refund,5.00\n"

	result := newTestEngine(WithClock(func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) })).Parse(text)

	require.Len(t, result.Transactions, 3)
	for i, want := range []string{"2024-04-03", "2024-04-13", "2024-04-15"} {
		assert.Equal(t, want, result.Transactions[i].Date)
		assert.False(t, result.Transactions[i].DateDefaulted)
	}
}

func TestParse_StructuralFailure(t *testing.T) {
	for name, text := range map[string]string{
		"empty":  "",
		"prose":  "Dear customer,\nthank you for banking with us.",
		"header": "Date,Description,Amount",
	} {
		t.Run(name, func(t *testing.T) {
			result := newTestEngine().Parse(text)

			assert.True(t, result.Failed())
			assert.Empty(t, result.Transactions)
			assert.Equal(t, 0, result.Mapping.Confidence)
			assert.Equal(t, -1, result.DetectedStartRow)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0].Message, "no transaction table found")
		})
	}
}

func TestParse_MappingFailure(t *testing.T) {
	result := newTestEngine().Parse("foo,bar,baz\nxx,yy,zz\n")

	assert.True(t, result.Failed())
	assert.Empty(t, result.Transactions)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "could not map required columns: DATE, AMOUNT", result.Errors[0].Error())
	assert.Equal(t, 0, result.DetectedStartRow)
}

func TestParse_UnparseableDateUsesClock(t *testing.T) {
	text := "Date,Description,Amount\n31/02/2024,Ghost day,-5.00\n2024-01-10,Lunch,-12.00\n"

	result := newTestEngine().Parse(text)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "2024-06-01", result.Transactions[0].Date)
	assert.True(t, result.Transactions[0].DateDefaulted)
	assert.Equal(t, "2024-01-10", result.Transactions[1].Date)
	assert.False(t, result.Transactions[1].DateDefaulted)
}

func TestParse_MissingDateIsRowError(t *testing.T) {
	text := "Date,Description,Amount\n2024-01-10,Lunch,-12.00\n,Mystery,-1.00\n"

	result := newTestEngine().Parse(text)

	require.Len(t, result.Transactions, 1)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, "no date found", result.Errors[0].Message)
}

func TestParse_TitlePlaceholder(t *testing.T) {
	text := "Date,Description,Amount\n2024-01-10,Lunch,-12.00\n2024-01-11,,-3.00\n"

	result := newTestEngine().Parse(text)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "Transaction 2", result.Transactions[1].Title)
	assert.Empty(t, result.Transactions[1].Merchant)
}

func TestParse_AmountFromOtherColumn(t *testing.T) {
	text := strings.Join([]string{
		"Date,Description,Amount,Notes",
		"2024-01-10,Lunch,-12.00,",
		"2024-01-11,Cinema,,-9.50",
	}, "\n")

	result := newTestEngine().Parse(text)

	require.Len(t, result.Transactions, 2)
	assert.True(t, dec("9.5").Equal(result.Transactions[1].Amount))
	assert.Equal(t, DirectionExpenses, result.Transactions[1].Direction)
}

func TestParse_Currency(t *testing.T) {
	text := strings.Join([]string{
		"Data;Descrizione;Importo;Divisa",
		"10/01/2024;Pranzo;-12,00;EUR",
		"11/01/2024;Hotel;-90,00;chf",
		"12/01/2024;Regalo;€ 20,00;",
	}, "\n")

	result := newTestEngine().Parse(text)

	require.Len(t, result.Transactions, 3)
	assert.Equal(t, ';', result.Delimiter)
	assert.Equal(t, "Divisa", result.Mapping.Currency.Primary)
	assert.Equal(t, "EUR", result.Transactions[0].Currency)
	assert.Equal(t, "CHF", result.Transactions[1].Currency)
	assert.Equal(t, "EUR", result.Transactions[2].Currency)
	assert.Equal(t, DirectionIncome, result.Transactions[2].Direction)
}

func TestParse_DebitCreditColumns(t *testing.T) {
	text := strings.Join([]string{
		"Data;Causale;Uscite;Entrate",
		"13/02/2024;Spesa;45,90;",
		"27/02/2024;Stipendio;;1.500,00",
		"28/02/2024;Storno;-10,00;",
	}, "\n")

	result := newTestEngine().Parse(text)

	require.Len(t, result.Transactions, 3)
	require.NotNil(t, result.Mapping.Split)
	assert.Equal(t, DirectionExpenses, result.Transactions[0].Direction)
	assert.True(t, dec("45.90").Equal(result.Transactions[0].Amount))
	assert.Equal(t, DirectionIncome, result.Transactions[1].Direction)
	assert.True(t, dec("1500").Equal(result.Transactions[1].Amount))
	assert.Equal(t, DirectionExpenses, result.Transactions[2].Direction)
	assert.Equal(t, "2024-02-13", result.Transactions[0].Date)
}

func TestParse_TabDelimited(t *testing.T) {
	text := "Buchungstag\tVerwendungszweck\tBetrag\tWährung\n15.01.2024\tMiete\t-850,00\tEUR\n16.01.2024\tGehalt\t3.200,00\tEUR\n"

	result := newTestEngine().Parse(text)

	require.Len(t, result.Transactions, 2)
	assert.Equal(t, '\t', result.Delimiter)
	assert.Equal(t, "2024-01-15", result.Transactions[0].Date)
	assert.Equal(t, "Miete", result.Transactions[0].Title)
	assert.True(t, dec("3200").Equal(result.Transactions[1].Amount))
}

type panickingResolver struct{}

func (panickingResolver) Sanitize(title string) normalizer.Merchant {
	if title == "boom" {
		panic("resolver exploded")
	}
	return normalizer.Merchant{Name: title}
}

func TestParse_RecoversRowPanics(t *testing.T) {
	text := "Date,Description,Amount\n2024-01-10,Lunch,-12.00\n2024-01-11,boom,-3.00\n2024-01-12,Dinner,-20.00\n"

	result := newTestEngine(WithMerchantResolver(panickingResolver{})).Parse(text)

	assert.Len(t, result.Transactions, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "resolve title")
}

func TestParse_GeneratedStatementsHoldInvariants(t *testing.T) {
	gen := statementgen.New(42)
	layouts := map[string]statementgen.Layout{
		"english": statementgen.LayoutEnglish,
		"italian": statementgen.LayoutItalian,
		"split":   statementgen.LayoutSplit,
	}

	for name, layout := range layouts {
		t.Run(name, func(t *testing.T) {
			stmt := gen.Statement(layout, 60, "EUR")
			result := newTestEngine().Parse(stmt.Text)

			assert.Equal(t, stmt.Banners, result.DetectedStartRow)
			assert.GreaterOrEqual(t, result.Mapping.Confidence, 0)
			assert.LessOrEqual(t, result.Mapping.Confidence, 100)
			assert.Equal(t, result.TotalRows, len(result.Transactions)+len(result.RowErrors())+result.SkippedRows)
			require.Len(t, result.Transactions, len(stmt.Rows))

			for i, tx := range result.Transactions {
				want := stmt.Rows[i]
				assert.False(t, tx.Amount.IsNegative())
				assert.True(t, want.Amount.Equal(tx.SignedAmount()), "row %d: %s vs %s", i+1, want.Amount, tx.SignedAmount())
				assert.Equal(t, want.Amount.IsPositive(), tx.Direction == DirectionIncome)
				assert.Equal(t, want.Description, tx.Title)
				if layout == statementgen.LayoutEnglish || want.Date.Day() > 12 {
					assert.Equal(t, want.Date.Format("2006-01-02"), tx.Date)
				}
			}
		})
	}
}

func TestParse_Idempotent(t *testing.T) {
	stmt := statementgen.New(7).Statement(statementgen.LayoutItalian, 25, "EUR")
	e := newTestEngine()

	assert.Equal(t, e.Parse(stmt.Text), e.Parse(stmt.Text))
}

func TestParseBytes_DecodesLegacyEncodings(t *testing.T) {
	latin1 := []byte("Data;Descrizione;Importo\n13/02/2024;Caff\xe8;-1,20\n")
	withBOM := append([]byte("\xef\xbb\xbf"), []byte("Date,Description,Amount\n2024-02-13,Tea,-2.00\n")...)

	r1 := newTestEngine().ParseBytes(latin1)
	require.Len(t, r1.Transactions, 1)
	assert.Equal(t, "Caffè", r1.Transactions[0].Title)

	r2 := newTestEngine().ParseBytes(withBOM)
	require.Len(t, r2.Transactions, 1)
	assert.Equal(t, []string{"Date", "Description", "Amount"}, r2.Headers)
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet("Movimenti")
	require.NoError(t, err)
	rows := [][]any{
		{"Estratto conto"},
		{"Data", "Descrizione", "Importo"},
		{"13/02/2024", "Spesa", "-45,90"},
		{"27/02/2024", "Stipendio", "1500,00"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Movimenti", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseFile_Workbook(t *testing.T) {
	data := workbook(t)
	assert.True(t, IsWorkbook("export.bin", data))

	result, err := newTestEngine().ParseFile(File{Name: "export.xlsx", Data: data})

	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, 1, result.DetectedStartRow)
	assert.Equal(t, DirectionIncome, result.Transactions[1].Direction)
}

func TestParseFile_CorruptWorkbook(t *testing.T) {
	_, err := newTestEngine().ParseFile(File{Name: "broken.xlsx", Data: []byte("not a zip")})
	assert.Error(t, err)
}

func TestParseFiles_KeepsOrder(t *testing.T) {
	gen := statementgen.New(3)
	files := []File{
		{Name: "a.csv", Data: []byte(gen.Statement(statementgen.LayoutEnglish, 5, "USD").Text)},
		{Name: "b.csv", Data: []byte("nothing here")},
		{Name: "c.csv", Data: []byte(gen.Statement(statementgen.LayoutItalian, 8, "EUR").Text)},
		{Name: "d.xlsx", Data: workbook(t)},
	}

	results, err := newTestEngine().ParseFiles(context.Background(), files, 2)

	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, files[i].Name, r.Name)
		require.NoError(t, r.Err)
	}
	assert.Len(t, results[0].Result.Transactions, 5)
	assert.True(t, results[1].Result.Failed())
	assert.Len(t, results[2].Result.Transactions, 8)
	assert.Len(t, results[3].Result.Transactions, 2)
}

func TestParseFiles_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEngine().ParseFiles(ctx, []File{{Name: "a.csv", Data: []byte("x")}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseFiles_Empty(t *testing.T) {
	results, err := newTestEngine().ParseFiles(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIsWorkbook(t *testing.T) {
	assert.True(t, IsWorkbook("Statement.XLSX", nil))
	assert.False(t, IsWorkbook("statement.csv", []byte("Date,Amount")))
	assert.True(t, IsWorkbook("", bytes.Clone([]byte("PK\x03\x04rest"))))
}
