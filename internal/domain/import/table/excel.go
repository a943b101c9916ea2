package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheet is returned when a workbook has no sheet with data.
var ErrNoSheet = errors.New("workbook has no sheet with data")

// preferredSheets are name fragments of sheets that usually hold the movements.
var preferredSheets = []string{
	"transaction", "movimenti", "movimento", "transazioni", "operazioni",
	"umsatz", "movimientos", "operations", "statement", "estratto",
}

// XLSXToText converts the transaction sheet of a workbook into tab-separated
// text so it flows through the same locator and reader as CSV exports.
func XLSXToText(r io.Reader) (string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, sheet, err := transactionSheetRows(f)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	for _, row := range rows {
		if isBlankRecord(row) {
			continue
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to convert sheet %s: %w", sheet, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to convert sheet %s: %w", sheet, err)
	}
	return buf.String(), nil
}

// transactionSheetRows picks a sheet whose name suggests movements, otherwise
// the first sheet that has any rows.
func transactionSheetRows(f *excelize.File) ([][]string, string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", ErrNoSheet
	}

	ordered := make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		lower := strings.ToLower(sheet)
		for _, p := range preferredSheets {
			if strings.Contains(lower, p) {
				ordered = append(ordered, sheet)
				break
			}
		}
	}
	ordered = append(ordered, sheets...)

	for _, sheet := range ordered {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			if !isBlankRecord(row) {
				return rows, sheet, nil
			}
		}
	}
	return nil, "", ErrNoSheet
}

func isBlankRecord(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
