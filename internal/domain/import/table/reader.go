package table

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/gocarina/gocsv"
)

// ErrNoHeader is returned when the text has no record to use as a header.
var ErrNoHeader = errors.New("no header record found")

// ReadOptions configures Read.
type ReadOptions struct {
	// Delimiter is the field separator. Zero means comma.
	Delimiter rune
	// MaxRows caps the number of data rows read. Zero means no limit.
	MaxRows int
}

var (
	integerPart  = regexp.MustCompile(`^\s*[-+]?\d{1,3}(?:[.']\d{3})*\s*$|^\s*[-+]?\d+\s*$`)
	fractionPart = regexp.MustCompile(`^\d{1,2}$`)
)

// Read parses delimited text whose first record is the header.
// Malformed records are kept as empty rows so that row numbering stays aligned
// with the source; callers report them as row-level failures.
func Read(text string, opts ReadOptions) (*RawTable, error) {
	reader := newCSVReader(strings.NewReader(text), opts.Delimiter)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil && len(header) == 0 {
		return nil, err
	}
	headers := UniqueHeaders(header)

	t := &RawTable{Headers: headers}
	for opts.MaxRows <= 0 || len(t.Rows) < opts.MaxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Rows = append(t.Rows, NewRow(headers, nil))
			continue
		}
		if opts.Delimiter == 0 || opts.Delimiter == ',' {
			record = RepairDecimalCommas(record, len(headers))
		}
		t.Rows = append(t.Rows, NewRow(headers, record))
	}
	return t, nil
}

// RepairDecimalCommas merges cells that were split on an unquoted decimal
// comma ("-45" + "90" → "-45,90") until the record fits the header count.
func RepairDecimalCommas(record []string, want int) []string {
	if want <= 0 || len(record) <= want {
		return record
	}
	out := append([]string(nil), record...)
	for len(out) > want {
		merged := false
		for i := 0; i+1 < len(out); i++ {
			if integerPart.MatchString(out[i]) && fractionPart.MatchString(strings.TrimSpace(out[i+1])) {
				joined := strings.TrimSpace(out[i]) + "," + strings.TrimSpace(out[i+1])
				out = append(out[:i], append([]string{joined}, out[i+2:]...)...)
				merged = true
				break
			}
		}
		if !merged {
			break
		}
	}
	return out
}

func newCSVReader(in io.Reader, delimiter rune) gocsv.CSVReader {
	r := gocsv.LazyCSVReader(in)
	if cr, ok := r.(*csv.Reader); ok {
		if delimiter != 0 {
			cr.Comma = delimiter
		}
		// Leading-space trimming would swallow empty tab-separated fields.
		if delimiter == '\t' {
			cr.TrimLeadingSpace = false
		}
		cr.FieldsPerRecord = -1
	}
	return r
}

// SplitRecord parses a single line into fields with the given delimiter.
// It returns nil when the line is not a valid record.
func SplitRecord(line string, delimiter rune) []string {
	record, err := newCSVReader(strings.NewReader(line), delimiter).Read()
	if err != nil {
		return nil
	}
	return record
}
