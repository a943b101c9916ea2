package parser

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/mapper"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/patterns"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/sniffer"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/table"
)

// Engine parses statements. It holds only read-only configuration, so one
// Engine may serve any number of concurrent Parse calls.
type Engine struct {
	lib        *patterns.Library
	classifier *normalizer.Classifier
	locator    *sniffer.Locator
	mapper     *mapper.Mapper
	sanitizer  MerchantResolver
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	logger        *slog.Logger
	now           func() time.Time
	maxCandidates int
	sampleRows    int
	sanitizer     MerchantResolver
}

// MerchantResolver derives a merchant and category hint from a title.
type MerchantResolver interface {
	Sanitize(title string) normalizer.Merchant
}

// WithLogger sets the logger used for date fallbacks and row diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = l }
}

// WithClock sets the clock used when a row's date cannot be parsed.
func WithClock(now func() time.Time) Option {
	return func(c *engineConfig) { c.now = now }
}

// WithScanLimit bounds the number of leading lines tried as the header.
func WithScanLimit(n int) Option {
	return func(c *engineConfig) { c.maxCandidates = n }
}

// WithSampleRows sets how many rows below the header feed the column mapper.
func WithSampleRows(n int) Option {
	return func(c *engineConfig) { c.sampleRows = n }
}

// WithMerchantResolver replaces the default merchant rules.
func WithMerchantResolver(s MerchantResolver) Option {
	return func(c *engineConfig) { c.sanitizer = s }
}

// NewEngine creates an engine over the given pattern library.
func NewEngine(lib *patterns.Library, opts ...Option) *Engine {
	cfg := engineConfig{
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sanitizer == nil {
		cfg.sanitizer = normalizer.NewMerchantSanitizer()
	}

	return &Engine{
		lib:        lib,
		classifier: normalizer.NewClassifier(lib),
		locator:    sniffer.NewLocator(lib, sniffer.WithMaxCandidates(cfg.maxCandidates)),
		mapper:     mapper.New(lib, cfg.sampleRows),
		sanitizer:  cfg.sanitizer,
		logger:     cfg.logger,
		now:        cfg.now,
	}
}

// Parse extracts transactions from a delimited text blob. Failures are
// reported inside the result; Parse never panics on bad input.
func (e *Engine) Parse(text string) *ParseResult {
	lines := sniffer.SplitLines(text)
	loc := e.locator.LocateLines(lines)
	if !loc.Found() {
		e.logger.Debug("no table located", slog.Int("lines", len(lines)))
		return failure(-1, "no transaction table found: need at least 3 header columns and one data row")
	}

	tbl, err := table.Read(strings.Join(lines[loc.StartRow:], "\n"), table.ReadOptions{Delimiter: loc.Delimiter})
	if err != nil {
		return failure(loc.StartRow, fmt.Sprintf("read table: %v", err))
	}

	result := &ParseResult{
		DetectedStartRow: loc.StartRow,
		Delimiter:        loc.Delimiter,
		Headers:          tbl.Headers,
		Fingerprint:      loc.Fingerprint,
		TotalRows:        len(tbl.Rows),
	}

	result.Mapping = e.mapper.Map(tbl.Headers, tbl.Rows)
	if missing := result.Mapping.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, r := range missing {
			names[i] = r.String()
		}
		result.Errors = []ParseError{{Message: "could not map required columns: " + strings.Join(names, ", ")}}
		e.logger.Debug("mapping failed",
			slog.Any("missing", names),
			slog.Any("headers", tbl.Headers))
		return result
	}
	result.Dialect = e.probeDialect(tbl.Rows, result.Mapping)

	x := &extractor{engine: e, mapping: result.Mapping}
	for i, row := range tbl.Rows {
		tx, outcome, perr := x.extract(row, i)
		switch outcome {
		case outcomeEmitted:
			result.Transactions = append(result.Transactions, tx)
		case outcomeSkipped:
			result.SkippedRows++
		case outcomeFailed:
			result.Errors = append(result.Errors, perr)
		}
	}

	e.logger.Debug("statement parsed",
		slog.Int("start_row", result.DetectedStartRow),
		slog.Int("rows", result.TotalRows),
		slog.Int("transactions", len(result.Transactions)),
		slog.Int("errors", len(result.Errors)),
		slog.Int("skipped", result.SkippedRows),
		slog.Int("confidence", result.Mapping.Confidence))
	return result
}

// ParseBytes decodes raw file bytes as UTF-8, falling back to Windows-1252,
// and parses the result.
func (e *Engine) ParseBytes(data []byte) *ParseResult {
	return e.Parse(DecodeText(data))
}

// ParseXLSX parses the transaction sheet of an Excel workbook.
func (e *Engine) ParseXLSX(r io.Reader) (*ParseResult, error) {
	text, err := table.XLSXToText(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	return e.Parse(text), nil
}

// DecodeText strips a UTF-8 BOM and converts legacy single-byte exports.
func DecodeText(data []byte) string {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func (e *Engine) probeDialect(rows []table.Row, m mapper.FieldMapping) sniffer.Dialect {
	n := min(len(rows), defaultDialectSample)
	amounts := make([]string, 0, n)
	dates := make([]string, 0, n)
	for _, row := range rows[:n] {
		if v := row.Value(m.Amount.Primary); v != "" {
			amounts = append(amounts, v)
		}
		if v := row.Value(m.Date.Primary); v != "" {
			dates = append(dates, v)
		}
	}
	return sniffer.ProbeDialect(amounts, dates)
}

const defaultDialectSample = 20

func failure(startRow int, msg string) *ParseResult {
	return &ParseResult{
		DetectedStartRow: startRow,
		Errors:           []ParseError{{Message: msg}},
	}
}
