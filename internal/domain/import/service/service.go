// Package service provides the import orchestration logic: it runs the
// statement engine over uploaded files, persists the provisional rows as a
// batch pending review and drives the approval workflow.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/parser"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/summary"
	"github.com/FACorreiaa/echo-statements/pkg/metrics"
	"github.com/FACorreiaa/echo-statements/pkg/money"
	"github.com/FACorreiaa/echo-statements/pkg/storage"
)

var (
	ErrNothingToImport = errors.New("no transactions could be imported")
	ErrMissingAccount  = errors.New("target account is required")
	ErrUnreadableFile  = errors.New("file could not be read")
)

// BalanceUpdater receives newly approved transactions so that balances and
// snapshots of the account can be brought forward.
type BalanceUpdater interface {
	ApplyApproved(ctx context.Context, accountID uuid.UUID, earliest time.Time) error
}

// AnalyzeResult is a dry run over one file.
type AnalyzeResult struct {
	File    string              `json:"file"`
	Result  *parser.ParseResult `json:"result"`
	Summary summary.Summary     `json:"summary"`
}

// FileReport describes what was extracted from one uploaded file.
type FileReport struct {
	Name         string    `json:"name"`
	StoredFileID uuid.UUID `json:"stored_file_id,omitempty"`
	StartRow     int       `json:"start_row"`
	Confidence   int       `json:"confidence"`
	Transactions int       `json:"transactions"`
	Skipped      int       `json:"skipped"`
	Errors       []string  `json:"errors,omitempty"`
}

// ImportResult contains the result of an import operation
type ImportResult struct {
	BatchID      uuid.UUID              `json:"batch_id"`
	Status       repository.BatchStatus `json:"status"`
	Files        []FileReport           `json:"files"`
	Summary      summary.Summary        `json:"summary"`
	RowsTotal    int                    `json:"rows_total"`
	RowsImported int                    `json:"rows_imported"`
	RowsFailed   int                    `json:"rows_failed"`
	RowsSkipped  int                    `json:"rows_skipped"`
}

// ImportService orchestrates statement imports and their review.
type ImportService struct {
	engine   *parser.Engine
	repo     repository.ImportRepository
	storage  storage.Storage
	balances BalanceUpdater
	metrics  *metrics.Import
	tracer   trace.Tracer
	logger   *slog.Logger
	workers  int
	now      func() time.Time
}

// NewImportService creates a new import service
func NewImportService(engine *parser.Engine, repo repository.ImportRepository, logger *slog.Logger) *ImportService {
	return &ImportService{
		engine: engine,
		repo:   repo,
		tracer: otel.Tracer("echo-statements/import"),
		logger: logger,
		now:    time.Now,
	}
}

// WithStorage keeps a copy of every uploaded file.
func (s *ImportService) WithStorage(st storage.Storage) *ImportService {
	s.storage = st
	return s
}

// WithBalanceUpdater sets the receiver of approved transactions.
func (s *ImportService) WithBalanceUpdater(b BalanceUpdater) *ImportService {
	s.balances = b
	return s
}

// WithMetrics records parse outcomes.
func (s *ImportService) WithMetrics(m *metrics.Import) *ImportService {
	s.metrics = m
	return s
}

// WithWorkers bounds concurrent file parsing. Zero means GOMAXPROCS.
func (s *ImportService) WithWorkers(n int) *ImportService {
	s.workers = n
	return s
}

// WithClock replaces the clock used for batch and review timestamps.
func (s *ImportService) WithClock(now func() time.Time) *ImportService {
	s.now = now
	return s
}

// Analyze parses one file without persisting anything.
func (s *ImportService) Analyze(ctx context.Context, f parser.File) (*AnalyzeResult, error) {
	_, span := s.tracer.Start(ctx, "import.Analyze", trace.WithAttributes(
		attribute.String("file.name", f.Name),
		attribute.Int("file.size", len(f.Data)),
	))
	defer span.End()

	start := time.Now()
	res, err := s.engine.ParseFile(f)
	s.metrics.ObserveParse(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveFile(false, 0, 0, 0, 0)
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, f.Name, err)
	}
	s.observe(res)

	span.SetAttributes(
		attribute.Int("transactions", len(res.Transactions)),
		attribute.Int("mapping.confidence", res.Mapping.Confidence),
	)
	return &AnalyzeResult{File: f.Name, Result: res, Summary: summary.Summarize(res.Transactions)}, nil
}

// ImportFiles parses every file concurrently, concatenates the transactions
// and stores them as one batch pending review for the given account.
func (s *ImportService) ImportFiles(ctx context.Context, accountID uuid.UUID, files []parser.File) (*ImportResult, error) {
	if accountID == uuid.Nil {
		return nil, ErrMissingAccount
	}
	if len(files) == 0 {
		return nil, ErrNothingToImport
	}

	ctx, span := s.tracer.Start(ctx, "import.ImportFiles", trace.WithAttributes(
		attribute.String("account.id", accountID.String()),
		attribute.Int("files", len(files)),
	))
	defer span.End()

	start := time.Now()
	results, err := s.engine.ParseFiles(ctx, files, s.workers)
	s.metrics.ObserveParse(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse statements: %w", err)
	}

	batch := &repository.Batch{
		ID:        uuid.New(),
		AccountID: accountID,
		Status:    repository.BatchPendingReview,
		CreatedAt: s.now().UTC(),
	}
	reports := make([]FileReport, len(results))
	var records []*repository.Transaction
	var parsed []parser.ParsedTransaction

	for i, fr := range results {
		report := FileReport{Name: fr.Name}
		batch.FileNames = append(batch.FileNames, fr.Name)

		if fr.Err != nil {
			s.metrics.ObserveFile(false, 0, 0, 0, 0)
			report.Errors = []string{fr.Err.Error()}
			reports[i] = report
			continue
		}

		res := fr.Result
		s.observe(res)
		report.StartRow = res.DetectedStartRow
		report.Confidence = res.Mapping.Confidence
		report.Skipped = res.SkippedRows
		report.Errors = res.ErrorStrings()
		batch.RowsTotal += res.TotalRows
		batch.RowsFailed += len(res.RowErrors())
		batch.RowsSkipped += res.SkippedRows

		for _, ptx := range res.Transactions {
			rec, err := toRecord(accountID, fr.Name, ptx)
			if err != nil {
				report.Errors = append(report.Errors, err.Error())
				batch.RowsFailed++
				continue
			}
			records = append(records, rec)
			parsed = append(parsed, ptx)
			report.Transactions++
		}
		reports[i] = report
	}

	if len(records) == 0 {
		var reasons []string
		for _, r := range reports {
			for _, e := range r.Errors {
				reasons = append(reasons, r.Name+": "+e)
			}
		}
		span.SetStatus(codes.Error, ErrNothingToImport.Error())
		if len(reasons) == 0 {
			return nil, ErrNothingToImport
		}
		return nil, fmt.Errorf("%w: %s", ErrNothingToImport, strings.Join(reasons, "; "))
	}
	batch.RowsImported = len(records)

	stored, err := s.storeOriginals(ctx, accountID, files, reports)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.repo.CreateBatch(ctx, batch, records); err != nil {
		s.discardOriginals(ctx, accountID, stored)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to persist import batch: %w", err)
	}

	s.logger.Info("import batch created",
		slog.String("batch_id", batch.ID.String()),
		slog.String("account_id", accountID.String()),
		slog.Int("files", len(files)),
		slog.Int("rows_imported", batch.RowsImported),
		slog.Int("rows_failed", batch.RowsFailed),
		slog.Int("rows_skipped", batch.RowsSkipped),
	)
	span.SetAttributes(attribute.String("batch.id", batch.ID.String()))

	return &ImportResult{
		BatchID:      batch.ID,
		Status:       batch.Status,
		Files:        reports,
		Summary:      summary.Summarize(parsed),
		RowsTotal:    batch.RowsTotal,
		RowsImported: batch.RowsImported,
		RowsFailed:   batch.RowsFailed,
		RowsSkipped:  batch.RowsSkipped,
	}, nil
}

// BatchView is a batch with its rows.
type BatchView struct {
	Batch        *repository.Batch         `json:"batch"`
	Transactions []*repository.Transaction `json:"transactions"`
}

// GetBatch returns a batch and its rows.
func (s *ImportService) GetBatch(ctx context.Context, id uuid.UUID) (*BatchView, error) {
	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	txs, err := s.repo.ListBatchTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &BatchView{Batch: batch, Transactions: txs}, nil
}

// ExpireStaleBatches expires batches left pending review longer than ttl.
func (s *ImportService) ExpireStaleBatches(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.repo.ExpireStaleBatches(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.BatchesExpired.Add(float64(n))
	}
	return n, nil
}

func (s *ImportService) observe(res *parser.ParseResult) {
	s.metrics.ObserveFile(!res.Failed(), res.Mapping.Confidence,
		len(res.Transactions), res.SkippedRows, len(res.RowErrors()))
}

func (s *ImportService) storeOriginals(ctx context.Context, accountID uuid.UUID, files []parser.File, reports []FileReport) ([]uuid.UUID, error) {
	if s.storage == nil {
		return nil, nil
	}
	stored := make([]uuid.UUID, 0, len(files))
	for i, f := range files {
		info, err := s.storage.Upload(ctx, accountID, f.Name, contentType(f), bytes.NewReader(f.Data))
		if err != nil {
			s.discardOriginals(ctx, accountID, stored)
			return nil, fmt.Errorf("failed to store %s: %w", f.Name, err)
		}
		stored = append(stored, info.ID)
		reports[i].StoredFileID = info.ID
	}
	return stored, nil
}

func (s *ImportService) discardOriginals(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) {
	for _, id := range ids {
		if err := s.storage.Delete(ctx, accountID, id); err != nil {
			s.logger.Warn("failed to discard stored upload",
				slog.String("file_id", id.String()),
				slog.Any("error", err))
		}
	}
}

func contentType(f parser.File) string {
	if parser.IsWorkbook(f.Name, f.Data) {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if ct := mime.TypeByExtension(filepath.Ext(f.Name)); ct != "" {
		return ct
	}
	return "text/csv"
}

// toRecord converts an engine row into a pending ledger row with a signed
// amount in minor units.
func toRecord(accountID uuid.UUID, file string, ptx parser.ParsedTransaction) (*repository.Transaction, error) {
	posted, err := time.Parse(time.DateOnly, ptx.Date)
	if err != nil {
		return nil, fmt.Errorf("row %d: invalid date %q", ptx.Row, ptx.Date)
	}
	minor := money.NewFromDecimal(ptx.SignedAmount(), ptx.Currency).Amount()
	if minor == 0 {
		return nil, fmt.Errorf("row %d: amount %s rounds to zero in %s", ptx.Row, ptx.Amount, ptx.Currency)
	}

	return &repository.Transaction{
		ID:            uuid.New(),
		AccountID:     accountID,
		PostedAt:      posted,
		AmountMinor:   minor,
		CurrencyCode:  ptx.Currency,
		Title:         ptx.Title,
		Merchant:      ptx.Merchant,
		CategoryHint:  ptx.CategoryHint,
		Status:        repository.TransactionPending,
		SourceFile:    file,
		SourceRow:     ptx.Row,
		DateDefaulted: ptx.DateDefaulted,
	}, nil
}
