package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/parser"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/patterns"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-statements/pkg/metrics"
	"github.com/FACorreiaa/echo-statements/pkg/storage"
)

var fixedNow = time.Date(2024, time.June, 1, 9, 30, 0, 0, time.UTC)

const checkingStatement = `ACME Bank - Account statement
Generated on 2024-04-01
Date,Description,Amount,Currency
2024-03-05,Esselunga Milano,-45.10,EUR
2024-03-01,Salary March,2500.00,EUR
2024-03-10,Netflix.com,-12.99,EUR
2024-03-11,Zero fee,0.00,EUR
`

const cardStatement = `Date,Description,Amount,Currency
2024-02-20,Coffee shop,-3.50,EUR
2024-02-21,,-8.00,EUR
`

type balanceCall struct {
	accountID uuid.UUID
	earliest  time.Time
}

type fakeBalances struct {
	calls []balanceCall
	err   error
}

func (f *fakeBalances) ApplyApproved(_ context.Context, accountID uuid.UUID, earliest time.Time) error {
	f.calls = append(f.calls, balanceCall{accountID: accountID, earliest: earliest})
	return f.err
}

type fixture struct {
	svc      *ImportService
	repo     *repository.MemoryImportRepository
	balances *fakeBalances
	metrics  *metrics.Import
	store    *storage.LocalStorage
	account  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	engine := parser.NewEngine(patterns.Default(), parser.WithClock(clock))
	repo := repository.NewMemoryImportRepository()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	m := metrics.NewImport(prometheus.NewRegistry())
	balances := &fakeBalances{}

	svc := NewImportService(engine, repo, slog.New(slog.DiscardHandler)).
		WithStorage(store).
		WithBalanceUpdater(balances).
		WithMetrics(m).
		WithWorkers(2).
		WithClock(clock)

	return &fixture{svc: svc, repo: repo, balances: balances, metrics: m, store: store, account: uuid.New()}
}

func (f *fixture) importDefault(t *testing.T) *ImportResult {
	t.Helper()
	res, err := f.svc.ImportFiles(context.Background(), f.account, []parser.File{
		{Name: "checking.csv", Data: []byte(checkingStatement)},
		{Name: "card.csv", Data: []byte(cardStatement)},
	})
	require.NoError(t, err)
	return res
}

func TestImportFiles_PersistsPendingBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.importDefault(t)

	assert.Equal(t, repository.BatchPendingReview, res.Status)
	assert.Equal(t, 6, res.RowsTotal)
	assert.Equal(t, 5, res.RowsImported)
	assert.Equal(t, 0, res.RowsFailed)
	assert.Equal(t, 1, res.RowsSkipped)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "checking.csv", res.Files[0].Name)
	assert.Equal(t, 2, res.Files[0].StartRow)
	assert.Equal(t, 3, res.Files[0].Transactions)
	assert.Equal(t, 2, res.Files[1].Transactions)
	assert.Equal(t, 5, res.Summary.TotalTransactions)
	assert.Equal(t, []string{"EUR"}, res.Summary.Currencies)

	view, err := f.svc.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, f.account, view.Batch.AccountID)
	assert.Equal(t, []string{"checking.csv", "card.csv"}, view.Batch.FileNames)
	assert.Equal(t, fixedNow, view.Batch.CreatedAt)
	require.Len(t, view.Transactions, 5)

	amounts := map[string]int64{}
	for _, tx := range view.Transactions {
		assert.Equal(t, repository.TransactionPending, tx.Status)
		assert.Equal(t, f.account, tx.AccountID)
		assert.NotEqual(t, uuid.Nil, tx.ID)
		amounts[tx.Title] = tx.AmountMinor
	}
	assert.Equal(t, int64(-4510), amounts["Esselunga Milano"])
	assert.Equal(t, int64(250000), amounts["Salary March"])
	assert.Equal(t, int64(-800), amounts["Transaction 2"])

	for _, report := range res.Files {
		info, err := f.store.GetInfo(ctx, f.account, report.StoredFileID)
		require.NoError(t, err)
		assert.Equal(t, report.Name, info.Name)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.FilesParsed.WithLabelValues("ok")))
	assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.Rows.WithLabelValues(metrics.OutcomeEmitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Rows.WithLabelValues(metrics.OutcomeSkipped)))
}

func TestImportFiles_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ImportFiles(ctx, uuid.Nil, []parser.File{{Name: "a.csv", Data: []byte(cardStatement)}})
	assert.ErrorIs(t, err, ErrMissingAccount)

	_, err = f.svc.ImportFiles(ctx, f.account, nil)
	assert.ErrorIs(t, err, ErrNothingToImport)

	_, err = f.svc.ImportFiles(ctx, f.account, []parser.File{{Name: "notes.txt", Data: []byte("just a note\nnothing here")}})
	require.ErrorIs(t, err, ErrNothingToImport)
	assert.Contains(t, err.Error(), "notes.txt: no transaction table found")
}

func TestImportFiles_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.ImportFiles(ctx, f.account, []parser.File{{Name: "a.csv", Data: []byte(cardStatement)}})
	assert.ErrorIs(t, err, context.Canceled)
}

type failingRepo struct {
	*repository.MemoryImportRepository
}

func (failingRepo) CreateBatch(context.Context, *repository.Batch, []*repository.Transaction) error {
	return errors.New("database unavailable")
}

func TestImportFiles_PersistFailureDiscardsUploads(t *testing.T) {
	f := newFixture(t)
	f.svc.repo = failingRepo{repository.NewMemoryImportRepository()}
	var stored []uuid.UUID
	f.svc.storage = recordingStorage{Storage: f.store, uploaded: &stored}

	_, err := f.svc.ImportFiles(context.Background(), f.account, []parser.File{{Name: "a.csv", Data: []byte(cardStatement)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")

	require.Len(t, stored, 1)
	_, err = f.store.GetInfo(context.Background(), f.account, stored[0])
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

type recordingStorage struct {
	storage.Storage
	uploaded *[]uuid.UUID
}

func (r recordingStorage) Upload(ctx context.Context, accountID uuid.UUID, name, ct string, body io.Reader) (*storage.FileInfo, error) {
	info, err := r.Storage.Upload(ctx, accountID, name, ct, body)
	if err == nil {
		*r.uploaded = append(*r.uploaded, info.ID)
	}
	return info, err
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Analyze(context.Background(), parser.File{Name: "checking.csv", Data: []byte(checkingStatement)})
	require.NoError(t, err)
	assert.Len(t, res.Result.Transactions, 3)
	assert.Equal(t, 3, res.Summary.TotalTransactions)

	_, err = f.svc.Analyze(context.Background(), parser.File{Name: "broken.xlsx", Data: []byte("PK\x03\x04garbage")})
	assert.ErrorIs(t, err, ErrUnreadableFile)
}

func TestReviewTransaction_ApproveAndComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.importDefault(t)

	view, err := f.svc.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)

	for i, tx := range view.Transactions {
		action := ActionApprove
		if i == 0 {
			action = ActionReject
		}
		got, err := f.svc.ReviewTransaction(ctx, ReviewRequest{TransactionID: tx.ID, Action: action})
		require.NoError(t, err)
		require.NotNil(t, got.ReviewedAt)

		batch, err := f.repo.GetBatch(ctx, res.BatchID)
		require.NoError(t, err)
		if i < len(view.Transactions)-1 {
			assert.Equal(t, repository.BatchPendingReview, batch.Status)
		} else {
			assert.Equal(t, repository.BatchCompleted, batch.Status)
		}
	}

	assert.Len(t, f.balances.calls, len(view.Transactions)-1)
	for _, c := range f.balances.calls {
		assert.Equal(t, f.account, c.accountID)
	}

	_, err = f.svc.ReviewTransaction(ctx, ReviewRequest{TransactionID: view.Transactions[1].ID, Action: ActionApprove})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestReviewTransaction_Edit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.importDefault(t)
	view, err := f.svc.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)

	var target *repository.Transaction
	for _, tx := range view.Transactions {
		if tx.Title == "Transaction 2" {
			target = tx
		}
	}
	require.NotNil(t, target)

	title := "  Parking   garage "
	amount := "9,50"
	date := "21/02/2024"
	got, err := f.svc.ReviewTransaction(ctx, ReviewRequest{
		TransactionID: target.ID,
		Action:        ActionEdit,
		Edit:          TransactionEdit{Title: &title, Amount: &amount, Date: &date},
	})
	require.NoError(t, err)
	assert.Equal(t, "Parking garage", got.Title)
	assert.Equal(t, int64(-950), got.AmountMinor)
	assert.Equal(t, time.Date(2024, 2, 21, 0, 0, 0, 0, time.UTC), got.PostedAt)
	assert.Equal(t, repository.TransactionPending, got.Status)
	assert.Empty(t, f.balances.calls)

	stored, err := f.repo.GetTransaction(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "Parking garage", stored.Title)
}

func TestReviewTransaction_InvalidRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.importDefault(t)
	view, err := f.svc.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)
	id := view.Transactions[0].ID

	_, err = f.svc.ReviewTransaction(ctx, ReviewRequest{TransactionID: id, Action: "archive"})
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = f.svc.ReviewTransaction(ctx, ReviewRequest{TransactionID: uuid.New(), Action: ActionApprove})
	assert.ErrorIs(t, err, repository.ErrTransactionNotFound)

	bad := "not a date"
	_, err = f.svc.ReviewTransaction(ctx, ReviewRequest{TransactionID: id, Action: ActionApprove, Edit: TransactionEdit{Date: &bad}})
	assert.ErrorIs(t, err, ErrInvalidEdit)

	stored, err := f.repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, repository.TransactionPending, stored.Status)
	assert.Empty(t, f.balances.calls)
}

func TestReviewTransaction_ExpiredBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.importDefault(t)
	require.NoError(t, f.repo.SetBatchStatus(ctx, res.BatchID, repository.BatchExpired))

	view, err := f.svc.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)
	_, err = f.svc.ReviewTransaction(ctx, ReviewRequest{TransactionID: view.Transactions[0].ID, Action: ActionApprove})
	assert.ErrorIs(t, err, ErrBatchClosed)
}

func TestApproveBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.importDefault(t)

	n, err := f.svc.ApproveBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.Len(t, f.balances.calls, 1)
	assert.Equal(t, time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), f.balances.calls[0].earliest)

	batch, err := f.repo.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, repository.BatchCompleted, batch.Status)

	_, err = f.svc.ApproveBatch(ctx, res.BatchID)
	assert.ErrorIs(t, err, ErrBatchClosed)
}

func TestApproveBatch_BalanceFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.balances.err = errors.New("snapshot table locked")
	res := f.importDefault(t)

	n, err := f.svc.ApproveBatch(ctx, res.BatchID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update balances")
	assert.Equal(t, 0, n)

	pending, err := f.repo.CountPending(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 5, pending)
	batch, err := f.repo.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, repository.BatchPendingReview, batch.Status)

	f.balances.err = nil
	n, err = f.svc.ApproveBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.Len(t, f.balances.calls, 2)
	assert.Equal(t, f.balances.calls[0], f.balances.calls[1])

	batch, err = f.repo.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, repository.BatchCompleted, batch.Status)
}

func TestReviewTransaction_BalanceFailureKeepsRowPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.importDefault(t)
	view, err := f.svc.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)
	id := view.Transactions[0].ID

	f.balances.err = errors.New("snapshot table locked")
	_, err = f.svc.ReviewTransaction(ctx, ReviewRequest{TransactionID: id, Action: ActionApprove})
	require.Error(t, err)

	stored, err := f.repo.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, repository.TransactionPending, stored.Status)
	assert.Nil(t, stored.ReviewedAt)

	f.balances.err = nil
	got, err := f.svc.ReviewTransaction(ctx, ReviewRequest{TransactionID: id, Action: ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, repository.TransactionApproved, got.Status)
	assert.Len(t, f.balances.calls, 2)
}

func TestExpireStaleBatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.importDefault(t)

	n, err := f.svc.ExpireStaleBatches(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.svc.WithClock(func() time.Time { return fixedNow.Add(48 * time.Hour) })
	n, err = f.svc.ExpireStaleBatches(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BatchesExpired))

	batch, err := f.repo.GetBatch(ctx, res.BatchID)
	require.NoError(t, err)
	assert.Equal(t, repository.BatchExpired, batch.Status)
}

func TestApplyEdit(t *testing.T) {
	expenses := parser.DirectionExpenses
	income := parser.DirectionIncome
	str := func(s string) *string { return &s }

	tests := []struct {
		name     string
		start    repository.Transaction
		edit     TransactionEdit
		want     int64
		currency string
		wantErr  bool
	}{
		{"flip to income", repository.Transaction{AmountMinor: -1250, CurrencyCode: "EUR"}, TransactionEdit{Direction: &income}, 1250, "EUR", false},
		{"flip to expense", repository.Transaction{AmountMinor: 1250, CurrencyCode: "EUR"}, TransactionEdit{Direction: &expenses}, -1250, "EUR", false},
		{"amount keeps sign", repository.Transaction{AmountMinor: -1250, CurrencyCode: "EUR"}, TransactionEdit{Amount: str("1.234,56")}, -123456, "EUR", false},
		{"negative amount wins", repository.Transaction{AmountMinor: 500, CurrencyCode: "EUR"}, TransactionEdit{Amount: str("-7")}, -700, "EUR", false},
		{"currency rescales minor units", repository.Transaction{AmountMinor: -150000, CurrencyCode: "EUR"}, TransactionEdit{Currency: str("jpy")}, -1500, "JPY", false},
		{"unknown currency promoted", repository.Transaction{AmountMinor: 999, CurrencyCode: "UNKNOWN"}, TransactionEdit{Currency: str("CHF")}, 999, "CHF", false},
		{"zero amount", repository.Transaction{AmountMinor: 100, CurrencyCode: "EUR"}, TransactionEdit{Amount: str("0,00")}, 0, "", true},
		{"bad currency", repository.Transaction{AmountMinor: 100, CurrencyCode: "EUR"}, TransactionEdit{Currency: str("ZZZ")}, 0, "", true},
		{"empty title", repository.Transaction{AmountMinor: 100, CurrencyCode: "EUR"}, TransactionEdit{Title: str("   ")}, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := tt.start
			err := applyEdit(&tx, tt.edit)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidEdit)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tx.AmountMinor)
			assert.Equal(t, tt.currency, tx.CurrencyCode)
		})
	}
}

func TestContentType(t *testing.T) {
	assert.True(t, strings.HasPrefix(contentType(parser.File{Name: "a.csv"}), "text/csv"))
	assert.Contains(t, contentType(parser.File{Name: "a.xlsx"}), "spreadsheetml")
	assert.Equal(t, "text/csv", contentType(parser.File{Name: "statement"}))
}
