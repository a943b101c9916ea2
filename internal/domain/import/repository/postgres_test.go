package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var batchColumns = []string{
	"id", "account_id", "status", "file_names", "rows_total", "rows_imported", "rows_failed", "rows_skipped",
	"created_at", "updated_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresImportRepository_CreateBatch(t *testing.T) {
	mock := newMock(t)
	accountID := uuid.New()
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	batch := &Batch{
		ID:           uuid.New(),
		AccountID:    accountID,
		Status:       BatchPendingReview,
		FileNames:    []string{"estratto.csv"},
		RowsTotal:    3,
		RowsImported: 2,
		RowsFailed:   1,
		CreatedAt:    created,
	}
	txs := []*Transaction{
		{AccountID: accountID, AmountMinor: -4510, CurrencyCode: "EUR", Title: "Esselunga", Status: TransactionPending, SourceRow: 1},
		{AccountID: accountID, AmountMinor: 250000, CurrencyCode: "EUR", Title: "Stipendio", Status: TransactionPending, SourceRow: 2},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertBatchQuery)).
		WithArgs(batch.ID, accountID, BatchPendingReview, []string{"estratto.csv"}, 3, 2, 1, 0, created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"import_transactions"}, transactionColumns).WillReturnResult(2)
	mock.ExpectCommit()

	repo := NewPostgresImportRepository(mock)
	require.NoError(t, repo.CreateBatch(context.Background(), batch, txs))

	for _, tx := range txs {
		assert.NotEqual(t, uuid.Nil, tx.ID)
		assert.Equal(t, batch.ID, tx.BatchID)
	}
	assert.Equal(t, created, batch.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportRepository_CreateBatchRollsBack(t *testing.T) {
	mock := newMock(t)
	batch := &Batch{ID: uuid.New(), AccountID: uuid.New(), Status: BatchPendingReview}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertBatchQuery)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"import_transactions"}, transactionColumns).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	repo := NewPostgresImportRepository(mock)
	err := repo.CreateBatch(context.Background(), batch, []*Transaction{{Title: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy failed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportRepository_GetBatch(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()
	accountID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(getBatchQuery)).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(batchColumns).
			AddRow(id, accountID, BatchPendingReview, []string{"a.csv", "b.csv"}, 10, 9, 1, 0, now, now))

	repo := NewPostgresImportRepository(mock)
	batch, err := repo.GetBatch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, accountID, batch.AccountID)
	assert.Equal(t, BatchPendingReview, batch.Status)
	assert.Equal(t, []string{"a.csv", "b.csv"}, batch.FileNames)
	assert.Equal(t, 9, batch.RowsImported)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportRepository_GetBatch_NotFound(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(getBatchQuery)).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(batchColumns))

	repo := NewPostgresImportRepository(mock)
	_, err := repo.GetBatch(context.Background(), id)
	assert.ErrorIs(t, err, ErrBatchNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportRepository_GetTransaction(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()
	batchID := uuid.New()
	posted := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	cols := append(append([]string{}, transactionColumns...), "reviewed_at")
	mock.ExpectQuery(regexp.QuoteMeta(getTransactionQuery)).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(id, batchID, uuid.New(), posted, int64(-4510), "EUR", "ESSELUNGA", "Esselunga",
				"Groceries", TransactionPending, "estratto.csv", 1, false, (*time.Time)(nil)))

	repo := NewPostgresImportRepository(mock)
	tx, err := repo.GetTransaction(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(-4510), tx.AmountMinor)
	assert.Equal(t, TransactionPending, tx.Status)
	assert.Equal(t, posted, tx.PostedAt)
	assert.Nil(t, tx.ReviewedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportRepository_UpdateTransaction_NotFound(t *testing.T) {
	mock := newMock(t)
	tx := &Transaction{ID: uuid.New(), Status: TransactionApproved}

	mock.ExpectExec(regexp.QuoteMeta(updateTransactionQuery)).
		WithArgs(tx.ID, tx.PostedAt, tx.AmountMinor, tx.CurrencyCode, tx.Title, tx.Status, tx.ReviewedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPostgresImportRepository(mock)
	err := repo.UpdateTransaction(context.Background(), tx)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportRepository_SetTransactionsStatus(t *testing.T) {
	mock := newMock(t)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	reviewed := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(setTransactionsStatusQuery)).
		WithArgs(ids, TransactionApproved, &reviewed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	repo := NewPostgresImportRepository(mock)
	require.NoError(t, repo.SetTransactionsStatus(context.Background(), ids, TransactionApproved, &reviewed))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportRepository_SetTransactionsStatus_MissingRowRollsBack(t *testing.T) {
	mock := newMock(t)
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(setTransactionsStatusQuery)).
		WithArgs(ids, TransactionPending, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	repo := NewPostgresImportRepository(mock)
	err := repo.SetTransactionsStatus(context.Background(), ids, TransactionPending, nil)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportRepository_CountPending(t *testing.T) {
	mock := newMock(t)
	batchID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(countPendingQuery)).
		WithArgs(batchID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	repo := NewPostgresImportRepository(mock)
	n, err := repo.CountPending(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresImportRepository_ExpireStaleBatches(t *testing.T) {
	mock := newMock(t)
	cutoff := time.Now().Add(-72 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(expireStaleBatchesQuery)).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	repo := NewPostgresImportRepository(mock)
	n, err := repo.ExpireStaleBatches(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryImportRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryImportRepository()
	batch := &Batch{AccountID: uuid.New(), Status: BatchPendingReview, CreatedAt: time.Now().Add(-96 * time.Hour)}
	txs := []*Transaction{
		{Title: "b", SourceFile: "a.csv", SourceRow: 2, Status: TransactionPending},
		{Title: "a", SourceFile: "a.csv", SourceRow: 1, Status: TransactionPending},
	}
	require.NoError(t, repo.CreateBatch(ctx, batch, txs))

	listed, err := repo.ListBatchTransactions(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "a", listed[0].Title)

	listed[0].Status = TransactionApproved
	require.NoError(t, repo.UpdateTransaction(ctx, listed[0]))
	n, err := repo.CountPending(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repo.SetTransactionsStatus(ctx, []uuid.UUID{listed[1].ID}, TransactionApproved, nil))
	n, err = repo.CountPending(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, repo.SetTransactionsStatus(ctx, []uuid.UUID{listed[0].ID, uuid.New()}, TransactionPending, nil), ErrTransactionNotFound)
	got0, err := repo.GetTransaction(ctx, listed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, TransactionApproved, got0.Status)

	expired, err := repo.ExpireStaleBatches(ctx, time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	got, err := repo.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, BatchExpired, got.Status)

	_, err = repo.GetTransaction(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}
