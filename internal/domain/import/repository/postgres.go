package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

var _ ImportRepository = (*PostgresImportRepository)(nil)

const (
	insertBatchQuery = `
		INSERT INTO import_batches (
			id, account_id, status, file_names, rows_total, rows_imported, rows_failed, rows_skipped,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`

	getBatchQuery = `
		SELECT id, account_id, status, file_names, rows_total, rows_imported, rows_failed, rows_skipped,
		       created_at, updated_at
		FROM import_batches
		WHERE id = $1
	`

	setBatchStatusQuery = `
		UPDATE import_batches SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	listBatchTransactionsQuery = `
		SELECT id, batch_id, account_id, posted_at, amount_minor, currency_code, title, merchant,
		       category_hint, status, source_file, source_row, date_defaulted, reviewed_at
		FROM import_transactions
		WHERE batch_id = $1
		ORDER BY source_file, source_row
	`

	getTransactionQuery = `
		SELECT id, batch_id, account_id, posted_at, amount_minor, currency_code, title, merchant,
		       category_hint, status, source_file, source_row, date_defaulted, reviewed_at
		FROM import_transactions
		WHERE id = $1
	`

	updateTransactionQuery = `
		UPDATE import_transactions SET
			posted_at = $2, amount_minor = $3, currency_code = $4, title = $5,
			status = $6, reviewed_at = $7
		WHERE id = $1
	`

	setTransactionsStatusQuery = `
		UPDATE import_transactions SET status = $2, reviewed_at = $3
		WHERE id = ANY($1)
	`

	countPendingQuery = `
		SELECT COUNT(*) FROM import_transactions
		WHERE batch_id = $1 AND status = 'pending'
	`

	expireStaleBatchesQuery = `
		UPDATE import_batches SET status = 'expired', updated_at = NOW()
		WHERE status = 'pending_review' AND created_at < $1
	`
)

var transactionColumns = []string{
	"id", "batch_id", "account_id", "posted_at", "amount_minor", "currency_code", "title", "merchant",
	"category_hint", "status", "source_file", "source_row", "date_defaulted",
}

// PostgresImportRepository implements ImportRepository using PostgreSQL
type PostgresImportRepository struct {
	pgpool PgxPool
}

// NewPostgresImportRepository creates a new PostgreSQL-backed import repository
func NewPostgresImportRepository(pgpool PgxPool) *PostgresImportRepository {
	return &PostgresImportRepository{pgpool: pgpool}
}

// CreateBatch inserts the batch row and bulk-copies its transactions in one
// database transaction.
func (r *PostgresImportRepository) CreateBatch(ctx context.Context, batch *Batch, txs []*Transaction) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	batch.UpdatedAt = batch.CreatedAt

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin import transaction: %w", err)
	}

	_, err = tx.Exec(ctx, insertBatchQuery,
		batch.ID, batch.AccountID, batch.Status, batch.FileNames,
		batch.RowsTotal, batch.RowsImported, batch.RowsFailed, batch.RowsSkipped,
		batch.CreatedAt,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to create import batch: %w", err)
	}

	rows := make([][]any, 0, len(txs))
	for _, t := range txs {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.BatchID = batch.ID
		rows = append(rows, []any{
			t.ID, t.BatchID, t.AccountID, t.PostedAt, t.AmountMinor, t.CurrencyCode, t.Title, t.Merchant,
			t.CategoryHint, t.Status, t.SourceFile, t.SourceRow, t.DateDefaulted,
		})
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"import_transactions"}, transactionColumns, pgx.CopyFromRows(rows))
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to insert import transactions: %w", err)
	}
	if copied != int64(len(rows)) {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("inserted %d of %d import transactions", copied, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit import batch: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch by ID
func (r *PostgresImportRepository) GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error) {
	rows, err := r.pgpool.Query(ctx, getBatchQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}

	batch, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[Batch])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import batch: %w", err)
	}
	return batch, nil
}

// ListBatchTransactions returns the rows of a batch in file and row order
func (r *PostgresImportRepository) ListBatchTransactions(ctx context.Context, batchID uuid.UUID) ([]*Transaction, error) {
	rows, err := r.pgpool.Query(ctx, listBatchTransactionsQuery, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list import transactions: %w", err)
	}

	txs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[Transaction])
	if err != nil {
		return nil, fmt.Errorf("failed to scan import transactions: %w", err)
	}
	return txs, nil
}

// SetBatchStatus updates the lifecycle state of a batch
func (r *PostgresImportRepository) SetBatchStatus(ctx context.Context, id uuid.UUID, status BatchStatus) error {
	tag, err := r.pgpool.Exec(ctx, setBatchStatusQuery, id, status)
	if err != nil {
		return fmt.Errorf("failed to update import batch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

// GetTransaction retrieves one imported row by ID
func (r *PostgresImportRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	rows, err := r.pgpool.Query(ctx, getTransactionQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get import transaction: %w", err)
	}

	tx, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[Transaction])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import transaction: %w", err)
	}
	return tx, nil
}

// UpdateTransaction persists review edits and status changes
func (r *PostgresImportRepository) UpdateTransaction(ctx context.Context, t *Transaction) error {
	tag, err := r.pgpool.Exec(ctx, updateTransactionQuery,
		t.ID, t.PostedAt, t.AmountMinor, t.CurrencyCode, t.Title, t.Status, t.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update import transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// SetTransactionsStatus updates the review state of several rows in a single
// statement. It fails without changes when any row is missing.
func (r *PostgresImportRepository) SetTransactionsStatus(ctx context.Context, ids []uuid.UUID, status TransactionStatus, reviewedAt *time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}

	tag, err := tx.Exec(ctx, setTransactionsStatusQuery, ids, status, reviewedAt)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to update import transactions: %w", err)
	}
	if tag.RowsAffected() != int64(len(ids)) {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("updated %d of %d import transactions: %w", tag.RowsAffected(), len(ids), ErrTransactionNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}
	return nil
}

// CountPending returns how many rows of a batch still await review
func (r *PostgresImportRepository) CountPending(ctx context.Context, batchID uuid.UUID) (int, error) {
	var n int
	if err := r.pgpool.QueryRow(ctx, countPendingQuery, batchID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending transactions: %w", err)
	}
	return n, nil
}

// ExpireStaleBatches expires batches left pending review since before olderThan
func (r *PostgresImportRepository) ExpireStaleBatches(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pgpool.Exec(ctx, expireStaleBatchesQuery, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale batches: %w", err)
	}
	return tag.RowsAffected(), nil
}
