// Package repository provides data access for import batches and their
// provisional transactions.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBatchNotFound       = errors.New("import batch not found")
	ErrTransactionNotFound = errors.New("import transaction not found")
)

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

const (
	BatchPendingReview BatchStatus = "pending_review"
	BatchCompleted     BatchStatus = "completed"
	BatchExpired       BatchStatus = "expired"
)

// TransactionStatus is the review state of one imported row.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionApproved TransactionStatus = "approved"
	TransactionRejected TransactionStatus = "rejected"
)

// Batch groups the transactions extracted from one import request.
type Batch struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	AccountID    uuid.UUID   `db:"account_id" json:"account_id"`
	Status       BatchStatus `db:"status" json:"status"`
	FileNames    []string    `db:"file_names" json:"file_names"`
	RowsTotal    int         `db:"rows_total" json:"rows_total"`
	RowsImported int         `db:"rows_imported" json:"rows_imported"`
	RowsFailed   int         `db:"rows_failed" json:"rows_failed"`
	RowsSkipped  int         `db:"rows_skipped" json:"rows_skipped"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// Transaction is a provisional ledger row awaiting review. AmountMinor is
// signed: negative for expenses, positive for income.
type Transaction struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	BatchID       uuid.UUID         `db:"batch_id" json:"batch_id"`
	AccountID     uuid.UUID         `db:"account_id" json:"account_id"`
	PostedAt      time.Time         `db:"posted_at" json:"posted_at"`
	AmountMinor   int64             `db:"amount_minor" json:"amount_minor"`
	CurrencyCode  string            `db:"currency_code" json:"currency_code"`
	Title         string            `db:"title" json:"title"`
	Merchant      string            `db:"merchant" json:"merchant"`
	CategoryHint  string            `db:"category_hint" json:"category_hint"`
	Status        TransactionStatus `db:"status" json:"status"`
	SourceFile    string            `db:"source_file" json:"source_file"`
	SourceRow     int               `db:"source_row" json:"source_row"`
	DateDefaulted bool              `db:"date_defaulted" json:"date_defaulted"`
	ReviewedAt    *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// ImportRepository defines data access operations for imports.
type ImportRepository interface {
	// CreateBatch stores a batch and all of its transactions atomically.
	CreateBatch(ctx context.Context, batch *Batch, txs []*Transaction) error
	GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error)
	ListBatchTransactions(ctx context.Context, batchID uuid.UUID) ([]*Transaction, error)
	SetBatchStatus(ctx context.Context, id uuid.UUID, status BatchStatus) error

	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, tx *Transaction) error
	// SetTransactionsStatus moves every listed row to status in one atomic
	// write. A nil reviewedAt clears the review time.
	SetTransactionsStatus(ctx context.Context, ids []uuid.UUID, status TransactionStatus, reviewedAt *time.Time) error
	CountPending(ctx context.Context, batchID uuid.UUID) (int, error)

	// ExpireStaleBatches moves batches still pending review that were created
	// before olderThan to the expired state.
	ExpireStaleBatches(ctx context.Context, olderThan time.Time) (int64, error)
}
