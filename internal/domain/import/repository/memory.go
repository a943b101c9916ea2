package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ ImportRepository = (*MemoryImportRepository)(nil)

// MemoryImportRepository keeps batches in process memory. It backs the CLI
// dry runs and service tests.
type MemoryImportRepository struct {
	mu      sync.RWMutex
	batches map[uuid.UUID]*Batch
	txs     map[uuid.UUID]*Transaction
}

// NewMemoryImportRepository creates an empty in-memory repository
func NewMemoryImportRepository() *MemoryImportRepository {
	return &MemoryImportRepository{
		batches: make(map[uuid.UUID]*Batch),
		txs:     make(map[uuid.UUID]*Transaction),
	}
}

func (r *MemoryImportRepository) CreateBatch(_ context.Context, batch *Batch, txs []*Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	batch.UpdatedAt = batch.CreatedAt
	b := *batch
	r.batches[b.ID] = &b

	for _, t := range txs {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.BatchID = batch.ID
		c := *t
		r.txs[c.ID] = &c
	}
	return nil
}

func (r *MemoryImportRepository) GetBatch(_ context.Context, id uuid.UUID) (*Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	c := *b
	return &c, nil
}

func (r *MemoryImportRepository) ListBatchTransactions(_ context.Context, batchID uuid.UUID) ([]*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Transaction
	for _, t := range r.txs {
		if t.BatchID == batchID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceFile != out[j].SourceFile {
			return out[i].SourceFile < out[j].SourceFile
		}
		return out[i].SourceRow < out[j].SourceRow
	})
	return out, nil
}

func (r *MemoryImportRepository) SetBatchStatus(_ context.Context, id uuid.UUID, status BatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.batches[id]
	if !ok {
		return ErrBatchNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryImportRepository) GetTransaction(_ context.Context, id uuid.UUID) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.txs[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	c := *t
	return &c, nil
}

func (r *MemoryImportRepository) UpdateTransaction(_ context.Context, t *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.txs[t.ID]
	if !ok {
		return ErrTransactionNotFound
	}
	cur.PostedAt = t.PostedAt
	cur.AmountMinor = t.AmountMinor
	cur.CurrencyCode = t.CurrencyCode
	cur.Title = t.Title
	cur.Status = t.Status
	cur.ReviewedAt = t.ReviewedAt
	return nil
}

func (r *MemoryImportRepository) SetTransactionsStatus(_ context.Context, ids []uuid.UUID, status TransactionStatus, reviewedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if _, ok := r.txs[id]; !ok {
			return ErrTransactionNotFound
		}
	}
	for _, id := range ids {
		r.txs[id].Status = status
		r.txs[id].ReviewedAt = reviewedAt
	}
	return nil
}

func (r *MemoryImportRepository) CountPending(_ context.Context, batchID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, t := range r.txs {
		if t.BatchID == batchID && t.Status == TransactionPending {
			n++
		}
	}
	return n, nil
}

func (r *MemoryImportRepository) ExpireStaleBatches(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, b := range r.batches {
		if b.Status == BatchPendingReview && b.CreatedAt.Before(olderThan) {
			b.Status = BatchExpired
			b.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}
