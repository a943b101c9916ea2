package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/parser"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-statements/pkg/money"
)

var (
	ErrAlreadyReviewed = errors.New("transaction has already been reviewed")
	ErrBatchClosed     = errors.New("import batch is no longer open for review")
	ErrInvalidAction   = errors.New("unknown review action")
	ErrInvalidEdit     = errors.New("invalid transaction edit")
)

// ReviewAction is what the reviewer decided for one row.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
	ActionEdit    ReviewAction = "edit"
)

// TransactionEdit holds the fields a reviewer may change. Nil fields are
// left untouched.
type TransactionEdit struct {
	Title     *string           `json:"title,omitempty"`
	Amount    *string           `json:"amount,omitempty"`
	Date      *string           `json:"date,omitempty"`
	Currency  *string           `json:"currency,omitempty"`
	Direction *parser.Direction `json:"direction,omitempty"`
}

func (e TransactionEdit) empty() bool {
	return e.Title == nil && e.Amount == nil && e.Date == nil && e.Currency == nil && e.Direction == nil
}

// ReviewRequest is one reviewer decision.
type ReviewRequest struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Action        ReviewAction    `json:"action"`
	Edit          TransactionEdit `json:"edit"`
}

// ReviewTransaction applies an edit, approval or rejection to a pending row.
// Approval may carry edits, which are applied first. Approved rows are handed
// to the balance updater, and the batch is completed once nothing is pending.
func (s *ImportService) ReviewTransaction(ctx context.Context, req ReviewRequest) (*repository.Transaction, error) {
	switch req.Action {
	case ActionApprove, ActionReject, ActionEdit:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}

	tx, err := s.repo.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != repository.TransactionPending {
		return nil, ErrAlreadyReviewed
	}
	batch, err := s.repo.GetBatch(ctx, tx.BatchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != repository.BatchPendingReview {
		return nil, ErrBatchClosed
	}

	if req.Action != ActionReject && !req.Edit.empty() {
		if err := applyEdit(tx, req.Edit); err != nil {
			return nil, err
		}
	}

	switch req.Action {
	case ActionEdit:
		if err := s.repo.UpdateTransaction(ctx, tx); err != nil {
			return nil, err
		}
		return tx, nil
	case ActionApprove:
		tx.Status = repository.TransactionApproved
	case ActionReject:
		tx.Status = repository.TransactionRejected
	}

	reviewed := s.now().UTC()
	tx.ReviewedAt = &reviewed
	if err := s.repo.UpdateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	if tx.Status == repository.TransactionApproved {
		if err := s.applyApproved(ctx, tx.AccountID, tx.PostedAt); err != nil {
			return nil, s.revertApproval(ctx, []uuid.UUID{tx.ID}, err)
		}
	}
	if err := s.completeIfReviewed(ctx, tx.BatchID); err != nil {
		return nil, err
	}
	return tx, nil
}

// ApproveBatch approves every pending row of a batch and completes it. The
// balance updater is called once, from the earliest approved date. When it
// fails the rows go back to pending so the approval can be retried.
func (s *ImportService) ApproveBatch(ctx context.Context, batchID uuid.UUID) (int, error) {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	if batch.Status != repository.BatchPendingReview {
		return 0, ErrBatchClosed
	}
	txs, err := s.repo.ListBatchTransactions(ctx, batchID)
	if err != nil {
		return 0, err
	}

	var (
		ids      []uuid.UUID
		earliest time.Time
	)
	for _, tx := range txs {
		if tx.Status != repository.TransactionPending {
			continue
		}
		if len(ids) == 0 || tx.PostedAt.Before(earliest) {
			earliest = tx.PostedAt
		}
		ids = append(ids, tx.ID)
	}
	approved := len(ids)

	if approved > 0 {
		reviewed := s.now().UTC()
		if err := s.repo.SetTransactionsStatus(ctx, ids, repository.TransactionApproved, &reviewed); err != nil {
			return 0, err
		}
		if err := s.applyApproved(ctx, batch.AccountID, earliest); err != nil {
			return 0, s.revertApproval(ctx, ids, err)
		}
	}
	if err := s.repo.SetBatchStatus(ctx, batchID, repository.BatchCompleted); err != nil {
		return approved, err
	}

	s.logger.Info("import batch approved",
		slog.String("batch_id", batchID.String()),
		slog.Int("approved", approved))
	return approved, nil
}

func (s *ImportService) applyApproved(ctx context.Context, accountID uuid.UUID, earliest time.Time) error {
	if s.balances == nil {
		return nil
	}
	if err := s.balances.ApplyApproved(ctx, accountID, earliest); err != nil {
		return fmt.Errorf("failed to update balances: %w", err)
	}
	return nil
}

// revertApproval returns rows to pending after the balance update failed, so
// the approval stays retryable.
func (s *ImportService) revertApproval(ctx context.Context, ids []uuid.UUID, cause error) error {
	if err := s.repo.SetTransactionsStatus(ctx, ids, repository.TransactionPending, nil); err != nil {
		s.logger.Error("failed to revert approval",
			slog.Int("transactions", len(ids)),
			slog.Any("error", err))
		return errors.Join(cause, fmt.Errorf("failed to revert approval: %w", err))
	}
	return cause
}

func (s *ImportService) completeIfReviewed(ctx context.Context, batchID uuid.UUID) error {
	pending, err := s.repo.CountPending(ctx, batchID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return nil
	}
	if err := s.repo.SetBatchStatus(ctx, batchID, repository.BatchCompleted); err != nil {
		return err
	}
	s.logger.Info("import batch completed", slog.String("batch_id", batchID.String()))
	return nil
}

// applyEdit validates and applies reviewer edits. Currency is applied before
// amount so that a new amount is stored in the new currency's minor units.
func applyEdit(tx *repository.Transaction, e TransactionEdit) error {
	if e.Title != nil {
		title := normalizer.CleanDescription(*e.Title)
		if title == "" {
			return fmt.Errorf("%w: title must not be empty", ErrInvalidEdit)
		}
		tx.Title = title
	}

	if e.Date != nil {
		d, ok := normalizer.ParseDate(*e.Date)
		if !ok {
			return fmt.Errorf("%w: unrecognised date %q", ErrInvalidEdit, *e.Date)
		}
		tx.PostedAt = d
		tx.DateDefaulted = false
	}

	if e.Currency != nil {
		code := strings.ToUpper(strings.TrimSpace(*e.Currency))
		if !money.Known(code) {
			return fmt.Errorf("%w: unknown currency %q", ErrInvalidEdit, *e.Currency)
		}
		value := money.New(tx.AmountMinor, tx.CurrencyCode).ToDecimal()
		tx.AmountMinor = money.NewFromDecimal(value, code).Amount()
		tx.CurrencyCode = code
	}

	negative := tx.AmountMinor < 0
	if e.Amount != nil {
		d, ok := normalizer.ParseAmountStrict(*e.Amount)
		if !ok || d.IsZero() {
			return fmt.Errorf("%w: amount %q is not a non-zero number", ErrInvalidEdit, *e.Amount)
		}
		if d.IsNegative() {
			negative = true
		}
		minor := money.NewFromDecimal(d.Abs(), tx.CurrencyCode).Amount()
		if minor == 0 {
			return fmt.Errorf("%w: amount %q rounds to zero", ErrInvalidEdit, *e.Amount)
		}
		tx.AmountMinor = minor
	}

	if e.Direction != nil {
		switch *e.Direction {
		case parser.DirectionExpenses:
			negative = true
		case parser.DirectionIncome:
			negative = false
		default:
			return fmt.Errorf("%w: unknown direction %q", ErrInvalidEdit, *e.Direction)
		}
	}

	if tx.AmountMinor < 0 {
		tx.AmountMinor = -tx.AmountMinor
	}
	if negative {
		tx.AmountMinor = -tx.AmountMinor
	}
	return nil
}
