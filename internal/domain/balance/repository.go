// Package balance keeps point-in-time balance snapshots consistent with the
// approved transactions of an account and serves the current balance.
package balance

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
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

// Snapshot is the balance of an account at the end of a day.
type Snapshot struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AccountID    uuid.UUID `db:"account_id" json:"account_id"`
	TakenAt      time.Time `db:"taken_at" json:"taken_at"`
	TotalMinor   int64     `db:"total_minor" json:"total_minor"`
	CurrencyCode string    `db:"currency_code" json:"currency_code"`
}

// DailyBalanceData holds a single day's balance
type DailyBalanceData struct {
	Date         time.Time `json:"date"`
	BalanceMinor int64     `json:"balance_minor"`
	ChangeMinor  int64     `json:"change_minor"`
}

const (
	previousSnapshotQuery = `
		SELECT id, account_id, taken_at, total_minor, currency_code
		FROM balance_snapshots
		WHERE account_id = $1 AND currency_code = $2 AND taken_at < $3
		ORDER BY taken_at DESC
		LIMIT 1
	`

	snapshotsFromQuery = `
		SELECT id, account_id, taken_at, total_minor, currency_code
		FROM balance_snapshots
		WHERE account_id = $1 AND taken_at >= $2
		ORDER BY taken_at, currency_code
	`

	netChangeQuery = `
		SELECT
			COALESCE(SUM(amount_minor) FILTER (WHERE amount_minor > 0), 0),
			COALESCE(-SUM(amount_minor) FILTER (WHERE amount_minor < 0), 0)
		FROM import_transactions
		WHERE account_id = $1
		  AND currency_code = $2
		  AND status = 'approved'
		  AND ($3::date IS NULL OR posted_at > $3::date)
		  AND posted_at <= $4
	`

	updateSnapshotTotalQuery = `
		UPDATE balance_snapshots SET total_minor = $2, updated_at = NOW()
		WHERE id = $1
	`

	currentBalanceQuery = `
		SELECT COALESCE(SUM(amount_minor), 0)
		FROM import_transactions
		WHERE account_id = $1 AND currency_code = $2 AND status = 'approved'
	`

	balanceHistoryQuery = `
		WITH RECURSIVE dates AS (
			SELECT $4::date - ($3::integer) + 1 AS date
			UNION ALL
			SELECT date + 1 FROM dates WHERE date < $4::date
		),
		opening AS (
			SELECT COALESCE(SUM(amount_minor), 0) AS total
			FROM import_transactions
			WHERE account_id = $1
			  AND currency_code = $2
			  AND status = 'approved'
			  AND posted_at <= $4::date - ($3::integer)
		),
		daily_totals AS (
			SELECT posted_at AS date, SUM(amount_minor) AS daily_sum
			FROM import_transactions
			WHERE account_id = $1
			  AND currency_code = $2
			  AND status = 'approved'
			  AND posted_at > $4::date - ($3::integer)
			GROUP BY posted_at
		)
		SELECT
			d.date,
			(SELECT total FROM opening) + SUM(COALESCE(dt.daily_sum, 0)) OVER (ORDER BY d.date) AS balance,
			COALESCE(dt.daily_sum, 0) AS daily_change
		FROM dates d
		LEFT JOIN daily_totals dt ON dt.date = d.date
		ORDER BY d.date
	`
)

// Repository handles balance queries
type Repository struct {
	db PgxPool
}

// NewRepository creates a new balance repository
func NewRepository(db PgxPool) *Repository {
	return &Repository{db: db}
}

// PreviousSnapshot returns the latest snapshot in a currency strictly before
// the given day, or nil when there is none.
func (r *Repository) PreviousSnapshot(ctx context.Context, accountID uuid.UUID, currency string, before time.Time) (*Snapshot, error) {
	rows, err := r.db.Query(ctx, previousSnapshotQuery, accountID, currency, before)
	if err != nil {
		return nil, fmt.Errorf("failed to query previous snapshot: %w", err)
	}
	snap, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[Snapshot])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan previous snapshot: %w", err)
	}
	return snap, nil
}

// SnapshotsFrom returns the snapshots taken on or after the given day in
// chronological order.
func (r *Repository) SnapshotsFrom(ctx context.Context, accountID uuid.UUID, from time.Time) ([]Snapshot, error) {
	rows, err := r.db.Query(ctx, snapshotsFromQuery, accountID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	snaps, err := pgx.CollectRows(rows, pgx.RowToStructByName[Snapshot])
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshots: %w", err)
	}
	return snaps, nil
}

// NetChange sums approved income and expenses in one currency dated in
// (after, upTo]. A nil after means no lower bound.
func (r *Repository) NetChange(ctx context.Context, accountID uuid.UUID, currency string, after *time.Time, upTo time.Time) (income, expenses int64, err error) {
	err = r.db.QueryRow(ctx, netChangeQuery, accountID, currency, after, upTo).Scan(&income, &expenses)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum approved transactions: %w", err)
	}
	return income, expenses, nil
}

// UpdateSnapshotTotal stores a recomputed snapshot total
func (r *Repository) UpdateSnapshotTotal(ctx context.Context, id uuid.UUID, totalMinor int64) error {
	if _, err := r.db.Exec(ctx, updateSnapshotTotalQuery, id, totalMinor); err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}
	return nil
}

// CurrentBalance sums every approved transaction of the account in one currency
func (r *Repository) CurrentBalance(ctx context.Context, accountID uuid.UUID, currency string) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, currentBalanceQuery, accountID, currency).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to compute balance: %w", err)
	}
	return total, nil
}

// GetBalanceHistory returns the running balance for each of the last days
// ending at asOf.
func (r *Repository) GetBalanceHistory(ctx context.Context, accountID uuid.UUID, currency string, days int, asOf time.Time) ([]DailyBalanceData, error) {
	rows, err := r.db.Query(ctx, balanceHistoryQuery, accountID, currency, days, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance history: %w", err)
	}
	defer rows.Close()

	var history []DailyBalanceData
	for rows.Next() {
		var d DailyBalanceData
		if err := rows.Scan(&d.Date, &d.BalanceMinor, &d.ChangeMinor); err != nil {
			return nil, fmt.Errorf("failed to scan balance history: %w", err)
		}
		history = append(history, d)
	}
	return history, rows.Err()
}
