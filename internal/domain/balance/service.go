package balance

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence used by the balance service.
type Store interface {
	PreviousSnapshot(ctx context.Context, accountID uuid.UUID, currency string, before time.Time) (*Snapshot, error)
	SnapshotsFrom(ctx context.Context, accountID uuid.UUID, from time.Time) ([]Snapshot, error)
	NetChange(ctx context.Context, accountID uuid.UUID, currency string, after *time.Time, upTo time.Time) (income, expenses int64, err error)
	UpdateSnapshotTotal(ctx context.Context, id uuid.UUID, totalMinor int64) error
	CurrentBalance(ctx context.Context, accountID uuid.UUID, currency string) (int64, error)
	GetBalanceHistory(ctx context.Context, accountID uuid.UUID, currency string, days int, asOf time.Time) ([]DailyBalanceData, error)
}

var _ Store = (*Repository)(nil)

// Service handles balance business logic
type Service struct {
	repo   Store
	cache  Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new balance service
func NewService(repo Store, cache Cache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// HistoryResult holds balance history response
type HistoryResult struct {
	History      []DailyBalanceData `json:"history"`
	HighestMinor int64              `json:"highest_minor"`
	LowestMinor  int64              `json:"lowest_minor"`
	AverageMinor int64              `json:"average_minor"`
}

// ApplyApproved brings snapshots forward after transactions dated on or
// after earliest were approved.
func (s *Service) ApplyApproved(ctx context.Context, accountID uuid.UUID, earliest time.Time) error {
	_, err := s.Recalculate(ctx, accountID, earliest)
	return err
}

// Recalculate walks every snapshot taken on or after earliest in
// chronological order, one chain per currency. Each total becomes the
// previous snapshot's total in that currency plus the approved income minus
// the approved expenses in that currency dated after the previous snapshot
// and up to this one. The cached current balance is invalidated even when no
// snapshot changed. It returns the number of snapshots updated.
func (s *Service) Recalculate(ctx context.Context, accountID uuid.UUID, earliest time.Time) (int, error) {
	defer s.cache.Invalidate(accountID)

	snaps, err := s.repo.SnapshotsFrom(ctx, accountID, earliest)
	if err != nil {
		return 0, err
	}

	var currencies []string
	chains := make(map[string][]Snapshot)
	for _, snap := range snaps {
		if _, seen := chains[snap.CurrencyCode]; !seen {
			currencies = append(currencies, snap.CurrencyCode)
		}
		chains[snap.CurrencyCode] = append(chains[snap.CurrencyCode], snap)
	}

	updated := 0
	for _, currency := range currencies {
		n, err := s.recalculateChain(ctx, accountID, currency, earliest, chains[currency])
		updated += n
		if err != nil {
			return updated, err
		}
	}

	s.logger.Info("balance snapshots recalculated",
		slog.String("account_id", accountID.String()),
		slog.Time("from", earliest),
		slog.Int("snapshots", len(snaps)),
		slog.Int("currencies", len(currencies)),
		slog.Int("updated", updated),
	)
	return updated, nil
}

func (s *Service) recalculateChain(ctx context.Context, accountID uuid.UUID, currency string, earliest time.Time, snaps []Snapshot) (int, error) {
	prev, err := s.repo.PreviousSnapshot(ctx, accountID, currency, earliest)
	if err != nil {
		return 0, err
	}

	var total int64
	var after *time.Time
	if prev != nil {
		total = prev.TotalMinor
		t := prev.TakenAt
		after = &t
	}

	updated := 0
	for _, snap := range snaps {
		income, expenses, err := s.repo.NetChange(ctx, accountID, currency, after, snap.TakenAt)
		if err != nil {
			return updated, err
		}
		total += income - expenses
		if total != snap.TotalMinor {
			if err := s.repo.UpdateSnapshotTotal(ctx, snap.ID, total); err != nil {
				return updated, err
			}
			updated++
		}
		t := snap.TakenAt
		after = &t
	}
	return updated, nil
}

// CurrentBalance returns the sum of approved transactions in one currency,
// served from the cache when possible.
func (s *Service) CurrentBalance(ctx context.Context, accountID uuid.UUID, currency string) (int64, error) {
	if v, ok := s.cache.Get(accountID, currency); ok {
		return v, nil
	}
	total, err := s.repo.CurrentBalance(ctx, accountID, currency)
	if err != nil {
		return 0, err
	}
	s.cache.Set(accountID, currency, total)
	return total, nil
}

// GetBalanceHistory returns daily balances for charts
func (s *Service) GetBalanceHistory(ctx context.Context, accountID uuid.UUID, currency string, days int) (*HistoryResult, error) {
	if days <= 0 {
		days = 30
	}
	history, err := s.repo.GetBalanceHistory(ctx, accountID, currency, days, s.now().UTC())
	if err != nil {
		return nil, err
	}

	result := &HistoryResult{History: history}
	if len(history) == 0 {
		return result, nil
	}
	result.HighestMinor = history[0].BalanceMinor
	result.LowestMinor = history[0].BalanceMinor
	var sum int64
	for _, d := range history {
		result.HighestMinor = max(result.HighestMinor, d.BalanceMinor)
		result.LowestMinor = min(result.LowestMinor, d.BalanceMinor)
		sum += d.BalanceMinor
	}
	result.AverageMinor = sum / int64(len(history))
	return result, nil
}
