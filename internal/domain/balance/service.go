package balance

import (
	"context"
	"log/slog"
	"time"
)

// History window bounds in days.
const (
	DefaultHistoryDays = 90
	MinHistoryDays     = 7
	MaxHistoryDays     = 365
)

// Service handles balance business logic.
type Service struct {
	repo   *Repository
	logger *slog.Logger
}

// NewService creates a new balance service.
func NewService(repo *Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Snapshot holds the club's current position.
type Snapshot struct {
	BalancePence     int64
	MonthChangePence int64
	LastActivity     *time.Time
	AsOf             time.Time
}

// HistoryResult holds daily balances plus period statistics for charts.
type HistoryResult struct {
	Days         int
	History      []DailyBalance
	HighestPence int64
	LowestPence  int64
	AveragePence int64
}

// Current computes the club's balance right now, with the net change over
// the last 30 days for the dashboard headline.
func (s *Service) Current(ctx context.Context) (*Snapshot, error) {
	now := time.Now()

	balance, lastActivity, err := s.repo.CurrentBalance(ctx)
	if err != nil {
		return nil, err
	}

	monthChange, err := s.repo.ChangeSince(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		// The headline figure still stands without the delta.
		s.logger.Warn("failed to compute 30-day change", slog.Any("error", err))
		monthChange = 0
	}

	return &Snapshot{
		BalancePence:     balance,
		MonthChangePence: monthChange,
		LastActivity:     lastActivity,
		AsOf:             now,
	}, nil
}

// History returns daily closing balances for charting, with the high, low,
// and mean over the window. Out-of-range day counts are clamped.
func (s *Service) History(ctx context.Context, days int) (*HistoryResult, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	if days < MinHistoryDays {
		days = MinHistoryDays
	}
	if days > MaxHistoryDays {
		days = MaxHistoryDays
	}

	history, err := s.repo.DailyHistory(ctx, days)
	if err != nil {
		return nil, err
	}

	result := &HistoryResult{Days: days, History: history}
	if len(history) == 0 {
		return result, nil
	}

	var sum int64
	result.HighestPence = history[0].BalancePence
	result.LowestPence = history[0].BalancePence
	for _, d := range history {
		if d.BalancePence > result.HighestPence {
			result.HighestPence = d.BalancePence
		}
		if d.BalancePence < result.LowestPence {
			result.LowestPence = d.BalancePence
		}
		sum += d.BalancePence
	}
	result.AveragePence = sum / int64(len(history))

	return result, nil
}
