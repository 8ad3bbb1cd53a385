// Package balance computes the club's running account balance from the
// transaction ledger. There is one pot of money; Income adds to it,
// Expense draws from it.
package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// signedAmount renders a ledger row as a signed pence value.
const signedAmount = `CASE WHEN type = 'Income' THEN amount_pence ELSE -amount_pence END`

// DailyBalance holds a single day's closing balance.
type DailyBalance struct {
	Date         time.Time
	BalancePence int64
	ChangePence  int64
}

// Querier is the subset of pgxpool.Pool the repository uses. pgxmock
// implements it, so repository tests run against a mock pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository handles balance queries.
type Repository struct {
	db Querier
}

// NewRepository creates a new balance repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// CurrentBalance sums the whole ledger and reports the most recent
// transaction date. A club that has spent more than it raised goes
// negative; that is a fact worth surfacing, not clamping.
func (r *Repository) CurrentBalance(ctx context.Context) (balancePence int64, lastActivity *time.Time, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(`+signedAmount+`), 0), MAX(occurred_on)
		FROM transactions`).Scan(&balancePence, &lastActivity)
	if err != nil {
		return 0, nil, fmt.Errorf("current balance: %w", err)
	}
	return balancePence, lastActivity, nil
}

// ChangeSince sums the signed ledger from a date onward.
func (r *Repository) ChangeSince(ctx context.Context, since time.Time) (int64, error) {
	var change int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(`+signedAmount+`), 0)
		FROM transactions
		WHERE occurred_on >= $1`, since).Scan(&change)
	if err != nil {
		return 0, fmt.Errorf("change since %s: %w", since.Format("2006-01-02"), err)
	}
	return change, nil
}

// DailyHistory returns one closing balance per day for the last N days.
// The opening balance carries everything before the window, so the curve
// starts from the real position rather than zero.
func (r *Repository) DailyHistory(ctx context.Context, days int) ([]DailyBalance, error) {
	rows, err := r.db.Query(ctx, `
		WITH RECURSIVE dates AS (
			SELECT CURRENT_DATE - ($1::integer) + 1 AS date
			UNION ALL
			SELECT date + 1 FROM dates WHERE date < CURRENT_DATE
		),
		opening AS (
			SELECT COALESCE(SUM(`+signedAmount+`), 0) AS balance
			FROM transactions
			WHERE occurred_on < CURRENT_DATE - ($1::integer) + 1
		),
		daily_totals AS (
			SELECT occurred_on AS date, SUM(`+signedAmount+`) AS daily_change
			FROM transactions
			WHERE occurred_on >= CURRENT_DATE - ($1::integer) + 1
			GROUP BY occurred_on
		)
		SELECT
			d.date,
			o.balance + SUM(COALESCE(dt.daily_change, 0)) OVER (ORDER BY d.date),
			COALESCE(dt.daily_change, 0)
		FROM dates d
		CROSS JOIN opening o
		LEFT JOIN daily_totals dt ON dt.date = d.date
		ORDER BY d.date`, days)
	if err != nil {
		return nil, fmt.Errorf("daily history: %w", err)
	}
	defer rows.Close()

	var history []DailyBalance
	for rows.Next() {
		var d DailyBalance
		if err := rows.Scan(&d.Date, &d.BalancePence, &d.ChangePence); err != nil {
			return nil, fmt.Errorf("scan daily balance: %w", err)
		}
		history = append(history, d)
	}
	return history, rows.Err()
}
