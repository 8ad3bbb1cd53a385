// Package insights builds the monthly treasury report: where the money
// came from, where it went, and what changed since last month.
package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MonthTotals aggregates one month of ledger activity.
type MonthTotals struct {
	IncomePence  int64
	ExpensePence int64
	Count        int64
}

// NetPence is income minus expense for the month.
func (t MonthTotals) NetPence() int64 {
	return t.IncomePence - t.ExpensePence
}

// GroupTotal aggregates activity under one category or event.
type GroupTotal struct {
	Name         string
	IncomePence  int64
	ExpensePence int64
	Count        int64
}

// LedgerLine is one transaction surfaced in the report.
type LedgerLine struct {
	OccurredOn  time.Time
	Description string
	AmountPence int64
	Type        string
	Category    string
	Event       string
}

// ImportActivity summarizes statement imports during the month.
type ImportActivity struct {
	Jobs        int64
	Imported    int64
	Duplicates  int64
	FallbackUse int64
}

// Querier is the subset of pgxpool.Pool the repository uses. pgxmock
// implements it, so repository tests run against a mock pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository handles the report queries.
type Repository struct {
	db Querier
}

// NewRepository creates a new insights repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// MonthTotals sums the ledger for [start, end).
func (r *Repository) MonthTotals(ctx context.Context, start, end time.Time) (*MonthTotals, error) {
	var t MonthTotals
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_pence) FILTER (WHERE type = 'Income'), 0),
			COALESCE(SUM(amount_pence) FILTER (WHERE type = 'Expense'), 0),
			COUNT(*)
		FROM transactions
		WHERE occurred_on >= $1 AND occurred_on < $2`,
		start, end).Scan(&t.IncomePence, &t.ExpensePence, &t.Count)
	if err != nil {
		return nil, fmt.Errorf("month totals: %w", err)
	}
	return &t, nil
}

// TopCategories returns the busiest categories for [start, end) by total
// money moved.
func (r *Repository) TopCategories(ctx context.Context, start, end time.Time, limit int) ([]GroupTotal, error) {
	return r.groupTotals(ctx, "category", start, end, limit)
}

// TopEvents returns the busiest events for [start, end).
func (r *Repository) TopEvents(ctx context.Context, start, end time.Time, limit int) ([]GroupTotal, error) {
	return r.groupTotals(ctx, "event", start, end, limit)
}

func (r *Repository) groupTotals(ctx context.Context, column string, start, end time.Time, limit int) ([]GroupTotal, error) {
	// column is one of the two constants above, never caller input.
	rows, err := r.db.Query(ctx, `
		SELECT
			`+column+`,
			COALESCE(SUM(amount_pence) FILTER (WHERE type = 'Income'), 0) AS income,
			COALESCE(SUM(amount_pence) FILTER (WHERE type = 'Expense'), 0) AS expense,
			COUNT(*)
		FROM transactions
		WHERE occurred_on >= $1 AND occurred_on < $2 AND `+column+` <> ''
		GROUP BY `+column+`
		ORDER BY income + expense DESC
		LIMIT $3`,
		start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("top %s totals: %w", column, err)
	}
	defer rows.Close()

	var totals []GroupTotal
	for rows.Next() {
		var g GroupTotal
		if err := rows.Scan(&g.Name, &g.IncomePence, &g.ExpensePence, &g.Count); err != nil {
			return nil, fmt.Errorf("scan group total: %w", err)
		}
		totals = append(totals, g)
	}
	return totals, rows.Err()
}

// LargestTransactions returns the biggest movements in [start, end).
func (r *Repository) LargestTransactions(ctx context.Context, start, end time.Time, limit int) ([]LedgerLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT occurred_on, description, amount_pence, type, category, event
		FROM transactions
		WHERE occurred_on >= $1 AND occurred_on < $2
		ORDER BY amount_pence DESC
		LIMIT $3`,
		start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("largest transactions: %w", err)
	}
	defer rows.Close()

	var lines []LedgerLine
	for rows.Next() {
		var l LedgerLine
		if err := rows.Scan(&l.OccurredOn, &l.Description, &l.AmountPence, &l.Type, &l.Category, &l.Event); err != nil {
			return nil, fmt.Errorf("scan ledger line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// UncategorizedCount counts transactions in [start, end) still waiting for
// a category.
func (r *Repository) UncategorizedCount(ctx context.Context, start, end time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM transactions
		WHERE occurred_on >= $1 AND occurred_on < $2 AND category = ''`,
		start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("uncategorized count: %w", err)
	}
	return count, nil
}

// CategoryExpenses returns expense totals per category for [start, end),
// uncategorized included. Used for month-over-month change detection.
func (r *Repository) CategoryExpenses(ctx context.Context, start, end time.Time) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT COALESCE(NULLIF(category, ''), 'Uncategorized'), SUM(amount_pence)
		FROM transactions
		WHERE occurred_on >= $1 AND occurred_on < $2 AND type = 'Expense'
		GROUP BY 1`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("category expenses: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var name string
		var pence int64
		if err := rows.Scan(&name, &pence); err != nil {
			return nil, fmt.Errorf("scan category expense: %w", err)
		}
		totals[name] = pence
	}
	return totals, rows.Err()
}

// ImportActivity summarizes import jobs created in [start, end).
func (r *Repository) ImportActivity(ctx context.Context, start, end time.Time) (*ImportActivity, error) {
	var a ImportActivity
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(transactions_imported), 0),
			COALESCE(SUM(duplicates_skipped), 0),
			COUNT(*) FILTER (WHERE fallback_used)
		FROM import_jobs
		WHERE created_at >= $1 AND created_at < $2 AND status = 'completed'`,
		start, end).Scan(&a.Jobs, &a.Imported, &a.Duplicates, &a.FallbackUse)
	if err != nil {
		return nil, fmt.Errorf("import activity: %w", err)
	}
	return &a, nil
}
