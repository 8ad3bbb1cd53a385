package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Page size bounds for transaction listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Querier is the subset of pgxpool.Pool the repository uses. pgxmock
// implements it, so repository tests run against a mock pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository handles database operations for the ledger
type Repository struct {
	db Querier
}

// NewRepository creates a new finance repository
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

const transactionColumns = `id, occurred_on, description, amount_pence, type, category, event, confidence, source, page, import_job_id, dedupe_key, created_at, updated_at`

// insertColumns excludes the generated id and timestamps.
const insertColumns = `occurred_on, description, amount_pence, type, category, event, confidence, source, page, import_job_id, dedupe_key`

// whereClause renders the filter as SQL conditions with positional args.
func (f TransactionFilter) whereClause() (string, []any) {
	conds := make([]string, 0, 5)
	args := make([]any, 0, 5)

	add := func(expr string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if f.Month != "" {
		add("to_char(occurred_on, 'YYYY-MM') = $%d", f.Month)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Event != "" {
		add("event = $%d", f.Event)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Source != "" {
		add("source = $%d", f.Source)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// InsertTransaction writes one ledger row, filling the dedupe key if the
// caller has not. It returns false without error when an identical
// transaction already exists.
func (r *Repository) InsertTransaction(ctx context.Context, tx *Transaction) (bool, error) {
	if tx.DedupeKey == "" {
		tx.DedupeKey = DedupeKey(tx.OccurredOn, tx.AmountPence, tx.Description)
	}

	query := `
		INSERT INTO transactions (` + insertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (dedupe_key) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		tx.OccurredOn,
		tx.Description,
		tx.AmountPence,
		tx.Type,
		tx.Category,
		tx.Event,
		tx.Confidence,
		tx.Source,
		tx.Page,
		tx.ImportJobID,
		tx.DedupeKey,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// BulkInsert writes a batch in one statement. Rows whose dedupe key is
// already present are skipped; the returned count is rows actually written.
func (r *Repository) BulkInsert(ctx context.Context, txs []*Transaction) (int64, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	const cols = 11
	placeholders := make([]string, 0, len(txs))
	args := make([]any, 0, len(txs)*cols)
	for i, tx := range txs {
		if tx.DedupeKey == "" {
			tx.DedupeKey = DedupeKey(tx.OccurredOn, tx.AmountPence, tx.Description)
		}
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
			base+7, base+8, base+9, base+10, base+11,
		))
		args = append(args,
			tx.OccurredOn,
			tx.Description,
			tx.AmountPence,
			tx.Type,
			tx.Category,
			tx.Event,
			tx.Confidence,
			tx.Source,
			tx.Page,
			tx.ImportJobID,
			tx.DedupeKey,
		)
	}

	query := `INSERT INTO transactions (` + insertColumns + `) VALUES ` +
		strings.Join(placeholders, ", ") +
		` ON CONFLICT (dedupe_key) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListTransactions returns one page of rows matching the filter, newest
// first, together with the unpaginated total.
func (r *Repository) ListTransactions(ctx context.Context, f TransactionFilter) (*TransactionPage, error) {
	where, args := f.whereClause()

	var total int64
	countQuery := `SELECT COUNT(*) FROM transactions` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	args = append(args, limit)
	limitPos := len(args)
	args = append(args, offset)
	offsetPos := len(args)

	query := fmt.Sprintf(`
		SELECT `+transactionColumns+`
		FROM transactions%s
		ORDER BY occurred_on DESC, created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, limitPos, offsetPos)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}

	return &TransactionPage{
		Transactions: txs,
		TotalCount:   total,
		Limit:        limit,
		Offset:       offset,
	}, nil
}

// ListAllTransactions returns every row matching the filter, oldest first,
// without pagination. The export and reindex feeds use it.
func (r *Repository) ListAllTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	where, args := f.whereClause()
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions` + where + `
		ORDER BY occurred_on, created_at
	`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetTransaction returns one row, or nil when it does not exist.
func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1
	`

	var tx Transaction
	err := scanTransaction(r.db.QueryRow(ctx, query, id), &tx)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// DeleteTransaction removes one row. Deleting an unknown id returns
// pgx.ErrNoRows.
func (r *Repository) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteByImportJob removes every transaction written by one import job
// and reports how many went.
func (r *Repository) DeleteByImportJob(ctx context.Context, jobID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE import_job_id = $1`, jobID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SummaryTotals computes the headline income/expense/count figures for the
// filtered period.
func (r *Repository) SummaryTotals(ctx context.Context, f TransactionFilter) (*DashboardSummary, error) {
	where, args := f.whereClause()
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'Income' THEN amount_pence ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'Expense' THEN amount_pence ELSE 0 END), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE category = 'Uncategorized')
		FROM transactions` + where

	var s DashboardSummary
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&s.IncomePence,
		&s.ExpensePence,
		&s.TransactionCount,
		&s.Uncategorized,
	)
	if err != nil {
		return nil, err
	}
	s.NetPence = s.IncomePence - s.ExpensePence
	return &s, nil
}

// TotalsByCategory groups the filtered period by category, biggest money
// movers first.
func (r *Repository) TotalsByCategory(ctx context.Context, f TransactionFilter, limit int) ([]CategoryTotal, error) {
	where, args := f.whereClause()
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT
			category,
			COALESCE(SUM(CASE WHEN type = 'Income' THEN amount_pence ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'Expense' THEN amount_pence ELSE 0 END), 0),
			COUNT(*)
		FROM transactions%s
		GROUP BY category
		ORDER BY SUM(amount_pence) DESC
		LIMIT $%d
	`, where, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Category, &t.IncomePence, &t.ExpensePence, &t.Count); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TotalsByEvent groups the filtered period by event, biggest money movers
// first.
func (r *Repository) TotalsByEvent(ctx context.Context, f TransactionFilter, limit int) ([]EventTotal, error) {
	where, args := f.whereClause()
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT
			event,
			COALESCE(SUM(CASE WHEN type = 'Income' THEN amount_pence ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'Expense' THEN amount_pence ELSE 0 END), 0),
			COUNT(*)
		FROM transactions%s
		GROUP BY event
		ORDER BY SUM(amount_pence) DESC
		LIMIT $%d
	`, where, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []EventTotal
	for rows.Next() {
		var t EventTotal
		if err := rows.Scan(&t.Event, &t.IncomePence, &t.ExpensePence, &t.Count); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// MonthlyTrend returns one point per calendar month for the last n months,
// oldest first. Months with no transactions still appear, zeroed.
func (r *Repository) MonthlyTrend(ctx context.Context, months int) ([]MonthlyPoint, error) {
	query := `
		WITH months AS (
			SELECT date_trunc('month', CURRENT_DATE) - make_interval(months => n) AS month
			FROM generate_series(0, $1 - 1) AS n
		),
		totals AS (
			SELECT
				date_trunc('month', occurred_on) AS month,
				SUM(CASE WHEN type = 'Income' THEN amount_pence ELSE 0 END) AS income,
				SUM(CASE WHEN type = 'Expense' THEN amount_pence ELSE 0 END) AS expense
			FROM transactions
			GROUP BY 1
		)
		SELECT
			to_char(m.month, 'YYYY-MM'),
			COALESCE(t.income, 0),
			COALESCE(t.expense, 0)
		FROM months m
		LEFT JOIN totals t ON t.month = m.month
		ORDER BY m.month
	`

	rows, err := r.db.Query(ctx, query, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []MonthlyPoint
	for rows.Next() {
		var p MonthlyPoint
		if err := rows.Scan(&p.Month, &p.IncomePence, &p.ExpensePence); err != nil {
			return nil, err
		}
		p.NetPence = p.IncomePence - p.ExpensePence
		points = append(points, p)
	}
	return points, rows.Err()
}

func scanTransaction(row pgx.Row, tx *Transaction) error {
	return row.Scan(
		&tx.ID,
		&tx.OccurredOn,
		&tx.Description,
		&tx.AmountPence,
		&tx.Type,
		&tx.Category,
		&tx.Event,
		&tx.Confidence,
		&tx.Source,
		&tx.Page,
		&tx.ImportJobID,
		&tx.DedupeKey,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
}

func scanTransactions(rows pgx.Rows) ([]Transaction, error) {
	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		if err := scanTransaction(rows, &tx); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
