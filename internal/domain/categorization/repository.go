package categorization

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CategoryRule maps a description keyword to a club category and event.
// Rules are club-wide: one ledger, one rule set.
type CategoryRule struct {
	ID        uuid.UUID
	Keyword   string
	Category  string
	Event     string
	Priority  int
	CreatedAt time.Time
}

// CategorizationResult holds the outcome of categorizing one description.
type CategorizationResult struct {
	CleanDescription string
	Category         string
	Event            string
	RuleID           *uuid.UUID // Which rule matched, if any
	Score            int        // 100 for keyword hits, fuzzy score otherwise
	Fuzzy            bool       // True when the match came from the fuzzy fallback
}

// Matched reports whether any rule matched.
func (r *CategorizationResult) Matched() bool {
	return r.RuleID != nil
}

// Querier is the subset of pgxpool.Pool the repository uses. pgxmock
// implements it, so repository tests run against a mock pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository handles database operations for categorization rules
type Repository struct {
	db Querier
}

// NewRepository creates a new categorization repository
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// ListRules fetches all rules, highest priority first. Longer keywords win
// ties so "welsh 3000s" beats "welsh" at equal priority.
func (r *Repository) ListRules(ctx context.Context) ([]CategoryRule, error) {
	query := `
		SELECT id, keyword, category, event, priority, created_at
		FROM category_rules
		ORDER BY priority DESC, LENGTH(keyword) DESC, keyword
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []CategoryRule
	for rows.Next() {
		var rule CategoryRule
		if err := rows.Scan(
			&rule.ID,
			&rule.Keyword,
			&rule.Category,
			&rule.Event,
			&rule.Priority,
			&rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// CreateRule creates a new categorization rule. Keywords are stored
// lowercase so the unique index catches case variants.
func (r *Repository) CreateRule(ctx context.Context, rule *CategoryRule) error {
	query := `
		INSERT INTO category_rules (keyword, category, event, priority)
		VALUES (LOWER($1), $2, $3, $4)
		RETURNING id, created_at
	`

	return r.db.QueryRow(ctx, query,
		rule.Keyword,
		rule.Category,
		rule.Event,
		rule.Priority,
	).Scan(&rule.ID, &rule.CreatedAt)
}

// FindRuleByKeyword returns the rule for a keyword, or nil if none exists
func (r *Repository) FindRuleByKeyword(ctx context.Context, keyword string) (*CategoryRule, error) {
	query := `
		SELECT id, keyword, category, event, priority, created_at
		FROM category_rules
		WHERE keyword = LOWER($1)
	`

	var rule CategoryRule
	err := r.db.QueryRow(ctx, query, keyword).Scan(
		&rule.ID,
		&rule.Keyword,
		&rule.Category,
		&rule.Event,
		&rule.Priority,
		&rule.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rule, nil
}

// DeleteRule removes a rule. Returns pgx.ErrNoRows when the id is unknown.
func (r *Repository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM category_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RecategorizeMatching updates category and event on every transaction whose
// description contains the keyword. Used when a new rule is backfilled.
func (r *Repository) RecategorizeMatching(ctx context.Context, keyword, category, event string) (int64, error) {
	query := `
		UPDATE transactions
		SET category = $2, event = $3, updated_at = NOW()
		WHERE description ILIKE '%' || $1 || '%'
	`

	tag, err := r.db.Exec(ctx, query, keyword, category, event)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}
