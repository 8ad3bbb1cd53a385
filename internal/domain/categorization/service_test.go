package categorization

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// ruleRows builds the result set ListRules expects
func ruleRows(rules ...CategoryRule) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "keyword", "category", "event", "priority", "created_at"})
	for _, r := range rules {
		rows.AddRow(r.ID, r.Keyword, r.Category, r.Event, r.Priority, time.Now())
	}
	return rows
}

func TestService_Categorize(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Rules load once; every Categorize after that is in-memory
	mock.ExpectQuery(`SELECT id, keyword, category, event, priority, created_at`).
		WillReturnRows(ruleRows(
			CategoryRule{ID: uuid.New(), Keyword: "minibus", Category: "Transport", Event: "General"},
			CategoryRule{ID: uuid.New(), Keyword: "welsh 3000s", Category: "Trip Fees", Event: "Welsh 3000s", Priority: 30},
		))

	svc := NewService(NewRepository(mock), testLogger())
	ctx := context.Background()

	t.Run("exact keyword match", func(t *testing.T) {
		result, err := svc.Categorize(ctx, "CARD PAYMENT TO MINIBUS HIRE 123")
		require.NoError(t, err)
		assert.True(t, result.Matched())
		assert.Equal(t, "Transport", result.Category)
		assert.Equal(t, 100, result.Score)
		assert.False(t, result.Fuzzy)
		assert.Equal(t, "Minibus Hire 123", result.CleanDescription)
	})

	t.Run("event from high priority rule", func(t *testing.T) {
		result, err := svc.Categorize(ctx, "WELSH 3000S DEPOSIT J SMITH")
		require.NoError(t, err)
		assert.Equal(t, "Welsh 3000s", result.Event)
	})

	t.Run("fuzzy fallback on ocr damage", func(t *testing.T) {
		result, err := svc.Categorize(ctx, "M1NIBUS")
		require.NoError(t, err)
		assert.True(t, result.Matched())
		assert.True(t, result.Fuzzy)
		assert.Equal(t, "Transport", result.Category)
		assert.Less(t, result.Score, 100)
	})

	t.Run("no match falls back to defaults", func(t *testing.T) {
		result, err := svc.Categorize(ctx, "ZZZ UNKNOWN 999")
		require.NoError(t, err)
		assert.False(t, result.Matched())
		assert.Equal(t, DefaultCategory, result.Category)
		assert.Equal(t, DefaultEvent, result.Event)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CategorizeBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, keyword, category, event, priority, created_at`).
		WillReturnRows(ruleRows(
			CategoryRule{ID: uuid.New(), Keyword: "minibus", Category: "Transport", Event: "General"},
			CategoryRule{ID: uuid.New(), Keyword: "membership", Category: "Membership", Event: "General"},
		))

	svc := NewService(NewRepository(mock), testLogger())

	results, err := svc.CategorizeBatch(context.Background(), []string{
		"MINIBUS HIRE WK2",
		"UNKNOWN SHOP",
		"MEMBERSHIP A JONES",
	})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Transport", results[0].Category)
	assert.Equal(t, DefaultCategory, results[1].Category)
	assert.Equal(t, "Membership", results[2].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CreateRule(t *testing.T) {
	t.Run("existing keyword returns the existing rule", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		existingID := uuid.New()
		mock.ExpectQuery(`SELECT id, keyword, category, event, priority, created_at`).
			WithArgs("minibus").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "keyword", "category", "event", "priority", "created_at",
			}).AddRow(existingID, "minibus", "Transport", "General", 0, time.Now()))

		svc := NewService(NewRepository(mock), testLogger())
		rule, updated, err := svc.CreateRule(context.Background(), "minibus", "Equipment", "General", 0, true)

		require.NoError(t, err)
		assert.Equal(t, existingID, rule.ID)
		assert.Equal(t, "Transport", rule.Category) // Original rule untouched
		assert.Zero(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("creates rule and backfills transactions", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		ruleID := uuid.New()

		mock.ExpectQuery(`SELECT id, keyword, category, event, priority, created_at`).
			WithArgs("crampon").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO category_rules`).
			WithArgs("crampon", "Equipment", "Scotland Winter", 10).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(ruleID, time.Now()))
		// Matcher rebuild after the insert
		mock.ExpectQuery(`SELECT id, keyword, category, event, priority, created_at`).
			WillReturnRows(ruleRows(
				CategoryRule{ID: ruleID, Keyword: "crampon", Category: "Equipment", Event: "Scotland Winter", Priority: 10},
			))
		mock.ExpectExec(`UPDATE transactions`).
			WithArgs("crampon", "Equipment", "Scotland Winter").
			WillReturnResult(pgxmock.NewResult("UPDATE", 3))

		svc := NewService(NewRepository(mock), testLogger())
		rule, updated, err := svc.CreateRule(context.Background(), "crampon", "Equipment", "Scotland Winter", 10, true)

		require.NoError(t, err)
		assert.Equal(t, ruleID, rule.ID)
		assert.Equal(t, int64(3), updated)
		assert.NoError(t, mock.ExpectationsWereMet())

		// The new rule is live without another query
		result, err := svc.Categorize(context.Background(), "CRAMPON HIRE X2")
		require.NoError(t, err)
		assert.Equal(t, "Equipment", result.Category)
	})

	t.Run("skips backfill when not requested", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT id, keyword, category, event, priority, created_at`).
			WithArgs("pizza").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO category_rules`).
			WithArgs("pizza", "Social", "General", 0).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))
		mock.ExpectQuery(`SELECT id, keyword, category, event, priority, created_at`).
			WillReturnRows(ruleRows())

		svc := NewService(NewRepository(mock), testLogger())
		_, updated, err := svc.CreateRule(context.Background(), "pizza", "Social", "", 0, false)

		require.NoError(t, err)
		assert.Zero(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_DeleteRule(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ruleID := uuid.New()
	mock.ExpectExec(`DELETE FROM category_rules`).
		WithArgs(ruleID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(`SELECT id, keyword, category, event, priority, created_at`).
		WillReturnRows(ruleRows())

	svc := NewService(NewRepository(mock), testLogger())
	require.NoError(t, svc.DeleteRule(context.Background(), ruleID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "removes CARD PAYMENT TO prefix",
			input:    "CARD PAYMENT TO COTSWOLD OUTDOOR LEEDS",
			expected: "Cotswold Outdoor Leeds",
		},
		{
			name:     "removes DIRECT DEBIT PAYMENT TO prefix",
			input:    "DIRECT DEBIT PAYMENT TO BMC INSURANCE",
			expected: "Bmc Insurance",
		},
		{
			name:     "removes short DD prefix",
			input:    "DD GYM MEMBERSHIP",
			expected: "Gym Membership",
		},
		{
			name:     "removes FASTER PAYMENTS RECEIPT prefix",
			input:    "FASTER PAYMENTS RECEIPT J SMITH TRIP FEE",
			expected: "J Smith Trip Fee",
		},
		{
			name:     "strips trailing REF number",
			input:    "BUNKHOUSE DEPOSIT REF 12345678",
			expected: "Bunkhouse Deposit",
		},
		{
			name:     "strips trailing REFERENCE number",
			input:    "TRIP PAYMENT REFERENCE 99",
			expected: "Trip Payment",
		},
		{
			name:     "strips trailing card fragment",
			input:    "SNOWDONIA TRIP *4821",
			expected: "Snowdonia Trip",
		},
		{
			name:     "case insensitive prefix",
			input:    "card payment to esso fuel",
			expected: "Esso Fuel",
		},
		{
			name:     "no prefix unchanged",
			input:    "PIZZA SOCIAL",
			expected: "Pizza Social",
		},
		{
			name:     "trims whitespace",
			input:    "  MINIBUS HIRE  ",
			expected: "Minibus Hire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cleanDescription(tt.input))
		})
	}
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"1234", true},
		{"0", true},
		{"", false},
		{"12a4", false},
		{"12.4", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, isNumeric(tt.input))
		})
	}
}

func TestToTitleCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"MINIBUS HIRE", "Minibus Hire"},
		{"pen y pass", "Pen Y Pass"},
		{"MIXED case Words", "Mixed Case Words"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, toTitleCase(tt.input))
		})
	}
}
