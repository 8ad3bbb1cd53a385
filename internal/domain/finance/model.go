// Package finance stores and serves the club ledger: every transaction the
// committee imported, typed in, or quick-added, plus the dashboard
// aggregates computed over them.
package finance

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types, matching the check constraint on the transactions table.
const (
	TypeIncome  = "Income"
	TypeExpense = "Expense"
)

// Transaction sources. Imports stamp the file type; everything typed in by
// a committee member is manual or quickadd.
const (
	SourceManual   = "manual"
	SourceQuickAdd = "quickadd"
	SourcePDF      = "pdf"
	SourceCSV      = "csv"
	SourceXLSX     = "xlsx"
)

// dedupeDescPrefix is how much of the description participates in the
// dedupe key. It matches the key the statement extractor computes
// in-memory, so a row collapsed during extraction also collides in the
// database.
const dedupeDescPrefix = 20

var (
	// ErrInvalidInput marks validation failures a caller can correct.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateTransaction is returned when an identical transaction
	// (same dedupe key) is already recorded.
	ErrDuplicateTransaction = errors.New("identical transaction already recorded")
	// ErrSearchUnavailable is returned when no search index is configured.
	ErrSearchUnavailable = errors.New("search index not configured")
)

// Transaction is one row of the club ledger.
type Transaction struct {
	ID          uuid.UUID
	OccurredOn  time.Time
	Description string
	AmountPence int64
	Type        string
	Category    string
	Event       string
	Confidence  float64
	Source      string
	Page        *int
	ImportJobID *uuid.UUID
	DedupeKey   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DedupeKey builds the composite identity used for duplicate detection:
// date, amount to two decimal places, and a short description prefix.
func DedupeKey(occurredOn time.Time, amountPence int64, description string) string {
	desc := description
	if len(desc) > dedupeDescPrefix {
		desc = desc[:dedupeDescPrefix]
	}
	pounds := decimal.New(amountPence, -2)
	return fmt.Sprintf("%s|%s|%s", occurredOn.Format("02/01/2006"), pounds.StringFixed(2), desc)
}

// TransactionFilter narrows ledger queries. Zero-valued fields do not
// filter. Month is a calendar month in YYYY-MM form.
type TransactionFilter struct {
	Month    string
	Category string
	Event    string
	Type     string
	Source   string
	Limit    int
	Offset   int
}

// validate rejects filter values the SQL would silently mismatch.
func (f TransactionFilter) validate() error {
	if f.Month != "" {
		if _, err := time.Parse("2006-01", f.Month); err != nil {
			return fmt.Errorf("%w: month must be YYYY-MM, got %q", ErrInvalidInput, f.Month)
		}
	}
	if f.Type != "" && f.Type != TypeIncome && f.Type != TypeExpense {
		return fmt.Errorf("%w: type must be %s or %s", ErrInvalidInput, TypeIncome, TypeExpense)
	}
	return nil
}

// TransactionPage is one page of filtered ledger rows.
type TransactionPage struct {
	Transactions []Transaction
	TotalCount   int64
	Limit        int
	Offset       int
}

// CategoryTotal aggregates one category over the filtered period.
type CategoryTotal struct {
	Category     string
	IncomePence  int64
	ExpensePence int64
	Count        int64
}

// EventTotal aggregates one event over the filtered period.
type EventTotal struct {
	Event        string
	IncomePence  int64
	ExpensePence int64
	Count        int64
}

// MonthlyPoint is one month of the income/expense trend.
type MonthlyPoint struct {
	Month        string // YYYY-MM
	IncomePence  int64
	ExpensePence int64
	NetPence     int64
}

// DashboardSummary is the headline view on the dashboard: totals for the
// period plus the categories and events the money actually moved through.
type DashboardSummary struct {
	IncomePence      int64
	ExpensePence     int64
	NetPence         int64
	TransactionCount int64
	Uncategorized    int64
	TopCategories    []CategoryTotal
	TopEvents        []EventTotal
}

// ExportRow is the CSV shape the committee publishes: the four dashboard
// columns plus the club's category and event labels.
type ExportRow struct {
	Date        string `csv:"Date"`
	Description string `csv:"Description"`
	Category    string `csv:"Category"`
	Event       string `csv:"Event"`
	CashIn      string `csv:"Cash In"`
	CashOut     string `csv:"Cash Out"`
}

// ManualTransactionInput is a hand-entered ledger row.
type ManualTransactionInput struct {
	OccurredOn  time.Time
	Description string
	AmountPence int64
	Type        string
	Category    string
	Event       string
}
