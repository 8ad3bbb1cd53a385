package extraction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionType indicates which amount column a transaction came from.
type TransactionType string

const (
	TypeIncome  TransactionType = "Income"
	TypeExpense TransactionType = "Expense"
)

const (
	// DefaultCategory is assigned when no category keyword matches.
	DefaultCategory = "Uncategorized"
	// DefaultEvent is assigned when no event keyword matches.
	DefaultEvent = "General"
)

// Transaction is one validated record extracted from a statement page.
// Every emitted Transaction has a non-empty date and description and a
// positive amount; instances are never mutated after creation.
type Transaction struct {
	Date        string          // canonical DD/MM/YYYY
	Description string          // cleaned, length-capped free text
	Amount      decimal.Decimal // positive, exactly 2 decimal places
	Type        TransactionType
	Category    string
	Event       string
	Confidence  float64 // [0,1], higher for spatial extraction than fallback
	Page        int     // source page, 1-based
}

// Result is the per-document output of an extraction run.
type Result struct {
	Transactions   []Transaction
	PagesProcessed int
}

// Classifier assigns a category and event label to a transaction
// description. Implementations are expected to fall back to
// DefaultCategory/DefaultEvent when nothing matches.
type Classifier interface {
	Classify(description string) (category, event string)
}

type keywordRule struct {
	keyword string
	label   string
}

// KeywordClassifier is the plain lookup-table classifier the extractor uses
// when no richer classification service is wired in: case-insensitive
// substring match against keyword→label tables. Longer keywords are tried
// first so "minibus hire" wins over "minibus".
type KeywordClassifier struct {
	categories []keywordRule
	events     []keywordRule
}

// NewKeywordClassifier builds a classifier from keyword→category and
// keyword→event tables. Keys are matched case-insensitively as substrings
// of the description.
func NewKeywordClassifier(categories, events map[string]string) *KeywordClassifier {
	return &KeywordClassifier{
		categories: buildRules(categories),
		events:     buildRules(events),
	}
}

func buildRules(table map[string]string) []keywordRule {
	rules := make([]keywordRule, 0, len(table))
	for k, v := range table {
		rules = append(rules, keywordRule{keyword: strings.ToLower(k), label: v})
	}
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].keyword) != len(rules[j].keyword) {
			return len(rules[i].keyword) > len(rules[j].keyword)
		}
		return rules[i].keyword < rules[j].keyword
	})
	return rules
}

// Classify returns the first matching category and event for a description.
func (c *KeywordClassifier) Classify(description string) (string, string) {
	lower := strings.ToLower(description)

	category := DefaultCategory
	for _, rule := range c.categories {
		if strings.Contains(lower, rule.keyword) {
			category = rule.label
			break
		}
	}

	event := DefaultEvent
	for _, rule := range c.events {
		if strings.Contains(lower, rule.keyword) {
			event = rule.label
			break
		}
	}

	return category, event
}

// dedupeKey builds the composite identity used to collapse duplicate rows:
// date, amount, and the first prefixLen characters of the description.
func (t Transaction) dedupeKey(prefixLen int) string {
	desc := t.Description
	if prefixLen > 0 && len(desc) > prefixLen {
		desc = desc[:prefixLen]
	}
	return fmt.Sprintf("%s|%s|%s", t.Date, t.Amount.StringFixed(2), desc)
}

// Dedupe removes duplicate transactions by their composite identity (date,
// amount, and a description prefix of prefixLen characters), keeping the
// first occurrence. Callers merging spatial and fallback results should
// list the higher-confidence transactions first.
func Dedupe(txs []Transaction, prefixLen int) []Transaction {
	return dedupeTransactions(txs, prefixLen)
}

// dedupeTransactions removes duplicates by composite key, preserving the
// first occurrence encountered.
func dedupeTransactions(txs []Transaction, prefixLen int) []Transaction {
	if len(txs) < 2 {
		return txs
	}

	seen := make(map[string]struct{}, len(txs))
	out := txs[:0]
	for _, tx := range txs {
		key := tx.dedupeKey(prefixLen)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tx)
	}
	return out
}
