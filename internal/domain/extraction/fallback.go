package extraction

import (
	"log/slog"
	"regexp"
	"strings"
)

// Fallback line patterns. Spatial extraction is the primary path; these
// exist for documents whose text layer flattens to plain lines with no
// usable coordinates.
const (
	datePattern   = `\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}`
	amountPattern = `\(?-?[£$€]?\d{1,6}(?:,\d{3})*[.,]\d{2}\)?`
)

var (
	reDateDescAmtAmt = regexp.MustCompile(`^(` + datePattern + `)\s+(.+?)\s+(` + amountPattern + `)\s+(` + amountPattern + `)$`)
	reDateDescAmtDir = regexp.MustCompile(`(?i)^(` + datePattern + `)\s+(.+?)\s+(` + amountPattern + `)\s*(CR|DR)$`)
	reDateDescAmt    = regexp.MustCompile(`^(` + datePattern + `)\s+(.+?)\s+(` + amountPattern + `)$`)
	reDescDateAmt    = regexp.MustCompile(`^(.+?)\s+(` + datePattern + `)\s+(` + amountPattern + `)$`)
)

// Strategy is one line-parsing attempt. Strategies are pure: same line and
// page in, same transaction out, no shared state.
type Strategy struct {
	Name  string
	Parse func(line string, page int) (Transaction, bool)
}

// FallbackParser parses flattened statement lines with an ordered strategy
// list. Strategies run most-specific first and the first success wins, so
// a line with a trailing balance is never double-counted by the simpler
// patterns below it.
type FallbackParser struct {
	norm       *Normalizer
	classify   Classifier
	logger     *slog.Logger
	maxDescLen int
	strategies []Strategy
}

// NewFallbackParser builds the default strategy chain. A nil classifier
// leaves category and event at their defaults.
func NewFallbackParser(cfg Config, classifier Classifier, logger *slog.Logger) *FallbackParser {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	f := &FallbackParser{
		norm:       NewNormalizer(cfg),
		classify:   classifier,
		logger:     logger,
		maxDescLen: cfg.DescriptionMaxLen,
	}
	f.strategies = []Strategy{
		{Name: "date-desc-amount-balance", Parse: f.parseWithBalance},
		{Name: "date-desc-amount-direction", Parse: f.parseWithDirection},
		{Name: "date-desc-amount", Parse: f.parseSimple},
		{Name: "desc-date-amount", Parse: f.parseTrailingDate},
	}
	return f
}

// ParseText splits flattened page text into lines and runs each through the
// strategy chain, returning every transaction found. The caller merges and
// dedupes against spatial results.
func (f *FallbackParser) ParseText(text string, page int) []Transaction {
	var txs []Transaction
	for _, line := range strings.Split(text, "\n") {
		if tx, ok := f.ParseLine(line, page); ok {
			txs = append(txs, tx)
		}
	}
	return txs
}

// ParseLine tries each strategy in priority order until one produces a
// transaction.
func (f *FallbackParser) ParseLine(line string, page int) (Transaction, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Transaction{}, false
	}
	for _, s := range f.strategies {
		if tx, ok := s.Parse(line, page); ok {
			f.logger.Debug("fallback strategy matched",
				slog.String("strategy", s.Name),
				slog.Int("page", page))
			return tx, true
		}
	}
	return Transaction{}, false
}

// parseWithBalance handles "date description amount balance" lines. The
// first amount is the transaction; the trailing running balance is dropped.
func (f *FallbackParser) parseWithBalance(line string, page int) (Transaction, bool) {
	m := reDateDescAmtAmt.FindStringSubmatch(line)
	if m == nil {
		return Transaction{}, false
	}
	return f.build(m[1], m[2], m[3], "", page)
}

// parseWithDirection handles lines with an explicit CR/DR marker.
func (f *FallbackParser) parseWithDirection(line string, page int) (Transaction, bool) {
	m := reDateDescAmtDir.FindStringSubmatch(line)
	if m == nil {
		return Transaction{}, false
	}
	var forced TransactionType
	if strings.EqualFold(m[4], "CR") {
		forced = TypeIncome
	} else {
		forced = TypeExpense
	}
	return f.build(m[1], m[2], m[3], forced, page)
}

func (f *FallbackParser) parseSimple(line string, page int) (Transaction, bool) {
	m := reDateDescAmt.FindStringSubmatch(line)
	if m == nil {
		return Transaction{}, false
	}
	return f.build(m[1], m[2], m[3], "", page)
}

func (f *FallbackParser) parseTrailingDate(line string, page int) (Transaction, bool) {
	m := reDescDateAmt.FindStringSubmatch(line)
	if m == nil {
		return Transaction{}, false
	}
	return f.build(m[2], m[1], m[3], "", page)
}

// build validates the captured tokens through the shared normalizer and
// assembles the transaction. Without an explicit direction marker a line is
// read as an outgoing, the same expense-heavy assumption the column
// inference makes for single-amount statements.
func (f *FallbackParser) build(rawDate, rawDesc, rawAmount string, forced TransactionType, page int) (Transaction, bool) {
	date, ok := f.norm.NormalizeDate(rawDate)
	if !ok {
		return Transaction{}, false
	}

	value, ok := f.norm.ParseCurrencyAmount(rawAmount)
	if !ok {
		return Transaction{}, false
	}

	desc := strings.Join(strings.Fields(rawDesc), " ")
	if runes := []rune(desc); len(runes) > f.maxDescLen {
		desc = strings.TrimSpace(string(runes[:f.maxDescLen]))
	}
	if len(desc) < minDescriptionLen {
		return Transaction{}, false
	}

	txType := forced
	if txType == "" {
		txType = TypeExpense
	}

	category, event := DefaultCategory, DefaultEvent
	if f.classify != nil {
		category, event = f.classify.Classify(desc)
	}

	return Transaction{
		Date:        date,
		Description: desc,
		Amount:      value.Abs(),
		Type:        txType,
		Category:    category,
		Event:       event,
		Confidence:  ConfidenceFallback,
		Page:        page,
	}, true
}
