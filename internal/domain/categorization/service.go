package categorization

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Labels applied when no rule matches a description.
const (
	DefaultCategory = "Uncategorized"
	DefaultEvent    = "General"
)

// fuzzyThreshold is the minimum similarity score the fuzzy fallback accepts.
// Below 75 a match is more likely a different merchant than a typo.
const fuzzyThreshold = 75

// Service handles transaction categorization logic
type Service struct {
	repo   *Repository
	logger *slog.Logger

	// Matchers rebuilt whenever the rule set changes
	mu     sync.RWMutex
	engine *Engine
	fuzzy  *FuzzyMatcher
	loaded bool
}

// NewService creates a new categorization service
func NewService(repo *Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Reload fetches the rule set and rebuilds both matchers. Called at startup
// and after any rule change.
func (s *Service) Reload(ctx context.Context) error {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.engine = NewEngine(rules)
	s.fuzzy = NewFuzzyMatcher(rules)
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("categorization rules loaded", slog.Int("rules", len(rules)))
	return nil
}

// ensureLoaded lazily builds the matchers on first use
func (s *Service) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()

	if loaded {
		return nil
	}
	return s.Reload(ctx)
}

// Categorize takes a raw transaction description and returns enriched data.
// Exact keyword matches win; the fuzzy matcher only runs when the engine
// finds nothing, catching OCR damage and bank truncations.
func (s *Service) Categorize(ctx context.Context, description string) (*CategorizationResult, error) {
	result := &CategorizationResult{
		CleanDescription: cleanDescription(description),
		Category:         DefaultCategory,
		Event:            DefaultEvent,
	}

	if err := s.ensureLoaded(ctx); err != nil {
		// Fail open: an uncategorized transaction is better than a lost one
		s.logger.Warn("rule load failed, returning uncategorized", slog.Any("error", err))
		return result, nil
	}

	s.mu.RLock()
	engine, fuzzyMatcher := s.engine, s.fuzzy
	s.mu.RUnlock()

	if match := engine.Match(description); match != nil {
		result.Category = match.Category
		result.Event = match.Event
		result.RuleID = match.RuleID
		result.Score = 100
		return result, nil
	}

	if match := fuzzyMatcher.Match(description, fuzzyThreshold); match != nil {
		result.Category = match.Category
		result.Event = match.Event
		result.RuleID = match.RuleID
		result.Score = match.Score
		result.Fuzzy = true
		return result, nil
	}

	return result, nil
}

// CategorizeBatch categorizes multiple descriptions efficiently. The rule
// set is loaded once, so a whole statement import costs one query.
func (s *Service) CategorizeBatch(ctx context.Context, descriptions []string) ([]*CategorizationResult, error) {
	results := make([]*CategorizationResult, len(descriptions))

	if err := s.ensureLoaded(ctx); err != nil {
		s.logger.Warn("rule load failed, returning uncategorized batch", slog.Any("error", err))
		for i, desc := range descriptions {
			results[i] = &CategorizationResult{
				CleanDescription: cleanDescription(desc),
				Category:         DefaultCategory,
				Event:            DefaultEvent,
			}
		}
		return results, nil
	}

	s.mu.RLock()
	engine, fuzzyMatcher := s.engine, s.fuzzy
	s.mu.RUnlock()

	for i, desc := range descriptions {
		result := &CategorizationResult{
			CleanDescription: cleanDescription(desc),
			Category:         DefaultCategory,
			Event:            DefaultEvent,
		}

		if match := engine.Match(desc); match != nil {
			result.Category = match.Category
			result.Event = match.Event
			result.RuleID = match.RuleID
			result.Score = 100
		} else if match := fuzzyMatcher.Match(desc, fuzzyThreshold); match != nil {
			result.Category = match.Category
			result.Event = match.Event
			result.RuleID = match.RuleID
			result.Score = match.Score
			result.Fuzzy = true
		}

		results[i] = result
	}

	return results, nil
}

// CreateRule creates a new categorization rule with optional backfill of
// existing transactions whose descriptions contain the keyword.
func (s *Service) CreateRule(ctx context.Context, keyword, category, event string, priority int, applyToExisting bool) (*CategoryRule, int64, error) {
	keyword = strings.TrimSpace(keyword)

	// Check if a rule for this keyword already exists
	existing, err := s.repo.FindRuleByKeyword(ctx, keyword)
	if err != nil {
		return nil, 0, err
	}
	if existing != nil {
		return existing, 0, nil
	}

	if event == "" {
		event = DefaultEvent
	}

	rule := &CategoryRule{
		Keyword:  keyword,
		Category: category,
		Event:    event,
		Priority: priority,
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, 0, err
	}

	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("matcher rebuild failed after rule create", slog.Any("error", err))
	}

	// Optionally apply to existing transactions
	var updated int64
	if applyToExisting {
		updated, err = s.repo.RecategorizeMatching(ctx, keyword, category, event)
		if err != nil {
			// Rule was created, so report the backfill failure without undoing it
			s.logger.Warn("backfill failed after rule create",
				slog.String("keyword", keyword),
				slog.Any("error", err),
			)
			return rule, 0, nil
		}
		s.logger.Info("recategorized existing transactions",
			slog.String("keyword", keyword),
			slog.String("category", category),
			slog.Int64("updated", updated),
		)
	}

	return rule, updated, nil
}

// DeleteRule removes a rule and rebuilds the matchers. Transactions already
// categorized by it keep their labels.
func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteRule(ctx, id); err != nil {
		return err
	}

	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("matcher rebuild failed after rule delete", slog.Any("error", err))
	}
	return nil
}

// Rules returns the full rule set, highest priority first
func (s *Service) Rules(ctx context.Context) ([]CategoryRule, error) {
	return s.repo.ListRules(ctx)
}

// Suggest returns the closest rules to a description, for the treasurer UI
// to offer when a transaction lands uncategorized.
func (s *Service) Suggest(ctx context.Context, description string, limit int) ([]FuzzyMatchResult, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	fuzzyMatcher := s.fuzzy
	s.mu.RUnlock()

	return fuzzyMatcher.RankMatches(description, limit), nil
}

// bankPrefixes are the noise prefixes UK banks prepend to statement lines.
// Longest first so "DIRECT DEBIT PAYMENT TO " wins over "DIRECT DEBIT ".
var bankPrefixes = []string{
	"DIRECT DEBIT PAYMENT TO ",
	"FASTER PAYMENTS RECEIPT ",
	"CARD PAYMENT TO ",
	"BANK GIRO CREDIT ",
	"STANDING ORDER ",
	"MOBILE PAYMENT ",
	"DIRECT DEBIT ",
	"BANK CREDIT ",
	"VIS ",
	"BGC ",
	"POS ",
	"DD ",
	"SO ",
}

// cleanDescription performs basic cleanup on raw bank descriptions
func cleanDescription(desc string) string {
	cleaned := strings.TrimSpace(desc)
	upper := strings.ToUpper(cleaned)

	for _, prefix := range bankPrefixes {
		if strings.HasPrefix(upper, prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
			break
		}
	}

	// Remove trailing reference numbers ("REF 12345678" and "REFERENCE 123")
	words := strings.Fields(cleaned)
	if len(words) >= 2 {
		last := words[len(words)-1]
		marker := strings.ToUpper(words[len(words)-2])
		if (marker == "REF" || marker == "REFERENCE") && isNumeric(last) {
			cleaned = strings.Join(words[:len(words)-2], " ")
		}
	}

	// Remove trailing card fragments (common pattern: *1234)
	if idx := strings.LastIndex(cleaned, "*"); idx > 0 {
		potentialRef := cleaned[idx+1:]
		if len(potentialRef) <= 6 && isNumeric(potentialRef) {
			cleaned = strings.TrimSpace(cleaned[:idx])
		}
	}

	// Title case for cleaner display
	return toTitleCase(cleaned)
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(string(word[0])) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}
