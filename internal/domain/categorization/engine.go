package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/google/uuid"
)

// MatchResult represents a single keyword match with its rule metadata
type MatchResult struct {
	Keyword  string // The rule keyword that matched
	Category string
	Event    string
	RuleID   *uuid.UUID
	Priority int // Higher priority matches take precedence
}

// Engine is a pattern matching engine using the Aho-Corasick algorithm.
// It matches every rule keyword in a single pass through the description,
// so categorizing a statement of thousands of rows stays linear in the
// text length regardless of how many rules the club accumulates.
type Engine struct {
	matcher  *ahocorasick.Matcher
	keywords []string // Unique keywords in same order as matcher
	metadata [][]MatchResult
	mu       sync.RWMutex // Protects rebuilding the matcher
}

// NewEngine creates a new categorization engine from rules.
func NewEngine(rules []CategoryRule) *Engine {
	e := &Engine{}
	e.Build(rules)
	return e
}

// Build constructs the Aho-Corasick matcher from rules. Call it again to
// rebuild when the rule set changes. Keywords that normalize to the same
// string share a metadata group.
func (e *Engine) Build(rules []CategoryRule) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(rules) == 0 {
		e.matcher = nil
		e.keywords = nil
		e.metadata = nil
		return
	}

	keywordToIndex := make(map[string]int)
	keywords := make([]string, 0, len(rules))
	metadata := make([][]MatchResult, 0, len(rules))

	for _, rule := range rules {
		normalized := strings.ToUpper(strings.TrimSpace(rule.Keyword))
		if normalized == "" {
			continue
		}

		ruleID := rule.ID
		result := MatchResult{
			Keyword:  rule.Keyword,
			Category: rule.Category,
			Event:    rule.Event,
			RuleID:   &ruleID,
			Priority: rule.Priority,
		}

		if idx, exists := keywordToIndex[normalized]; exists {
			metadata[idx] = append(metadata[idx], result)
		} else {
			keywordToIndex[normalized] = len(keywords)
			keywords = append(keywords, normalized)
			metadata = append(metadata, []MatchResult{result})
		}
	}

	e.keywords = keywords
	e.metadata = metadata

	if len(keywords) > 0 {
		byteKeywords := make([][]byte, len(keywords))
		for i, k := range keywords {
			byteKeywords[i] = []byte(k)
		}
		e.matcher = ahocorasick.NewMatcher(byteKeywords)
	} else {
		e.matcher = nil
	}
}

// Match finds all matching keywords in the description and returns the best
// one: highest priority, then longest keyword, then lexicographically first.
// Returns nil if nothing matches.
func (e *Engine) Match(description string) *MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.matchLocked(description)
}

func (e *Engine) matchLocked(description string) *MatchResult {
	if e.matcher == nil || len(e.keywords) == 0 {
		return nil
	}

	normalizedInput := strings.ToUpper(description)

	matches := e.matcher.Match([]byte(normalizedInput))
	if len(matches) == 0 {
		return nil
	}

	var best *MatchResult
	for _, idx := range matches {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		for i := range e.metadata[idx] {
			candidate := &e.metadata[idx][i]
			if best == nil || better(candidate, best) {
				candidateCopy := *candidate
				best = &candidateCopy
			}
		}
	}

	return best
}

// better reports whether a should win over b.
func better(a, b *MatchResult) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if len(a.Keyword) != len(b.Keyword) {
		return len(a.Keyword) > len(b.Keyword)
	}
	return a.Keyword < b.Keyword
}

// MatchAll finds all matching keywords in the description, best first.
func (e *Engine) MatchAll(description string) []MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.matcher == nil || len(e.keywords) == 0 {
		return nil
	}

	normalizedInput := strings.ToUpper(description)
	matches := e.matcher.Match([]byte(normalizedInput))
	if len(matches) == 0 {
		return nil
	}

	results := make([]MatchResult, 0, len(matches))
	for _, idx := range matches {
		if idx >= 0 && idx < len(e.metadata) {
			results = append(results, e.metadata[idx]...)
		}
	}

	// Insertion sort keeps this simple for the small slices involved
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && better(&results[j], &results[j-1]); j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}

	return results
}

// MatchBatch categorizes multiple descriptions under a single lock, for
// bulk statement imports.
func (e *Engine) MatchBatch(descriptions []string) []*MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	results := make([]*MatchResult, len(descriptions))

	if e.matcher == nil || len(e.keywords) == 0 {
		return results
	}

	for i, desc := range descriptions {
		results[i] = e.matchLocked(desc)
	}

	return results
}

// KeywordCount returns the number of distinct keywords loaded in the engine.
func (e *Engine) KeywordCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.keywords)
}

// IsEmpty returns true if the engine has no keywords loaded.
func (e *Engine) IsEmpty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matcher == nil || len(e.keywords) == 0
}
