package categorization

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// FuzzyMatchResult represents a fuzzy match with its similarity score
type FuzzyMatchResult struct {
	Keyword  string // The rule keyword that matched
	Category string
	Event    string
	RuleID   *uuid.UUID
	Score    int // Similarity score (higher = better match, max 100)
	Distance int // Levenshtein distance (lower = closer match)
}

// FuzzyMatcher provides fuzzy string matching using Levenshtein distance.
// It catches descriptions the exact engine misses, mostly OCR damage like
// "M1NIBUS H1RE" for "minibus hire" and bank truncations like "BUNKHOUSE DEP".
type FuzzyMatcher struct {
	patterns []fuzzyPattern
	mu       sync.RWMutex
}

type fuzzyPattern struct {
	normalized string // Uppercase, trimmed keyword for matching
	category   string
	event      string
	ruleID     *uuid.UUID
	priority   int
}

// NewFuzzyMatcher creates a new fuzzy matcher from rules
func NewFuzzyMatcher(rules []CategoryRule) *FuzzyMatcher {
	fm := &FuzzyMatcher{}
	fm.Build(rules)
	return fm
}

// Build constructs the fuzzy matcher from rules
func (fm *FuzzyMatcher) Build(rules []CategoryRule) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.patterns = make([]fuzzyPattern, 0, len(rules))

	for _, rule := range rules {
		normalized := strings.ToUpper(strings.TrimSpace(rule.Keyword))
		if normalized == "" {
			continue
		}

		ruleID := rule.ID
		fm.patterns = append(fm.patterns, fuzzyPattern{
			normalized: normalized,
			category:   rule.Category,
			event:      rule.Event,
			ruleID:     &ruleID,
			priority:   rule.Priority,
		})
	}
}

// Match finds the best fuzzy match for the given description.
// Returns nil if no match meets the minimum threshold.
// The threshold is a similarity score (0-100), where 100 is a perfect match.
func (fm *FuzzyMatcher) Match(description string, threshold int) *FuzzyMatchResult {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	if len(fm.patterns) == 0 {
		return nil
	}

	normalized := strings.ToUpper(description)

	var bestMatch *FuzzyMatchResult
	bestScore := threshold - 1
	bestPriority := 0

	for _, p := range fm.patterns {
		score := fuzzyScore(normalized, p.normalized)

		if score > bestScore || (score == bestScore && bestMatch != nil && p.priority > bestPriority) {
			bestScore = score
			bestPriority = p.priority
			bestMatch = &FuzzyMatchResult{
				Keyword:  p.normalized,
				Category: p.category,
				Event:    p.event,
				RuleID:   p.ruleID,
				Score:    score,
				Distance: levenshteinDistance(normalized, p.normalized),
			}
		}
	}

	return bestMatch
}

// MatchAll finds all fuzzy matches above the threshold, sorted by score (highest first)
func (fm *FuzzyMatcher) MatchAll(description string, threshold int) []FuzzyMatchResult {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	if len(fm.patterns) == 0 {
		return nil
	}

	normalized := strings.ToUpper(description)
	var results []FuzzyMatchResult

	for _, p := range fm.patterns {
		score := fuzzyScore(normalized, p.normalized)
		if score >= threshold {
			results = append(results, FuzzyMatchResult{
				Keyword:  p.normalized,
				Category: p.category,
				Event:    p.event,
				RuleID:   p.ruleID,
				Score:    score,
				Distance: levenshteinDistance(normalized, p.normalized),
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

// FindSimilarDescriptions groups similar statement descriptions together,
// consolidating variations like "MINIBUS HIRE 001" and "MINIBUS HIRE 002"
// so the treasurer can create one rule covering the whole group.
func (fm *FuzzyMatcher) FindSimilarDescriptions(descriptions []string, threshold int) map[string][]string {
	groups := make(map[string][]string)
	assigned := make(map[int]bool)

	for i, desc := range descriptions {
		if assigned[i] {
			continue
		}

		// This description becomes the canonical form for its group
		group := []string{desc}
		assigned[i] = true

		for j := i + 1; j < len(descriptions); j++ {
			if assigned[j] {
				continue
			}

			score := fuzzyScore(strings.ToUpper(desc), strings.ToUpper(descriptions[j]))
			if score >= threshold {
				group = append(group, descriptions[j])
				assigned[j] = true
			}
		}

		groups[desc] = group
	}

	return groups
}

// RankMatches returns the rule keywords ranked by similarity to the input,
// used for rule suggestions in the dashboard.
func (fm *FuzzyMatcher) RankMatches(description string, limit int) []FuzzyMatchResult {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	if len(fm.patterns) == 0 {
		return nil
	}

	normalized := strings.ToUpper(description)
	results := make([]FuzzyMatchResult, 0, len(fm.patterns))

	for _, p := range fm.patterns {
		results = append(results, FuzzyMatchResult{
			Keyword:  p.normalized,
			Category: p.category,
			Event:    p.event,
			RuleID:   p.ruleID,
			Score:    fuzzyScore(normalized, p.normalized),
			Distance: levenshteinDistance(normalized, p.normalized),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}

	return results
}

// PatternCount returns the number of keywords in the matcher
func (fm *FuzzyMatcher) PatternCount() int {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return len(fm.patterns)
}

// fuzzyScore calculates a similarity score between two strings (0-100)
// using containment checks, Levenshtein distance, and fuzzy subsequence
// ranking, whichever scores best.
func fuzzyScore(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}

	// Containment is the common case for statement descriptions: the rule
	// keyword plus branch numbers or references around it.
	if strings.Contains(s1, s2) {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) {
		return 75 + (25 * len(s1) / len(s2))
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := max(len(s1), len(s2))
	if maxLen == 0 {
		return 0
	}

	levenshteinScore := 100 * (maxLen - distance) / maxLen

	// Subsequence rank: lower rank means the keyword matches earlier
	rank := fuzzy.RankMatch(s2, s1)
	fuzzyLibScore := 0
	if rank >= 0 && rank < len(s1) {
		fuzzyLibScore = 60 - (rank * 40 / len(s1))
	}

	return max(levenshteinScore, fuzzyLibScore)
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	lenR1 := len(r1)
	lenR2 := len(r2)

	// Two rows instead of the full matrix
	prev := make([]int, lenR2+1)
	curr := make([]int, lenR2+1)

	for j := 0; j <= lenR2; j++ {
		prev[j] = j
	}

	for i := 1; i <= lenR1; i++ {
		curr[0] = i
		for j := 1; j <= lenR2; j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[lenR2]
}
