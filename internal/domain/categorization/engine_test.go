package categorization

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test basic matching functionality
func TestEngine_Match(t *testing.T) {
	rules := []CategoryRule{
		{
			ID:       uuid.New(),
			Keyword:  "minibus",
			Category: "Transport",
			Event:    "General",
		},
		{
			ID:       uuid.New(),
			Keyword:  "bunkhouse",
			Category: "Accommodation",
			Event:    "General",
		},
	}

	engine := NewEngine(rules)

	t.Run("matches keyword in description", func(t *testing.T) {
		result := engine.Match("CARD PAYMENT TO UNIVERSITY MINIBUS HIRE LEEDS GB")
		require.NotNil(t, result)
		assert.Equal(t, "minibus", result.Keyword)
		assert.Equal(t, "Transport", result.Category)
		assert.NotNil(t, result.RuleID)
	})

	t.Run("returns nil for no match", func(t *testing.T) {
		result := engine.Match("RANDOM TRANSACTION WITH NO MATCH")
		assert.Nil(t, result)
	})

	t.Run("case insensitive matching", func(t *testing.T) {
		result := engine.Match("payment for Bunkhouse deposit")
		require.NotNil(t, result)
		assert.Equal(t, "Accommodation", result.Category)
	})

	t.Run("carries the rule event", func(t *testing.T) {
		result := engine.Match("MINIBUS FUEL")
		require.NotNil(t, result)
		assert.Equal(t, "General", result.Event)
	})
}

// Test priority handling
func TestEngine_Priority(t *testing.T) {
	rules := []CategoryRule{
		{
			ID:       uuid.New(),
			Keyword:  "welsh",
			Category: "Trip Fees",
			Event:    "General",
			Priority: 0,
		},
		{
			ID:       uuid.New(),
			Keyword:  "welsh 3000s",
			Category: "Trip Fees",
			Event:    "Welsh 3000s",
			Priority: 30,
		},
	}

	engine := NewEngine(rules)
	result := engine.Match("WELSH 3000S CHALLENGE DEPOSIT")

	require.NotNil(t, result)
	assert.Equal(t, "welsh 3000s", result.Keyword)
	assert.Equal(t, "Welsh 3000s", result.Event)
}

// Test tie-breaking at equal priority
func TestEngine_LongestKeywordWins(t *testing.T) {
	rules := []CategoryRule{
		{
			ID:       uuid.New(),
			Keyword:  "first aid",
			Category: "Training",
			Event:    "General",
			Priority: 20,
		},
		{
			ID:       uuid.New(),
			Keyword:  "first aid kit",
			Category: "Equipment",
			Event:    "General",
			Priority: 20,
		},
	}

	engine := NewEngine(rules)
	result := engine.Match("FIRST AID KIT RESTOCK COTSWOLD")

	require.NotNil(t, result)
	assert.Equal(t, "first aid kit", result.Keyword)
	assert.Equal(t, "Equipment", result.Category)
}

// Test MatchAll returns everything the description contains, best first
func TestEngine_MatchAll(t *testing.T) {
	rules := []CategoryRule{
		{ID: uuid.New(), Keyword: "minibus", Category: "Transport", Event: "General", Priority: 0},
		{ID: uuid.New(), Keyword: "snowdon", Category: "Trip Fees", Event: "Snowdonia", Priority: 30},
	}

	engine := NewEngine(rules)
	results := engine.MatchAll("MINIBUS HIRE FOR SNOWDON WEEKEND")

	require.Len(t, results, 2)
	assert.Equal(t, "snowdon", results[0].Keyword)
	assert.Equal(t, "minibus", results[1].Keyword)
}

// Test batch matching
func TestEngine_MatchBatch(t *testing.T) {
	rules := []CategoryRule{
		{ID: uuid.New(), Keyword: "minibus", Category: "Transport", Event: "General"},
		{ID: uuid.New(), Keyword: "membership", Category: "Membership", Event: "General"},
	}

	engine := NewEngine(rules)

	descriptions := []string{
		"MINIBUS HIRE WK1",
		"RANDOM SHOP",
		"MEMBERSHIP J SMITH",
		"ANOTHER RANDOM",
		"MINIBUS FUEL ESSO",
	}

	results := engine.MatchBatch(descriptions)

	assert.Len(t, results, 5)
	require.NotNil(t, results[0])
	assert.Equal(t, "Transport", results[0].Category)
	assert.Nil(t, results[1])
	require.NotNil(t, results[2])
	assert.Equal(t, "Membership", results[2].Category)
	assert.Nil(t, results[3])
	require.NotNil(t, results[4])
	assert.Equal(t, "Transport", results[4].Category)
}

// Test empty engine
func TestEngine_Empty(t *testing.T) {
	engine := NewEngine(nil)

	assert.True(t, engine.IsEmpty())
	assert.Equal(t, 0, engine.KeywordCount())
	assert.Nil(t, engine.Match("ANY TEXT"))
}

// Test rebuild functionality
func TestEngine_Rebuild(t *testing.T) {
	engine := NewEngine(nil)
	assert.True(t, engine.IsEmpty())

	// Rebuild with a rule set
	rules := []CategoryRule{
		{ID: uuid.New(), Keyword: "crampon", Category: "Equipment", Event: "Scotland Winter"},
	}
	engine.Build(rules)

	assert.False(t, engine.IsEmpty())
	assert.Equal(t, 1, engine.KeywordCount())
	result := engine.Match("CRAMPON HIRE X4")
	require.NotNil(t, result)
	assert.Equal(t, "Equipment", result.Category)
}

// Test that duplicate keywords keep both rules' metadata
func TestEngine_DuplicateKeywords(t *testing.T) {
	rules := []CategoryRule{
		{ID: uuid.New(), Keyword: "hut fee", Category: "Accommodation", Event: "General", Priority: 0},
		{ID: uuid.New(), Keyword: "HUT FEE", Category: "Trip Fees", Event: "Scotland Winter", Priority: 10},
	}

	engine := NewEngine(rules)
	assert.Equal(t, 1, engine.KeywordCount())

	result := engine.Match("CIC HUT FEE FEB")
	require.NotNil(t, result)
	assert.Equal(t, "Trip Fees", result.Category)
}

// Benchmark: Aho-Corasick matching against a large rule-set
func BenchmarkCategorization(b *testing.B) {
	// Simulate a rule set far larger than a club would accumulate
	rules := make([]CategoryRule, 1000)
	for i := 0; i < 1000; i++ {
		rules[i] = CategoryRule{
			ID:       uuid.New(),
			Keyword:  fmt.Sprintf("keyword_%d", i),
			Category: fmt.Sprintf("Category %d", i),
		}
	}
	// Add a real one to find at position 500
	rules[500] = CategoryRule{
		ID:       uuid.New(),
		Keyword:  "minibus",
		Category: "Transport",
	}

	engine := NewEngine(rules)

	// A typical messy bank string
	input := "CARD PAYMENT TO UNIVERSITY MINIBUS HIRE 27/12/2025 LEEDS GB"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.Match(input)
	}
}

// Benchmark: Naive approach for comparison
func BenchmarkNaiveCategorization(b *testing.B) {
	// Same 1,000 keywords
	keywords := make([]string, 1000)
	for i := 0; i < 1000; i++ {
		keywords[i] = strings.ToUpper(fmt.Sprintf("keyword_%d", i))
	}
	keywords[500] = "MINIBUS"

	input := "CARD PAYMENT TO UNIVERSITY MINIBUS HIRE 27/12/2025 LEEDS GB"
	upperInput := strings.ToUpper(input)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, keyword := range keywords {
			if strings.Contains(upperInput, keyword) {
				break
			}
		}
	}
}

// Benchmark: Batch processing with many transactions
func BenchmarkBatchCategorization(b *testing.B) {
	rules := make([]CategoryRule, 1000)
	for i := 0; i < 1000; i++ {
		rules[i] = CategoryRule{
			ID:       uuid.New(),
			Keyword:  fmt.Sprintf("keyword_%d", i),
			Category: fmt.Sprintf("Category %d", i),
		}
	}
	// Add some real keywords
	rules[100] = CategoryRule{ID: uuid.New(), Keyword: "minibus", Category: "Transport"}
	rules[200] = CategoryRule{ID: uuid.New(), Keyword: "bunkhouse", Category: "Accommodation"}
	rules[300] = CategoryRule{ID: uuid.New(), Keyword: "membership", Category: "Membership"}
	rules[400] = CategoryRule{ID: uuid.New(), Keyword: "bmc", Category: "Affiliation Fees"}

	engine := NewEngine(rules)

	// Simulate a statement import of 100 transactions
	descriptions := make([]string, 100)
	for i := 0; i < 100; i++ {
		switch i % 5 {
		case 0:
			descriptions[i] = "MINIBUS HIRE LEEDS GB"
		case 1:
			descriptions[i] = "BUNKHOUSE DEPOSIT PEN Y PASS"
		case 2:
			descriptions[i] = "MEMBERSHIP J SMITH 2025"
		case 3:
			descriptions[i] = "BMC AFFILIATION ANNUAL"
		default:
			descriptions[i] = fmt.Sprintf("RANDOM PURCHASE %d", i)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = engine.MatchBatch(descriptions)
	}
}

// Benchmark: Scaling with keyword count
func BenchmarkScaling(b *testing.B) {
	keywordCounts := []int{100, 500, 1000, 5000, 10000}

	for _, count := range keywordCounts {
		b.Run(fmt.Sprintf("keywords_%d", count), func(b *testing.B) {
			rules := make([]CategoryRule, count)
			for i := 0; i < count; i++ {
				rules[i] = CategoryRule{
					ID:       uuid.New(),
					Keyword:  fmt.Sprintf("keyword_%d", i),
					Category: fmt.Sprintf("Category %d", i),
				}
			}
			// Keyword to match is at the end
			rules[count-1] = CategoryRule{
				ID:       uuid.New(),
				Keyword:  "minibus",
				Category: "Transport",
			}

			engine := NewEngine(rules)
			input := "CARD PAYMENT TO UNIVERSITY MINIBUS HIRE 27/12/2025 LEEDS GB"

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = engine.Match(input)
			}
		})
	}
}
