package categorization

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchIndex_InMemory(t *testing.T) {
	// Create in-memory index
	index, err := NewSearchIndex("")
	require.NoError(t, err)
	defer index.Close()

	docs := []SearchDocument{
		{
			ID:          uuid.New().String(),
			Description: "Minibus Hire Snowdonia",
			Category:    "Transport",
			Event:       "Snowdonia",
			Type:        "Expense",
			OccurredOn:  "2025-10-12",
			Pounds:      240.00,
		},
		{
			ID:          uuid.New().String(),
			Description: "Bunkhouse Deposit Pen Y Pass",
			Category:    "Accommodation",
			Event:       "Snowdonia",
			Type:        "Expense",
			OccurredOn:  "2025-10-14",
			Pounds:      180.00,
		},
		{
			ID:          uuid.New().String(),
			Description: "Membership J Smith",
			Category:    "Membership",
			Event:       "General",
			Type:        "Income",
			OccurredOn:  "2025-09-30",
			Pounds:      25.00,
		},
	}

	// Index documents
	err = index.IndexTransactions(docs)
	require.NoError(t, err)

	// Verify document count
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	t.Run("basic search", func(t *testing.T) {
		results, err := index.Search("minibus", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Minibus Hire Snowdonia", results[0].Document.Description)
		assert.Equal(t, "Transport", results[0].Document.Category)
		assert.Equal(t, 240.00, results[0].Document.Pounds)
	})

	t.Run("fuzzy search with typo", func(t *testing.T) {
		results, err := index.SearchFuzzy("minibs", 1, 10) // Missing 'u'
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(results), 1)
		assert.Equal(t, "Transport", results[0].Document.Category)
	})

	t.Run("prefix search", func(t *testing.T) {
		results, err := index.SearchWithPrefix("bunk", 10)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(results), 1)
		assert.Equal(t, "Accommodation", results[0].Document.Category)
	})

	t.Run("search by category", func(t *testing.T) {
		results, err := index.SearchByCategory("Transport", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Minibus Hire Snowdonia", results[0].Document.Description)
	})

	t.Run("search by event", func(t *testing.T) {
		results, err := index.SearchByEvent("Snowdonia", 10)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("advanced boolean search", func(t *testing.T) {
		// Add more documents for boolean testing
		index.IndexDocument(SearchDocument{
			ID:          "minibus_hire_peaks",
			Description: "Minibus Hire Peak District",
			Category:    "Transport",
			Event:       "Peak District",
			Type:        "Expense",
		})
		index.IndexDocument(SearchDocument{
			ID:          "minibus_fuel",
			Description: "Minibus Fuel Esso",
			Category:    "Transport",
			Event:       "General",
			Type:        "Expense",
		})

		// Minibus costs that are not fuel
		results, err := index.SearchAdvanced("minibus -fuel", 10)
		require.NoError(t, err)

		for _, r := range results {
			assert.NotContains(t, r.Document.Description, "Fuel")
		}
	})
}

func TestSearchIndex_IndexAndDelete(t *testing.T) {
	index, err := NewSearchIndex("")
	require.NoError(t, err)
	defer index.Close()

	doc := SearchDocument{
		ID:          "test_doc",
		Description: "Crampon Hire",
		Category:    "Equipment",
		Event:       "Scotland Winter",
		Type:        "Expense",
	}

	// Index document
	err = index.IndexDocument(doc)
	require.NoError(t, err)

	// Verify it's indexed
	count, _ := index.DocumentCount()
	assert.Equal(t, uint64(1), count)

	// Delete document
	err = index.DeleteDocument("test_doc")
	require.NoError(t, err)

	// Verify it's deleted
	count, _ = index.DocumentCount()
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Clear(t *testing.T) {
	index, err := NewSearchIndex("")
	require.NoError(t, err)
	defer index.Close()

	// Index some documents
	docs := []SearchDocument{
		{ID: uuid.New().String(), Description: "A", Type: "Expense"},
		{ID: uuid.New().String(), Description: "B", Type: "Expense"},
		{ID: uuid.New().String(), Description: "C", Type: "Income"},
	}
	err = index.IndexTransactions(docs)
	require.NoError(t, err)

	count, _ := index.DocumentCount()
	assert.Equal(t, uint64(3), count)

	// Clear index
	err = index.Clear()
	require.NoError(t, err)

	count, _ = index.DocumentCount()
	assert.Equal(t, uint64(0), count)
}

// Benchmark search operations
func BenchmarkSearch(b *testing.B) {
	index, _ := NewSearchIndex("")
	defer index.Close()

	// Index 1000 transactions
	docs := make([]SearchDocument, 1000)
	for i := 0; i < 1000; i++ {
		docs[i] = SearchDocument{
			ID:          uuid.New().String(),
			Description: fmt.Sprintf("Transaction %d", i),
			Category:    "Uncategorized",
			Event:       "General",
			Type:        "Expense",
			Pounds:      float64(i),
		}
	}
	// Add specific transactions
	docs[500] = SearchDocument{ID: uuid.New().String(), Description: "Minibus Hire Snowdonia", Category: "Transport", Event: "Snowdonia", Type: "Expense"}
	docs[600] = SearchDocument{ID: uuid.New().String(), Description: "Bunkhouse Deposit", Category: "Accommodation", Event: "General", Type: "Expense"}

	index.IndexTransactions(docs)

	b.ResetTimer()

	b.Run("BasicSearch", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = index.Search("minibus", 10)
		}
	})

	b.Run("FuzzySearch", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = index.SearchFuzzy("minibs", 1, 10)
		}
	})

	b.Run("PrefixSearch", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = index.SearchWithPrefix("mini", 10)
		}
	})

	b.Run("AdvancedSearch", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = index.SearchAdvanced("minibus -fuel", 10)
		}
	})
}

func BenchmarkIndexing(b *testing.B) {
	b.Run("Index1000Transactions", func(b *testing.B) {
		docs := make([]SearchDocument, 1000)
		for i := 0; i < 1000; i++ {
			docs[i] = SearchDocument{
				ID:          uuid.New().String(),
				Description: fmt.Sprintf("Transaction %d", i),
				Category:    "Uncategorized",
				Event:       "General",
				Type:        "Expense",
			}
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			index, _ := NewSearchIndex("")
			_ = index.IndexTransactions(docs)
			index.Close()
		}
	})
}

// Compare all three matching approaches on the same data
func BenchmarkCompare_All_Approaches(b *testing.B) {
	rules := make([]CategoryRule, 1000)
	for i := 0; i < 1000; i++ {
		rules[i] = CategoryRule{
			ID:       uuid.New(),
			Keyword:  fmt.Sprintf("keyword_%d", i),
			Category: fmt.Sprintf("Category %d", i),
		}
	}
	rules[500] = CategoryRule{ID: uuid.New(), Keyword: "minibus", Category: "Transport"}

	docs := make([]SearchDocument, 1000)
	for i := 0; i < 1000; i++ {
		docs[i] = SearchDocument{
			ID:          uuid.New().String(),
			Description: fmt.Sprintf("Transaction %d", i),
			Type:        "Expense",
		}
	}
	docs[500] = SearchDocument{ID: uuid.New().String(), Description: "Minibus Hire", Category: "Transport", Type: "Expense"}

	// Setup engines
	engine := NewEngine(rules)
	fuzzyMatcher := NewFuzzyMatcher(rules)
	searchIndex, _ := NewSearchIndex("")
	searchIndex.IndexTransactions(docs)
	defer searchIndex.Close()

	input := "MINIBUS HIRE SNOWDONIA"

	b.Run("AhoCorasick_Exact", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = engine.Match(input)
		}
	})

	b.Run("FuzzyMatcher_70", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = fuzzyMatcher.Match(input, 70)
		}
	})

	b.Run("Bleve_Search", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = searchIndex.Search("minibus", 1)
		}
	})

	b.Run("Bleve_FuzzySearch", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = searchIndex.SearchFuzzy("minibus", 1, 1)
		}
	})
}
