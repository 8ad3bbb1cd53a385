package categorization

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// SearchDocument is one transaction as indexed for full-text search
type SearchDocument struct {
	ID          string  `json:"id"`          // Transaction UUID
	Description string  `json:"description"` // Full text for search
	Category    string  `json:"category"`
	Event       string  `json:"event"`
	Type        string  `json:"type"`        // "Income" or "Expense"
	OccurredOn  string  `json:"occurred_on"` // ISO date for exact filters
	Pounds      float64 `json:"pounds"`      // For numeric range queries
}

// SearchResult represents a search hit with relevance score
type SearchResult struct {
	Document SearchDocument
	Score    float64 // Relevance score from Bleve
}

// SearchIndex provides full-text search over the transaction ledger using
// Bleve: the dashboard search box, autocomplete, and "+minibus -fuel" style
// power queries all run against it.
type SearchIndex struct {
	index   bleve.Index
	indexMu sync.RWMutex
	path    string // Path to index storage (empty for in-memory)
}

// NewSearchIndex creates a new search index.
// If path is empty, creates an in-memory index.
// If path is provided, creates/opens a persistent index.
func NewSearchIndex(path string) (*SearchIndex, error) {
	si := &SearchIndex{path: path}

	var index bleve.Index
	var err error

	indexMapping := buildIndexMapping()

	if path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
	} else {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
				return nil, fmt.Errorf("failed to create index directory: %w", mkdirErr)
			}
			index, err = bleve.New(path, indexMapping)
		} else {
			index, err = bleve.Open(path)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	si.index = index
	return si, nil
}

// buildIndexMapping creates the Bleve index mapping for transaction documents
func buildIndexMapping() mapping.IndexMapping {
	// Text field mapping for full-text search on descriptions
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	// Keyword field mapping for exact filters
	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	// Numeric field mapping for amount range queries
	numericFieldMapping := bleve.NewNumericFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("category", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("event", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("type", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("occurred_on", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("pounds", numericFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name

	return indexMapping
}

// IndexTransactions indexes a batch of transactions for search
func (si *SearchIndex) IndexTransactions(docs []SearchDocument) error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	batch := si.index.NewBatch()

	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("failed to index transaction %s: %w", doc.ID, err)
		}
	}

	if err := si.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}

	return nil
}

// Search performs a full-text search and returns matching transactions
func (si *SearchIndex) Search(query string, limit int) ([]SearchResult, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	// Match query handles tokenization; fuzziness 1 tolerates typos
	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1)

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"*"}

	searchResults, err := si.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return si.convertResults(searchResults)
}

// SearchWithPrefix performs a prefix search (autocomplete style)
func (si *SearchIndex) SearchWithPrefix(prefix string, limit int) ([]SearchResult, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	prefixQuery := bleve.NewPrefixQuery(prefix)

	searchRequest := bleve.NewSearchRequest(prefixQuery)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"*"}

	searchResults, err := si.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("prefix search failed: %w", err)
	}

	return si.convertResults(searchResults)
}

// SearchFuzzy performs a fuzzy search with configurable edit distance
func (si *SearchIndex) SearchFuzzy(query string, fuzziness int, limit int) ([]SearchResult, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	if fuzziness < 0 {
		fuzziness = 0
	}
	if fuzziness > 2 {
		fuzziness = 2 // Bleve max
	}

	fuzzyQuery := bleve.NewFuzzyQuery(query)
	fuzzyQuery.SetFuzziness(fuzziness)

	searchRequest := bleve.NewSearchRequest(fuzzyQuery)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"*"}

	searchResults, err := si.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("fuzzy search failed: %w", err)
	}

	return si.convertResults(searchResults)
}

// SearchAdvanced performs a complex query with boolean logic.
// Example: "+minibus -fuel" (must mention minibus, must not mention fuel)
func (si *SearchIndex) SearchAdvanced(queryString string, limit int) ([]SearchResult, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	query := bleve.NewQueryStringQuery(queryString)

	searchRequest := bleve.NewSearchRequest(query)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"*"}

	searchResults, err := si.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("advanced search failed: %w", err)
	}

	return si.convertResults(searchResults)
}

// SearchByCategory finds all transactions in a category
func (si *SearchIndex) SearchByCategory(category string, limit int) ([]SearchResult, error) {
	return si.searchByTerm("category", category, limit)
}

// SearchByEvent finds all transactions for a club event
func (si *SearchIndex) SearchByEvent(event string, limit int) ([]SearchResult, error) {
	return si.searchByTerm("event", event, limit)
}

func (si *SearchIndex) searchByTerm(field, term string, limit int) ([]SearchResult, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	termQuery := bleve.NewTermQuery(term)
	termQuery.SetField(field)

	searchRequest := bleve.NewSearchRequest(termQuery)
	searchRequest.Size = limit
	searchRequest.Fields = []string{"*"}

	searchResults, err := si.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("%s search failed: %w", field, err)
	}

	return si.convertResults(searchResults)
}

// convertResults converts Bleve search results to our SearchResult type
func (si *SearchIndex) convertResults(searchResults *bleve.SearchResult) ([]SearchResult, error) {
	results := make([]SearchResult, 0, len(searchResults.Hits))

	for _, hit := range searchResults.Hits {
		doc := SearchDocument{
			ID: hit.ID,
		}

		if description, ok := hit.Fields["description"].(string); ok {
			doc.Description = description
		}
		if category, ok := hit.Fields["category"].(string); ok {
			doc.Category = category
		}
		if event, ok := hit.Fields["event"].(string); ok {
			doc.Event = event
		}
		if txType, ok := hit.Fields["type"].(string); ok {
			doc.Type = txType
		}
		if occurredOn, ok := hit.Fields["occurred_on"].(string); ok {
			doc.OccurredOn = occurredOn
		}
		if pounds, ok := hit.Fields["pounds"].(float64); ok {
			doc.Pounds = pounds
		}

		results = append(results, SearchResult{
			Document: doc,
			Score:    hit.Score,
		})
	}

	return results, nil
}

// Clear removes all documents from the index
func (si *SearchIndex) Clear() error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	query := bleve.NewMatchAllQuery()
	searchRequest := bleve.NewSearchRequest(query)
	searchRequest.Size = 10000 // Reasonable batch size

	searchResults, err := si.index.Search(searchRequest)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	batch := si.index.NewBatch()
	for _, hit := range searchResults.Hits {
		batch.Delete(hit.ID)
	}

	if err := si.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return nil
}

// Close closes the index
func (si *SearchIndex) Close() error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	if si.index != nil {
		return si.index.Close()
	}
	return nil
}

// DocumentCount returns the number of documents in the index
func (si *SearchIndex) DocumentCount() (uint64, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	return si.index.DocCount()
}

// IndexDocument adds or updates a single document
func (si *SearchIndex) IndexDocument(doc SearchDocument) error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	return si.index.Index(doc.ID, doc)
}

// DeleteDocument removes a document by ID
func (si *SearchIndex) DeleteDocument(id string) error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	return si.index.Delete(id)
}
