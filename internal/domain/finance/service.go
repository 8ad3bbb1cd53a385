package finance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/UMHC/umhc-finance/internal/domain/categorization"
)

const (
	topGroupLimit      = 5
	defaultTrendMonths = 12
	maxTrendMonths     = 60
)

// Classifier assigns a category and event to a description. The
// categorization service implements it.
type Classifier interface {
	Categorize(ctx context.Context, description string) (*categorization.CategorizationResult, error)
}

// Service wires the ledger store to categorization and search. The
// classifier and search index are optional: a nil classifier leaves
// entries uncategorized, a nil index disables the dashboard search box.
type Service struct {
	repo       *Repository
	classifier Classifier
	search     *categorization.SearchIndex
	parser     *QuickAddParser
	logger     *slog.Logger
}

// NewService creates a new finance service
func NewService(repo *Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		parser: NewQuickAddParser(),
		logger: logger,
	}
}

// WithClassifier adds rule-based categorization to manual and quick-add
// entries.
func (s *Service) WithClassifier(classifier Classifier) *Service {
	s.classifier = classifier
	return s
}

// WithSearchIndex adds the bleve-backed dashboard search.
func (s *Service) WithSearchIndex(index *categorization.SearchIndex) *Service {
	s.search = index
	return s
}

// List returns one page of ledger rows.
func (s *Service) List(ctx context.Context, filter TransactionFilter) (*TransactionPage, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, filter)
}

// Get returns one ledger row, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// Summary computes the dashboard headline for an optional YYYY-MM month.
// An empty month covers the whole ledger.
func (s *Service) Summary(ctx context.Context, month string) (*DashboardSummary, error) {
	filter := TransactionFilter{Month: month}
	if err := filter.validate(); err != nil {
		return nil, err
	}

	summary, err := s.repo.SummaryTotals(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary.TopCategories, err = s.repo.TotalsByCategory(ctx, filter, topGroupLimit)
	if err != nil {
		return nil, err
	}

	summary.TopEvents, err = s.repo.TotalsByEvent(ctx, filter, topGroupLimit)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// Trend returns the monthly income/expense series, oldest month first.
func (s *Service) Trend(ctx context.Context, months int) ([]MonthlyPoint, error) {
	if months <= 0 {
		months = defaultTrendMonths
	}
	if months > maxTrendMonths {
		months = maxTrendMonths
	}
	return s.repo.MonthlyTrend(ctx, months)
}

// Search runs the dashboard search box query against the bleve index.
// Advanced queries use bleve query string syntax ("minibus -fuel").
func (s *Service) Search(ctx context.Context, query string, limit int, advanced bool) ([]categorization.SearchResult, error) {
	if s.search == nil {
		return nil, ErrSearchUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrInvalidInput)
	}
	if advanced {
		return s.search.SearchAdvanced(query, limit)
	}
	return s.search.Search(query, limit)
}

// QuickAdd parses a shorthand line, categorizes it, and writes it to the
// ledger. The entry lands with source "quickadd" and full confidence: a
// human typed it.
func (s *Service) QuickAdd(ctx context.Context, text string) (*Transaction, error) {
	entry := s.parser.Parse(text)
	if entry.AmountPence <= 0 {
		return nil, fmt.Errorf("%w: no amount in %q", ErrInvalidInput, text)
	}
	if entry.Description == "" {
		return nil, fmt.Errorf("%w: no description in %q", ErrInvalidInput, text)
	}

	tx := &Transaction{
		OccurredOn:  entry.OccurredOn,
		Description: entry.Description,
		AmountPence: entry.AmountPence,
		Type:        entry.Type,
		Category:    categorization.DefaultCategory,
		Event:       categorization.DefaultEvent,
		Confidence:  1.0,
		Source:      SourceQuickAdd,
	}
	s.categorize(ctx, tx)

	inserted, err := s.repo.InsertTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ErrDuplicateTransaction
	}

	s.indexTransaction(tx)
	s.logger.Info("quick-add recorded",
		slog.String("description", tx.Description),
		slog.Int64("amount_pence", tx.AmountPence),
		slog.String("type", tx.Type))
	return tx, nil
}

// CreateManual validates and writes a hand-entered transaction. Category
// and event fall back to the rule engine when not supplied.
func (s *Service) CreateManual(ctx context.Context, input ManualTransactionInput) (*Transaction, error) {
	if input.OccurredOn.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if input.AmountPence <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if input.Type != TypeIncome && input.Type != TypeExpense {
		return nil, fmt.Errorf("%w: type must be %s or %s", ErrInvalidInput, TypeIncome, TypeExpense)
	}

	tx := &Transaction{
		OccurredOn:  input.OccurredOn,
		Description: strings.TrimSpace(input.Description),
		AmountPence: input.AmountPence,
		Type:        input.Type,
		Category:    categorization.DefaultCategory,
		Event:       categorization.DefaultEvent,
		Confidence:  1.0,
		Source:      SourceManual,
	}
	if input.Category == "" || input.Event == "" {
		s.categorize(ctx, tx)
	}
	if input.Category != "" {
		tx.Category = input.Category
	}
	if input.Event != "" {
		tx.Event = input.Event
	}

	inserted, err := s.repo.InsertTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ErrDuplicateTransaction
	}

	s.indexTransaction(tx)
	return tx, nil
}

// Delete removes one transaction and its search document.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		if err := s.search.DeleteDocument(id.String()); err != nil {
			s.logger.Warn("search index delete failed",
				slog.String("id", id.String()),
				slog.Any("error", err))
		}
	}
	return nil
}

// DeleteImportBatch removes every transaction from one import job, then
// rebuilds the search index to drop their documents.
func (s *Service) DeleteImportBatch(ctx context.Context, jobID uuid.UUID) (int64, error) {
	deleted, err := s.repo.DeleteByImportJob(ctx, jobID)
	if err != nil {
		return 0, err
	}

	if deleted > 0 && s.search != nil {
		if _, err := s.Reindex(ctx); err != nil {
			s.logger.Warn("search reindex after batch delete failed", slog.Any("error", err))
		}
	}

	s.logger.Info("import batch deleted",
		slog.String("import_job_id", jobID.String()),
		slog.Int64("transactions", deleted))
	return deleted, nil
}

// Reindex rebuilds the search index from the ledger. The nightly cron and
// batch deletes call it.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, ErrSearchUnavailable
	}

	txs, err := s.repo.ListAllTransactions(ctx, TransactionFilter{})
	if err != nil {
		return 0, err
	}

	if err := s.search.Clear(); err != nil {
		return 0, err
	}

	docs := make([]categorization.SearchDocument, len(txs))
	for i := range txs {
		docs[i] = searchDocument(&txs[i])
	}
	if err := s.search.IndexTransactions(docs); err != nil {
		return 0, err
	}

	s.logger.Info("search index rebuilt", slog.Int("documents", len(docs)))
	return len(docs), nil
}

// ExportCSV renders the filtered ledger as the published dashboard CSV
// (Date, Description, Category, Event, Cash In, Cash Out), oldest first.
func (s *Service) ExportCSV(ctx context.Context, filter TransactionFilter) ([]byte, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}

	txs, err := s.repo.ListAllTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	rows := make([]*ExportRow, len(txs))
	for i := range txs {
		rows[i] = exportRow(&txs[i])
	}
	return gocsv.MarshalBytes(&rows)
}

// categorize fills category and event from the rule engine. Failures leave
// the entry uncategorized rather than blocking the write.
func (s *Service) categorize(ctx context.Context, tx *Transaction) {
	if s.classifier == nil {
		return
	}
	result, err := s.classifier.Categorize(ctx, tx.Description)
	if err != nil {
		s.logger.Warn("categorization failed",
			slog.String("description", tx.Description),
			slog.Any("error", err))
		return
	}
	tx.Category = result.Category
	tx.Event = result.Event
}

// indexTransaction mirrors a write into the search index. Index failures
// are logged, not returned: the ledger row is already committed.
func (s *Service) indexTransaction(tx *Transaction) {
	if s.search == nil {
		return
	}
	if err := s.search.IndexDocument(searchDocument(tx)); err != nil {
		s.logger.Warn("search index update failed",
			slog.String("id", tx.ID.String()),
			slog.Any("error", err))
	}
}

// searchDocument converts a ledger row to its index form.
func searchDocument(tx *Transaction) categorization.SearchDocument {
	return categorization.SearchDocument{
		ID:          tx.ID.String(),
		Description: tx.Description,
		Category:    tx.Category,
		Event:       tx.Event,
		Type:        tx.Type,
		OccurredOn:  tx.OccurredOn.Format("2006-01-02"),
		Pounds:      float64(tx.AmountPence) / 100,
	}
}

// exportRow formats one transaction for the published CSV.
func exportRow(tx *Transaction) *ExportRow {
	row := &ExportRow{
		Date:        tx.OccurredOn.Format("02/01/2006"),
		Description: tx.Description,
		Category:    tx.Category,
		Event:       tx.Event,
	}
	pounds := decimal.New(tx.AmountPence, -2).StringFixed(2)
	if tx.Type == TypeIncome {
		row.CashIn = pounds
	} else {
		row.CashOut = pounds
	}
	return row
}
