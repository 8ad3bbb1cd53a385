// Package extraction turns positioned text fragments from bank statement
// pages into validated transactions. It reconstructs the column layout of
// each page, regroups fragments into visual rows, and parses each row into
// a dated, typed, positive amount with a confidence score. The package is
// pure spatial logic: it knows nothing about PDFs, files, or storage.
package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

const (
	defaultMaxPages        = 50
	defaultMaxFutureYears  = 2
	defaultRowThreshold    = 10.0
	defaultLineEpsilon     = 5.0
	defaultBucketWidth     = 25.0
	defaultColumnTolerance = 50.0
	defaultDescriptionMax  = 100
	defaultDedupePrefix    = 20

	minDescriptionLen = 3
	descriptionMargin = 10.0
)

// Confidence levels attached to extracted transactions. Spatial extraction
// with a structure detected on the same page scores highest; carried or
// inferred structures score lower; the line-based fallback lower still.
const (
	ConfidenceSpatial  = 0.9
	ConfidenceCarried  = 0.75
	ConfidenceFallback = 0.6
)

func defaultMaxAmount() decimal.Decimal {
	return decimal.NewFromInt(50000)
}

// Config carries the extraction tunables. The zero value is usable: every
// field falls back to a sensible default.
type Config struct {
	// MaxPages caps how many pages of a document are processed.
	MaxPages int
	// MaxAmount is the inclusive upper bound for accepted amounts.
	MaxAmount decimal.Decimal
	// MaxFutureYears rejects dates further than this many years ahead.
	MaxFutureYears int
	// RowThreshold is the y distance that starts a new row.
	RowThreshold float64
	// LineEpsilon is the y tolerance within which fragments share a line.
	LineEpsilon float64
	// BucketWidth is the x bucket size for fallback column clustering.
	BucketWidth float64
	// ColumnTolerance is the x window around an amount column.
	ColumnTolerance float64
	// DescriptionMaxLen caps extracted description length.
	DescriptionMaxLen int
	// DedupePrefixLen is how much description participates in dedupe keys.
	DedupePrefixLen int
}

// DefaultConfig returns the tunables used in production.
func DefaultConfig() Config {
	return Config{
		MaxPages:          defaultMaxPages,
		MaxAmount:         defaultMaxAmount(),
		MaxFutureYears:    defaultMaxFutureYears,
		RowThreshold:      defaultRowThreshold,
		LineEpsilon:       defaultLineEpsilon,
		BucketWidth:       defaultBucketWidth,
		ColumnTolerance:   defaultColumnTolerance,
		DescriptionMaxLen: defaultDescriptionMax,
		DedupePrefixLen:   defaultDedupePrefix,
	}
}

// withDefaults fills unset fields so the rest of the package never has to
// re-check them.
func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.MaxAmount.IsZero() {
		c.MaxAmount = defaultMaxAmount()
	}
	if c.MaxFutureYears <= 0 {
		c.MaxFutureYears = defaultMaxFutureYears
	}
	if c.RowThreshold <= 0 {
		c.RowThreshold = defaultRowThreshold
	}
	if c.LineEpsilon <= 0 {
		c.LineEpsilon = defaultLineEpsilon
	}
	if c.BucketWidth <= 0 {
		c.BucketWidth = defaultBucketWidth
	}
	if c.ColumnTolerance <= 0 {
		c.ColumnTolerance = defaultColumnTolerance
	}
	if c.DescriptionMaxLen <= 0 {
		c.DescriptionMaxLen = defaultDescriptionMax
	}
	if c.DedupePrefixLen <= 0 {
		c.DedupePrefixLen = defaultDedupePrefix
	}
	return c
}

// PageSource yields the positioned fragments of a document, page by page.
// Implementations wrap a concrete reader (a PDF library, a test fixture);
// pages are numbered from 1.
type PageSource interface {
	PageCount() int
	Fragments(page int) ([]PositionedFragment, error)
}

// Extractor processes one document. It is a per-document session: the
// column structure carried between pages lives here, so concurrent
// documents each get their own Extractor and never share state.
type Extractor struct {
	cfg      Config
	norm     *Normalizer
	rows     *rowParser
	logger   *slog.Logger
	carried  ColumnStructure
	hasPrior bool
}

// NewExtractor builds a session for a single document. A nil classifier
// leaves every transaction at the default category and event; a nil logger
// falls back to slog.Default().
func NewExtractor(cfg Config, classifier Classifier, logger *slog.Logger) *Extractor {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	norm := NewNormalizer(cfg)
	return &Extractor{
		cfg:    cfg,
		norm:   norm,
		rows:   newRowParser(cfg, norm, classifier, logger),
		logger: logger,
	}
}

// Extract walks the document sequentially and returns the deduplicated
// transactions plus the number of pages processed. Cancellation is checked
// between pages: a cancelled context returns everything accumulated so far
// together with ctx.Err(), never a partially parsed page. A page read
// failure is fatal for the document.
func (e *Extractor) Extract(ctx context.Context, src PageSource) (*Result, error) {
	pages := src.PageCount()
	if pages > e.cfg.MaxPages {
		e.logger.Info("capping document pages",
			slog.Int("pages", pages),
			slog.Int("max_pages", e.cfg.MaxPages))
		pages = e.cfg.MaxPages
	}

	var txs []Transaction
	processed := 0

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("extraction cancelled",
				slog.Int("pages_processed", processed),
				slog.Int("transactions", len(txs)))
			return e.finish(txs, processed), err
		}

		fragments, err := src.Fragments(page)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", page, err)
		}

		txs = append(txs, e.extractPage(fragments, page)...)
		processed++
	}

	return e.finish(txs, processed), nil
}

// extractPage runs detection, grouping, and row parsing for one page.
// Detection failure is not fatal: the page falls back to the structure
// carried from an earlier page, or contributes nothing.
func (e *Extractor) extractPage(fragments []PositionedFragment, page int) []Transaction {
	detected := DetectColumns(fragments, e.cfg.BucketWidth)

	structure := detected
	carried := false
	switch {
	case detected.HasValidStructure:
		e.carried = detected
		e.hasPrior = true
	case e.hasPrior:
		structure = e.carried
		carried = true
		e.logger.Debug("reusing column structure from earlier page",
			slog.Int("page", page))
	default:
		e.logger.Warn("no column structure detected",
			slog.Int("page", page),
			slog.Int("fragments", len(fragments)))
		return nil
	}

	var txs []Transaction
	for _, row := range GroupRows(fragments, e.cfg.RowThreshold, e.cfg.LineEpsilon) {
		if tx, ok := e.rows.parse(row, structure, page, carried); ok {
			txs = append(txs, tx)
		}
	}

	e.logger.Debug("page extracted",
		slog.Int("page", page),
		slog.Int("transactions", len(txs)),
		slog.Bool("carried_structure", carried),
		slog.Bool("inferred_structure", structure.Inferred))
	return txs
}

func (e *Extractor) finish(txs []Transaction, processed int) *Result {
	deduped := dedupeTransactions(txs, e.cfg.DedupePrefixLen)
	if dropped := len(txs) - len(deduped); dropped > 0 {
		e.logger.Info("dropped duplicate transactions", slog.Int("count", dropped))
	}
	return &Result{Transactions: deduped, PagesProcessed: processed}
}
