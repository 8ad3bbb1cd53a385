// Package service orchestrates statement imports end to end: detect what
// kind of file the treasurer uploaded, archive it, run the right parser,
// label what came out, and write the survivors to the ledger under an
// import job that records the outcome.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/UMHC/umhc-finance/internal/domain/categorization"
	"github.com/UMHC/umhc-finance/internal/domain/extraction"
	"github.com/UMHC/umhc-finance/internal/domain/finance"
	"github.com/UMHC/umhc-finance/internal/domain/import/normalizer"
	"github.com/UMHC/umhc-finance/internal/domain/import/parser"
	"github.com/UMHC/umhc-finance/internal/domain/import/repository"
	"github.com/UMHC/umhc-finance/internal/domain/import/sniffer"
	"github.com/UMHC/umhc-finance/pkg/metrics"
	"github.com/UMHC/umhc-finance/pkg/push"
	"github.com/UMHC/umhc-finance/pkg/storage"
)

var (
	// ErrEmptyUpload is returned for zero-length uploads.
	ErrEmptyUpload = errors.New("empty upload")
	// ErrUnsupportedFile is returned when neither the filename nor the
	// content identifies a statement format we can parse.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrNoArchivedFile is returned when a job has no stored statement,
	// either because storage is off or the upload predates it.
	ErrNoArchivedFile = errors.New("no archived file for this job")
)

// Classifier labels one description with a category and event. The
// categorization rule service satisfies this.
type Classifier interface {
	Categorize(ctx context.Context, description string) (*categorization.CategorizationResult, error)
}

const (
	// insertBatchSize bounds one INSERT statement. A year of club activity
	// is a few hundred rows, so most imports are a single batch.
	insertBatchSize = 500
	// maxReportedErrors caps the error list returned to the caller. The
	// full count is still logged and reflected in failed_rows.
	maxReportedErrors = 25
)

// ImportService runs statement uploads through parsing, categorization and
// ledger insertion, recording progress on an import job row.
type ImportService struct {
	jobs       *repository.Repository
	ledger     *finance.Repository
	files      storage.Storage
	classifier Classifier
	notifier   *push.Service
	norm       *normalizer.Normalizer
	extractCfg extraction.Config
	workers    int
	logger     *slog.Logger
}

// NewImportService creates an import service with PDF extraction at its
// default limits and no storage, classifier or notifier wired.
func NewImportService(jobs *repository.Repository, ledger *finance.Repository, logger *slog.Logger) *ImportService {
	return &ImportService{
		jobs:       jobs,
		ledger:     ledger,
		norm:       normalizer.NewNormalizer(),
		extractCfg: extraction.DefaultConfig(),
		logger:     logger,
	}
}

// WithStorage archives every upload so the original statement can be
// fetched back from its job.
func (s *ImportService) WithStorage(files storage.Storage) *ImportService {
	s.files = files
	return s
}

// WithClassifier routes descriptions through the committee rule set.
func (s *ImportService) WithClassifier(classifier Classifier) *ImportService {
	s.classifier = classifier
	return s
}

// WithNotifier announces finished imports on the committee webhook.
func (s *ImportService) WithNotifier(notifier *push.Service) *ImportService {
	s.notifier = notifier
	return s
}

// WithExtractionConfig overrides the PDF extraction limits.
func (s *ImportService) WithExtractionConfig(cfg extraction.Config) *ImportService {
	s.extractCfg = cfg
	return s
}

// WithWorkers sets the CSV parse worker count. Zero means one per CPU.
func (s *ImportService) WithWorkers(n int) *ImportService {
	s.workers = n
	return s
}

// ImportResult is what one upload produced.
type ImportResult struct {
	JobID             uuid.UUID  `json:"job_id"`
	Filename          string     `json:"filename"`
	FileType          string     `json:"file_type"`
	FileID            *uuid.UUID `json:"file_id,omitempty"`
	PagesProcessed    int        `json:"pages_processed,omitempty"`
	RowsParsed        int        `json:"rows_parsed"`
	Imported          int        `json:"imported"`
	DuplicatesSkipped int        `json:"duplicates_skipped"`
	FailedRows        int        `json:"failed_rows,omitempty"`
	FallbackUsed      bool       `json:"fallback_used,omitempty"`
	Errors            []string   `json:"errors,omitempty"`
}

// AnalysisResult previews an upload without importing anything. Only the
// fields relevant to the detected type are set.
type AnalysisResult struct {
	FileType    string
	PageCount   int
	Delimiter   rune
	SkipLines   int
	Headers     []string
	Fingerprint string
	Columns     *sniffer.ColumnSuggestions
	Dialect     *sniffer.RegionalDialect
	SampleRows  [][]string
	Excel       *parser.ExcelFormatInfo
}

// parseOutcome is what one parse pass hands back for insertion.
type parseOutcome struct {
	txs          []*finance.Transaction
	pages        int
	rowsParsed   int
	dupes        int // dropped before insert, within this upload
	failed       int
	fallbackUsed bool
	errs         []string
}

func (o *parseOutcome) recordError(msg string) {
	o.failed++
	if len(o.errs) < maxReportedErrors {
		o.errs = append(o.errs, msg)
		return
	}
	if len(o.errs) == maxReportedErrors {
		o.errs = append(o.errs, "further errors omitted")
	}
}

// Import runs one uploaded statement through the pipeline for its type.
// The outcome is persisted on the job row, so a caller polling the job
// later sees the same numbers this returns. Parse and insert failures
// mark the job failed and are returned to the caller.
func (s *ImportService) Import(ctx context.Context, filename string, data []byte, uploadedBy *uuid.UUID) (*ImportResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	fileType, err := detectFileType(filename, data)
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.CreateJob(ctx, filename, fileType, uploadedBy)
	if err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	result := &ImportResult{JobID: job.ID, Filename: filename, FileType: fileType}
	result.FileID = s.archiveUpload(ctx, job.ID, filename, fileType, data, uploadedBy)

	if err := s.jobs.MarkProcessing(ctx, job.ID); err != nil {
		s.logger.Warn("mark processing failed",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
	}

	start := time.Now()
	outcome, err := s.parseUpload(ctx, job.ID, fileType, data)
	if err != nil {
		s.failJob(ctx, job.ID, fileType, err)
		return nil, err
	}

	txs, batchDupes := dedupeBatch(outcome.txs)
	imported, err := s.insertLedger(ctx, txs)
	if err != nil {
		s.failJob(ctx, job.ID, fileType, err)
		return nil, fmt.Errorf("insert transactions: %w", err)
	}
	duplicates := outcome.dupes + batchDupes + (len(txs) - imported)

	stats := repository.JobStats{
		PagesProcessed:       outcome.pages,
		RowsParsed:           outcome.rowsParsed,
		TransactionsImported: imported,
		DuplicatesSkipped:    duplicates,
		FallbackUsed:         outcome.fallbackUsed,
	}
	if err := s.jobs.Complete(ctx, job.ID, stats); err != nil {
		s.logger.Warn("complete job failed",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
	}

	metrics.ImportJobsTotal.WithLabelValues(fileType, repository.StatusCompleted).Inc()
	metrics.ImportDuration.WithLabelValues(fileType).Observe(time.Since(start).Seconds())
	metrics.DuplicatesSkipped.Add(float64(duplicates))

	s.logger.Info("statement imported",
		slog.String("job_id", job.ID.String()),
		slog.String("filename", filename),
		slog.String("file_type", fileType),
		slog.Int("imported", imported),
		slog.Int("duplicates", duplicates),
		slog.Int("failed_rows", outcome.failed))
	s.notifyDone(filename, imported, duplicates, outcome.failed)

	result.PagesProcessed = outcome.pages
	result.RowsParsed = outcome.rowsParsed
	result.Imported = imported
	result.DuplicatesSkipped = duplicates
	result.FailedRows = outcome.failed
	result.FallbackUsed = outcome.fallbackUsed
	result.Errors = outcome.errs
	return result, nil
}

// Analyze previews an upload: what type it is, what columns it appears to
// have, and a few sample rows. Nothing is written.
func (s *ImportService) Analyze(ctx context.Context, filename string, data []byte) (*AnalysisResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	fileType, err := detectFileType(filename, data)
	if err != nil {
		return nil, err
	}

	analysis := &AnalysisResult{FileType: fileType}
	switch fileType {
	case repository.FileTypePDF:
		src, err := parser.NewPDFSource(data)
		if err != nil {
			return nil, err
		}
		analysis.PageCount = src.PageCount()

	case repository.FileTypeCSV:
		config, err := sniffer.DetectConfig(data)
		if err != nil {
			return nil, err
		}
		columns := sniffer.SuggestColumns(config.Headers)
		analysis.Delimiter = config.Delimiter
		analysis.SkipLines = config.SkipLines
		analysis.Headers = config.Headers
		analysis.Fingerprint = config.Fingerprint
		analysis.Columns = columns
		analysis.Dialect = sniffer.ProbeDialect(config.SampleRows, probeColumn(columns), columns.DateCol)
		analysis.SampleRows = config.SampleRows

	case repository.FileTypeXLSX:
		info, err := parser.DetectExcelFormat(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		analysis.Excel = info
		analysis.Headers = info.Headers
	}
	return analysis, nil
}

// Job returns one import job row.
func (s *ImportService) Job(ctx context.Context, id uuid.UUID) (*repository.ImportJob, error) {
	return s.jobs.GetJob(ctx, id)
}

// RecentJobs lists the newest import jobs.
func (s *ImportService) RecentJobs(ctx context.Context, limit int) ([]*repository.ImportJob, error) {
	return s.jobs.ListJobs(ctx, limit)
}

// JobFile opens the archived statement behind a job.
func (s *ImportService) JobFile(ctx context.Context, id uuid.UUID) (io.ReadCloser, *storage.FileInfo, error) {
	if s.files == nil {
		return nil, nil, ErrNoArchivedFile
	}
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if job.FileID == nil {
		return nil, nil, ErrNoArchivedFile
	}
	return s.files.Download(ctx, *job.FileID)
}

func (s *ImportService) parseUpload(ctx context.Context, jobID uuid.UUID, fileType string, data []byte) (*parseOutcome, error) {
	switch fileType {
	case repository.FileTypePDF:
		return s.parsePDF(ctx, jobID, data)
	case repository.FileTypeCSV:
		return s.parseCSV(ctx, jobID, data)
	case repository.FileTypeXLSX:
		return s.parseExcel(ctx, jobID, data)
	default:
		return nil, ErrUnsupportedFile
	}
}

// parsePDF runs the spatial extractor over the document, then retries any
// page that yielded nothing with the line-based fallback over its raw
// text. Statements with a flattened or partial text layer land there.
func (s *ImportService) parsePDF(ctx context.Context, jobID uuid.UUID, data []byte) (*parseOutcome, error) {
	src, err := parser.NewPDFSource(data)
	if err != nil {
		return nil, err
	}

	classifier := s.pageClassifier(ctx)
	result, err := extraction.NewExtractor(s.extractCfg, classifier, s.logger).Extract(ctx, src)
	if err != nil {
		return nil, err
	}
	metrics.PagesProcessed.Add(float64(result.PagesProcessed))
	metrics.TransactionsExtracted.WithLabelValues("spatial").Add(float64(len(result.Transactions)))

	out := &parseOutcome{pages: result.PagesProcessed}

	covered := make(map[int]bool, len(result.Transactions))
	for _, tx := range result.Transactions {
		covered[tx.Page] = true
	}

	fallback := extraction.NewFallbackParser(s.extractCfg, classifier, s.logger)
	extracted := result.Transactions
	for page := 1; page <= result.PagesProcessed; page++ {
		if covered[page] {
			continue
		}
		text, err := src.PageText(page)
		if err != nil {
			out.recordError(fmt.Sprintf("page %d: %v", page, err))
			continue
		}
		txs := fallback.ParseText(text, page)
		if len(txs) == 0 {
			continue
		}
		out.fallbackUsed = true
		metrics.TransactionsExtracted.WithLabelValues("fallback").Add(float64(len(txs)))
		extracted = append(extracted, txs...)
	}

	deduped := extraction.Dedupe(extracted, s.extractCfg.DedupePrefixLen)
	out.dupes = len(extracted) - len(deduped)

	for _, tx := range deduped {
		ledgerTx, err := fromExtraction(tx, jobID)
		if err != nil {
			out.recordError(err.Error())
			continue
		}
		out.txs = append(out.txs, ledgerTx)
	}
	out.rowsParsed = len(out.txs)
	return out, nil
}

// parseCSV sniffs the layout, maps columns by header, probes the amount
// and date dialect, then streams rows through the worker-pool parser.
func (s *ImportService) parseCSV(ctx context.Context, jobID uuid.UUID, data []byte) (*parseOutcome, error) {
	config, err := sniffer.DetectConfig(data)
	if err != nil {
		return nil, err
	}
	columns := sniffer.SuggestColumns(config.Headers)
	if columns.DateCol < 0 || columns.DescCol < 0 {
		return nil, fmt.Errorf("%w: no date or description column in %v", ErrUnsupportedFile, config.Headers)
	}
	if columns.AmountCol < 0 && !columns.IsDoubleEntry {
		return nil, fmt.Errorf("%w: no amount column in %v", ErrUnsupportedFile, config.Headers)
	}
	dialect := sniffer.ProbeDialect(config.SampleRows, probeColumn(columns), columns.DateCol)

	pcfg := parser.ParserConfig{
		Delimiter:        config.Delimiter,
		SkipLines:        config.SkipLines,
		IsEuropeanFormat: dialect.IsEuropeanFormat,
		DateColumn:       columns.DateCol,
		DescColumn:       columns.DescCol,
		AmountColumn:     columns.AmountCol,
		DebitColumn:      columns.DebitCol,
		CreditColumn:     columns.CreditCol,
		CategoryColumn:   columns.CategoryCol,
	}
	if dialect.DateFormat == "MM/DD/YYYY" {
		pcfg.DateFormat = "01/02/2006"
	}

	reader := parser.NewChunkReader(bytes.NewReader(data), int64(len(data)), s.progressLogger(jobID))
	results, statsCh := parser.NewStreamingParser(pcfg, s.workers).ParseStream(ctx, reader)

	out := &parseOutcome{}
	for res := range results {
		if res.Error != nil {
			out.recordError(fmt.Sprintf("row %d: %s", res.Error.Row, res.Error.Message))
			continue
		}
		if res.Transaction == nil {
			continue
		}
		if res.Transaction.AmountPence == 0 {
			out.recordError(fmt.Sprintf("row %d: zero amount", res.Transaction.RawRow))
			continue
		}
		out.txs = append(out.txs, s.fromParsed(ctx, res.Transaction, finance.SourceCSV, jobID))
	}
	stats := <-statsCh
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out.rowsParsed = len(out.txs)
	s.logger.Debug("csv stream finished",
		slog.String("job_id", jobID.String()),
		slog.Int64("rows_read", stats.TotalRows),
		slog.Int64("read_errors", stats.ReadErrors))
	return out, nil
}

func (s *ImportService) parseExcel(ctx context.Context, jobID uuid.UUID, data []byte) (*parseOutcome, error) {
	result, err := parser.NewExcelParser(parser.DefaultConfig()).ParseExcelStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	out := &parseOutcome{}
	for i := range result.Errors {
		out.recordError(fmt.Sprintf("row %d: %s", result.Errors[i].Row, result.Errors[i].Message))
	}
	for i := range result.Transactions {
		row := &result.Transactions[i]
		if row.AmountPence == 0 {
			out.recordError(fmt.Sprintf("row %d: zero amount", row.RawRow))
			continue
		}
		out.txs = append(out.txs, s.fromParsed(ctx, row, finance.SourceXLSX, jobID))
	}
	out.rowsParsed = len(out.txs)
	return out, nil
}

// fromExtraction converts an extracted statement line to a ledger row.
// The extractor already classified it, so no second categorization pass.
func fromExtraction(tx extraction.Transaction, jobID uuid.UUID) (*finance.Transaction, error) {
	occurred, err := time.Parse("02/01/2006", tx.Date)
	if err != nil {
		return nil, fmt.Errorf("page %d: bad date %q", tx.Page, tx.Date)
	}
	page := tx.Page
	return &finance.Transaction{
		OccurredOn:  occurred,
		Description: tx.Description,
		AmountPence: tx.Amount.Shift(2).IntPart(),
		Type:        string(tx.Type),
		Category:    tx.Category,
		Event:       tx.Event,
		Confidence:  tx.Confidence,
		Source:      finance.SourcePDF,
		Page:        &page,
		ImportJobID: &jobID,
	}, nil
}

// fromParsed converts one CSV or spreadsheet row to a ledger row. Category
// resolution order: committee rules, then known merchant patterns, then
// whatever the statement's own category column said.
func (s *ImportService) fromParsed(ctx context.Context, row *parser.ParsedTransaction, source string, jobID uuid.UUID) *finance.Transaction {
	info := s.norm.Normalize(row.Description)

	amount := row.AmountPence
	txType := finance.TypeExpense
	if amount > 0 {
		txType = finance.TypeIncome
	} else {
		amount = -amount
	}

	tx := &finance.Transaction{
		OccurredOn:  row.Date,
		Description: info.Normalized,
		AmountPence: amount,
		Type:        txType,
		Category:    categorization.DefaultCategory,
		Event:       categorization.DefaultEvent,
		Confidence:  1.0,
		Source:      source,
		ImportJobID: &jobID,
	}

	switch {
	case s.ruleMatch(ctx, tx):
	case info.Category != "":
		tx.Category = info.Category
	case row.Category != "":
		tx.Category = row.Category
	}
	return tx
}

// ruleMatch asks the rule service for labels and reports whether one hit.
func (s *ImportService) ruleMatch(ctx context.Context, tx *finance.Transaction) bool {
	if s.classifier == nil {
		return false
	}
	result, err := s.classifier.Categorize(ctx, tx.Description)
	if err != nil {
		s.logger.Warn("categorization failed",
			slog.String("description", tx.Description),
			slog.Any("error", err))
		return false
	}
	if result == nil || !result.Matched() {
		return false
	}
	tx.Category = result.Category
	tx.Event = result.Event
	return true
}

// pageClassifier adapts the rule service to the synchronous interface the
// extractor calls per row. Nil when no classifier is configured, which
// leaves extracted rows at the default labels.
func (s *ImportService) pageClassifier(ctx context.Context) extraction.Classifier {
	if s.classifier == nil {
		return nil
	}
	return &ctxClassifier{ctx: ctx, rules: s.classifier}
}

// ctxClassifier carries the import's context into classifier callbacks
// that have no context parameter of their own.
type ctxClassifier struct {
	ctx   context.Context
	rules Classifier
}

func (c *ctxClassifier) Classify(description string) (string, string) {
	result, err := c.rules.Categorize(c.ctx, description)
	if err != nil || result == nil {
		return extraction.DefaultCategory, extraction.DefaultEvent
	}
	return result.Category, result.Event
}

// insertLedger writes rows in batches so one long statement does not
// become one enormous SQL statement.
func (s *ImportService) insertLedger(ctx context.Context, txs []*finance.Transaction) (int, error) {
	imported := 0
	for start := 0; start < len(txs); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(txs) {
			end = len(txs)
		}
		n, err := s.ledger.BulkInsert(ctx, txs[start:end])
		if err != nil {
			return imported, err
		}
		imported += int(n)
	}
	return imported, nil
}

// dedupeBatch drops rows that collide within this one upload. Overlapping
// statement exports are common, and Postgres rejects a multi-row insert
// that hits the same conflict key twice.
func dedupeBatch(txs []*finance.Transaction) ([]*finance.Transaction, int) {
	seen := make(map[string]struct{}, len(txs))
	kept := make([]*finance.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.DedupeKey == "" {
			tx.DedupeKey = finance.DedupeKey(tx.OccurredOn, tx.AmountPence, tx.Description)
		}
		if _, dup := seen[tx.DedupeKey]; dup {
			continue
		}
		seen[tx.DedupeKey] = struct{}{}
		kept = append(kept, tx)
	}
	return kept, len(txs) - len(kept)
}

// archiveUpload stores the raw statement alongside the job. Archive
// failures are logged and the import carries on without a file.
func (s *ImportService) archiveUpload(ctx context.Context, jobID uuid.UUID, filename, fileType string, data []byte, uploadedBy *uuid.UUID) *uuid.UUID {
	if s.files == nil {
		return nil
	}
	uploader := uuid.Nil
	if uploadedBy != nil {
		uploader = *uploadedBy
	}
	info, err := s.files.Upload(ctx, uploader, filename, contentTypeFor(fileType), bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("statement archive failed",
			slog.String("filename", filename),
			slog.Any("error", err))
		return nil
	}
	if err := s.jobs.AttachFile(ctx, jobID, info.ID); err != nil {
		s.logger.Warn("attach file failed",
			slog.String("job_id", jobID.String()),
			slog.Any("error", err))
	}
	return &info.ID
}

func (s *ImportService) failJob(ctx context.Context, jobID uuid.UUID, fileType string, cause error) {
	if err := s.jobs.Fail(ctx, jobID, cause.Error()); err != nil {
		s.logger.Warn("mark job failed",
			slog.String("job_id", jobID.String()),
			slog.Any("error", err))
	}
	metrics.ImportJobsTotal.WithLabelValues(fileType, repository.StatusFailed).Inc()
	s.logger.Error("statement import failed",
		slog.String("job_id", jobID.String()),
		slog.String("file_type", fileType),
		slog.Any("error", cause))
}

// notifyDone posts a summary to the committee webhook. Fire and forget:
// the import is already committed by the time this runs.
func (s *ImportService) notifyDone(filename string, imported, duplicates, failed int) {
	if s.notifier == nil || !s.notifier.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msg := &push.Message{
			Title: "Statement import finished",
			Body:  filename,
			Fields: []push.Field{
				{Name: "Imported", Value: strconv.Itoa(imported)},
				{Name: "Duplicates skipped", Value: strconv.Itoa(duplicates)},
			},
		}
		if failed > 0 {
			msg.Fields = append(msg.Fields, push.Field{Name: "Failed rows", Value: strconv.Itoa(failed)})
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("import notification failed", slog.Any("error", err))
		}
	}()
}

// progressLogger reports streaming progress at quarter marks so a large
// upload shows signs of life without flooding the log.
func (s *ImportService) progressLogger(jobID uuid.UUID) func(read, total int64) {
	var last int64
	return func(read, total int64) {
		if total <= 0 {
			return
		}
		pct := read * 100 / total
		if pct >= last+25 {
			last = pct
			s.logger.Debug("import progress",
				slog.String("job_id", jobID.String()),
				slog.Int64("percent", pct))
		}
	}
}

// probeColumn picks the column whose values best reveal the amount
// dialect: the signed amount column, or the debit column when split.
func probeColumn(columns *sniffer.ColumnSuggestions) int {
	if columns.IsDoubleEntry {
		return columns.DebitCol
	}
	return columns.AmountCol
}

// detectFileType resolves the parser to use, preferring the filename
// extension and falling back to magic bytes for extensionless uploads.
func detectFileType(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return repository.FileTypePDF, nil
	case ".csv", ".tsv", ".txt":
		return repository.FileTypeCSV, nil
	case ".xlsx", ".xlsm":
		return repository.FileTypeXLSX, nil
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return repository.FileTypePDF, nil
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		// xlsx is a zip; other zips fail later in the workbook reader
		return repository.FileTypeXLSX, nil
	case looksLikeCSV(data):
		return repository.FileTypeCSV, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
}

// looksLikeCSV accepts text whose first line has a plausible delimiter.
func looksLikeCSV(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !utf8.Valid(head) {
		return false
	}
	line, _, _ := bytes.Cut(head, []byte("\n"))
	return bytes.ContainsAny(line, ",;\t|")
}

func contentTypeFor(fileType string) string {
	switch fileType {
	case repository.FileTypePDF:
		return "application/pdf"
	case repository.FileTypeXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}
