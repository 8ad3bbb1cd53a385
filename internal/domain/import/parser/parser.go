// Package parser turns uploaded statement files (CSV, XLSX and the PDF
// text layer) into normalized transaction rows for the import service.
package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// TransactionRow is a raw CSV row unmarshaled by header name. The tags cover
// the column names UK bank exports actually use; headers are folded to
// lowercase before matching, so "Paid Out" and "paid out" are the same
// column.
type TransactionRow struct {
	// Date columns
	Date        string `csv:"date"`
	TxnDate     string `csv:"transaction date"`
	DatePosted  string `csv:"date posted"`
	PostingDate string `csv:"posting date"`
	ValueDate   string `csv:"value date"`

	// Description columns
	Description string `csv:"description"`
	TxnDesc     string `csv:"transaction description"`
	Details     string `csv:"details"`
	Narrative   string `csv:"narrative"`
	Reference   string `csv:"reference"`
	Name        string `csv:"name"`
	Counterpart string `csv:"counter party"`
	Memo        string `csv:"memo"`

	// Amount columns (single signed column)
	Amount    string `csv:"amount"`
	AmountGBP string `csv:"amount (gbp)"`
	Value     string `csv:"value"`

	// Paid out / paid in columns (double-entry layouts)
	PaidOut     string `csv:"paid out"`
	MoneyOut    string `csv:"money out"`
	Debit       string `csv:"debit"`
	DebitAmount string `csv:"debit amount"`
	Withdrawn   string `csv:"withdrawn"`

	PaidIn       string `csv:"paid in"`
	MoneyIn      string `csv:"money in"`
	Credit       string `csv:"credit"`
	CreditAmount string `csv:"credit amount"`
	Deposited    string `csv:"deposited"`

	// Category hints
	Category    string `csv:"category"`
	SpendingCat string `csv:"spending category"`
	Type        string `csv:"type"`
	TxnType     string `csv:"transaction type"`

	// Balance (for reference, not imported)
	Balance    string `csv:"balance"`
	BalanceGBP string `csv:"balance (gbp)"`
}

// ParsedTransaction is the normalized output after parsing a row.
type ParsedTransaction struct {
	Date         time.Time
	Description  string
	AmountPence  int64  // positive = money in, negative = money out
	Category     string // raw category hint from the file, if any
	RawRow       int    // original row number for error reporting
	CurrencyHint string // detected currency symbol if present
}

// ParseError describes a problem with a specific row.
type ParseError struct {
	Row     int
	Column  string
	Message string
	RawData string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
}

// ParseResult collects everything a parse run produced.
type ParseResult struct {
	Transactions []ParsedTransaction
	Errors       []ParseError
	TotalRows    int
	ParsedRows   int
	SkippedRows  int
}

// ParserConfig configures the CSV parser behavior.
type ParserConfig struct {
	Delimiter        rune   // CSV delimiter (0 = comma)
	SkipLines        int    // metadata lines before the header row
	DateFormat       string // expected date format (empty = flexible)
	IsEuropeanFormat bool   // true when amounts look like 1.234,56
	DateColumn       int    // column index overrides, -1 = match by header
	DescColumn       int
	AmountColumn     int
	DebitColumn      int
	CreditColumn     int
	CategoryColumn   int
}

// DefaultConfig returns a parser config with sensible defaults.
func DefaultConfig() ParserConfig {
	return ParserConfig{
		DateColumn:     -1,
		DescColumn:     -1,
		AmountColumn:   -1,
		DebitColumn:    -1,
		CreditColumn:   -1,
		CategoryColumn: -1,
	}
}

// Parser parses transaction rows out of CSV statement exports.
type Parser struct {
	config ParserConfig
}

// NewParser creates a parser with the given configuration.
func NewParser(config ParserConfig) *Parser {
	return &Parser{config: config}
}

// Parse reads every transaction from a CSV reader, matching columns by
// header name.
func (p *Parser) Parse(reader io.Reader) (*ParseResult, error) {
	result := &ParseResult{
		Transactions: make([]ParsedTransaction, 0, 256),
		Errors:       make([]ParseError, 0),
	}

	if p.config.SkipLines > 0 {
		reader = skipLines(reader, p.config.SkipLines)
	}

	var rows []TransactionRow
	if err := gocsv.UnmarshalCSV(p.newCSVReader(reader), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	result.TotalRows = len(rows)

	for i, row := range rows {
		rowNum := i + p.config.SkipLines + 2 // 1-indexed plus header

		tx, err := p.processRow(row, rowNum)
		if err != nil {
			result.Errors = append(result.Errors, *err)
			continue
		}
		if tx == nil {
			result.SkippedRows++
			continue
		}

		result.Transactions = append(result.Transactions, *tx)
		result.ParsedRows++
	}

	return result, nil
}

// ParseWithColumns parses using explicit column indices, for files whose
// headers match nothing we know.
func (p *Parser) ParseWithColumns(reader io.Reader) (*ParseResult, error) {
	result := &ParseResult{
		Transactions: make([]ParsedTransaction, 0, 256),
		Errors:       make([]ParseError, 0),
	}

	if p.config.SkipLines > 0 {
		reader = skipLines(reader, p.config.SkipLines)
	}

	csvReader := csv.NewReader(reader)
	if p.config.Delimiter != 0 {
		csvReader.Comma = p.config.Delimiter
	}
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	if _, err := csvReader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	rowNum := p.config.SkipLines + 2

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, ParseError{
				Row:     rowNum,
				Message: err.Error(),
			})
			rowNum++
			continue
		}

		result.TotalRows++

		tx, parseErr := p.processRecord(record, rowNum)
		if parseErr != nil {
			result.Errors = append(result.Errors, *parseErr)
			rowNum++
			continue
		}
		if tx == nil {
			result.SkippedRows++
			rowNum++
			continue
		}

		result.Transactions = append(result.Transactions, *tx)
		result.ParsedRows++
		rowNum++
	}

	return result, nil
}

// newCSVReader builds the reader gocsv unmarshals from. Headers are folded
// to lowercase so the struct tags match regardless of the bank's casing.
func (p *Parser) newCSVReader(reader io.Reader) gocsv.CSVReader {
	r := csv.NewReader(reader)
	if p.config.Delimiter != 0 {
		r.Comma = p.config.Delimiter
	}
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return &headerFoldReader{r: r}
}

// headerFoldReader lowercases the first record it yields.
type headerFoldReader struct {
	r      *csv.Reader
	folded bool
}

func (h *headerFoldReader) Read() ([]string, error) {
	record, err := h.r.Read()
	if err == nil && !h.folded {
		h.folded = true
		foldHeader(record)
	}
	return record, err
}

func (h *headerFoldReader) ReadAll() ([][]string, error) {
	records, err := h.r.ReadAll()
	if len(records) > 0 && !h.folded {
		h.folded = true
		foldHeader(records[0])
	}
	return records, err
}

func foldHeader(record []string) {
	for i := range record {
		record[i] = strings.ToLower(strings.TrimSpace(record[i]))
	}
}

// processRow converts a header-matched row to a ParsedTransaction.
func (p *Parser) processRow(row TransactionRow, rowNum int) (*ParsedTransaction, *ParseError) {
	dateStr := coalesce(row.Date, row.TxnDate, row.DatePosted, row.PostingDate, row.ValueDate)
	if dateStr == "" {
		return nil, nil // skip rows without a date
	}

	date, err := p.parseDate(dateStr)
	if err != nil {
		return nil, &ParseError{
			Row:     rowNum,
			Column:  "date",
			Message: fmt.Sprintf("invalid date: %s", err.Error()),
			RawData: dateStr,
		}
	}

	desc := coalesce(row.Description, row.TxnDesc, row.Details, row.Narrative,
		row.Counterpart, row.Name, row.Reference, row.Memo)
	if desc == "" {
		return nil, &ParseError{
			Row:     rowNum,
			Column:  "description",
			Message: "missing description",
		}
	}

	var pence int64
	var currency string

	amountStr := coalesce(row.Amount, row.AmountGBP, row.Value)
	if amountStr != "" {
		pence, currency, err = p.parsePence(amountStr)
		if err != nil {
			return nil, &ParseError{
				Row:     rowNum,
				Column:  "amount",
				Message: fmt.Sprintf("invalid amount: %s", err.Error()),
				RawData: amountStr,
			}
		}
	} else {
		debitStr := coalesce(row.PaidOut, row.MoneyOut, row.Debit, row.DebitAmount, row.Withdrawn)
		creditStr := coalesce(row.PaidIn, row.MoneyIn, row.Credit, row.CreditAmount, row.Deposited)

		if debitStr == "" && creditStr == "" {
			return nil, &ParseError{
				Row:     rowNum,
				Column:  "amount",
				Message: "no amount found",
			}
		}

		pence, currency = p.parseDebitCredit(debitStr, creditStr)
	}

	category := coalesce(row.Category, row.SpendingCat, row.TxnType, row.Type)

	return &ParsedTransaction{
		Date:         date,
		Description:  collapseSpaces(desc),
		AmountPence:  pence,
		Category:     category,
		RawRow:       rowNum,
		CurrencyHint: currency,
	}, nil
}

// processRecord converts a raw CSV record using configured column indices.
func (p *Parser) processRecord(record []string, rowNum int) (*ParsedTransaction, *ParseError) {
	getValue := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	dateStr := getValue(p.config.DateColumn)
	if dateStr == "" {
		return nil, nil // skip rows without a date
	}

	date, err := p.parseDate(dateStr)
	if err != nil {
		return nil, &ParseError{
			Row:     rowNum,
			Column:  "date",
			Message: fmt.Sprintf("invalid date: %s", err.Error()),
			RawData: dateStr,
		}
	}

	desc := getValue(p.config.DescColumn)
	if desc == "" {
		return nil, &ParseError{
			Row:     rowNum,
			Column:  "description",
			Message: "missing description",
		}
	}

	var pence int64
	var currency string

	if p.config.AmountColumn >= 0 {
		amountStr := getValue(p.config.AmountColumn)
		if amountStr == "" {
			return nil, &ParseError{
				Row:     rowNum,
				Column:  "amount",
				Message: "missing amount",
			}
		}
		pence, currency, err = p.parsePence(amountStr)
		if err != nil {
			return nil, &ParseError{
				Row:     rowNum,
				Column:  "amount",
				Message: fmt.Sprintf("invalid amount: %s", err.Error()),
				RawData: amountStr,
			}
		}
	} else if p.config.DebitColumn >= 0 || p.config.CreditColumn >= 0 {
		pence, currency = p.parseDebitCredit(getValue(p.config.DebitColumn), getValue(p.config.CreditColumn))
	} else {
		return nil, &ParseError{
			Row:     rowNum,
			Column:  "amount",
			Message: "no amount column configured",
		}
	}

	category := getValue(p.config.CategoryColumn)

	return &ParsedTransaction{
		Date:         date,
		Description:  collapseSpaces(desc),
		AmountPence:  pence,
		Category:     category,
		RawRow:       rowNum,
		CurrencyHint: currency,
	}, nil
}

// parseDate parses a date string, trying UK layouts before anything
// ambiguous. DD/MM wins over MM/DD: a club statement saying 04/05 means the
// 4th of May.
func (p *Parser) parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if p.config.DateFormat != "" {
		if t, err := time.Parse(p.config.DateFormat, s); err == nil {
			return t, nil
		}
	}

	formats := []string{
		"2006-01-02",
		"02/01/2006",
		"02-01-2006",
		"02.01.2006",
		"2 Jan 2006",
		"02 Jan 2006",
		"2 January 2006",
		"2006/01/02",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"02/01/2006 15:04",
		"01/02/2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized format: %s", s)
}

// parsePence parses an amount string into pence plus a currency hint. It
// accepts "£1,234.56", "(12.50)", "-12.50" and trailing DR/CR markers.
func (p *Parser) parsePence(s string) (int64, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", fmt.Errorf("empty amount")
	}

	currency := ""
	for _, sym := range []string{"£", "GBP", "€", "EUR", "$", "USD"} {
		if strings.Contains(s, sym) {
			currency = sym
			s = strings.TrimSpace(strings.ReplaceAll(s, sym, ""))
			break
		}
	}

	negative := false

	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "DR") {
		negative = true
		s = strings.TrimSpace(s[:len(s)-2])
	} else if strings.HasSuffix(upper, "CR") {
		s = strings.TrimSpace(s[:len(s)-2])
	}

	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	} else if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}

	if p.config.IsEuropeanFormat {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, currency, fmt.Errorf("invalid number: %s", s)
	}

	pence := d.Shift(2).Round(0).IntPart()
	if negative {
		pence = -pence
	}
	return pence, currency, nil
}

// parseDebitCredit handles paid-out/paid-in column pairs. Exactly one of the
// two is expected per row; debit comes out negative.
func (p *Parser) parseDebitCredit(debitStr, creditStr string) (int64, string) {
	var currency string
	var amount int64

	if debitStr != "" {
		pence, cur, err := p.parsePence(debitStr)
		if err == nil && pence != 0 {
			currency = cur
			if pence > 0 {
				pence = -pence
			}
			amount = pence
		}
	}

	if creditStr != "" && amount == 0 {
		pence, cur, err := p.parsePence(creditStr)
		if err == nil && pence != 0 {
			currency = cur
			if pence < 0 {
				pence = -pence
			}
			amount = pence
		}
	}

	return amount, currency
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// collapseSpaces trims and squeezes runs of whitespace to single spaces.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// skipLines returns a reader that discards the first n lines.
func skipLines(r io.Reader, n int) io.Reader {
	return &lineSkipper{reader: r, skip: n}
}

type lineSkipper struct {
	reader  io.Reader
	skip    int
	skipped bool
}

func (ls *lineSkipper) Read(p []byte) (int, error) {
	if !ls.skipped {
		buf := make([]byte, 1)
		lines := 0
		for lines < ls.skip {
			n, err := ls.reader.Read(buf)
			if err != nil {
				return 0, err
			}
			if n > 0 && buf[0] == '\n' {
				lines++
			}
		}
		ls.skipped = true
	}
	return ls.reader.Read(p)
}
