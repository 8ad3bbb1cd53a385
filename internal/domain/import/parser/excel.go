package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelParser parses XLSX workbooks, either bank exports or the treasurer's
// own ledger sheets.
type ExcelParser struct {
	config ParserConfig
}

// NewExcelParser creates a new Excel parser.
func NewExcelParser(config ParserConfig) *ExcelParser {
	return &ExcelParser{config: config}
}

// ParseExcel reads and parses transactions from an Excel file.
func (p *ExcelParser) ParseExcel(reader io.Reader) (*ParseResult, error) {
	result := &ParseResult{
		Transactions: make([]ParsedTransaction, 0, 256),
		Errors:       make([]ParseError, 0),
	}

	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := p.findTransactionSheet(f)
	if sheetName == "" {
		return nil, fmt.Errorf("no suitable sheet found")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}

	if len(rows) == 0 {
		return result, nil
	}

	startRow := p.config.SkipLines
	if startRow >= len(rows) {
		return result, nil
	}

	// First row after the skip is the header
	headers := rows[startRow]
	colMap := p.mapColumns(headers)

	for i := startRow + 1; i < len(rows); i++ {
		rowNum := i + 1 // 1-indexed

		result.TotalRows++

		tx, parseErr := p.processExcelRow(rows[i], rowNum, colMap)
		if parseErr != nil {
			result.Errors = append(result.Errors, *parseErr)
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

// ParseExcelStream parses with the row iterator, keeping memory flat on
// large workbooks.
func (p *ExcelParser) ParseExcelStream(reader io.Reader) (*ParseResult, error) {
	result := &ParseResult{
		Transactions: make([]ParsedTransaction, 0, 256),
		Errors:       make([]ParseError, 0),
	}

	f, err := excelize.OpenReader(reader, excelize.Options{
		RawCellValue: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetName := p.findTransactionSheet(f)
	if sheetName == "" {
		return nil, fmt.Errorf("no suitable sheet found")
	}

	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create row iterator: %w", err)
	}
	defer rows.Close()

	var colMap columnMap
	rowNum := 0
	haveHeader := false

	for rows.Next() {
		rowNum++

		if rowNum <= p.config.SkipLines {
			continue
		}

		row, err := rows.Columns()
		if err != nil {
			result.Errors = append(result.Errors, ParseError{
				Row:     rowNum,
				Message: err.Error(),
			})
			continue
		}

		if !haveHeader {
			colMap = p.mapColumns(row)
			haveHeader = true
			continue
		}

		result.TotalRows++

		tx, parseErr := p.processExcelRow(row, rowNum, colMap)
		if parseErr != nil {
			result.Errors = append(result.Errors, *parseErr)
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

type columnMap struct {
	dateCol     int
	descCol     int
	amountCol   int
	debitCol    int
	creditCol   int
	categoryCol int
}

// findTransactionSheet picks the sheet most likely to hold the ledger.
func (p *ExcelParser) findTransactionSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}

	preferredNames := []string{
		"transactions", "statement", "ledger",
		"accounts", "income and expenditure", "sheet1",
	}

	for _, preferred := range preferredNames {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}

	return sheets[0]
}

// mapColumns maps header names onto column indices, honoring any configured
// overrides first.
func (p *ExcelParser) mapColumns(headers []string) columnMap {
	cm := columnMap{
		dateCol:     p.config.DateColumn,
		descCol:     p.config.DescColumn,
		amountCol:   p.config.AmountColumn,
		debitCol:    p.config.DebitColumn,
		creditCol:   p.config.CreditColumn,
		categoryCol: p.config.CategoryColumn,
	}

	dateKeywords := []string{"date"}
	descKeywords := []string{"description", "details", "narrative", "reference", "counter party", "memo", "name"}
	amountKeywords := []string{"amount", "value"}
	debitKeywords := []string{"paid out", "money out", "debit", "withdrawn", "cash out"}
	creditKeywords := []string{"paid in", "money in", "credit", "deposited", "cash in"}
	categoryKeywords := []string{"category", "type", "event"}

	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))

		if cm.dateCol < 0 && containsAny(h, dateKeywords) {
			cm.dateCol = i
		}
		if cm.descCol < 0 && containsAny(h, descKeywords) {
			cm.descCol = i
		}
		// "amount" must not hijack the paid-out/paid-in pair
		if cm.amountCol < 0 && containsAny(h, amountKeywords) &&
			!containsAny(h, debitKeywords) && !containsAny(h, creditKeywords) {
			cm.amountCol = i
		}
		if cm.debitCol < 0 && containsAny(h, debitKeywords) {
			cm.debitCol = i
		}
		if cm.creditCol < 0 && containsAny(h, creditKeywords) {
			cm.creditCol = i
		}
		if cm.categoryCol < 0 && containsAny(h, categoryKeywords) {
			cm.categoryCol = i
		}
	}

	// Cash In/Cash Out pairs beat a single amount column when both exist
	if cm.debitCol >= 0 && cm.creditCol >= 0 {
		cm.amountCol = -1
	}

	return cm
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// processExcelRow converts one sheet row to a ParsedTransaction.
func (p *ExcelParser) processExcelRow(row []string, rowNum int, colMap columnMap) (*ParsedTransaction, *ParseError) {
	getValue := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	dateStr := getValue(colMap.dateCol)
	if dateStr == "" {
		return nil, nil // skip empty rows
	}

	// Reuse the CSV parser's date and amount logic
	csvParser := NewParser(p.config)

	date, err := csvParser.parseDate(dateStr)
	if err != nil {
		return nil, &ParseError{
			Row:     rowNum,
			Column:  "date",
			Message: fmt.Sprintf("invalid date: %s", err.Error()),
			RawData: dateStr,
		}
	}

	desc := getValue(colMap.descCol)
	if desc == "" {
		return nil, &ParseError{
			Row:     rowNum,
			Column:  "description",
			Message: "missing description",
		}
	}

	var pence int64
	var currency string

	if colMap.amountCol >= 0 {
		amountStr := getValue(colMap.amountCol)
		if amountStr == "" {
			return nil, &ParseError{
				Row:     rowNum,
				Column:  "amount",
				Message: "missing amount",
			}
		}
		pence, currency, err = csvParser.parsePence(amountStr)
		if err != nil {
			return nil, &ParseError{
				Row:     rowNum,
				Column:  "amount",
				Message: fmt.Sprintf("invalid amount: %s", err.Error()),
				RawData: amountStr,
			}
		}
	} else if colMap.debitCol >= 0 || colMap.creditCol >= 0 {
		pence, currency = csvParser.parseDebitCredit(getValue(colMap.debitCol), getValue(colMap.creditCol))
	} else {
		return nil, &ParseError{
			Row:     rowNum,
			Column:  "amount",
			Message: "no amount column found",
		}
	}

	category := getValue(colMap.categoryCol)

	return &ParsedTransaction{
		Date:         date,
		Description:  collapseSpaces(desc),
		AmountPence:  pence,
		Category:     category,
		RawRow:       rowNum,
		CurrencyHint: currency,
	}, nil
}

// DetectExcelFormat analyzes a workbook and reports its sheets, headers and
// a few sample rows so the committee can check the mapping before importing.
func DetectExcelFormat(reader io.Reader) (*ExcelFormatInfo, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	info := &ExcelFormatInfo{
		Sheets: f.GetSheetList(),
	}

	if len(info.Sheets) == 0 {
		return info, nil
	}

	rows, err := f.GetRows(info.Sheets[0])
	if err != nil {
		return info, nil
	}

	if len(rows) > 0 {
		info.Headers = rows[0]
		info.RowCount = len(rows) - 1

		maxSamples := 5
		if len(rows) < maxSamples+1 {
			maxSamples = len(rows) - 1
		}
		info.SampleRows = make([][]string, maxSamples)
		for i := 0; i < maxSamples; i++ {
			info.SampleRows[i] = rows[i+1]
		}
	}

	return info, nil
}

// ExcelFormatInfo describes a workbook's layout.
type ExcelFormatInfo struct {
	Sheets     []string
	Headers    []string
	RowCount   int
	SampleRows [][]string
}
