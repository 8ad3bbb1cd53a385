// Package sniffer detects the shape of uploaded CSV/TSV statements: the
// delimiter, where the header row sits, which columns hold what, and a
// fingerprint so a bank's layout is recognized the next time the treasurer
// uploads one.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"
)

// Header keywords UK bank exports actually use.
var headerKeywords = []string{
	"date", "transaction date", "posting date", "value date",
	"description", "details", "narrative", "reference", "counter party", "memo",
	"amount", "value",
	"paid out", "paid in", "money out", "money in",
	"debit", "credit", "withdrawn", "deposited",
	"cash in", "cash out",
	"balance", "category", "type",
}

// FileConfig holds the detected configuration for a CSV/TSV file.
type FileConfig struct {
	Delimiter   rune       // field delimiter (',', ';', '\t')
	SkipLines   int        // metadata lines before the header
	Headers     []string   // detected header names
	Fingerprint string     // SHA256 of normalized headers
	SampleRows  [][]string // first few data rows for preview
}

// DetectOptions lets callers override header row or delimiter detection.
type DetectOptions struct {
	// HeaderRowIndex is a 0-based index for the header row. -1 auto-detects.
	HeaderRowIndex int
	// Delimiter overrides the detected delimiter when non-zero.
	Delimiter rune
}

// ColumnSuggestions carries auto-matched column indices, -1 when not found.
type ColumnSuggestions struct {
	DateCol       int
	DescCol       int
	AmountCol     int // single signed column, -1 when paid out/in split
	DebitCol      int
	CreditCol     int
	CategoryCol   int
	IsDoubleEntry bool // separate paid out / paid in columns
}

// RegionalDialect is the inferred formatting of amounts and dates.
type RegionalDialect struct {
	DecimalSeparator   rune    // '.' (UK) or ',' (continental)
	ThousandsSeparator rune    // ',' (UK) or '.' (continental)
	DateFormat         string  // "DD/MM/YYYY" or "MM/DD/YYYY"
	CurrencyHint       string  // "GBP", "EUR", "USD" when spotted
	Confidence         float64 // 0.0-1.0
	IsEuropeanFormat   bool    // comma is the decimal separator
}

// ProbeDialect inspects sample rows to infer how the file writes amounts
// and dates. UK conventions are the default when the evidence is ambiguous.
func ProbeDialect(sampleRows [][]string, amountIdx int, dateIdx int) *RegionalDialect {
	dialect := &RegionalDialect{
		DecimalSeparator:   '.',
		ThousandsSeparator: ',',
		DateFormat:         "DD/MM/YYYY",
		Confidence:         0.5,
	}

	dotHints := 0
	commaHints := 0
	dayFirst := false
	monthFirst := false

	for _, row := range sampleRows {
		if amountIdx >= 0 && amountIdx < len(row) {
			if val := row[amountIdx]; val != "" {
				switch analyzeAmountFormat(val) {
				case 1:
					commaHints++
				case -1:
					dotHints++
				}
			}
		}

		if dateIdx >= 0 && dateIdx < len(row) {
			if val := row[dateIdx]; val != "" {
				switch analyzeDateOrder(val) {
				case 1:
					dayFirst = true
				case -1:
					monthFirst = true
				}
			}
		}

		for _, cell := range row {
			switch {
			case strings.Contains(cell, "£") || strings.Contains(cell, "GBP"):
				dialect.CurrencyHint = "GBP"
				dotHints++
			case strings.Contains(cell, "€") || strings.Contains(cell, "EUR"):
				if dialect.CurrencyHint == "" {
					dialect.CurrencyHint = "EUR"
				}
				commaHints++
			case strings.Contains(cell, "$") || strings.Contains(cell, "USD"):
				if dialect.CurrencyHint == "" {
					dialect.CurrencyHint = "USD"
				}
				dotHints++
			}
		}
	}

	if commaHints > dotHints {
		dialect.DecimalSeparator = ','
		dialect.ThousandsSeparator = '.'
		dialect.IsEuropeanFormat = true
	}

	if total := dotHints + commaHints; total > 0 {
		winning := dotHints
		if commaHints > dotHints {
			winning = commaHints
		}
		dialect.Confidence = float64(winning) / float64(total)
	}

	// An unambiguous month-first date is the only thing that flips the
	// UK day-first default.
	if monthFirst && !dayFirst {
		dialect.DateFormat = "MM/DD/YYYY"
	}

	return dialect
}

// analyzeAmountFormat returns 1 for comma-decimal, -1 for dot-decimal,
// 0 when the value proves nothing.
func analyzeAmountFormat(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, val)
	cleaned = strings.TrimPrefix(cleaned, "-")

	if cleaned == "" {
		return 0
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		// whichever comes last is the decimal separator
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			return 1
		}
		return -1

	case hasComma:
		if after := cleaned[strings.LastIndex(cleaned, ",")+1:]; len(after) <= 2 {
			return 1
		}
		return 0

	case hasDot:
		if after := cleaned[strings.LastIndex(cleaned, ".")+1:]; len(after) <= 2 {
			return -1
		}
		return 0
	}

	return 0
}

// analyzeDateOrder returns 1 when a date is provably day-first, -1 when
// provably month-first, 0 when either reading works.
func analyzeDateOrder(dateVal string) int {
	parts := strings.FieldsFunc(dateVal, func(r rune) bool {
		return r == '/' || r == '-' || r == '.'
	})
	if len(parts) < 2 {
		return 0
	}

	first := leadingNumber(parts[0])
	second := leadingNumber(parts[1])

	if first > 12 && first <= 31 {
		return 1
	}
	if second > 12 && second <= 31 && first >= 1 && first <= 12 {
		return -1
	}
	return 0
}

func leadingNumber(s string) int {
	n := 0
	for _, c := range strings.TrimSpace(s) {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrNoHeadersFound   = errors.New("could not find data headers")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
)

// DetectConfig analyzes a CSV/TSV file and returns its configuration.
func DetectConfig(data []byte) (*FileConfig, error) {
	return DetectConfigWithOptions(data, nil)
}

// DetectConfigWithOptions analyzes a CSV/TSV file with optional overrides.
func DetectConfigWithOptions(data []byte, opts *DetectOptions) (*FileConfig, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 {
		return nil, ErrEmptyFile
	}

	var (
		delimiter rune
		skipLines int
		err       error
	)
	if opts != nil && opts.HeaderRowIndex >= 0 {
		if opts.HeaderRowIndex >= len(lines) {
			return nil, ErrNoHeadersFound
		}
		skipLines = opts.HeaderRowIndex
		if opts.Delimiter != 0 {
			delimiter = opts.Delimiter
		} else {
			line := cleanLine(lines[skipLines], skipLines == 0)
			delimiter, _ = detectDelimiter(line)
			if delimiter == 0 {
				return nil, ErrInvalidDelimiter
			}
		}
	} else {
		delimiter, skipLines, err = findHeaderRow(lines)
		if err != nil {
			return nil, err
		}
	}

	headerLine := cleanLine(lines[skipLines], skipLines == 0)
	reader := csv.NewReader(strings.NewReader(headerLine))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}

	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &FileConfig{
		Delimiter:   delimiter,
		SkipLines:   skipLines,
		Headers:     headers,
		Fingerprint: generateFingerprint(headers),
		SampleRows:  getSampleRows(data, delimiter, skipLines+1, 5),
	}, nil
}

// SuggestColumns matches columns by header name.
func SuggestColumns(headers []string) *ColumnSuggestions {
	suggestions := &ColumnSuggestions{
		DateCol:     -1,
		DescCol:     -1,
		AmountCol:   -1,
		DebitCol:    -1,
		CreditCol:   -1,
		CategoryCol: -1,
	}

	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))

		if suggestions.DateCol == -1 && strings.Contains(h, "date") {
			suggestions.DateCol = i
		}

		if suggestions.DescCol == -1 {
			if strings.Contains(h, "descri") || strings.Contains(h, "details") ||
				strings.Contains(h, "narrative") || strings.Contains(h, "reference") ||
				strings.Contains(h, "counter party") || strings.Contains(h, "memo") ||
				h == "name" || h == "merchant" {
				suggestions.DescCol = i
			}
		}

		if suggestions.DebitCol == -1 {
			if strings.Contains(h, "paid out") || strings.Contains(h, "money out") ||
				strings.Contains(h, "cash out") || strings.Contains(h, "debit") ||
				strings.Contains(h, "withdrawn") {
				suggestions.DebitCol = i
			}
		}

		if suggestions.CreditCol == -1 {
			if strings.Contains(h, "paid in") || strings.Contains(h, "money in") ||
				strings.Contains(h, "cash in") || strings.Contains(h, "credit") ||
				strings.Contains(h, "deposited") {
				suggestions.CreditCol = i
			}
		}

		// exact matches only: "value date" and "balance" must not land here
		if suggestions.AmountCol == -1 {
			if h == "amount" || h == "amount (gbp)" || h == "value" || h == "net amount" {
				suggestions.AmountCol = i
			}
		}

		if suggestions.CategoryCol == -1 {
			if strings.Contains(h, "categ") || strings.Contains(h, "type") || h == "event" {
				suggestions.CategoryCol = i
			}
		}
	}

	suggestions.IsDoubleEntry = suggestions.DebitCol != -1 && suggestions.CreditCol != -1
	if suggestions.IsDoubleEntry {
		suggestions.AmountCol = -1
	}

	return suggestions
}

// findHeaderRow locates the header row and its delimiter. Bank exports often
// open with a few metadata lines (account name, statement period) before the
// real header.
func findHeaderRow(lines []string) (rune, int, error) {
	fallbackIndex := -1
	fallbackDelimiter := rune(0)
	fallbackCount := 0

	keywordIndex := -1
	keywordDelimiter := rune(0)
	keywordCount := 0
	keywordScore := 0

	for i, line := range lines {
		if i > 20 { // headers never sit this deep
			break
		}

		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}
		lineLower := strings.ToLower(line)

		delimiter, count := detectDelimiter(line)
		if count < 1 {
			continue
		}

		keywordMatches := 0
		for _, kw := range headerKeywords {
			if strings.Contains(lineLower, kw) {
				keywordMatches++
			}
		}

		if keywordMatches > 0 {
			// real headers have many columns, metadata lines have few
			score := count*10 + keywordMatches
			if keywordIndex == -1 || score > keywordScore {
				keywordScore = score
				keywordCount = count
				keywordDelimiter = delimiter
				keywordIndex = i
			}
		} else if count > fallbackCount {
			fallbackCount = count
			fallbackDelimiter = delimiter
			fallbackIndex = i
		}
	}

	if keywordIndex >= 0 && keywordCount >= 2 {
		return keywordDelimiter, keywordIndex, nil
	}

	if fallbackCount >= 2 {
		return fallbackDelimiter, fallbackIndex, nil
	}

	return 0, 0, ErrNoHeadersFound
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

// detectDelimiter counts candidate delimiters on one line; comma wins ties
// since UK exports are overwhelmingly comma-separated.
func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{',', ';', '\t', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

// generateFingerprint hashes normalized header names so a layout can be
// recognized across uploads.
func generateFingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	joined := strings.Join(normalized, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}

// getSampleRows returns the first N data rows after the header.
func getSampleRows(data []byte, delimiter rune, startLine, maxRows int) [][]string {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	lineNum := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		if lineNum >= startLine {
			rows = append(rows, record)
			if len(rows) >= maxRows {
				break
			}
		}
		lineNum++
	}

	return rows
}
