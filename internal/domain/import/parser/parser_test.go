package parser

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Parse(t *testing.T) {
	t.Run("parses a bank export by header name", func(t *testing.T) {
		csv := `Date,Description,Paid Out,Paid In,Balance
04/10/2025,CARD PAYMENT TO COTSWOLD OUTDOOR,85.00,,414.50
06/10/2025,FPI J SMITH MEMBERSHIP,,25.00,439.50
07/10/2025,DIRECT DEBIT MINIBUS HIRE LTD,240.00,,199.50`

		parser := NewParser(DefaultConfig())
		result, err := parser.Parse(strings.NewReader(csv))

		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalRows)
		assert.Equal(t, 3, result.ParsedRows)
		assert.Empty(t, result.Errors)
		require.Len(t, result.Transactions, 3)

		out := result.Transactions[0]
		assert.Equal(t, "CARD PAYMENT TO COTSWOLD OUTDOOR", out.Description)
		assert.Equal(t, int64(-8500), out.AmountPence)
		assert.Equal(t, time.October, out.Date.Month())
		assert.Equal(t, 4, out.Date.Day())

		in := result.Transactions[1]
		assert.Equal(t, int64(2500), in.AmountPence)
	})

	t.Run("parses a single signed amount column", func(t *testing.T) {
		csv := `date,description,amount,category
2025-10-04,Minibus fuel,-45.60,Transport
2025-10-06,Membership J Smith,25.00,Membership`

		parser := NewParser(DefaultConfig())
		result, err := parser.Parse(strings.NewReader(csv))

		require.NoError(t, err)
		assert.Equal(t, 2, result.ParsedRows)
		assert.Equal(t, int64(-4560), result.Transactions[0].AmountPence)
		assert.Equal(t, "Transport", result.Transactions[0].Category)
		assert.Equal(t, int64(2500), result.Transactions[1].AmountPence)
	})

	t.Run("matches headers regardless of casing", func(t *testing.T) {
		csv := `DATE,DESCRIPTION,AMOUNT
04/10/2025,Hut deposit,-120.00`

		parser := NewParser(DefaultConfig())
		result, err := parser.Parse(strings.NewReader(csv))

		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)
		assert.Equal(t, "Hut deposit", result.Transactions[0].Description)
		assert.Equal(t, int64(-12000), result.Transactions[0].AmountPence)
	})

	t.Run("skips metadata lines before the header", func(t *testing.T) {
		csv := `UMHC Club Account
Statement period: October 2025
date,description,amount
04/10/2025,Crag guidebooks,-32.50`

		config := DefaultConfig()
		config.SkipLines = 2

		parser := NewParser(config)
		result, err := parser.Parse(strings.NewReader(csv))

		require.NoError(t, err)
		assert.Equal(t, 1, result.ParsedRows)
		assert.Equal(t, "Crag guidebooks", result.Transactions[0].Description)
	})

	t.Run("captures row errors and keeps going", func(t *testing.T) {
		csv := `date,description,amount
not-a-date,Coffee after walk,-4.50
04/10/2025,Kit order,abc
05/10/2025,Map case,-10.00`

		parser := NewParser(DefaultConfig())
		result, err := parser.Parse(strings.NewReader(csv))

		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalRows)
		assert.Equal(t, 1, result.ParsedRows)
		require.Len(t, result.Errors, 2)
		assert.Equal(t, "date", result.Errors[0].Column)
		assert.Equal(t, "amount", result.Errors[1].Column)
	})

	t.Run("skips rows without a date", func(t *testing.T) {
		csv := `date,description,amount
04/10/2025,Bus to Stanage,-18.00
,BALANCE BROUGHT FORWARD,
05/10/2025,Chalk,-6.50`

		parser := NewParser(DefaultConfig())
		result, err := parser.Parse(strings.NewReader(csv))

		require.NoError(t, err)
		assert.Equal(t, 2, result.ParsedRows)
		assert.Equal(t, 1, result.SkippedRows)
	})

	t.Run("records a currency hint", func(t *testing.T) {
		csv := `date,description,amount
04/10/2025,Winter skills course,-£150.00`

		parser := NewParser(DefaultConfig())
		result, err := parser.Parse(strings.NewReader(csv))

		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)
		assert.Equal(t, "£", result.Transactions[0].CurrencyHint)
		assert.Equal(t, int64(-15000), result.Transactions[0].AmountPence)
	})

	t.Run("collapses whitespace in descriptions", func(t *testing.T) {
		csv := `date,description,amount
04/10/2025,"  CARD  PAYMENT   TO   GO OUTDOORS ",-42.00`

		parser := NewParser(DefaultConfig())
		result, err := parser.Parse(strings.NewReader(csv))

		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)
		assert.Equal(t, "CARD PAYMENT TO GO OUTDOORS", result.Transactions[0].Description)
	})
}

func TestParser_ParseWithColumns(t *testing.T) {
	t.Run("uses explicit indices for unknown headers", func(t *testing.T) {
		csv := `Posted,Memo Line,Out,In
04/10/2025,Hut fees YHA Snowdon,120.00,
06/10/2025,Trip payments received,,310.00`

		config := DefaultConfig()
		config.DateColumn = 0
		config.DescColumn = 1
		config.DebitColumn = 2
		config.CreditColumn = 3

		parser := NewParser(config)
		result, err := parser.ParseWithColumns(strings.NewReader(csv))

		require.NoError(t, err)
		assert.Equal(t, 2, result.ParsedRows)
		assert.Equal(t, int64(-12000), result.Transactions[0].AmountPence)
		assert.Equal(t, int64(31000), result.Transactions[1].AmountPence)
	})

	t.Run("reports rows with no usable amount", func(t *testing.T) {
		csv := `c0,c1,c2
04/10/2025,Missing amount,`

		config := DefaultConfig()
		config.DateColumn = 0
		config.DescColumn = 1
		config.AmountColumn = 2

		parser := NewParser(config)
		result, err := parser.ParseWithColumns(strings.NewReader(csv))

		require.NoError(t, err)
		assert.Equal(t, 0, result.ParsedRows)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "amount", result.Errors[0].Column)
	})

	t.Run("category column is passed through", func(t *testing.T) {
		csv := `c0,c1,c2,c3
04/10/2025,Rope,-85.00,Equipment`

		config := DefaultConfig()
		config.DateColumn = 0
		config.DescColumn = 1
		config.AmountColumn = 2
		config.CategoryColumn = 3

		parser := NewParser(config)
		result, err := parser.ParseWithColumns(strings.NewReader(csv))

		require.NoError(t, err)
		require.Len(t, result.Transactions, 1)
		assert.Equal(t, "Equipment", result.Transactions[0].Category)
	})
}

func TestParser_DateParsing(t *testing.T) {
	want := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)

	formats := []string{
		"2025-10-04",
		"04/10/2025",
		"04-10-2025",
		"04.10.2025",
		"4 Oct 2025",
		"04 Oct 2025",
		"4 October 2025",
		"2025/10/04",
	}

	parser := NewParser(DefaultConfig())

	for _, input := range formats {
		t.Run(input, func(t *testing.T) {
			date, err := parser.parseDate(input)
			require.NoError(t, err)
			assert.Equal(t, want.Year(), date.Year())
			assert.Equal(t, want.Month(), date.Month())
			assert.Equal(t, want.Day(), date.Day())
		})
	}

	t.Run("day comes before month in slash dates", func(t *testing.T) {
		date, err := parser.parseDate("04/05/2025")
		require.NoError(t, err)
		assert.Equal(t, time.May, date.Month())
		assert.Equal(t, 4, date.Day())
	})

	t.Run("configured format wins", func(t *testing.T) {
		config := DefaultConfig()
		config.DateFormat = "01/02/2006"
		p := NewParser(config)

		date, err := p.parseDate("04/05/2025")
		require.NoError(t, err)
		assert.Equal(t, time.April, date.Month())
		assert.Equal(t, 5, date.Day())
	})

	t.Run("rejects nonsense", func(t *testing.T) {
		_, err := parser.parseDate("sometime in October")
		assert.Error(t, err)
	})
}

func TestParser_PenceParsing(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		european bool
		pence    int64
		currency string
	}{
		{"plain", "25.00", false, 2500, ""},
		{"negative", "-12.50", false, -1250, ""},
		{"whole pounds", "240", false, 24000, ""},
		{"pound symbol", "£1,234.56", false, 123456, "£"},
		{"currency code", "GBP 10.00", false, 1000, "GBP"},
		{"parentheses negative", "(85.00)", false, -8500, ""},
		{"debit marker", "12.50DR", false, -1250, ""},
		{"credit marker", "12.50 CR", false, 1250, ""},
		{"thousands separator", "1,500.00", false, 150000, ""},
		{"continental separators", "1.234,56", true, 123456, ""},
		{"continental negative", "-1.234,56", true, -123456, ""},
		{"no float drift", "19.99", false, 1999, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			config.IsEuropeanFormat = tc.european
			parser := NewParser(config)

			pence, currency, err := parser.parsePence(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.pence, pence)
			assert.Equal(t, tc.currency, currency)
		})
	}

	t.Run("rejects non-numbers", func(t *testing.T) {
		parser := NewParser(DefaultConfig())
		_, _, err := parser.parsePence("n/a")
		assert.Error(t, err)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		parser := NewParser(DefaultConfig())
		_, _, err := parser.parsePence("  ")
		assert.Error(t, err)
	})
}

func TestParser_DebitCredit(t *testing.T) {
	parser := NewParser(DefaultConfig())

	t.Run("paid out is negative", func(t *testing.T) {
		pence, _ := parser.parseDebitCredit("85.00", "")
		assert.Equal(t, int64(-8500), pence)
	})

	t.Run("paid in is positive", func(t *testing.T) {
		pence, _ := parser.parseDebitCredit("", "25.00")
		assert.Equal(t, int64(2500), pence)
	})

	t.Run("already signed debit stays negative", func(t *testing.T) {
		pence, _ := parser.parseDebitCredit("-85.00", "")
		assert.Equal(t, int64(-8500), pence)
	})

	t.Run("debit wins when both are filled", func(t *testing.T) {
		pence, _ := parser.parseDebitCredit("85.00", "25.00")
		assert.Equal(t, int64(-8500), pence)
	})
}

func TestStreamingParser_ParseStream(t *testing.T) {
	csv := `date,description,amount
04/10/2025,Bus to Stanage,-18.00
05/10/2025,Chalk,-6.50
06/10/2025,Membership J Smith,25.00`

	config := DefaultConfig()
	config.DateColumn = 0
	config.DescColumn = 1
	config.AmountColumn = 2
	parser := NewStreamingParser(config, 2)

	results, statsChan := parser.ParseStream(context.Background(), strings.NewReader(csv))

	var transactions []ParsedTransaction
	var parseErrors []ParseError

	for result := range results {
		if result.Transaction != nil {
			transactions = append(transactions, *result.Transaction)
		}
		if result.Error != nil {
			parseErrors = append(parseErrors, *result.Error)
		}
	}
	stats := <-statsChan

	assert.Len(t, transactions, 3)
	assert.Empty(t, parseErrors)
	assert.Equal(t, int64(3), stats.TotalRows)

	var total int64
	for _, tx := range transactions {
		total += tx.AmountPence
	}
	assert.Equal(t, int64(50), total)
}

func TestStreamingParser_RowErrors(t *testing.T) {
	csv := `date,description,amount
bad-date,Coffee,-4.50
05/10/2025,Chalk,-6.50`

	config := DefaultConfig()
	config.DateColumn = 0
	config.DescColumn = 1
	config.AmountColumn = 2
	parser := NewStreamingParser(config, 2)

	results, statsChan := parser.ParseStream(context.Background(), strings.NewReader(csv))

	var parsed, failed int
	for result := range results {
		if result.Transaction != nil {
			parsed++
		}
		if result.Error != nil {
			failed++
		}
	}
	<-statsChan

	assert.Equal(t, 1, parsed)
	assert.Equal(t, 1, failed)
}

func TestStreamingParser_ContextCancellation(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("date,description,amount\n")
	for i := 0; i < 1000; i++ {
		sb.WriteString(fmt.Sprintf("04/10/2025,Trip payment %d,-10.00\n", i))
	}

	config := DefaultConfig()
	config.DateColumn = 0
	config.DescColumn = 1
	config.AmountColumn = 2
	parser := NewStreamingParser(config, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results, _ := parser.ParseStream(ctx, strings.NewReader(sb.String()))

	count := 0
	for range results {
		count++
		if count > 10 {
			cancel()
			break
		}
	}

	// drain whatever was already in flight
	for range results {
		count++
	}

	assert.Less(t, count, 1000)
}

func TestChunkReader_ReportsProgress(t *testing.T) {
	data := strings.Repeat("x", 1000)

	var lastRead, lastTotal int64
	reader := NewChunkReader(strings.NewReader(data), int64(len(data)), func(bytesRead, totalSize int64) {
		lastRead = bytesRead
		lastTotal = totalSize
	})

	buf := make([]byte, 256)
	for {
		if _, err := reader.Read(buf); err != nil {
			break
		}
	}

	assert.Equal(t, int64(1000), reader.BytesRead())
	assert.Equal(t, int64(1000), lastRead)
	assert.Equal(t, int64(1000), lastTotal)
}
