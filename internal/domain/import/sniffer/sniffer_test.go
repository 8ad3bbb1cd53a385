package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConfig(t *testing.T) {
	t.Run("detects a comma separated bank export", func(t *testing.T) {
		data := []byte(`Date,Description,Paid Out,Paid In,Balance
04/10/2025,CARD PAYMENT TO COTSWOLD OUTDOOR,85.00,,414.50
06/10/2025,FPI J SMITH MEMBERSHIP,,25.00,439.50`)

		config, err := DetectConfig(data)

		require.NoError(t, err)
		assert.Equal(t, ',', config.Delimiter)
		assert.Equal(t, 0, config.SkipLines)
		assert.Equal(t, []string{"Date", "Description", "Paid Out", "Paid In", "Balance"}, config.Headers)
		assert.NotEmpty(t, config.Fingerprint)
		assert.Len(t, config.SampleRows, 2)
	})

	t.Run("finds headers below metadata lines", func(t *testing.T) {
		data := []byte(`UMHC Club Account
Statement period: 01/10/2025 to 31/10/2025
Date,Description,Amount
04/10/2025,Minibus fuel,-45.60`)

		config, err := DetectConfig(data)

		require.NoError(t, err)
		assert.Equal(t, 2, config.SkipLines)
		assert.Equal(t, []string{"Date", "Description", "Amount"}, config.Headers)
	})

	t.Run("handles tab separated exports", func(t *testing.T) {
		data := []byte("Date\tDescription\tAmount\n04/10/2025\tChalk\t-6.50")

		config, err := DetectConfig(data)

		require.NoError(t, err)
		assert.Equal(t, '\t', config.Delimiter)
	})

	t.Run("strips a byte order mark", func(t *testing.T) {
		data := []byte("\uFEFFDate,Description,Amount\n04/10/2025,Chalk,-6.50")

		config, err := DetectConfig(data)

		require.NoError(t, err)
		assert.Equal(t, "Date", config.Headers[0])
	})

	t.Run("rejects empty files", func(t *testing.T) {
		_, err := DetectConfig(nil)
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("honors a forced header row", func(t *testing.T) {
		data := []byte(`ignore,this,line
Date,Description,Amount
04/10/2025,Chalk,-6.50`)

		config, err := DetectConfigWithOptions(data, &DetectOptions{HeaderRowIndex: 1})

		require.NoError(t, err)
		assert.Equal(t, 1, config.SkipLines)
		assert.Equal(t, []string{"Date", "Description", "Amount"}, config.Headers)
	})
}

func TestSuggestColumns(t *testing.T) {
	t.Run("maps a paid out and paid in export", func(t *testing.T) {
		s := SuggestColumns([]string{"Date", "Description", "Paid Out", "Paid In", "Balance"})

		assert.Equal(t, 0, s.DateCol)
		assert.Equal(t, 1, s.DescCol)
		assert.Equal(t, 2, s.DebitCol)
		assert.Equal(t, 3, s.CreditCol)
		assert.Equal(t, -1, s.AmountCol)
		assert.True(t, s.IsDoubleEntry)
	})

	t.Run("maps a single amount export", func(t *testing.T) {
		s := SuggestColumns([]string{"Transaction Date", "Details", "Amount", "Balance"})

		assert.Equal(t, 0, s.DateCol)
		assert.Equal(t, 1, s.DescCol)
		assert.Equal(t, 2, s.AmountCol)
		assert.False(t, s.IsDoubleEntry)
	})

	t.Run("value date never becomes the amount", func(t *testing.T) {
		s := SuggestColumns([]string{"Value Date", "Narrative", "Value", "Balance"})

		assert.Equal(t, 0, s.DateCol)
		assert.Equal(t, 1, s.DescCol)
		assert.Equal(t, 2, s.AmountCol)
	})

	t.Run("transaction type maps to category", func(t *testing.T) {
		s := SuggestColumns([]string{"Date", "Reference", "Amount", "Transaction Type"})

		assert.Equal(t, 3, s.CategoryCol)
	})

	t.Run("unknown headers stay unmapped", func(t *testing.T) {
		s := SuggestColumns([]string{"a", "b", "c"})

		assert.Equal(t, -1, s.DateCol)
		assert.Equal(t, -1, s.DescCol)
		assert.Equal(t, -1, s.AmountCol)
	})
}

func TestProbeDialect(t *testing.T) {
	t.Run("pound amounts read as UK", func(t *testing.T) {
		rows := [][]string{
			{"04/10/2025", "Minibus hire", "£1,234.56"},
			{"05/10/2025", "Membership", "£25.00"},
		}

		d := ProbeDialect(rows, 2, 0)

		assert.False(t, d.IsEuropeanFormat)
		assert.Equal(t, "GBP", d.CurrencyHint)
		assert.Equal(t, "DD/MM/YYYY", d.DateFormat)
	})

	t.Run("continental separators flip the dialect", func(t *testing.T) {
		rows := [][]string{
			{"04.10.2025", "Alpenverein hut fees", "1.234,56"},
			{"05.10.2025", "Cable car", "45,00"},
		}

		d := ProbeDialect(rows, 2, 0)

		assert.True(t, d.IsEuropeanFormat)
		assert.Equal(t, ',', d.DecimalSeparator)
	})

	t.Run("ambiguous dates stay day first", func(t *testing.T) {
		rows := [][]string{
			{"04/05/2025", "Chalk", "6.50"},
		}

		d := ProbeDialect(rows, 2, 0)

		assert.Equal(t, "DD/MM/YYYY", d.DateFormat)
	})

	t.Run("day over twelve proves day first", func(t *testing.T) {
		rows := [][]string{
			{"25/04/2025", "Chalk", "6.50"},
		}

		d := ProbeDialect(rows, 2, 0)

		assert.Equal(t, "DD/MM/YYYY", d.DateFormat)
	})

	t.Run("unambiguous US dates flip the order", func(t *testing.T) {
		rows := [][]string{
			{"04/25/2025", "Gear shop", "$120.00"},
		}

		d := ProbeDialect(rows, 2, 0)

		assert.Equal(t, "MM/DD/YYYY", d.DateFormat)
		assert.Equal(t, "USD", d.CurrencyHint)
	})
}

func TestGenerateFingerprint(t *testing.T) {
	a := generateFingerprint([]string{"Date", "Description", "Paid Out", "Paid In"})
	b := generateFingerprint([]string{"date", "DESCRIPTION", "paid-out", "Paid In "})
	c := generateFingerprint([]string{"Date", "Details", "Amount"})

	assert.Equal(t, a, b, "case and punctuation must not change the fingerprint")
	assert.NotEqual(t, a, c)
}
