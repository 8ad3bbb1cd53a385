package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_Normalize(t *testing.T) {
	n := NewNormalizer()

	t.Run("recognizes gear shops behind card prefixes", func(t *testing.T) {
		info := n.Normalize("CARD PAYMENT TO COTSWOLD OUTDOOR LTD MANCHESTER GB")

		assert.Equal(t, "Cotswold Outdoor", info.Merchant)
		assert.Equal(t, "Equipment", info.Category)
		assert.Equal(t, "CARD PAYMENT TO COTSWOLD OUTDOOR LTD MANCHESTER GB", info.Original)
	})

	t.Run("recognizes hostels", func(t *testing.T) {
		info := n.Normalize("YHA SNOWDON PEN Y PASS 045671")

		assert.Equal(t, "YHA", info.Merchant)
		assert.Equal(t, "Accommodation", info.Category)
	})

	t.Run("recognizes transport operators", func(t *testing.T) {
		for input, merchant := range map[string]string{
			"TRAINLINE.COM LONDON":            "Trainline",
			"DIRECT DEBIT ENTERPRISE RENT":    "Enterprise Rent-A-Car",
			"CONTACTLESS PAYMENT SHELL 40551": "Shell",
		} {
			info := n.Normalize(input)
			assert.Equal(t, merchant, info.Merchant, input)
			assert.Equal(t, "Transport", info.Category, input)
		}
	})

	t.Run("unknown payees keep an empty category", func(t *testing.T) {
		info := n.Normalize("FPI J SMITH KIT DEPOSIT")

		assert.Empty(t, info.Merchant)
		assert.Empty(t, info.Category)
		assert.Equal(t, "J Smith Kit Deposit", info.Normalized)
	})

	t.Run("strips trailing references and country codes", func(t *testing.T) {
		info := n.Normalize("CARD PAYMENT TO MYSTERY CAFE 1234567 GB")

		assert.Equal(t, "Mystery Cafe", info.Normalized)
	})

	t.Run("strips trailing card dates", func(t *testing.T) {
		info := n.Normalize("MYSTERY CAFE 04/10")

		assert.Equal(t, "Mystery Cafe", info.Normalized)
	})

	t.Run("bmc affiliation maps to insurance", func(t *testing.T) {
		info := n.Normalize("BACS BRITISH MOUNTAINEERING COUNCIL")

		assert.Equal(t, "BMC", info.Merchant)
		assert.Equal(t, "Insurance", info.Category)
	})
}

func TestNormalizer_AddPattern(t *testing.T) {
	n := NewNormalizer()

	require.NoError(t, n.AddPattern(`(?i)PETES\s*EATS`, "Pete's Eats", "Food & Drink"))

	info := n.Normalize("CARD PAYMENT TO PETES EATS LLANBERIS")
	assert.Equal(t, "Pete's Eats", info.Merchant)
	assert.Equal(t, "Food & Drink", info.Category)

	t.Run("rejects malformed patterns", func(t *testing.T) {
		assert.Error(t, n.AddPattern(`([`, "Broken", ""))
	})
}

func TestCleanNarrative(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"card prefix", "CARD PAYMENT TO TESCO STORES", "TESCO STORES"},
		{"direct debit prefix", "DIRECT DEBIT PAYMENT TO MINIBUS HIRE LTD", "MINIBUS HIRE LTD"},
		{"faster payment in", "FPI SMITH J MEMBERSHIP", "SMITH J MEMBERSHIP"},
		{"standing order", "STANDING ORDER TO HUT FUND", "HUT FUND"},
		{"trailing reference", "GO OUTDOORS 00418841", "GO OUTDOORS"},
		{"trailing amount", "COTSWOLD OUTDOOR,45.60", "COTSWOLD OUTDOOR"},
		{"squeezed spaces", "YHA   PEN  Y  PASS", "YHA PEN Y PASS"},
		{"untouched", "Minibus fuel", "Minibus fuel"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cleanNarrative(tc.input))
		})
	}
}
