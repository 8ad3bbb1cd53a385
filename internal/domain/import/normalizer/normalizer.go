// Package normalizer strips bank narrative noise from imported descriptions
// and recognizes the merchants a mountaineering club actually pays.
package normalizer

import (
	"regexp"
	"strings"
)

// NarrativeInfo is the result of normalizing one statement description.
type NarrativeInfo struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
	Merchant   string `json:"merchant,omitempty"`
	Category   string `json:"category,omitempty"`
}

// MerchantPattern matches a known merchant and carries its category hint.
type MerchantPattern struct {
	Pattern  *regexp.Regexp
	Name     string
	Category string
}

// Normalizer cleans narratives and matches them against known merchants.
type Normalizer struct {
	patterns []MerchantPattern
}

// NewNormalizer creates a normalizer loaded with the default UK merchant
// patterns.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		patterns: defaultMerchantPatterns(),
	}
}

// Normalize cleans a raw narrative and, when it matches a known merchant,
// fills in the merchant name and a category hint. Unmatched narratives keep
// an empty Category so the classifier downstream decides.
func (n *Normalizer) Normalize(raw string) NarrativeInfo {
	result := NarrativeInfo{
		Original: raw,
	}

	cleaned := cleanNarrative(raw)
	result.Normalized = titleCase(cleaned)

	for _, pattern := range n.patterns {
		if pattern.Pattern.MatchString(cleaned) {
			result.Merchant = pattern.Name
			result.Category = pattern.Category
			break
		}
	}

	return result
}

// AddPattern registers a custom merchant pattern, checked after the
// defaults.
func (n *Normalizer) AddPattern(pattern, name, category string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	n.patterns = append(n.patterns, MerchantPattern{
		Pattern:  re,
		Name:     name,
		Category: category,
	})
	return nil
}

// Narrative prefixes UK banks prepend to the payee. Longer variants sit
// before their abbreviations so "DIRECT DEBIT PAYMENT TO" wins over
// "DIRECT DEBIT".
var narrativePrefixes = []string{
	"CARD PAYMENT TO ",
	"CARD PURCHASE ",
	"CONTACTLESS PAYMENT ",
	"DIRECT DEBIT PAYMENT TO ",
	"DIRECT DEBIT ",
	"DDR ",
	"STANDING ORDER TO ",
	"STANDING ORDER ",
	"STO ",
	"FASTER PAYMENTS RECEIPT ",
	"FASTER PAYMENT ",
	"FPI ",
	"FPO ",
	"BACS PAYMENT ",
	"BACS ",
	"BGC ",
	"TRANSFER TO ",
	"TRANSFER FROM ",
	"TFR ",
	"CASH WITHDRAWAL ",
	"ATM ",
	"POS ",
	"CHQ ",
}

var (
	refPattern    = regexp.MustCompile(`\s+\d{4,}$`)
	dateTailRe    = regexp.MustCompile(`\s+\d{1,2}/\d{1,2}/?$`)
	countryTailRe = regexp.MustCompile(`\s+GBR?$`)
	amountTailRe  = regexp.MustCompile(`,\s*\d+\.\d{2}\s*$`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)
)

// cleanNarrative removes bank boilerplate: payment-type prefixes, trailing
// reference numbers, card dates and country codes.
func cleanNarrative(raw string) string {
	result := strings.TrimSpace(raw)

	upper := strings.ToUpper(result)
	for _, prefix := range narrativePrefixes {
		if strings.HasPrefix(upper, prefix) {
			result = result[len(prefix):]
			break
		}
	}

	result = amountTailRe.ReplaceAllString(result, "")
	result = countryTailRe.ReplaceAllString(result, "")
	result = refPattern.ReplaceAllString(result, "")
	result = dateTailRe.ReplaceAllString(result, "")
	result = multiSpaceRe.ReplaceAllString(result, " ")

	return strings.TrimSpace(result)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(string(word[0])) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}

// defaultMerchantPatterns covers the shops, hostels and operators that turn
// up on a UK club account. The category hint feeds the import pipeline when
// no committee rule matches.
func defaultMerchantPatterns() []MerchantPattern {
	return []MerchantPattern{
		// Gear shops
		{regexp.MustCompile(`(?i)COTSWOLD\s*OUTDOOR`), "Cotswold Outdoor", "Equipment"},
		{regexp.MustCompile(`(?i)GO\s*OUTDOORS`), "Go Outdoors", "Equipment"},
		{regexp.MustCompile(`(?i)ELLIS\s*BRIGHAM`), "Ellis Brigham", "Equipment"},
		{regexp.MustCompile(`(?i)DECATHLON`), "Decathlon", "Equipment"},
		{regexp.MustCompile(`(?i)ALPKIT`), "Alpkit", "Equipment"},
		{regexp.MustCompile(`(?i)JOE\s*BROWN`), "Joe Brown's", "Equipment"},
		{regexp.MustCompile(`(?i)NEEDLE\s*SPORTS`), "Needle Sports", "Equipment"},

		// Hostels and bunkhouses
		{regexp.MustCompile(`(?i)\bYHA\b|YOUTH\s*HOSTEL`), "YHA", "Accommodation"},
		{regexp.MustCompile(`(?i)TRAVELODGE`), "Travelodge", "Accommodation"},
		{regexp.MustCompile(`(?i)PREMIER\s*INN`), "Premier Inn", "Accommodation"},
		{regexp.MustCompile(`(?i)AIRBNB`), "Airbnb", "Accommodation"},
		{regexp.MustCompile(`(?i)BOOKING\.COM`), "Booking.com", "Accommodation"},

		// Getting to the hills
		{regexp.MustCompile(`(?i)TRAINLINE`), "Trainline", "Transport"},
		{regexp.MustCompile(`(?i)NATIONAL\s*EXPRESS`), "National Express", "Transport"},
		{regexp.MustCompile(`(?i)MEGABUS`), "Megabus", "Transport"},
		{regexp.MustCompile(`(?i)STAGECOACH`), "Stagecoach", "Transport"},
		{regexp.MustCompile(`(?i)ENTERPRISE\s*RENT`), "Enterprise Rent-A-Car", "Transport"},
		{regexp.MustCompile(`(?i)\bSHELL\b`), "Shell", "Transport"},
		{regexp.MustCompile(`(?i)\bESSO\b`), "Esso", "Transport"},
		{regexp.MustCompile(`(?i)\bBP\b`), "BP", "Transport"},
		{regexp.MustCompile(`(?i)TEXACO`), "Texaco", "Transport"},

		// Trip food runs
		{regexp.MustCompile(`(?i)\bTESCO\b`), "Tesco", "Food & Drink"},
		{regexp.MustCompile(`(?i)SAINSBURY`), "Sainsbury's", "Food & Drink"},
		{regexp.MustCompile(`(?i)\bASDA\b`), "Asda", "Food & Drink"},
		{regexp.MustCompile(`(?i)MORRISONS`), "Morrisons", "Food & Drink"},
		{regexp.MustCompile(`(?i)\bALDI\b`), "Aldi", "Food & Drink"},
		{regexp.MustCompile(`(?i)\bLIDL\b`), "Lidl", "Food & Drink"},
		{regexp.MustCompile(`(?i)CO-?OP`), "Co-op", "Food & Drink"},
		{regexp.MustCompile(`(?i)GREGGS`), "Greggs", "Food & Drink"},

		// Socials
		{regexp.MustCompile(`(?i)WETHERSPOON`), "J D Wetherspoon", "Social"},
		{regexp.MustCompile(`(?i)DOMINO'?S`), "Domino's", "Social"},

		// Walls, courses and affiliation
		{regexp.MustCompile(`(?i)AWESOME\s*WALLS`), "Awesome Walls", "Training"},
		{regexp.MustCompile(`(?i)CLIMBING\s*WORKS`), "The Climbing Works", "Training"},
		{regexp.MustCompile(`(?i)DEPOT\s*CLIMBING`), "The Depot", "Training"},
		{regexp.MustCompile(`(?i)PLAS\s*Y\s*BRENIN`), "Plas y Brenin", "Training"},
		{regexp.MustCompile(`(?i)MOUNTAIN\s*TRAINING`), "Mountain Training", "Training"},
		{regexp.MustCompile(`(?i)\bBMC\b|BRITISH\s*MOUNTAINEERING`), "BMC", "Insurance"},

		// Admin
		{regexp.MustCompile(`(?i)ROYAL\s*MAIL`), "Royal Mail", "Administration"},
	}
}
