package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	// looseDateRe screens fragments for date candidacy after OCR repair.
	looseDateRe = regexp.MustCompile(`^\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}$`)

	// normalizedAmountRe is the final gate for amounts: integer part up to
	// six digits, exactly two decimals. Bare integers never reach this
	// pattern; they are rejected earlier as reference numbers.
	normalizedAmountRe = regexp.MustCompile(`^\d{1,6}\.\d{2}$`)

	// strictCurrencyCoreRe matches a well-formed amount body, with or
	// without thousands separators, once symbols and signs are stripped.
	strictCurrencyCoreRe = regexp.MustCompile(`^(?:\d{1,3}(?:,\d{3})+|\d{1,6})\.\d{2}$`)

	// minTxAmount is the exclusive lower bound for accepted amounts.
	minTxAmount = decimal.New(1, -2) // 0.01
)

// digitConfusions maps glyphs that scanners routinely misread for digits.
var digitConfusions = map[rune]rune{
	'O': '0', 'o': '0',
	'I': '1', 'l': '1', '|': '1',
	'S': '5', 's': '5',
	'Z': '2', 'z': '2',
	'G': '6', 'g': '6',
}

// Normalizer validates and canonicalizes raw date and amount tokens.
// Both entry points return (value, ok); a failed parse is a local no-value
// result for one token, never an error that aborts the page.
type Normalizer struct {
	maxFutureYears int
	maxAmount      decimal.Decimal
	now            func() time.Time
}

// NewNormalizer builds a Normalizer from the extraction config, falling
// back to defaults for unset limits.
func NewNormalizer(cfg Config) *Normalizer {
	n := &Normalizer{
		maxFutureYears: cfg.MaxFutureYears,
		maxAmount:      cfg.MaxAmount,
		now:            time.Now,
	}
	if n.maxFutureYears <= 0 {
		n.maxFutureYears = defaultMaxFutureYears
	}
	if n.maxAmount.IsZero() {
		n.maxAmount = defaultMaxAmount()
	}
	return n
}

// NormalizeDate canonicalizes a raw date token to DD/MM/YYYY. It repairs
// common OCR glyph confusions, unifies separators, expands two-digit years,
// swaps day and month when the month position is impossible, and round-trips
// the result through the calendar. Dates more than maxFutureYears ahead of
// the current time are rejected. There is no default: an unparseable token
// means no date.
func (n *Normalizer) NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	s = substituteDigitConfusions(s)
	s = strings.NewReplacer("-", "/", ".", "/").Replace(s)

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return "", false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return "", false
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return "", false
		}
		nums[i] = v
	}
	day, month, year := nums[0], nums[1], nums[2]

	if len(strings.TrimSpace(parts[2])) <= 2 {
		if year > 50 {
			year += 1900
		} else {
			year += 2000
		}
	}

	// UK statements are day-first; an impossible month means the token was
	// month-first, so swap when that reading is plausible.
	if month > 12 && day <= 12 {
		day, month = month, day
	}

	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 || year > 2100 {
		return "", false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return "", false
	}

	if t.After(n.now().AddDate(n.maxFutureYears, 0, 0)) {
		return "", false
	}

	return fmt.Sprintf("%02d/%02d/%04d", day, month, year), true
}

// ParseCurrencyAmount validates a raw amount token and returns its signed
// decimal value. Tokens without a decimal separator are rejected outright:
// bare integers on statements are reference numbers, not amounts. The sign
// is taken from parentheses, a leading minus, or the words "out"/"debit" in
// the raw text. Values outside (0.01, maxAmount] are rejected.
func (n *Normalizer) ParseCurrencyAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}

	lower := strings.ToLower(s)
	negative := strings.Contains(s, "(") && strings.Contains(s, ")") ||
		strings.HasPrefix(strings.TrimLeft(s, " £$€"), "-") ||
		strings.Contains(lower, "out") ||
		strings.Contains(lower, "debit")

	s = substituteDigitConfusions(s)

	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" {
		return decimal.Zero, false
	}

	s, ok := resolveDecimalSeparator(s)
	if !ok {
		return decimal.Zero, false
	}

	if !normalizedAmountRe.MatchString(s) {
		return decimal.Zero, false
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if value.Cmp(minTxAmount) <= 0 || value.Cmp(n.maxAmount) > 0 {
		return decimal.Zero, false
	}

	if negative {
		value = value.Neg()
	}
	return value, true
}

// resolveDecimalSeparator reduces mixed comma/dot tokens to a single dot
// decimal point. When both appear the right-most separator is the decimal
// point. A lone comma counts as a decimal point only with exactly two
// digits after it; a token with no separator at all is rejected.
func resolveDecimalSeparator(s string) (string, bool) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			return strings.ReplaceAll(s, ",", ""), true
		}
		s = strings.ReplaceAll(s, ".", "")
		i := strings.LastIndex(s, ",")
		return strings.ReplaceAll(s[:i], ",", "") + "." + s[i+1:], true

	case lastComma >= 0:
		if len(s)-lastComma-1 != 2 {
			return "", false
		}
		return strings.ReplaceAll(s[:lastComma], ",", "") + "." + s[lastComma+1:], true

	case lastDot >= 0:
		return s, true

	default:
		return "", false
	}
}

// substituteDigitConfusions repairs OCR glyph confusions, but only where a
// digit sits next to the glyph (looking through separators and currency
// symbols). Letters inside ordinary words are left alone. Two passes so
// chains like "2OO5" resolve fully.
func substituteDigitConfusions(s string) string {
	runes := []rune(s)
	changed := false
	for i := 0; i < len(runes); i++ {
		changed = trySubstitute(runes, i) || changed
	}
	for i := len(runes) - 1; i >= 0; i-- {
		changed = trySubstitute(runes, i) || changed
	}
	if !changed {
		return s
	}
	return string(runes)
}

func trySubstitute(runes []rune, i int) bool {
	sub, ok := digitConfusions[runes[i]]
	if !ok || !hasDigitNeighbor(runes, i) {
		return false
	}
	runes[i] = sub
	return true
}

func hasDigitNeighbor(runes []rune, i int) bool {
	for j := i - 1; j >= 0; j-- {
		if unicode.IsDigit(runes[j]) {
			return true
		}
		if !isTokenSeparator(runes[j]) {
			break
		}
	}
	for j := i + 1; j < len(runes); j++ {
		if unicode.IsDigit(runes[j]) {
			return true
		}
		if !isTokenSeparator(runes[j]) {
			break
		}
	}
	return false
}

// isTokenSeparator lists the characters that may legitimately sit between
// digits inside a date or amount token. Spaces are deliberately excluded so
// trailing words ("50.00 GBP") keep their letters.
func isTokenSeparator(r rune) bool {
	switch r {
	case '/', '-', '.', ',', '£', '$', '€', '(', ')':
		return true
	}
	return false
}

// looksLikeDate is the row parser's cheap screen for date fragments.
func looksLikeDate(s string) bool {
	return looseDateRe.MatchString(substituteDigitConfusions(strings.TrimSpace(s)))
}

// looksCurrencyLike is the loose candidate check for amount fragments:
// at least one digit plus a decimal or thousands separator. Final say
// belongs to ParseCurrencyAmount.
func looksCurrencyLike(s string) bool {
	return strings.ContainsFunc(s, unicode.IsDigit) && strings.ContainsAny(s, ".,")
}

// isCurrencyToken is the strict form used for column inference: after OCR
// repair and symbol stripping the token must be a fully well-formed amount.
func isCurrencyToken(s string) bool {
	s = substituteDigitConfusions(strings.TrimSpace(s))
	s = strings.Trim(s, " £$€()-")
	return strictCurrencyCoreRe.MatchString(s)
}
