package finance

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// QuickAddEntry is the result of parsing one line of treasurer shorthand.
type QuickAddEntry struct {
	Description string    // Cleaned description text
	AmountPence int64     // Amount in pence
	Type        string    // Income or Expense
	OccurredOn  time.Time // Transaction date (default: today)
	RawText     string    // Original input text
}

// QuickAddParser parses the free-text quick-add box on the dashboard.
// Lines look like "minibus fuel £42.50", "+membership 25", or
// "bunkhouse deposit 120".
type QuickAddParser struct {
	// Pattern for amounts: £42.50, GBP 42, 42.50, 42,50
	amountRegex *regexp.Regexp
}

// NewQuickAddParser creates a new quick-add parser instance.
func NewQuickAddParser() *QuickAddParser {
	// Groups: (currency prefix)(amount)(currency suffix)
	amountPattern := `(?:(£|GBP)\s*)?(\d+(?:[.,]\d{1,2})?)\s*(£|GBP)?`
	return &QuickAddParser{
		amountRegex: regexp.MustCompile(amountPattern),
	}
}

// Parse extracts a ledger entry from one shorthand line. A leading "+"
// marks income; everything else is an expense. The last number on the
// line is taken as the amount.
// Examples:
//   - "minibus fuel £42.50" → Expense, 4250, "Minibus fuel"
//   - "+membership 25"      → Income, 2500, "Membership"
//   - "note to self"        → amount 0 (callers reject)
func (p *QuickAddParser) Parse(rawText string) QuickAddEntry {
	entry := QuickAddEntry{
		RawText:    rawText,
		Type:       TypeExpense,
		OccurredOn: time.Now(),
	}

	text := strings.TrimSpace(rawText)
	if strings.HasPrefix(text, "+") {
		entry.Type = TypeIncome
		text = strings.TrimSpace(strings.TrimPrefix(text, "+"))
	}

	matches := p.amountRegex.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		// No amount found, entire text is description
		entry.Description = cleanQuickAddText(text)
		return entry
	}

	// Use the last match: trailing amounts beat numbers inside the
	// description ("welsh 3000s deposit 120" must not read 3000). A
	// currency-marked match ("£45") beats any bare number regardless of
	// position.
	match := matches[len(matches)-1]
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if m[2] != -1 || m[6] != -1 {
			match = m
			break
		}
	}
	amountStr := text[match[4]:match[5]]
	entry.AmountPence = parsePence(amountStr)

	// Description is the text without the amount part
	description := text[:match[0]] + text[match[1]:]
	entry.Description = cleanQuickAddText(description)

	return entry
}

// parsePence converts "42.50" or "42,50" to integer pence.
func parsePence(amountStr string) int64 {
	amountStr = strings.Replace(amountStr, ",", ".", 1)

	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return 0
	}

	return int64(math.Round(amount * 100))
}

// cleanQuickAddText collapses whitespace and capitalizes the first letter.
func cleanQuickAddText(text string) string {
	text = strings.Join(strings.Fields(text), " ")

	if len(text) > 0 {
		text = strings.ToUpper(text[:1]) + text[1:]
	}

	return text
}
