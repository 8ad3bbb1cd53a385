package insights

import (
	"fmt"
	"sort"
	"time"

	"github.com/UMHC/umhc-finance/pkg/money"
)

// Maximum entries surfaced per report section.
const (
	topGroupLimit   = 5
	largestLimit    = 5
	changeLimit     = 3
	minChangePence  = 2000 // ignore category swings under £20
	changePctToFlag = 50.0
)

// ChangeSentiment marks whether a month-over-month change helps or hurts
// the club's finances.
type ChangeSentiment string

const (
	SentimentPositive ChangeSentiment = "positive"
	SentimentNegative ChangeSentiment = "negative"
	SentimentNeutral  ChangeSentiment = "neutral"
)

// Change is one notable difference from the previous month.
type Change struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	DeltaPence  int64           `json:"delta_pence"`
	Sentiment   ChangeSentiment `json:"sentiment"`
}

// MonthlyReport is the treasurer's month-end summary.
type MonthlyReport struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`

	Totals   MonthTotals `json:"totals"`
	Previous MonthTotals `json:"previous"`

	TopCategories []GroupTotal   `json:"top_categories"`
	TopEvents     []GroupTotal   `json:"top_events"`
	Largest       []LedgerLine   `json:"largest_transactions"`
	Uncategorized int64          `json:"uncategorized_count"`
	Imports       ImportActivity `json:"import_activity"`

	Changes    []Change `json:"changes"`
	Highlights []string `json:"highlights"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Period returns the report month as "January 2026".
func (r *MonthlyReport) Period() string {
	return fmt.Sprintf("%s %d", r.Month, r.Year)
}

// monthWindow returns [start, end) for a calendar month.
func monthWindow(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// detectChanges compares expense totals per category between two months
// and keeps the biggest swings, the way a treasurer scans two statements
// side by side.
func detectChanges(current, previous map[string]int64) []Change {
	names := make(map[string]bool, len(current)+len(previous))
	for name := range current {
		names[name] = true
	}
	for name := range previous {
		names[name] = true
	}

	var changes []Change
	for name := range names {
		now, before := current[name], previous[name]
		delta := now - before
		if abs64(delta) < minChangePence {
			continue
		}

		c := Change{DeltaPence: delta}
		switch {
		case before == 0:
			c.Title = fmt.Sprintf("New spending: %s", name)
			c.Description = fmt.Sprintf("%s spent on %s, nothing the month before.", displayPence(now), name)
			c.Sentiment = SentimentNeutral
		case delta > 0:
			c.Title = fmt.Sprintf("%s spending up", name)
			c.Description = fmt.Sprintf("%s this month against %s last month.", displayPence(now), displayPence(before))
			c.Sentiment = SentimentNegative
			if pct := float64(delta) / float64(before) * 100; pct >= changePctToFlag {
				c.Description += fmt.Sprintf(" That is a %.0f%% rise.", pct)
			}
		default:
			c.Title = fmt.Sprintf("%s spending down", name)
			c.Description = fmt.Sprintf("%s this month against %s last month.", displayPence(now), displayPence(before))
			c.Sentiment = SentimentPositive
		}
		changes = append(changes, c)
	}

	sort.Slice(changes, func(i, j int) bool {
		return abs64(changes[i].DeltaPence) > abs64(changes[j].DeltaPence)
	})
	if len(changes) > changeLimit {
		changes = changes[:changeLimit]
	}
	return changes
}

// buildHighlights writes the one-line summary sentences at the top of the
// report email.
func buildHighlights(r *MonthlyReport) []string {
	var highlights []string

	net := r.Totals.NetPence()
	switch {
	case r.Totals.Count == 0:
		highlights = append(highlights, fmt.Sprintf("No transactions recorded in %s.", r.Period()))
		return highlights
	case net > 0:
		highlights = append(highlights, fmt.Sprintf("The club finished %s up %s.", r.Period(), displayPence(net)))
	case net < 0:
		highlights = append(highlights, fmt.Sprintf("The club finished %s down %s.", r.Period(), displayPence(-net)))
	default:
		highlights = append(highlights, fmt.Sprintf("The club broke even in %s.", r.Period()))
	}

	if len(r.TopEvents) > 0 {
		top := r.TopEvents[0]
		highlights = append(highlights, fmt.Sprintf("Biggest event: %s (%s in, %s out).",
			top.Name, displayPence(top.IncomePence), displayPence(top.ExpensePence)))
	}

	if prev := r.Previous.ExpensePence; prev > 0 {
		delta := r.Totals.ExpensePence - prev
		pct := float64(delta) / float64(prev) * 100
		if delta > 0 {
			highlights = append(highlights, fmt.Sprintf("Spending rose %.0f%% on last month.", pct))
		} else if delta < 0 {
			highlights = append(highlights, fmt.Sprintf("Spending fell %.0f%% on last month.", -pct))
		}
	}

	if r.Uncategorized > 0 {
		highlights = append(highlights, fmt.Sprintf("%d transactions still need a category.", r.Uncategorized))
	}

	if r.Imports.Jobs > 0 {
		highlights = append(highlights, fmt.Sprintf("%d statement imports added %d transactions (%d duplicates skipped).",
			r.Imports.Jobs, r.Imports.Imported, r.Imports.Duplicates))
	}

	return highlights
}

func displayPence(pence int64) string {
	return money.New(pence, money.GBP).Display()
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
