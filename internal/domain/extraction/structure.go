package extraction

import (
	"math"
	"sort"
	"strings"
)

// ColumnStructure records the x-positions of the columns detected on one
// page. HasValidStructure is true only when a date column and at least one
// amount column were found; pages without it produce no transactions unless
// a structure carried from an earlier page applies.
type ColumnStructure struct {
	HasValidStructure bool
	// Inferred marks structures whose amount columns came from currency
	// clustering rather than header keywords; downstream confidence drops.
	Inferred bool

	DateX        float64
	DescriptionX float64
	CashInX      float64
	CashOutX     float64

	HasDescription bool
	HasCashIn      bool
	HasCashOut     bool
}

type columnRole int

const (
	roleDate columnRole = iota
	roleDescription
	roleCashIn
	roleCashOut
	roleAmount
)

// headerKeywords is the closed keyword table for header detection. It is
// data, not logic: supporting a new bank's phrasing means adding a row
// here. Order matters: multi-word phrasings come before the generic terms
// so "cash in" is claimed whole. Matching is a case-insensitive substring
// test against each fragment.
var headerKeywords = []struct {
	keyword string
	role    columnRole
}{
	{"cash in", roleCashIn},
	{"paid in", roleCashIn},
	{"money in", roleCashIn},
	{"cash out", roleCashOut},
	{"paid out", roleCashOut},
	{"money out", roleCashOut},
	{"credit", roleCashIn},
	{"debit", roleCashOut},
	{"description", roleDescription},
	{"details", roleDescription},
	{"amount", roleAmount},
	{"date", roleDate},
}

// DetectColumns derives the column layout of a page. Header keywords win;
// when no amount headers exist the detector falls back to clustering the
// x-positions of strictly currency-shaped fragments. Detection never fails:
// a page it cannot read simply yields HasValidStructure=false.
func DetectColumns(fragments []PositionedFragment, bucketWidth float64) ColumnStructure {
	if bucketWidth <= 0 {
		bucketWidth = defaultBucketWidth
	}

	var cs ColumnStructure
	var hasDate, hasAmountHeader bool
	var amountHeaderX float64

	// Scan top-down so the header row, not some body cell that happens to
	// contain "credit", decides each column's position.
	ordered := make([]PositionedFragment, len(fragments))
	copy(ordered, fragments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Y == ordered[j].Y {
			return ordered[i].X < ordered[j].X
		}
		return ordered[i].Y > ordered[j].Y
	})

	for _, frag := range ordered {
		text := strings.ToLower(strings.TrimSpace(frag.Text))
		if text == "" {
			continue
		}
		for _, hk := range headerKeywords {
			if !strings.Contains(text, hk.keyword) {
				continue
			}
			switch hk.role {
			case roleDate:
				if !hasDate {
					cs.DateX = frag.X
					hasDate = true
				}
			case roleDescription:
				if !cs.HasDescription {
					cs.DescriptionX = frag.X
					cs.HasDescription = true
				}
			case roleCashIn:
				if !cs.HasCashIn {
					cs.CashInX = frag.X
					cs.HasCashIn = true
				}
			case roleCashOut:
				if !cs.HasCashOut {
					cs.CashOutX = frag.X
					cs.HasCashOut = true
				}
			case roleAmount:
				if !hasAmountHeader {
					amountHeaderX = frag.X
					hasAmountHeader = true
				}
			}
			break
		}
	}

	// A bare "Amount" header is a single-column statement; treat it as the
	// cash-out side, matching the expense-heavy reality of club statements.
	if !cs.HasCashIn && !cs.HasCashOut && hasAmountHeader {
		cs.CashOutX = amountHeaderX
		cs.HasCashOut = true
	}

	if !cs.HasCashIn && !cs.HasCashOut {
		inferAmountColumns(&cs, fragments, bucketWidth)
	}

	cs.HasValidStructure = hasDate && (cs.HasCashIn || cs.HasCashOut)
	return cs
}

// inferAmountColumns clusters the x-positions of currency-shaped fragments
// into fixed-width buckets, then merges runs of adjacent buckets so a column
// straddling a bucket boundary still counts once. With one cluster the page
// is read as a single-amount statement and the cluster becomes Cash-Out;
// with more, the right-most cluster is Cash-Out and the next one in is
// Cash-In.
func inferAmountColumns(cs *ColumnStructure, fragments []PositionedFragment, bucketWidth float64) {
	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[int]bucket)

	for _, frag := range fragments {
		if !isCurrencyToken(frag.Text) {
			continue
		}
		key := int(math.Floor(frag.X / bucketWidth))
		b := buckets[key]
		b.sum += frag.X
		b.count++
		buckets[key] = b
	}
	if len(buckets) == 0 {
		return
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var centers []float64
	run := buckets[keys[0]]
	for i := 1; i < len(keys); i++ {
		b := buckets[keys[i]]
		if keys[i] == keys[i-1]+1 {
			run.sum += b.sum
			run.count += b.count
			continue
		}
		centers = append(centers, run.sum/float64(run.count))
		run = b
	}
	centers = append(centers, run.sum/float64(run.count))

	cs.Inferred = true
	cs.CashOutX = centers[len(centers)-1]
	cs.HasCashOut = true
	if len(centers) > 1 {
		cs.CashInX = centers[len(centers)-2]
		cs.HasCashIn = true
	}
}
