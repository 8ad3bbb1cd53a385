package extraction

import (
	"math"
	"sort"
	"strings"
)

// PositionedFragment is an atomic piece of text with page-space coordinates.
// Coordinates follow the PDF convention: the y axis grows upward, so a
// larger Y means closer to the top of the page. Width and Height are kept
// for callers that have them but the extractor only relies on X and Y.
type PositionedFragment struct {
	Text   string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Row is a reading-order line of fragments reconstructed from page
// coordinates: one visual statement line, fragments ordered left to right.
type Row []PositionedFragment

// y reports the row's anchor position, the y of its first fragment.
func (r Row) y() float64 {
	if len(r) == 0 {
		return 0
	}
	return r[0].Y
}

// text joins all fragment texts with single spaces, mostly for logging.
func (r Row) text() string {
	parts := make([]string, 0, len(r))
	for _, f := range r {
		if t := strings.TrimSpace(f.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// GroupRows reconstructs visual rows from an unordered fragment list.
// Fragments are sorted top-to-bottom (descending y), left-to-right within
// lineEpsilon of the same y, then split into rows wherever y drifts more
// than rowThreshold from the row's anchor. Sub-threshold jitter between
// baselines stays in one row.
func GroupRows(fragments []PositionedFragment, rowThreshold, lineEpsilon float64) []Row {
	if len(fragments) == 0 {
		return nil
	}

	sorted := make([]PositionedFragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) <= lineEpsilon {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y > sorted[j].Y
	})

	var rows []Row
	current := Row{sorted[0]}
	anchorY := sorted[0].Y

	for _, frag := range sorted[1:] {
		if math.Abs(frag.Y-anchorY) > rowThreshold {
			rows = append(rows, current)
			current = Row{frag}
			anchorY = frag.Y
			continue
		}
		current = append(current, frag)
	}
	rows = append(rows, current)

	return rows
}
