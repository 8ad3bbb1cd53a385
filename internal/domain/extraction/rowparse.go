package extraction

import (
	"log/slog"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// rowParser turns one visual row into at most one transaction, using the
// page's column structure to decide which fragments are the description and
// which are amounts.
type rowParser struct {
	cfg      Config
	norm     *Normalizer
	classify Classifier
	logger   *slog.Logger
}

func newRowParser(cfg Config, norm *Normalizer, classifier Classifier, logger *slog.Logger) *rowParser {
	return &rowParser{cfg: cfg, norm: norm, classify: classifier, logger: logger}
}

// parse extracts a transaction from a row. Rows without a date fragment are
// not transaction rows (headers, footers, balance lines) and are skipped
// silently; rows that have a date but no parseable amount are discarded.
func (p *rowParser) parse(row Row, structure ColumnStructure, page int, carried bool) (Transaction, bool) {
	dateIdx := -1
	for i, frag := range row {
		if looksLikeDate(frag.Text) {
			dateIdx = i
			break
		}
	}
	if dateIdx < 0 {
		return Transaction{}, false
	}

	date, ok := p.norm.NormalizeDate(row[dateIdx].Text)
	if !ok {
		return Transaction{}, false
	}

	desc := p.description(row, dateIdx, structure)
	if len(desc) < minDescriptionLen {
		return Transaction{}, false
	}

	var inValue, outValue decimal.Decimal
	var hasIn, hasOut bool
	if structure.HasCashIn {
		inValue, hasIn = p.amountNear(row, structure.CashInX)
	}
	if structure.HasCashOut {
		outValue, hasOut = p.amountNear(row, structure.CashOutX)
	}

	var value decimal.Decimal
	var txType TransactionType
	switch {
	case hasIn && hasOut:
		// Amounts on both sides of one row is a layout anomaly; income
		// wins because misfiled income is the cheaper mistake to audit.
		p.logger.Warn("row has amounts in both columns",
			slog.Int("page", page),
			slog.String("row", row.text()))
		value, txType = inValue, TypeIncome
	case hasIn:
		value, txType = inValue, TypeIncome
	case hasOut:
		value, txType = outValue, TypeExpense
	default:
		return Transaction{}, false
	}

	confidence := ConfidenceSpatial
	if carried || structure.Inferred {
		confidence = ConfidenceCarried
	}

	category, event := DefaultCategory, DefaultEvent
	if p.classify != nil {
		category, event = p.classify.Classify(desc)
	}

	return Transaction{
		Date:        date,
		Description: desc,
		Amount:      value.Abs(),
		Type:        txType,
		Category:    category,
		Event:       event,
		Confidence:  confidence,
		Page:        page,
	}, true
}

// description joins the fragments sitting between the date column and the
// nearest amount column, left to right, capped to the configured length.
func (p *rowParser) description(row Row, dateIdx int, structure ColumnStructure) string {
	boundary := math.Inf(1)
	if structure.HasCashIn && structure.CashInX < boundary {
		boundary = structure.CashInX
	}
	if structure.HasCashOut && structure.CashOutX < boundary {
		boundary = structure.CashOutX
	}
	boundary -= descriptionMargin

	parts := make([]string, 0, len(row))
	for i, frag := range row {
		if i == dateIdx {
			continue
		}
		if frag.X <= structure.DateX || frag.X >= boundary {
			continue
		}
		if t := strings.TrimSpace(frag.Text); t != "" {
			parts = append(parts, t)
		}
	}

	desc := strings.TrimSpace(strings.Join(parts, " "))
	if runes := []rune(desc); len(runes) > p.cfg.DescriptionMaxLen {
		desc = strings.TrimSpace(string(runes[:p.cfg.DescriptionMaxLen]))
	}
	return desc
}

// amountNear returns the first parseable amount within the column's x
// tolerance window. Fragments that merely look currency-ish but fail strict
// parsing are passed over in favour of later candidates.
func (p *rowParser) amountNear(row Row, columnX float64) (decimal.Decimal, bool) {
	for _, frag := range row {
		if math.Abs(frag.X-columnX) > p.cfg.ColumnTolerance {
			continue
		}
		if !looksCurrencyLike(frag.Text) {
			continue
		}
		if value, ok := p.norm.ParseCurrencyAmount(frag.Text); ok {
			return value, true
		}
	}
	return decimal.Zero, false
}
