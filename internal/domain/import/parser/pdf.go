package parser

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/UMHC/umhc-finance/internal/domain/extraction"
)

// PDFSource adapts a statement PDF's text layer to the extractor's
// page-by-page fragment interface.
type PDFSource struct {
	doc   *pdf.Reader
	pages int
}

// NewPDFSource validates the document with pdfcpu and opens its text layer.
// Corrupt or encrypted files fail here, before any page is touched.
func NewPDFSource(data []byte) (*PDFSource, error) {
	conf := model.NewDefaultConfiguration()
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return nil, fmt.Errorf("invalid pdf: %w", err)
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	return &PDFSource{doc: doc, pages: doc.NumPage()}, nil
}

// PageCount returns the number of pages in the document.
func (s *PDFSource) PageCount() int { return s.pages }

// Fragments returns the positioned text of one page, merged into word-level
// fragments. Pages are numbered from 1. The text-layer library panics on
// some malformed content streams that survive validation, so this converts
// panics into errors.
func (s *PDFSource) Fragments(page int) (frags []extraction.PositionedFragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			frags = nil
			err = fmt.Errorf("page %d: malformed content stream: %v", page, r)
		}
	}()

	if page < 1 || page > s.pages {
		return nil, fmt.Errorf("page %d out of range (document has %d)", page, s.pages)
	}

	p := s.doc.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}

	return mergeTexts(p.Content().Text), nil
}

// PageText flattens one page to plain text, one visual row per line, for
// the line-based fallback parser.
func (s *PDFSource) PageText(page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("page %d: malformed content stream: %v", page, r)
		}
	}()

	if page < 1 || page > s.pages {
		return "", fmt.Errorf("page %d out of range (document has %d)", page, s.pages)
	}

	p := s.doc.Page(page)
	if p.V.IsNull() {
		return "", nil
	}

	rows, err := p.GetTextByRow()
	if err != nil {
		return "", fmt.Errorf("page %d: %w", page, err)
	}

	var b strings.Builder
	for _, row := range rows {
		words := make([]string, 0, len(row.Content))
		for _, word := range row.Content {
			if w := strings.TrimSpace(word.S); w != "" {
				words = append(words, w)
			}
		}
		if len(words) > 0 {
			b.WriteString(strings.Join(words, " "))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// mergeTexts joins the raw text runs of a page into word-level fragments.
// The text layer frequently emits one run per glyph; runs on the same
// baseline merge while the horizontal gap stays under a word space, so the
// extractor sees "Minibus" rather than seven single-letter fragments.
func mergeTexts(texts []pdf.Text) []extraction.PositionedFragment {
	var frags []extraction.PositionedFragment
	var cur *extraction.PositionedFragment
	lastEnd := 0.0

	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Text) != "" {
			frags = append(frags, *cur)
		}
		cur = nil
	}

	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			// an explicit space run ends the current word
			flush()
			continue
		}

		if cur != nil && math.Abs(t.Y-cur.Y) <= baselineTolerance && t.X-lastEnd <= wordGap(t.FontSize) {
			cur.Text += t.S
			cur.Width = t.X + t.W - cur.X
			if t.FontSize > cur.Height {
				cur.Height = t.FontSize
			}
		} else {
			flush()
			cur = &extraction.PositionedFragment{
				Text:   t.S,
				X:      t.X,
				Y:      t.Y,
				Width:  t.W,
				Height: t.FontSize,
			}
		}
		lastEnd = t.X + t.W
	}
	flush()

	return frags
}

const baselineTolerance = 0.5

// wordGap is the largest horizontal gap that still belongs to the same
// word. Word spaces run around a third of an em; kerned glyphs sit much
// closer than that.
func wordGap(fontSize float64) float64 {
	return math.Max(1.0, fontSize*0.3)
}
