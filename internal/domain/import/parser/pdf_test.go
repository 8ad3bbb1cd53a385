package parser

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textRun(s string, x, y, w, size float64) pdf.Text {
	return pdf.Text{S: s, X: x, Y: y, W: w, FontSize: size}
}

func TestMergeTexts(t *testing.T) {
	t.Run("glyph runs on one baseline merge into words", func(t *testing.T) {
		texts := []pdf.Text{
			textRun("M", 100, 700, 8, 10),
			textRun("i", 108, 700, 3, 10),
			textRun("n", 111, 700, 6, 10),
			textRun("i", 117, 700, 3, 10),
			textRun("b", 120, 700, 6, 10),
			textRun("u", 126, 700, 6, 10),
			textRun("s", 132, 700, 5, 10),
			textRun("fuel", 145, 700, 20, 10),
		}

		frags := mergeTexts(texts)

		require.Len(t, frags, 2)
		assert.Equal(t, "Minibus", frags[0].Text)
		assert.Equal(t, 100.0, frags[0].X)
		assert.Equal(t, 700.0, frags[0].Y)
		assert.InDelta(t, 37.0, frags[0].Width, 0.001)
		assert.Equal(t, "fuel", frags[1].Text)
		assert.Equal(t, 145.0, frags[1].X)
	})

	t.Run("different baselines never merge", func(t *testing.T) {
		texts := []pdf.Text{
			textRun("Date", 100, 700, 22, 10),
			textRun("04/10/2025", 100, 685, 50, 10),
		}

		frags := mergeTexts(texts)

		require.Len(t, frags, 2)
		assert.Equal(t, "Date", frags[0].Text)
		assert.Equal(t, "04/10/2025", frags[1].Text)
	})

	t.Run("small baseline wobble still merges", func(t *testing.T) {
		texts := []pdf.Text{
			textRun("2", 400, 700.0, 5, 10),
			textRun("5", 405, 700.4, 5, 10),
		}

		frags := mergeTexts(texts)

		require.Len(t, frags, 1)
		assert.Equal(t, "25", frags[0].Text)
	})

	t.Run("explicit space runs end the word", func(t *testing.T) {
		texts := []pdf.Text{
			textRun("Cash", 100, 700, 20, 10),
			textRun(" ", 120, 700, 3, 10),
			textRun("In", 123, 700, 10, 10),
		}

		frags := mergeTexts(texts)

		require.Len(t, frags, 2)
		assert.Equal(t, "Cash", frags[0].Text)
		assert.Equal(t, "In", frags[1].Text)
	})

	t.Run("amounts keep their punctuation", func(t *testing.T) {
		texts := []pdf.Text{
			textRun("2", 400, 650, 5, 9),
			textRun("4", 405, 650, 5, 9),
			textRun("0", 410, 650, 5, 9),
			textRun(".", 415, 650, 2, 9),
			textRun("0", 417, 650, 5, 9),
			textRun("0", 422, 650, 5, 9),
		}

		frags := mergeTexts(texts)

		require.Len(t, frags, 1)
		assert.Equal(t, "240.00", frags[0].Text)
		assert.InDelta(t, 27.0, frags[0].Width, 0.001)
	})

	t.Run("height tracks the largest glyph", func(t *testing.T) {
		texts := []pdf.Text{
			textRun("T", 100, 700, 6, 10),
			textRun("op", 106, 700, 10, 12),
		}

		frags := mergeTexts(texts)

		require.Len(t, frags, 1)
		assert.Equal(t, 12.0, frags[0].Height)
	})

	t.Run("whitespace only input yields nothing", func(t *testing.T) {
		texts := []pdf.Text{
			textRun(" ", 100, 700, 3, 10),
			textRun("  ", 103, 700, 6, 10),
		}

		assert.Empty(t, mergeTexts(texts))
	})

	t.Run("empty input yields nothing", func(t *testing.T) {
		assert.Empty(t, mergeTexts(nil))
	})
}

func TestWordGap(t *testing.T) {
	assert.InDelta(t, 3.0, wordGap(10), 0.0001)
	assert.InDelta(t, 1.0, wordGap(2), 0.0001) // floor for tiny annotations
	assert.InDelta(t, 7.2, wordGap(24), 0.0001)
}

func TestNewPDFSource_RejectsGarbage(t *testing.T) {
	_, err := NewPDFSource([]byte("this is not a pdf"))
	assert.Error(t, err)
}
