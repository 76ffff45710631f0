package pdftable

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// word is a run of glyphs sharing a baseline with no visible gap.
// Coordinates are in PDF user space, so y grows upwards.
type word struct {
	text   string
	x0, x1 float64
	y      float64
	size   float64
}

// line is a set of words sharing a baseline, ordered left to right.
type line struct {
	y     float64
	size  float64
	words []word
}

func (w word) centerX() float64 { return (w.x0 + w.x1) / 2 }

// centerY approximates the vertical middle of the glyph box from the baseline.
func (w word) centerY() float64 { return w.y + w.size*0.3 }

// groupLines clusters glyphs into lines top to bottom and merges each
// line's glyphs into words.
func groupLines(texts []pdf.Text, opts Options) []line {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		glyphs = append(glyphs, t)
	}
	if len(glyphs) == 0 {
		return nil
	}

	sort.SliceStable(glyphs, func(i, j int) bool {
		if math.Abs(glyphs[i].Y-glyphs[j].Y) > opts.SnapTolerance {
			return glyphs[i].Y > glyphs[j].Y
		}
		return glyphs[i].X < glyphs[j].X
	})

	var lines []line
	start := 0
	for i := 1; i <= len(glyphs); i++ {
		if i < len(glyphs) && math.Abs(glyphs[i].Y-glyphs[start].Y) <= opts.SnapTolerance {
			continue
		}
		run := glyphs[start:i]
		sort.SliceStable(run, func(a, b int) bool { return run[a].X < run[b].X })
		if ws := mergeGlyphs(run, opts); len(ws) > 0 {
			lines = append(lines, newLine(ws))
		}
		start = i
	}
	return lines
}

func newLine(ws []word) line {
	l := line{y: ws[0].y, words: ws}
	for _, w := range ws {
		l.size = math.Max(l.size, w.size)
	}
	return l
}

// mergeGlyphs joins glyphs of one line into words. Whitespace glyphs and
// horizontal gaps wider than WordGap times the font size split words.
func mergeGlyphs(glyphs []pdf.Text, opts Options) []word {
	var (
		words []word
		cur   *word
		buf   strings.Builder
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.text = buf.String()
		words = append(words, *cur)
		cur = nil
		buf.Reset()
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		size := g.FontSize
		if size <= 0 {
			size = 10
		}
		x1 := g.X + glyphWidth(g, size)
		if cur != nil && g.X-cur.x1 > opts.WordGap*size {
			flush()
		}
		if cur == nil {
			cur = &word{x0: g.X, x1: x1, y: g.Y, size: size}
		} else {
			cur.x1 = math.Max(cur.x1, x1)
			cur.size = math.Max(cur.size, size)
		}
		buf.WriteString(g.S)
	}
	flush()
	return words
}

// glyphWidth falls back to an average advance when the font carries no
// width table.
func glyphWidth(g pdf.Text, size float64) float64 {
	if g.W > 0 {
		return g.W
	}
	return 0.5 * size * float64(utf8.RuneCountInString(g.S))
}

// joinCell renders the words of one cell: words on a line are separated
// by a space, lines by a newline.
func joinCell(ws []word, tol float64) string {
	var b strings.Builder
	for i, w := range ws {
		if i > 0 {
			if math.Abs(ws[i-1].y-w.y) > tol {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.text)
	}
	return b.String()
}
