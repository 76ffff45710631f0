package pdftable

import (
	"math"

	"github.com/ledongthuc/pdf"
)

// affine is a PDF transformation matrix [a b c d e f].
type affine [6]float64

var identity = affine{1, 0, 0, 1, 0, 0}

// then returns the transform that applies m first and n second.
func (m affine) then(n affine) affine {
	return affine{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m affine) apply(x, y float64) pdf.Point {
	return pdf.Point{X: m[0]*x + m[2]*y + m[4], Y: m[1]*x + m[3]*y + m[5]}
}

// pathCollector accumulates the rulings of a content stream. Glyph
// positions reported by pdf.Page.Content already include the CTM, while
// its rectangles do not, so paths are tracked here in device space.
type pathCollector struct {
	opts  Options
	ctm   affine
	saved []affine

	// pending path, flushed by a painting operator
	rects []pdf.Rect
	edges []segment
	start pdf.Point
	cur   pdf.Point
	open  bool

	segs []segment
}

func newPathCollector(opts Options) *pathCollector {
	return &pathCollector{opts: opts, ctm: identity}
}

// pageRulings walks the content streams of p and returns every stroked or
// filled axis-aligned path segment.
func pageRulings(p pdf.Page, opts Options) []segment {
	pc := newPathCollector(opts)
	contents := p.V.Key("Contents")
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			pdf.Interpret(contents.Index(i), pc.do)
		}
	} else {
		pdf.Interpret(contents, pc.do)
	}
	return pc.segs
}

func (pc *pathCollector) do(stk *pdf.Stack, op string) {
	args := make([]float64, stk.Len())
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = stk.Pop().Float64()
	}

	switch op {
	case "q":
		pc.saved = append(pc.saved, pc.ctm)
	case "Q":
		if n := len(pc.saved); n > 0 {
			pc.ctm = pc.saved[n-1]
			pc.saved = pc.saved[:n-1]
		}
	case "cm":
		if len(args) == 6 {
			pc.ctm = affine(args).then(pc.ctm)
		}
	case "m":
		if len(args) == 2 {
			pc.moveTo(pc.ctm.apply(args[0], args[1]))
		}
	case "l":
		if len(args) == 2 {
			pc.lineTo(pc.ctm.apply(args[0], args[1]))
		}
	case "c":
		if len(args) == 6 {
			pc.moveTo(pc.ctm.apply(args[4], args[5]))
		}
	case "v", "y":
		if len(args) == 4 {
			pc.moveTo(pc.ctm.apply(args[2], args[3]))
		}
	case "h":
		pc.closePath()
	case "re":
		if len(args) == 4 {
			pc.rect(args[0], args[1], args[2], args[3])
		}
	case "s", "b", "b*":
		pc.closePath()
		pc.paint()
	case "S", "f", "F", "f*", "B", "B*":
		pc.paint()
	case "n":
		pc.discard()
	}
}

func (pc *pathCollector) moveTo(p pdf.Point) {
	pc.start, pc.cur, pc.open = p, p, true
}

func (pc *pathCollector) lineTo(p pdf.Point) {
	if pc.open {
		pc.edges = append(pc.edges, segment{pc.cur.X, pc.cur.Y, p.X, p.Y})
	}
	pc.cur, pc.open = p, true
}

func (pc *pathCollector) closePath() {
	if pc.open && pc.cur != pc.start {
		pc.lineTo(pc.start)
	}
}

// rect keeps axis-aligned rectangles whole so that thin filled bars
// become a single ruling. Rotated ones degrade to their edges.
func (pc *pathCollector) rect(x, y, w, h float64) {
	corners := [4]pdf.Point{
		pc.ctm.apply(x, y),
		pc.ctm.apply(x+w, y),
		pc.ctm.apply(x+w, y+h),
		pc.ctm.apply(x, y+h),
	}
	if axisAligned(corners[0], corners[1]) && axisAligned(corners[1], corners[2]) {
		pc.rects = append(pc.rects, pdf.Rect{Min: corners[0], Max: corners[2]})
	} else {
		pc.moveTo(corners[0])
		for _, c := range corners[1:] {
			pc.lineTo(c)
		}
		pc.closePath()
	}
	pc.moveTo(corners[0])
}

func (pc *pathCollector) paint() {
	pc.segs = append(pc.segs, rulings(pc.rects, pc.opts)...)
	for _, e := range pc.edges {
		if s, ok := pc.straighten(e); ok {
			pc.segs = append(pc.segs, s)
		}
	}
	pc.discard()
}

func (pc *pathCollector) discard() {
	pc.rects, pc.edges, pc.open = nil, nil, false
}

// straighten normalises an edge to a horizontal or vertical segment.
// Diagonals and ticks no longer than LineWidth are dropped.
func (pc *pathCollector) straighten(e segment) (segment, bool) {
	const skew = 0.5
	dx, dy := math.Abs(e.x1-e.x0), math.Abs(e.y1-e.y0)
	switch {
	case dy <= skew && dx > pc.opts.LineWidth:
		y := (e.y0 + e.y1) / 2
		return segment{math.Min(e.x0, e.x1), y, math.Max(e.x0, e.x1), y}, true
	case dx <= skew && dy > pc.opts.LineWidth:
		x := (e.x0 + e.x1) / 2
		return segment{x, math.Min(e.y0, e.y1), x, math.Max(e.y0, e.y1)}, true
	}
	return segment{}, false
}

func axisAligned(a, b pdf.Point) bool {
	const eps = 1e-6
	return math.Abs(a.X-b.X) < eps || math.Abs(a.Y-b.Y) < eps
}
