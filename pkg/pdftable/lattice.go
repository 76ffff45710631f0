package pdftable

import (
	"math"
	"sort"

	"github.com/ledongthuc/pdf"
)

// segment is an axis-aligned ruling. Horizontal segments have y0 == y1,
// vertical ones x0 == x1.
type segment struct {
	x0, y0, x1, y1 float64
}

func (s segment) horizontal() bool { return s.y0 == s.y1 }

// touches reports whether the two segments meet within tol.
func (s segment) touches(o segment, tol float64) bool {
	return s.x0-tol <= o.x1 && o.x0-tol <= s.x1 &&
		s.y0-tol <= o.y1 && o.y0-tol <= s.y1
}

// rulings turns drawn rectangles into ruling segments. Rectangles thinner
// than LineWidth are lines; larger ones contribute their four edges.
func rulings(rects []pdf.Rect, opts Options) []segment {
	var segs []segment
	for _, r := range rects {
		x0, x1 := math.Min(r.Min.X, r.Max.X), math.Max(r.Min.X, r.Max.X)
		y0, y1 := math.Min(r.Min.Y, r.Max.Y), math.Max(r.Min.Y, r.Max.Y)
		w, h := x1-x0, y1-y0

		switch {
		case h <= opts.LineWidth && w > opts.LineWidth:
			y := (y0 + y1) / 2
			segs = append(segs, segment{x0, y, x1, y})
		case w <= opts.LineWidth && h > opts.LineWidth:
			x := (x0 + x1) / 2
			segs = append(segs, segment{x, y0, x, y1})
		case w > opts.LineWidth && h > opts.LineWidth:
			segs = append(segs,
				segment{x0, y0, x1, y0},
				segment{x0, y1, x1, y1},
				segment{x0, y0, x0, y1},
				segment{x1, y0, x1, y1},
			)
		}
	}
	return segs
}

// clusterSegments groups segments that are connected through touching
// segments.
func clusterSegments(segs []segment, tol float64) [][]segment {
	parent := make([]int, len(segs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := range segs {
		for j := i + 1; j < len(segs); j++ {
			if segs[i].touches(segs[j], tol) {
				parent[find(i)] = find(j)
			}
		}
	}

	groups := make(map[int][]segment)
	var order []int
	for i, s := range segs {
		root := find(i)
		if _, ok := groups[root]; !ok {
			order = append(order, root)
		}
		groups[root] = append(groups[root], s)
	}

	clusters := make([][]segment, 0, len(order))
	for _, root := range order {
		clusters = append(clusters, groups[root])
	}
	return clusters
}

// snapValues sorts vs ascending and collapses values closer than tol.
func snapValues(vs []float64, tol float64) []float64 {
	if len(vs) == 0 {
		return nil
	}
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)

	out := []float64{sorted[0]}
	for _, v := range sorted[1:] {
		if v-out[len(out)-1] > tol {
			out = append(out, v)
		}
	}
	return out
}

type grid struct {
	xs, ys []float64 // ys descending
}

func (g grid) encloses(o grid, tol float64) bool {
	return g.xs[0]-tol <= o.xs[0] && o.xs[len(o.xs)-1] <= g.xs[len(g.xs)-1]+tol &&
		g.ys[len(g.ys)-1]-tol <= o.ys[len(o.ys)-1] && o.ys[0] <= g.ys[0]+tol
}

// latticeTables builds one table per connected ruling cluster that forms
// at least a 1x1 grid. A bare box around other grids is a page frame or
// background, not a table.
func latticeTables(segs []segment, lines []line, opts Options) []Table {
	var grids []grid
	for _, cluster := range clusterSegments(segs, opts.SnapTolerance) {
		var ys, xs []float64
		for _, s := range cluster {
			if s.horizontal() {
				ys = append(ys, s.y0)
			} else {
				xs = append(xs, s.x0)
			}
		}
		ys = snapValues(ys, opts.SnapTolerance)
		xs = snapValues(xs, opts.SnapTolerance)
		if len(ys) < 2 || len(xs) < 2 {
			continue
		}
		// rows run top to bottom
		sort.Sort(sort.Reverse(sort.Float64Slice(ys)))
		grids = append(grids, grid{xs: xs, ys: ys})
	}

	var tables []Table
	for i, g := range grids {
		if isFrame(i, grids, opts.SnapTolerance) {
			continue
		}
		tables = append(tables, fillGrid(g.ys, g.xs, lines, opts))
	}
	return tables
}

func isFrame(i int, grids []grid, tol float64) bool {
	g := grids[i]
	if len(g.xs) != 2 || len(g.ys) != 2 {
		return false
	}
	for j, o := range grids {
		if j != i && g.encloses(o, tol) {
			return true
		}
	}
	return false
}

// fillGrid assigns every word whose centre falls inside the grid to its
// cell. ys is descending, xs ascending.
func fillGrid(ys, xs []float64, lines []line, opts Options) Table {
	nRows, nCols := len(ys)-1, len(xs)-1
	cells := make([][][]word, nRows)
	for i := range cells {
		cells[i] = make([][]word, nCols)
	}

	for _, l := range lines {
		for _, w := range l.words {
			r := bandIndex(w.centerY(), ys, true)
			c := bandIndex(w.centerX(), xs, false)
			if r < 0 || c < 0 {
				continue
			}
			cells[r][c] = append(cells[r][c], w)
		}
	}

	rows := make([][]string, nRows)
	for i := range cells {
		rows[i] = make([]string, nCols)
		for j, ws := range cells[i] {
			rows[i][j] = joinCell(ws, opts.SnapTolerance)
		}
	}
	return Table{Top: ys[0], Rows: rows}
}

// bandIndex returns the index of the band [edges[i], edges[i+1]] holding
// v, or -1. descending selects the ordering of edges.
func bandIndex(v float64, edges []float64, descending bool) int {
	for i := 0; i+1 < len(edges); i++ {
		hi, lo := edges[i+1], edges[i]
		if descending {
			hi, lo = edges[i], edges[i+1]
		}
		if v >= lo && v <= hi {
			return i
		}
	}
	return -1
}
