package pdftable

import (
	"math"
	"sort"
)

type interval struct{ x0, x1 float64 }

// streamTables is used for pages without rulings. Blocks of lines split by
// a large vertical gap become tables; columns are the x ranges that the
// phrases of the block cover.
func streamTables(lines []line, opts Options) []Table {
	var tables []Table
	for _, block := range splitBlocks(lines, opts) {
		phrased := make([][]word, len(block))
		for i, l := range block {
			phrased[i] = phrases(l.words, opts)
		}

		// a single line still counts: later pages may carry one row
		cols := columns(phrased, opts.SnapTolerance)
		if len(cols) < 2 {
			continue
		}

		rows := make([][]string, len(block))
		for i, ps := range phrased {
			byCol := make([][]word, len(cols))
			for _, p := range ps {
				c := columnOf(p.x0, cols)
				byCol[c] = append(byCol[c], p)
			}
			rows[i] = make([]string, len(cols))
			for c, ws := range byCol {
				rows[i][c] = joinCell(ws, opts.SnapTolerance)
			}
		}
		tables = append(tables, Table{Top: block[0].y + block[0].size, Rows: rows})
	}
	return tables
}

// splitBlocks cuts lines wherever the gap exceeds BlockGap times the row
// pitch of the page, so widely spaced rows stay in one block.
func splitBlocks(lines []line, opts Options) [][]line {
	var (
		blocks [][]line
		cur    []line
	)
	pitch := rowPitch(lines)
	for i, l := range lines {
		if i > 0 {
			prev := lines[i-1]
			gap := prev.y - l.y
			if gap > opts.BlockGap*math.Max(pitch, math.Max(prev.size, l.size)) {
				blocks = append(blocks, cur)
				cur = nil
			}
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// rowPitch is the lower median of the gaps between consecutive lines.
func rowPitch(lines []line) float64 {
	if len(lines) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(lines)-1)
	for i := 1; i < len(lines); i++ {
		gaps = append(gaps, lines[i-1].y-lines[i].y)
	}
	sort.Float64s(gaps)
	return gaps[(len(gaps)-1)/2]
}

// phrases joins words separated by ordinary spacing so that multi-word
// cell values stay together.
func phrases(ws []word, opts Options) []word {
	var out []word
	for _, w := range ws {
		if n := len(out); n > 0 && w.x0-out[n-1].x1 <= opts.PhraseGap*w.size {
			last := &out[n-1]
			last.text += " " + w.text
			last.x1 = math.Max(last.x1, w.x1)
			continue
		}
		out = append(out, w)
	}
	return out
}

// columns merges the horizontal extents of all phrases into disjoint
// intervals, left to right.
func columns(rows [][]word, tol float64) []interval {
	var spans []interval
	for _, ps := range rows {
		for _, p := range ps {
			spans = append(spans, interval{p.x0, p.x1})
		}
	}
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].x0 < spans[j].x0 })

	out := []interval{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.x0 <= last.x1+tol {
			last.x1 = math.Max(last.x1, s.x1)
			continue
		}
		out = append(out, s)
	}
	return out
}

func columnOf(x float64, cols []interval) int {
	for i := len(cols) - 1; i >= 0; i-- {
		if x >= cols[i].x0 {
			return i
		}
	}
	return 0
}
