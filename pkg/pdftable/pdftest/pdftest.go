// Package pdftest writes small uncompressed PDF documents for tests.
//
// Pages use a single monospaced font (Courier, 600/1000 em advance) so
// glyph positions are predictable.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Ruling selects how table grid lines are drawn.
type Ruling int

const (
	// Rects draws every line as a thin filled rectangle (re f).
	Rects Ruling = iota
	// Paths strokes every line as a path (m l S).
	Paths
	// None draws no lines, leaving only text alignment.
	None
)

// Table is a grid of cells laid out from its top-left corner.
type Table struct {
	Left, Top float64
	ColWidth  float64
	RowHeight float64
	FontSize  float64
	Rows      [][]string
	Ruling    Ruling
	// Scale, when set, draws the table under a "Scale 0 0 Scale 0 0 cm"
	// transform with user-space coordinates divided by Scale, so the
	// table lands at the same place on the page.
	Scale float64
}

// Content renders t as a content stream fragment.
func (t Table) Content() string {
	s := t.Scale
	if s == 0 {
		s = 1
	}
	u := func(v float64) string { return num(v / s) }

	var b strings.Builder
	if s != 1 {
		fmt.Fprintf(&b, "q %s 0 0 %s 0 0 cm\n", num(s), num(s))
	}

	cols := 0
	for _, r := range t.Rows {
		cols = max(cols, len(r))
	}
	right := t.Left + float64(cols)*t.ColWidth
	bottom := t.Top - float64(len(t.Rows))*t.RowHeight

	switch t.Ruling {
	case Rects:
		for i := 0; i <= len(t.Rows); i++ {
			y := t.Top - float64(i)*t.RowHeight
			fmt.Fprintf(&b, "%s %s %s %s re f\n", u(t.Left), u(y-0.25), u(right-t.Left), u(0.5))
		}
		for j := 0; j <= cols; j++ {
			x := t.Left + float64(j)*t.ColWidth
			fmt.Fprintf(&b, "%s %s %s %s re f\n", u(x-0.25), u(bottom), u(0.5), u(t.Top-bottom))
		}
	case Paths:
		b.WriteString("0.5 w\n")
		for i := 0; i <= len(t.Rows); i++ {
			y := t.Top - float64(i)*t.RowHeight
			fmt.Fprintf(&b, "%s %s m %s %s l S\n", u(t.Left), u(y), u(right), u(y))
		}
		for j := 0; j <= cols; j++ {
			x := t.Left + float64(j)*t.ColWidth
			fmt.Fprintf(&b, "%s %s m %s %s l S\n", u(x), u(t.Top), u(x), u(bottom))
		}
	}

	for i, r := range t.Rows {
		baseline := t.Top - float64(i)*t.RowHeight - t.RowHeight/2 - 0.3*t.FontSize
		for j, cell := range r {
			if cell == "" {
				continue
			}
			x := t.Left + float64(j)*t.ColWidth + 2
			fmt.Fprintf(&b, "BT /F1 %s Tf %s %s Td (%s) Tj ET\n", u(t.FontSize), u(x), u(baseline), escape(cell))
		}
	}

	if s != 1 {
		b.WriteString("Q\n")
	}
	return b.String()
}

// Document collects page content streams.
type Document struct {
	pages []string
}

func New() *Document {
	return &Document{}
}

// AddPage appends a page drawn by the given content stream fragments.
func (d *Document) AddPage(content ...string) *Document {
	d.pages = append(d.pages, strings.Join(content, ""))
	return d
}

// Bytes serialises the document with a classic cross-reference table.
func (d *Document) Bytes() []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	// 1 catalog, 2 page tree, 3 font, then a page and its stream per page
	kids := make([]string, len(d.pages))
	for i := range d.pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(d.pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Courier /Encoding /WinAnsiEncoding " +
		"/FirstChar 32 /LastChar 126 /Widths [" + strings.TrimSpace(strings.Repeat("600 ", 95)) + "] >>")
	for i, content := range d.pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 842 595] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// ScheduleColumns is the width of a berthing schedule table.
const ScheduleColumns = 19

// ScheduleHeader returns the two header rows printed at the top of the
// first page.
func ScheduleHeader() [][]string {
	top := make([]string, ScheduleColumns)
	sub := make([]string, ScheduleColumns)
	copy(top, []string{"ETA", "BERTH", "AGENT", "CATEGORY", "LASTPORT", "NEXTPORT", "VESSEL"})
	top[13], top[14], top[18] = "DISCHARGE", "LOADING", "REMARKS"
	for i := range sub {
		sub[i] = fmt.Sprintf("C%d", i)
	}
	return [][]string{top, sub}
}

// ScheduleRow returns a full-width data row in which every cell is a
// single word or a dash.
func ScheduleRow(eta, category, lastPort, vessel string) []string {
	row := make([]string, ScheduleColumns)
	for i := range row {
		row[i] = "-"
	}
	row[0], row[3], row[4], row[5], row[6] = eta, category, lastPort, "Hazira", vessel
	row[13], row[14], row[18] = "120", "80", "BERTH3"
	return row
}

// ScheduleTable lays rows out the way the tests expect a schedule page:
// 40pt columns, 5pt type, starting at (20, 560).
func ScheduleTable(ruling Ruling, rowHeight float64, rows [][]string) Table {
	return Table{
		Left:      20,
		Top:       560,
		ColWidth:  40,
		RowHeight: rowHeight,
		FontSize:  5,
		Rows:      rows,
		Ruling:    ruling,
	}
}
