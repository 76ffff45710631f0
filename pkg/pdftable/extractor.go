// Package pdftable extracts positional table rows from PDF documents.
//
// Pages with ruling lines are cut along those lines; pages without any are
// split into columns by text alignment. Rows are produced lazily, page by
// page, in document order.
package pdftable

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrParse is returned when a document or one of its pages cannot be decoded.
	ErrParse = errors.New("cannot parse pdf document")
	// ErrSchema is returned when the header of the first table does not
	// have the expected width. It wraps ErrParse.
	ErrSchema = fmt.Errorf("%w: unexpected table header", ErrParse)
)

// Options tunes table detection and header handling.
type Options struct {
	// HeaderRows is the number of rows skipped at the top of every table
	// on the first page.
	HeaderRows int
	// StrictHeader enables the header width check on the first table.
	StrictHeader bool
	// MinColumns is the width the header must reach when StrictHeader is on.
	MinColumns int

	SnapTolerance float64
	LineWidth     float64
	WordGap       float64 // in font sizes
	PhraseGap     float64 // in font sizes
	BlockGap      float64 // in line heights
}

// DefaultOptions matches the layout of the berthing schedule.
func DefaultOptions() Options {
	return Options{
		HeaderRows:    2,
		StrictHeader:  true,
		MinColumns:    19,
		SnapTolerance: 3,
		LineWidth:     2,
		WordGap:       0.25,
		PhraseGap:     0.6,
		BlockGap:      2.5,
	}
}

// Table is a grid of cell strings in reading order.
type Table struct {
	Top  float64
	Rows [][]string
}

// Row is one table row as emitted by Document.Rows.
type Row struct {
	Page  int // 1-based
	Table int // 0-based within the page
	Index int // 0-based within the table
	Cells []string
}

// Document is an opened PDF.
type Document struct {
	reader *pdf.Reader
	opts   Options
}

// Open parses data as a PDF document.
func Open(data []byte, opts Options) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: %v", ErrParse, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if reader.NumPage() == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrParse)
	}
	return &Document{reader: reader, opts: opts}, nil
}

// NumPages returns the page count.
func (d *Document) NumPages() int {
	return d.reader.NumPage()
}

// Tables extracts every table on the given 1-based page, top to bottom.
func (d *Document) Tables(page int) (tables []Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			tables, err = nil, fmt.Errorf("%w: page %d: %v", ErrParse, page, r)
		}
	}()

	p := d.reader.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}
	return pageTables(p.Content().Text, pageRulings(p, d.opts), d.opts), nil
}

// Rows returns the data rows of the whole document.
func (d *Document) Rows() iter.Seq2[Row, error] {
	return emitRows(d.NumPages(), d.Tables, d.opts)
}

// PageTables runs table detection over already decoded page content.
// Its rectangles are taken to be in the same space as its glyphs.
func PageTables(content pdf.Content, opts Options) []Table {
	return pageTables(content.Text, rulings(content.Rect, opts), opts)
}

func pageTables(texts []pdf.Text, segs []segment, opts Options) []Table {
	lines := groupLines(texts, opts)

	var tables []Table
	if len(segs) > 0 {
		tables = latticeTables(segs, lines, opts)
	} else {
		tables = streamTables(lines, opts)
	}

	sort.SliceStable(tables, func(i, j int) bool { return tables[i].Top > tables[j].Top })
	return tables
}

func emitRows(pages int, tablesOf func(int) ([]Table, error), opts Options) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for page := 1; page <= pages; page++ {
			tables, err := tablesOf(page)
			if err != nil {
				yield(Row{Page: page}, err)
				return
			}

			for ti, t := range tables {
				skip := 0
				if page == 1 {
					skip = min(opts.HeaderRows, len(t.Rows))
				}
				if page == 1 && ti == 0 && opts.StrictHeader {
					if err := checkHeader(t.Rows[:skip], opts.MinColumns); err != nil {
						yield(Row{Page: page, Table: ti}, err)
						return
					}
				}

				for ri := skip; ri < len(t.Rows); ri++ {
					if !yield(Row{Page: page, Table: ti, Index: ri, Cells: t.Rows[ri]}, nil) {
						return
					}
				}
			}
		}
	}
}

func checkHeader(header [][]string, want int) error {
	if len(header) == 0 {
		return nil
	}
	widest := 0
	for _, r := range header {
		widest = max(widest, len(r))
	}
	if widest < want {
		return fmt.Errorf("%w: %d columns, want at least %d", ErrSchema, widest, want)
	}
	return nil
}
