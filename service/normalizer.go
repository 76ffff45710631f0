package service

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/berthwatch/backend/config"
	"github.com/berthwatch/backend/model"
)

// Columns maps schedule column positions to record fields
type Columns struct {
	ETA        int
	Category   int
	LastPort   int
	NextPort   int
	VesselName int
	Discharge  int
	Loading    int
	Remarks    int
}

// DefaultColumns is the layout of the published berthing schedule
var DefaultColumns = Columns{
	ETA:        0,
	Category:   3,
	LastPort:   4,
	NextPort:   5,
	VesselName: 6,
	Discharge:  13,
	Loading:    14,
	Remarks:    18,
}

// required is the row width needed to read every field except remarks.
// Remarks sit in the last column, which some schedule revisions omit.
func (c Columns) required() int {
	w := 0
	for _, i := range []int{c.ETA, c.Category, c.LastPort, c.NextPort, c.VesselName, c.Discharge, c.Loading} {
		if i+1 > w {
			w = i + 1
		}
	}
	return w
}

// Verdict is the outcome of classifying one raw row
type Verdict string

const (
	Accepted         Verdict = "accepted"
	Malformed        Verdict = "malformed"
	RejectedCategory Verdict = "rejected_category"
	RejectedPort     Verdict = "rejected_port"
	RejectedETA      Verdict = "rejected_eta"
)

const etaLayout = "02/01/2006"

// Normalizer turns raw schedule rows into vessel records
type Normalizer struct {
	cols      Columns
	keyword   string
	ports     map[string]struct{}
	etaWindow time.Duration
	foldCase  bool
	minCells  int
}

func NewNormalizer(cfg *config.FilterConfig) *Normalizer {
	n := &Normalizer{
		cols:     DefaultColumns,
		keyword:  strings.ToLower(strings.TrimSpace(cfg.CategoryKeyword)),
		ports:    make(map[string]struct{}, len(cfg.ValidPorts)),
		foldCase: cfg.FoldPortCase,
		minCells: DefaultColumns.required(),
	}
	for _, p := range cfg.ValidPorts {
		n.ports[p] = struct{}{}
	}
	if cfg.ETAWindowDays > 0 {
		n.etaWindow = time.Duration(cfg.ETAWindowDays) * 24 * time.Hour
	}
	return n
}

// Normalize returns the record for an accepted row
func (n *Normalizer) Normalize(cells []string, now time.Time) (model.VesselRecord, bool) {
	rec, v := n.Classify(cells, now)
	return rec, v == Accepted
}

// Classify applies the acceptance predicates in order and reports the
// first one that fails. The record is only populated for Accepted rows.
func (n *Normalizer) Classify(cells []string, now time.Time) (model.VesselRecord, Verdict) {
	if len(cells) < n.minCells {
		return model.VesselRecord{}, Malformed
	}

	category := strings.ToLower(strings.TrimSpace(cells[n.cols.Category]))
	if !strings.Contains(category, n.keyword) {
		return model.VesselRecord{}, RejectedCategory
	}

	lastPort := strings.TrimSpace(cells[n.cols.LastPort])
	if n.foldCase {
		lastPort = strings.ToLower(lastPort)
	}
	lastPort = capitalizeFirst(lastPort)
	if _, ok := n.ports[lastPort]; !ok {
		return model.VesselRecord{}, RejectedPort
	}

	eta := strings.TrimSpace(cells[n.cols.ETA])
	if n.etaWindow > 0 && !n.withinWindow(eta, now) {
		return model.VesselRecord{}, RejectedETA
	}

	return model.VesselRecord{
		VesselName: strings.TrimSpace(cells[n.cols.VesselName]),
		ETA:        eta,
		LastPort:   lastPort,
		NextPort:   strings.TrimSpace(cells[n.cols.NextPort]),
		Discharge:  strings.TrimSpace(cells[n.cols.Discharge]),
		Loading:    strings.TrimSpace(cells[n.cols.Loading]),
		Remarks:    strings.TrimSpace(cellAt(cells, n.cols.Remarks)),
		Timestamp:  now,
	}, Accepted
}

// withinWindow parses the date part of an ETA such as "01/03/2024-1200"
func (n *Normalizer) withinWindow(eta string, now time.Time) bool {
	datePart, _, _ := strings.Cut(eta, "-")
	d, err := time.ParseInLocation(etaLayout, strings.TrimSpace(datePart), now.Location())
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	diff := d.Sub(today)
	return diff >= -n.etaWindow && diff <= n.etaWindow
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

// capitalizeFirst upper-cases the first rune and leaves the rest untouched
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
