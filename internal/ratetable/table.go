// Package ratetable holds the banded coefficient tables used to price a
// financing installment, and the readers that build them from tabular sources.
//
// A Table belongs to one lender. For every duration it keeps a coefficient
// list positionally aligned with the table's canonical band ordering, so a
// lookup is a scan over bands in ascending order.
package ratetable

import (
	"fmt"
	"sort"
)

// Band is a closed interval [Min, Max] over the financed principal.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether amount lies within the band, bounds included.
func (b Band) Contains(amount float64) bool {
	return b.Min <= amount && amount <= b.Max
}

func (b Band) String() string {
	return fmt.Sprintf("[%.2f, %.2f]", b.Min, b.Max)
}

// less orders bands by ascending Min, then ascending Max.
func (b Band) less(other Band) bool {
	if b.Min != other.Min {
		return b.Min < other.Min
	}
	return b.Max < other.Max
}

// Row is one coefficient entry as it appears in a tabular source.
type Row struct {
	Lender       string  `json:"finanziaria,omitempty"`
	Duration     int     `json:"durata"`
	Band         Band    `json:"fascia"`
	CoeffPercent float64 `json:"coeffPercent"`
}

// Entry is a band together with the coefficient that applies to it.
type Entry struct {
	Band         Band    `json:"fascia"`
	CoeffPercent float64 `json:"coeffPercent"`
}

type coefficient struct {
	value float64
	set   bool
}

// Table maps duration in months to coefficients aligned with the canonical
// band list. A Table is immutable once built.
type Table struct {
	lender       string
	bands        []Band
	coefficients map[int][]coefficient
}

// Build constructs a Table for lender from rows in any order.
//
// Identical bands are deduplicated across the whole row set and sorted to fix
// the canonical ordering. A duration that lacks a row for some band simply has
// no coefficient there; lookups falling in that band find nothing. When a
// (duration, band) pair appears more than once the first row wins.
func Build(lender string, rows []Row) *Table {
	t := &Table{
		lender:       lender,
		coefficients: make(map[int][]coefficient),
	}

	seen := make(map[Band]struct{})
	for _, row := range rows {
		if _, ok := seen[row.Band]; ok {
			continue
		}
		seen[row.Band] = struct{}{}
		t.bands = append(t.bands, row.Band)
	}
	sort.Slice(t.bands, func(i, j int) bool {
		return t.bands[i].less(t.bands[j])
	})

	index := make(map[Band]int, len(t.bands))
	for i, band := range t.bands {
		index[band] = i
	}

	for _, row := range rows {
		list, ok := t.coefficients[row.Duration]
		if !ok {
			list = make([]coefficient, len(t.bands))
			t.coefficients[row.Duration] = list
		}
		i := index[row.Band]
		if list[i].set {
			continue
		}
		list[i] = coefficient{value: row.CoeffPercent, set: true}
	}

	return t
}

// BuildSet groups rows by lender and builds one Table per lender. Rows with an
// empty lender are assigned to fallbackLender.
func BuildSet(rows []Row, fallbackLender string) *Set {
	grouped := make(map[string][]Row)
	var order []string
	for _, row := range rows {
		lender := row.Lender
		if lender == "" {
			lender = fallbackLender
		}
		if _, ok := grouped[lender]; !ok {
			order = append(order, lender)
		}
		grouped[lender] = append(grouped[lender], row)
	}

	tables := make([]*Table, 0, len(order))
	for _, lender := range order {
		tables = append(tables, Build(lender, grouped[lender]))
	}
	return NewSet(tables...)
}

// Lender returns the name of the lender the table belongs to.
func (t *Table) Lender() string {
	return t.lender
}

// Empty reports whether the table holds no coefficients at all.
func (t *Table) Empty() bool {
	return t == nil || len(t.coefficients) == 0
}

// HasDuration reports whether any coefficient exists for duration.
func (t *Table) HasDuration(duration int) bool {
	if t == nil {
		return false
	}
	_, ok := t.coefficients[duration]
	return ok
}

// Durations returns the durations present in the table in ascending order.
func (t *Table) Durations() []int {
	if t == nil {
		return nil
	}
	durations := make([]int, 0, len(t.coefficients))
	for duration := range t.coefficients {
		durations = append(durations, duration)
	}
	sort.Ints(durations)
	return durations
}

// Lookup finds the first band, in ascending order, that contains principal at
// duration and returns it with its coefficient.
func (t *Table) Lookup(duration int, principal float64) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	list, ok := t.coefficients[duration]
	if !ok {
		return Entry{}, false
	}
	for i, band := range t.bands {
		if list[i].set && band.Contains(principal) {
			return Entry{Band: band, CoeffPercent: list[i].value}, true
		}
	}
	return Entry{}, false
}

// Entries returns every band that carries a coefficient at duration, in
// canonical band order.
func (t *Table) Entries(duration int) []Entry {
	if t == nil {
		return nil
	}
	list, ok := t.coefficients[duration]
	if !ok {
		return nil
	}
	entries := make([]Entry, 0, len(list))
	for i, c := range list {
		if c.set {
			entries = append(entries, Entry{Band: t.bands[i], CoeffPercent: c.value})
		}
	}
	return entries
}

// Rows flattens the table back into rows ordered by duration then band.
func (t *Table) Rows() []Row {
	var rows []Row
	for _, duration := range t.Durations() {
		for _, entry := range t.Entries(duration) {
			rows = append(rows, Row{
				Lender:       t.lender,
				Duration:     duration,
				Band:         entry.Band,
				CoeffPercent: entry.CoeffPercent,
			})
		}
	}
	return rows
}

// Relabel returns a copy of the table attributed to lender.
func (t *Table) Relabel(lender string) *Table {
	if t == nil {
		return nil
	}
	return &Table{lender: lender, bands: t.bands, coefficients: t.coefficients}
}

// Validate reports problems with the table's bands without changing lookup
// semantics: inverted bands and, per duration, bands that overlap a
// neighbour. Overlapping bands resolve to the lowest band on lookup.
func (t *Table) Validate() []string {
	if t == nil {
		return nil
	}

	var warnings []string
	for _, band := range t.bands {
		if band.Min > band.Max {
			warnings = append(warnings, fmt.Sprintf("lender '%s': band %s has min greater than max",
				t.lender, band))
		}
	}

	for _, duration := range t.Durations() {
		entries := t.Entries(duration)
		for i := 1; i < len(entries); i++ {
			// widest reaches furthest among the bands before i
			widest := entries[0].Band
			for _, entry := range entries[1:i] {
				if entry.Band.Max > widest.Max {
					widest = entry.Band
				}
			}
			if cur := entries[i].Band; cur.Min <= widest.Max {
				warnings = append(warnings, fmt.Sprintf("lender '%s' duration %d: band %s overlaps %s",
					t.lender, duration, cur, widest))
			}
		}
	}
	return warnings
}
