package ratetable

import "sort"

// Set holds one Table per lender. Like Table it is never mutated: overrides
// return a new Set.
type Set struct {
	tables map[string]*Table
}

// NewSet builds a Set from tables; a later table replaces an earlier one for
// the same lender.
func NewSet(tables ...*Table) *Set {
	s := &Set{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if t != nil {
			s.tables[t.Lender()] = t
		}
	}
	return s
}

// Lenders returns the lender names in alphabetical order.
func (s *Set) Lenders() []string {
	if s == nil {
		return nil
	}
	lenders := make([]string, 0, len(s.tables))
	for lender := range s.tables {
		lenders = append(lenders, lender)
	}
	sort.Strings(lenders)
	return lenders
}

// Table returns the table for lender.
func (s *Set) Table(lender string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.tables[lender]
	return t, ok
}

// Len returns the number of lenders in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tables)
}

// Durations returns the union of durations across all lenders, ascending.
func (s *Set) Durations() []int {
	if s == nil {
		return nil
	}
	seen := make(map[int]struct{})
	for _, t := range s.tables {
		for _, d := range t.Durations() {
			seen[d] = struct{}{}
		}
	}
	durations := make([]int, 0, len(seen))
	for d := range seen {
		durations = append(durations, d)
	}
	sort.Ints(durations)
	return durations
}

// With returns a new Set in which each lender present in other replaces the
// corresponding lender of s entirely. Lenders only in s are kept.
func (s *Set) With(other *Set) *Set {
	merged := &Set{tables: make(map[string]*Table)}
	if s != nil {
		for lender, t := range s.tables {
			merged.tables[lender] = t
		}
	}
	if other != nil {
		for lender, t := range other.tables {
			merged.tables[lender] = t
		}
	}
	return merged
}

// WithTable returns a new Set in which t substitutes the table of its lender.
func (s *Set) WithTable(t *Table) *Set {
	return s.With(NewSet(t))
}

// Override returns base unchanged when upload is nil, otherwise upload
// attributed to base's lender. The upload is a full substitution: no band or
// duration of base survives.
func Override(base, upload *Table) *Table {
	if upload == nil {
		return base
	}
	if base == nil {
		return upload
	}
	return upload.Relabel(base.Lender())
}
