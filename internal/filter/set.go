package filter

import (
	"fmt"
	"sort"
)

type entry struct {
	filter Filter
	draft  string // raw pattern text, may not compile
}

// FilterSet is an ordered list of filters evaluated as a conjunction.
// Indices marked invalid are skipped by evaluation but kept, with their
// last good predicate, so the user can keep editing them.
type FilterSet struct {
	entries []entry
	invalid map[int]struct{}
}

// NewFilterSet creates a set holding the given filters
func NewFilterSet(filters ...Filter) *FilterSet {
	s := &FilterSet{invalid: make(map[int]struct{})}
	for _, f := range filters {
		s.entries = append(s.entries, newEntry(f))
	}
	return s
}

// NewDefaultFilterSet creates a set seeded with DefaultFilter
func NewDefaultFilterSet() *FilterSet {
	return NewFilterSet(DefaultFilter())
}

func newEntry(f Filter) entry {
	e := entry{filter: f}
	if sp, ok := f.Predicate.(StringPattern); ok {
		e.draft = sp.Pattern
	}
	return e
}

// Len returns the number of filters, valid or not
func (s *FilterSet) Len() int {
	return len(s.entries)
}

// At returns the filter at index i
func (s *FilterSet) At(i int) (Filter, error) {
	if err := s.check(i); err != nil {
		return Filter{}, err
	}
	return s.entries[i].filter, nil
}

// Filters returns every filter in display order
func (s *FilterSet) Filters() []Filter {
	out := make([]Filter, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.filter
	}
	return out
}

// Active returns the filters that take part in evaluation
func (s *FilterSet) Active() []Filter {
	out := make([]Filter, 0, len(s.entries))
	for i, e := range s.entries {
		if !s.IsInvalid(i) {
			out = append(out, e.filter)
		}
	}
	return out
}

// Draft returns the text currently shown for a string filter, which
// differs from the compiled pattern while the filter is invalid.
func (s *FilterSet) Draft(i int) string {
	if i < 0 || i >= len(s.entries) {
		return ""
	}
	return s.entries[i].draft
}

// Insert places f at index i, shifting later filters down
func (s *FilterSet) Insert(i int, f Filter) error {
	if i < 0 || i > len(s.entries) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	s.entries = append(s.entries, entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = newEntry(f)
	s.shiftInvalid(i, 1)
	return nil
}

// Remove deletes the filter at index i. Removing the last filter leaves
// the default filter in its place.
func (s *FilterSet) Remove(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.invalid, i)
	s.shiftInvalid(i+1, -1)
	if len(s.entries) == 0 {
		s.entries = []entry{newEntry(DefaultFilter())}
	}
	return nil
}

// Replace swaps the filter at index i for f and clears its invalid flag
func (s *FilterSet) Replace(i int, f Filter) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.entries[i] = newEntry(f)
	delete(s.invalid, i)
	return nil
}

// MarkInvalid excludes index i from evaluation without removing it
func (s *FilterSet) MarkInvalid(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	s.invalid[i] = struct{}{}
	return nil
}

// UnmarkInvalid returns index i to evaluation
func (s *FilterSet) UnmarkInvalid(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	delete(s.invalid, i)
	return nil
}

// IsInvalid reports whether index i is excluded from evaluation
func (s *FilterSet) IsInvalid(i int) bool {
	_, ok := s.invalid[i]
	return ok
}

// InvalidIndices lists the excluded indices in ascending order
func (s *FilterSet) InvalidIndices() []int {
	out := make([]int, 0, len(s.invalid))
	for i := range s.invalid {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// SetPattern edits a string filter. Text that fails to compile is kept as
// the draft and marks the filter invalid; the previous predicate stays.
func (s *FilterSet) SetPattern(i int, text string) error {
	if err := s.check(i); err != nil {
		return err
	}
	e := &s.entries[i]
	if _, ok := e.filter.Predicate.(StringPattern); !ok {
		return fmt.Errorf("%w: filter %d is not a string pattern", ErrKindMismatch, i)
	}
	e.draft = text

	p, err := NewStringPattern(text)
	if err != nil {
		s.invalid[i] = struct{}{}
		return err
	}
	e.filter.Predicate = p
	delete(s.invalid, i)
	return nil
}

// SetRange edits the bounds of a numeric filter. NaN bounds are stored
// as given; such a filter excludes every record.
func (s *FilterSet) SetRange(i int, min, max float64) error {
	if err := s.check(i); err != nil {
		return err
	}
	e := &s.entries[i]
	if _, ok := e.filter.Predicate.(NumericRange); !ok {
		return fmt.Errorf("%w: filter %d is not a numeric range", ErrKindMismatch, i)
	}
	e.filter.Predicate = NumericRange{Min: min, Max: max}
	return nil
}

// SetBool edits the expected value of a boolean filter
func (s *FilterSet) SetBool(i int, v bool) error {
	if err := s.check(i); err != nil {
		return err
	}
	e := &s.entries[i]
	if _, ok := e.filter.Predicate.(BooleanEquals); !ok {
		return fmt.Errorf("%w: filter %d is not a boolean", ErrKindMismatch, i)
	}
	e.filter.Predicate = BooleanEquals{Value: v}
	return nil
}

func (s *FilterSet) check(i int) error {
	if s.invalid == nil {
		s.invalid = make(map[int]struct{})
	}
	if i < 0 || i >= len(s.entries) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return nil
}

// shiftInvalid moves every invalid index >= from by delta
func (s *FilterSet) shiftInvalid(from, delta int) {
	moved := make(map[int]struct{}, len(s.invalid))
	for i := range s.invalid {
		if i >= from {
			moved[i+delta] = struct{}{}
		} else {
			moved[i] = struct{}{}
		}
	}
	s.invalid = moved
}
