// Package filter narrows records with per-field predicates.
package filter

import (
	"errors"
	"fmt"

	"topomerge/internal/domain"
)

var (
	// ErrIndexOutOfRange is returned by FilterSet mutators for a bad position
	ErrIndexOutOfRange = errors.New("filter index out of range")
	// ErrKindMismatch is returned when editing a predicate with a value of another kind
	ErrKindMismatch = errors.New("predicate kind mismatch")
)

// Filter selects records whose value at Path satisfies Predicate
type Filter struct {
	Path      domain.KeyPath
	Predicate Predicate
}

// DefaultFilter is the seed filter shown to a new user
func DefaultFilter() Filter {
	p, _ := NewStringPattern("")
	return Filter{Path: domain.Fields("name"), Predicate: p}
}

func (f Filter) String() string {
	if f.Predicate == nil {
		return f.Path.String()
	}
	return fmt.Sprintf("%s %v", f.Path, f.Predicate)
}

// ForLeaf builds a filter at path whose predicate is chosen from the
// kind of the value found there in sample.
func ForLeaf(sample any, path domain.KeyPath) (Filter, error) {
	v, err := domain.Resolve(sample, path)
	if err != nil {
		return Filter{}, err
	}
	pred, err := InitialPredicate(domain.KindOf(v))
	if err != nil {
		return Filter{}, fmt.Errorf("%s: %w", path, err)
	}
	return Filter{Path: path, Predicate: pred}, nil
}
