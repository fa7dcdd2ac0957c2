package filter

import (
	"errors"
	"fmt"

	"topomerge/internal/domain"
)

// ErrNoChildren is returned when discovery reaches a scalar
var ErrNoChildren = errors.New("node has no children")

// DiscoverChildren lists the keys available under prefix in a
// representative record: member names in lexical order for objects,
// positions for sequences.
func DiscoverChildren(sample any, prefix domain.KeyPath) ([]domain.Key, error) {
	node, err := domain.Resolve(sample, prefix)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case map[string]any:
		names := domain.SortedKeys(n)
		keys := make([]domain.Key, len(names))
		for i, name := range names {
			keys[i] = domain.Field(name)
		}
		return keys, nil
	case []any:
		keys := make([]domain.Key, len(n))
		for i := range n {
			keys[i] = domain.Index(i)
		}
		return keys, nil
	}
	return nil, fmt.Errorf("%s: %w", prefix, ErrNoChildren)
}

// Siblings lists the alternatives for the key at position depth of path
func Siblings(sample any, path domain.KeyPath, depth int) ([]domain.Key, error) {
	if depth < 0 || depth > len(path) {
		return nil, fmt.Errorf("%w: depth %d", ErrIndexOutOfRange, depth)
	}
	return DiscoverChildren(sample, path[:depth])
}

// Selection is the outcome of picking a key during discovery
type Selection struct {
	Path domain.KeyPath
	Leaf any
	Kind domain.Kind
}

// Complete reports whether the selection ends on a filterable scalar
func (s Selection) Complete() bool {
	return s.Kind.IsScalar()
}

// SelectChild replaces the key at position depth of path with key (depth
// equal to len(path) extends it), drops the keys after it, and then runs
// collapseSingletonWrappers from there.
func SelectChild(sample any, path domain.KeyPath, depth int, key domain.Key) (Selection, error) {
	if depth < 0 || depth > len(path) {
		return Selection{}, fmt.Errorf("%w: depth %d", ErrIndexOutOfRange, depth)
	}
	next := path[:depth].Append(key)
	collapsed, leaf, err := collapseSingletonWrappers(sample, next)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Path: collapsed, Leaf: leaf, Kind: domain.KindOf(leaf)}, nil
}

// collapseSingletonWrappers descends from path through every object that
// has exactly one member, extending the path each time. It stops at the
// first scalar, sequence or multi-member object.
func collapseSingletonWrappers(sample any, path domain.KeyPath) (domain.KeyPath, any, error) {
	node, err := domain.Resolve(sample, path)
	if err != nil {
		return nil, nil, err
	}
	for {
		obj, ok := node.(map[string]any)
		if !ok || len(obj) != 1 {
			return path, node, nil
		}
		for name, child := range obj {
			path = path.Append(domain.Field(name))
			node = child
		}
	}
}

// Retarget points filter i at a newly selected key and resets its
// predicate for the leaf type found there. A selection that stops on a
// multi-member object is stored and the filter is marked invalid until a
// scalar is chosen. Sequences and nulls are rejected with
// ErrUnsupportedLeafType and leave the filter unchanged.
func (s *FilterSet) Retarget(i int, sample any, depth int, key domain.Key) (Selection, error) {
	if err := s.check(i); err != nil {
		return Selection{}, err
	}
	e := &s.entries[i]

	sel, err := SelectChild(sample, e.filter.Path, depth, key)
	if err != nil {
		return Selection{}, err
	}

	if sel.Kind == domain.KindObject {
		e.filter.Path = sel.Path
		s.invalid[i] = struct{}{}
		return sel, nil
	}

	pred, err := InitialPredicate(sel.Kind)
	if err != nil {
		return sel, fmt.Errorf("%s: %w", sel.Path, err)
	}
	*e = newEntry(Filter{Path: sel.Path, Predicate: pred})
	delete(s.invalid, i)
	return sel, nil
}
