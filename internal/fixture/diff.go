package fixture

import (
	"errors"
	"reflect"

	"topomerge/internal/domain"
	"topomerge/internal/overlay"
)

// ErrNoRecords is returned when a diff or merge is asked for zero records
var ErrNoRecords = errors.New("no records")

// IgnoredKeys are never reported as conflicts: identity, bookkeeping and
// the endpoints that a merge combines anyway
var IgnoredKeys = map[string]struct{}{
	"metadata":     {},
	"id":           {},
	"description":  {},
	"links":        {},
	"topologyType": {},
	"endpoints":    {},
	"name":         {},
}

// Diff computes the conflict record of records. Keys are taken from the
// first record. Objects recurse and are dropped when nothing below them
// conflicts. Sequences conflict as a one-element list holding the ordered
// union of all their elements, unless that union equals the first
// sequence. Scalars conflict as the list of distinct values when there is
// more than one.
func Diff(records []domain.Record, ignored map[string]struct{}) (overlay.Conflict, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	objs := make([]map[string]any, len(records))
	for i, r := range records {
		objs[i] = r
	}
	return diffObjects(objs, ignored), nil
}

func diffObjects(objs []map[string]any, ignored map[string]struct{}) map[string]any {
	out := make(map[string]any)
	for key, first := range objs[0] {
		if _, skip := ignored[key]; skip {
			continue
		}
		values := make([]any, len(objs))
		for i, obj := range objs {
			values[i] = obj[key]
		}

		var conflict any
		switch first.(type) {
		case map[string]any:
			children := make([]map[string]any, len(values))
			for i, v := range values {
				child, _ := v.(map[string]any)
				children[i] = child
			}
			if nested := diffObjects(children, ignored); len(nested) > 0 {
				conflict = nested
			}
		case []any:
			conflict = listConflict(values)
		default:
			if distinct := distinctValues(values); len(distinct) > 1 {
				conflict = distinct
			}
		}
		if conflict != nil {
			out[key] = conflict
		}
	}
	return out
}

func listConflict(values []any) any {
	var union []any
	for _, v := range values {
		for _, item := range asList(v) {
			if !contains(union, item) {
				union = append(union, item)
			}
		}
	}
	if equalLists(union, asList(values[0])) {
		return nil
	}
	return []any{union}
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	}
	return []any{v}
}

func distinctValues(values []any) []any {
	var out []any
	for _, v := range values {
		if !contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []any, v any) bool {
	for _, item := range list {
		if same(item, v) {
			return true
		}
	}
	return false
}

func equalLists(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !same(a[i], b[i]) {
			return false
		}
	}
	return true
}

// same compares decoded values, treating numbers of any width as equal by value
func same(a, b any) bool {
	if x, ok := domain.AsNumber(a); ok {
		y, ok := domain.AsNumber(b)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}
