package domain

import (
	"encoding/json"
	"sort"
)

// Record is one topology as decoded from JSON: a tree of map[string]any,
// []any and scalar leaves. It has no fixed schema.
type Record = map[string]any

// Kind classifies a node of a Record
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindNull    Kind = "null"
	KindOther   Kind = "other"
)

// IsScalar reports whether the kind can carry a filter predicate
func (k Kind) IsScalar() bool {
	return k == KindString || k == KindNumber || k == KindBoolean
}

// KindOf returns the JSON kind of v
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case bool:
		return KindBoolean
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	}
	if _, ok := AsNumber(v); ok {
		return KindNumber
	}
	return KindOther
}

// AsNumber converts any numeric value produced by the JSON or YAML decoders
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// RecordID returns the record's "id" field, if it is a string
func RecordID(r Record) string {
	id, _ := r["id"].(string)
	return id
}

// RecordName returns the record's "name" field, if it is a string
func RecordName(r Record) string {
	name, _ := r["name"].(string)
	return name
}

// RecordIDs collects the ids of the given records, skipping records without one
func RecordIDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if id := RecordID(r); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// DeepCopy clones objects and sequences; scalars are shared
func DeepCopy(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, child := range n {
			out[k] = DeepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, child := range n {
			out[i] = DeepCopy(child)
		}
		return out
	}
	return v
}

// CopyRecord deep-copies a record
func CopyRecord(r Record) Record {
	if r == nil {
		return nil
	}
	return DeepCopy(r).(map[string]any)
}

// SortedKeys returns the member names of an object in lexical order
func SortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
