package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// Key is one descent step: an object field name or a sequence index
type Key struct {
	name    string
	index   int
	indexed bool
}

// Field returns a key selecting an object member
func Field(name string) Key {
	return Key{name: name}
}

// Index returns a key selecting a sequence element
func Index(i int) Key {
	return Key{index: i, indexed: true}
}

// IsIndex reports whether the key addresses a sequence element
func (k Key) IsIndex() bool { return k.indexed }

// Name returns the field name, or the decimal index for index keys
func (k Key) Name() string {
	if k.indexed {
		return strconv.Itoa(k.index)
	}
	return k.name
}

// Pos returns the sequence index; zero for field keys
func (k Key) Pos() int { return k.index }

func (k Key) String() string {
	if k.indexed {
		return "[" + strconv.Itoa(k.index) + "]"
	}
	return k.name
}

// MarshalJSON encodes field keys as strings and index keys as numbers,
// the same shape tree renderers use for their key paths.
func (k Key) MarshalJSON() ([]byte, error) {
	if k.indexed {
		return []byte(strconv.Itoa(k.index)), nil
	}
	return json.Marshal(k.name)
}

// UnmarshalJSON accepts a string or an integer
func (k *Key) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*k = Field(name)
		return nil
	}
	var idx int
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("key must be a string or an integer: %s", data)
	}
	*k = Index(idx)
	return nil
}

// KeyPath addresses a node inside a Record. Keys are ordered root first:
// KeyPath{Field("metrics"), Field("count")} reaches record["metrics"]["count"].
type KeyPath []Key

// Path builds a root-first KeyPath
func Path(keys ...Key) KeyPath {
	return append(KeyPath(nil), keys...)
}

// Fields builds a root-first KeyPath of field keys
func Fields(names ...string) KeyPath {
	p := make(KeyPath, len(names))
	for i, n := range names {
		p[i] = Field(n)
	}
	return p
}

// LeafFirst converts a leaf-first key list (leaf key first, outermost key
// last, as emitted by JSON tree renderers) into a root-first KeyPath.
func LeafFirst(keys ...Key) KeyPath {
	p := make(KeyPath, len(keys))
	for i, k := range keys {
		p[len(keys)-1-i] = k
	}
	return p
}

// LeafFirst returns the keys in leaf-first order
func (p KeyPath) LeafFirst() []Key {
	out := make([]Key, len(p))
	for i, k := range p {
		out[len(p)-1-i] = k
	}
	return out
}

// Append returns a new path with keys added after the current leaf
func (p KeyPath) Append(keys ...Key) KeyPath {
	out := make(KeyPath, 0, len(p)+len(keys))
	out = append(out, p...)
	return append(out, keys...)
}

// Parent returns the path without its leaf key
func (p KeyPath) Parent() KeyPath {
	if len(p) == 0 {
		return nil
	}
	return append(KeyPath(nil), p[:len(p)-1]...)
}

// Leaf returns the last key
func (p KeyPath) Leaf() (Key, bool) {
	if len(p) == 0 {
		return Key{}, false
	}
	return p[len(p)-1], true
}

// Equal reports whether both paths hold the same keys in the same order
func (p KeyPath) Equal(o KeyPath) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Expr renders the path as a JSONPath expression
func (p KeyPath) Expr() jp.Expr {
	x := jp.R()
	for _, k := range p {
		if k.indexed {
			x = x.N(k.index)
		} else {
			x = x.C(k.name)
		}
	}
	return x
}

func (p KeyPath) String() string {
	return p.Expr().String()
}

// ParseKeyPath reads a JSONPath such as "$.metrics.count" or
// "endpoints[0].device.name". Only child and index steps are accepted.
func ParseKeyPath(s string) (KeyPath, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "$":
		return KeyPath{}, nil
	case strings.HasPrefix(s, "["):
		s = "$" + s
	case !strings.HasPrefix(s, "$"):
		s = "$." + s
	}

	x, err := jp.ParseString(s)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", s, err)
	}

	p := make(KeyPath, 0, len(x))
	for _, frag := range x {
		switch f := frag.(type) {
		case jp.Root, jp.At, jp.Bracket:
			continue
		case jp.Child:
			p = append(p, Field(string(f)))
		case jp.Nth:
			p = append(p, Index(int(f)))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedPath, s)
		}
	}
	return p, nil
}

// Resolve walks path from the root and returns the addressed node
func Resolve(root any, path KeyPath) (any, error) {
	node := root
	for i, k := range path {
		next, ok := step(node, k)
		if !ok {
			return nil, &PathError{Path: path, Step: i, Err: ErrPathNotFound}
		}
		node = next
	}
	return node, nil
}

// Assign sets the node addressed by path to value. Every key but the last
// must resolve; the parent must be an object, or a sequence holding the index.
func Assign(root any, path KeyPath, value any) error {
	leaf, ok := path.Leaf()
	if !ok {
		return &PathError{Path: path, Step: -1, Err: ErrPathNotFound}
	}

	parent, err := Resolve(root, path[:len(path)-1])
	if err != nil {
		return err
	}

	last := len(path) - 1
	switch n := parent.(type) {
	case map[string]any:
		if leaf.indexed {
			return &PathError{Path: path, Step: last, Err: ErrPathNotFound}
		}
		n[leaf.name] = value
		return nil
	case []any:
		i, ok := seqIndex(leaf, len(n))
		if !ok {
			return &PathError{Path: path, Step: last, Err: ErrPathNotFound}
		}
		n[i] = value
		return nil
	}
	return &PathError{Path: path, Step: last, Err: ErrPathNotFound}
}

func step(node any, k Key) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		if k.indexed {
			return nil, false
		}
		v, ok := n[k.name]
		return v, ok
	case []any:
		i, ok := seqIndex(k, len(n))
		if !ok {
			return nil, false
		}
		return n[i], true
	}
	return nil, false
}

// seqIndex accepts index keys and decimal field names ("0") on sequences
func seqIndex(k Key, n int) (int, bool) {
	i := k.index
	if !k.indexed {
		v, err := strconv.Atoi(k.name)
		if err != nil {
			return 0, false
		}
		i = v
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}
