// Package overlay tracks the conflicts among selected records and the
// override values chosen to resolve them.
package overlay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ohler55/ojg/oj"

	"topomerge/internal/domain"
)

// ErrReadOnly is returned when editing an informational conflict node
var ErrReadOnly = errors.New("conflict node is informational")

// Conflict is the backend's structural diff across the selected records.
// Leaves are the disagreeing values; a one-element sequence is informational.
type Conflict = map[string]any

// Override mirrors a Conflict's shape. Objects are kept, every other node
// starts absent (nil) and may hold raw JSON text entered by the user.
type Override = map[string]any

// FieldError flags one override field whose text is not valid JSON
type FieldError struct {
	Path domain.KeyPath
	Err  error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// BuildSkeleton deep-copies the object structure of c and resets every
// non-object node to absent.
func BuildSkeleton(c Conflict) Override {
	out := make(Override, len(c))
	for k, v := range c {
		if obj, ok := v.(map[string]any); ok {
			out[k] = BuildSkeleton(obj)
		} else {
			out[k] = nil
		}
	}
	return out
}

// IsInformational reports whether node is a sequence of exactly one element
func IsInformational(node any) bool {
	seq, ok := node.([]any)
	return ok && len(seq) == 1
}

// HasAnyConflict reports whether c has at least one member. An empty
// conflict record lets the caller skip straight to merging.
func HasAnyConflict(c Conflict) bool {
	return len(c) > 0
}

// ValidateText accepts the empty string or any JSON document. Text passing
// here decodes with encoding/json, which is what Preview and the backend use.
func ValidateText(raw string) error {
	if raw == "" {
		return nil
	}
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: blank text", domain.ErrInvalidOverrideJSON)
	}
	if _, err := oj.ParseString(raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidOverrideJSON, err)
	}
	// oj is lenient about some malformed objects, e.g. {"a":}
	if !json.Valid([]byte(raw)) {
		var v any
		err := json.Unmarshal([]byte(raw), &v)
		return fmt.Errorf("%w: %v", domain.ErrInvalidOverrideJSON, err)
	}
	return nil
}

// Overlay holds one workflow's conflict record, the override being
// edited and the per-field validation flags.
type Overlay struct {
	conflict Conflict
	override Override
	invalid  map[string]FieldError // keyed by KeyPath.String()
}

// New builds an overlay with a fresh skeleton for c
func New(c Conflict) *Overlay {
	if c == nil {
		c = Conflict{}
	}
	return &Overlay{
		conflict: c,
		override: BuildSkeleton(c),
		invalid:  make(map[string]FieldError),
	}
}

// Conflict returns the conflict record the overlay was built from
func (o *Overlay) Conflict() Conflict {
	return o.conflict
}

// Override returns the live override record
func (o *Overlay) Override() Override {
	return o.override
}

// HasAnyConflict reports whether the overlay step is needed at all
func (o *Overlay) HasAnyConflict() bool {
	return HasAnyConflict(o.conflict)
}

// Editable reports whether path addresses a conflict node that accepts
// override text
func (o *Overlay) Editable(path domain.KeyPath) bool {
	node, err := domain.Resolve(o.conflict, path)
	if err != nil {
		return false
	}
	return !IsInformational(node)
}

// SetOverrideAt stores raw at path. Text that is not valid JSON is still
// written so it can be edited further, but the field is flagged and its
// effect is withheld from Submission.
func (o *Overlay) SetOverrideAt(path domain.KeyPath, raw string) error {
	if node, err := domain.Resolve(o.conflict, path); err == nil && IsInformational(node) {
		return fmt.Errorf("%s: %w", path, ErrReadOnly)
	}
	if err := domain.Assign(o.override, path, raw); err != nil {
		return err
	}
	o.dropBelow(path)
	o.revalidate(path, raw)
	return nil
}

// Clear resets the override at path to absent
func (o *Overlay) Clear(path domain.KeyPath) error {
	if err := domain.Assign(o.override, path, nil); err != nil {
		return err
	}
	o.dropBelow(path)
	delete(o.invalid, path.String())
	return nil
}

// Promote accepts an observed conflicting value verbatim: its JSON
// encoding is stored at parent, but only when the current override there
// is absent or already text, so nested object overrides are never replaced
// by a scalar. It reports whether the override changed.
func (o *Overlay) Promote(parent domain.KeyPath, observed any) (bool, error) {
	current, err := domain.Resolve(o.override, parent)
	if err != nil {
		return false, err
	}
	switch current.(type) {
	case nil, string:
	default:
		return false, nil
	}

	text, err := encodeJSON(observed)
	if err != nil {
		return false, err
	}
	if err := domain.Assign(o.override, parent, text); err != nil {
		return false, err
	}
	o.dropBelow(parent)
	o.revalidate(parent, text)
	return true, nil
}

// Invalid reports whether the field at path holds unparsable text
func (o *Overlay) Invalid(path domain.KeyPath) bool {
	_, ok := o.invalid[path.String()]
	return ok
}

// Problems lists the flagged fields ordered by path
func (o *Overlay) Problems() []FieldError {
	keys := make([]string, 0, len(o.invalid))
	for k := range o.invalid {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]FieldError, len(keys))
	for i, k := range keys {
		out[i] = o.invalid[k]
	}
	return out
}

// Submission returns the override to send with the merge request. With no
// flagged fields it is the override itself; otherwise a copy in which the
// flagged fields are absent.
func (o *Overlay) Submission() Override {
	if len(o.invalid) == 0 {
		return o.override
	}
	return o.withhold(o.override, nil)
}

func (o *Overlay) withhold(node map[string]any, at domain.KeyPath) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		path := at.Append(domain.Field(k))
		if obj, ok := v.(map[string]any); ok {
			out[k] = o.withhold(obj, path)
			continue
		}
		if _, bad := o.invalid[path.String()]; bad {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return out
}

// dropBelow forgets the flags of fields nested under path, which a write
// at path has replaced
func (o *Overlay) dropBelow(path domain.KeyPath) {
	for k, fe := range o.invalid {
		if len(fe.Path) > len(path) && fe.Path[:len(path)].Equal(path) {
			delete(o.invalid, k)
		}
	}
}

func (o *Overlay) revalidate(path domain.KeyPath, raw string) {
	key := path.String()
	if err := ValidateText(raw); err != nil {
		o.invalid[key] = FieldError{Path: append(domain.KeyPath(nil), path...), Err: err}
		return
	}
	delete(o.invalid, key)
}

// encodeJSON matches the compact output of a browser's JSON.stringify:
// no HTML escaping and no trailing newline.
func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode observed value: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
