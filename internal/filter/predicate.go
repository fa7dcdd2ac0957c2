package filter

import (
	"fmt"
	"math"
	"regexp"

	"topomerge/internal/domain"
)

// PredicateKind tags the predicate variant held by a Filter
type PredicateKind string

const (
	KindStringPattern PredicateKind = "string_pattern"
	KindNumericRange  PredicateKind = "numeric_range"
	KindBooleanEquals PredicateKind = "boolean_equals"
)

// Predicate is a closed union over StringPattern, NumericRange and
// BooleanEquals. The variant is fixed when the filter is created from the
// leaf type found at its path.
type Predicate interface {
	Kind() PredicateKind
	// Match reports whether a resolved value satisfies the predicate.
	// Values of the wrong JSON kind never match.
	Match(v any) bool
	isPredicate()
}

// StringPattern matches strings containing a regular expression match
type StringPattern struct {
	Pattern string
	re      *regexp.Regexp
}

// NewStringPattern compiles pattern. Compile failures wrap ErrInvalidPattern.
func NewStringPattern(pattern string) (StringPattern, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return StringPattern{}, fmt.Errorf("%w: %v", domain.ErrInvalidPattern, err)
	}
	return StringPattern{Pattern: pattern, re: re}, nil
}

func (StringPattern) Kind() PredicateKind { return KindStringPattern }

func (p StringPattern) Match(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	if p.re == nil {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	}
	return p.re.MatchString(s)
}

func (StringPattern) isPredicate() {}

func (p StringPattern) String() string {
	return fmt.Sprintf("~ /%s/", p.Pattern)
}

// NumericRange matches numbers in [Min, Max], inclusive at both ends
type NumericRange struct {
	Min float64
	Max float64
}

// Unbounded returns the range (-Inf, +Inf)
func Unbounded() NumericRange {
	return NumericRange{Min: math.Inf(-1), Max: math.Inf(1)}
}

func (NumericRange) Kind() PredicateKind { return KindNumericRange }

func (p NumericRange) Match(v any) bool {
	if math.IsNaN(p.Min) || math.IsNaN(p.Max) {
		return false
	}
	n, ok := domain.AsNumber(v)
	if !ok {
		return false
	}
	return p.Min <= n && n <= p.Max
}

// Valid reports whether both bounds are numbers
func (p NumericRange) Valid() bool {
	return !math.IsNaN(p.Min) && !math.IsNaN(p.Max)
}

func (NumericRange) isPredicate() {}

func (p NumericRange) String() string {
	return fmt.Sprintf("in [%g, %g]", p.Min, p.Max)
}

// BooleanEquals matches booleans equal to Value
type BooleanEquals struct {
	Value bool
}

func (BooleanEquals) Kind() PredicateKind { return KindBooleanEquals }

func (p BooleanEquals) Match(v any) bool {
	b, ok := v.(bool)
	return ok && b == p.Value
}

func (BooleanEquals) isPredicate() {}

func (p BooleanEquals) String() string {
	return fmt.Sprintf("== %t", p.Value)
}

// InitialPredicate maps a discovered leaf kind to its default predicate:
// an empty pattern, an unbounded range, or false.
func InitialPredicate(kind domain.Kind) (Predicate, error) {
	switch kind {
	case domain.KindString:
		p, _ := NewStringPattern("")
		return p, nil
	case domain.KindNumber:
		return Unbounded(), nil
	case domain.KindBoolean:
		return BooleanEquals{Value: false}, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLeafType, kind)
}
