package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"topomerge/internal/domain"
)

// ParseExpr reads the command-line filter syntax:
//
//	name~^hub-            string pattern
//	metrics.count=1..10   inclusive numeric range, either bound may be empty
//	metrics.count=5       exact number
//	ikeV2.enabled=true    boolean
func ParseExpr(expr string) (Filter, error) {
	if i := strings.IndexAny(expr, "~="); i > 0 {
		path, err := domain.ParseKeyPath(expr[:i])
		if err != nil {
			return Filter{}, err
		}
		value := expr[i+1:]

		if expr[i] == '~' {
			p, err := NewStringPattern(value)
			if err != nil {
				return Filter{}, err
			}
			return Filter{Path: path, Predicate: p}, nil
		}

		pred, err := parseValue(value)
		if err != nil {
			return Filter{}, fmt.Errorf("filter %q: %w", expr, err)
		}
		return Filter{Path: path, Predicate: pred}, nil
	}
	return Filter{}, fmt.Errorf("filter %q: expected path~pattern or path=value", expr)
}

func parseValue(value string) (Predicate, error) {
	switch value {
	case "true":
		return BooleanEquals{Value: true}, nil
	case "false":
		return BooleanEquals{Value: false}, nil
	}

	if lo, hi, ok := strings.Cut(value, ".."); ok {
		min, err := parseBound(lo, math.Inf(-1))
		if err != nil {
			return nil, err
		}
		max, err := parseBound(hi, math.Inf(1))
		if err != nil {
			return nil, err
		}
		return NumericRange{Min: min, Max: max}, nil
	}

	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a boolean, number or range", value)
	}
	return NumericRange{Min: n, Max: n}, nil
}

func parseBound(s string, unset float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return unset, nil
	}
	return strconv.ParseFloat(s, 64)
}
