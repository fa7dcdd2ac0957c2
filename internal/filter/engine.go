package filter

import (
	"topomerge/internal/domain"
)

// Outcome is the typed result of matching one record
type Outcome int

const (
	OutcomeMatched Outcome = iota
	OutcomeNotMatched
	// OutcomePathError means a filter path did not resolve in the record;
	// the record is treated as not matching.
	OutcomePathError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeNotMatched:
		return "not_matched"
	case OutcomePathError:
		return "path_error"
	}
	return "unknown"
}

// Result describes how one record fared against a FilterSet
type Result struct {
	Record  domain.Record
	Outcome Outcome
	Filter  int   // index of the first filter that rejected the record, -1 if matched
	Err     error // resolution error for OutcomePathError
}

// Match evaluates every valid filter in s against r
func Match(r domain.Record, s *FilterSet) Result {
	if s == nil {
		return Result{Record: r, Outcome: OutcomeMatched, Filter: -1}
	}
	for i, e := range s.entries {
		if s.IsInvalid(i) || e.filter.Predicate == nil {
			continue
		}
		v, err := domain.Resolve(r, e.filter.Path)
		if err != nil {
			return Result{Record: r, Outcome: OutcomePathError, Filter: i, Err: err}
		}
		if !e.filter.Predicate.Match(v) {
			return Result{Record: r, Outcome: OutcomeNotMatched, Filter: i}
		}
	}
	return Result{Record: r, Outcome: OutcomeMatched, Filter: -1}
}

// EvaluateDetailed matches each record and reports every outcome
func EvaluateDetailed(records []domain.Record, s *FilterSet) []Result {
	results := make([]Result, len(records))
	for i, r := range records {
		results[i] = Match(r, s)
	}
	return results
}

// Evaluate returns the records matching every valid filter, in input order.
// Records whose paths do not resolve are dropped.
func Evaluate(records []domain.Record, s *FilterSet) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if Match(r, s).Outcome == OutcomeMatched {
			out = append(out, r)
		}
	}
	return out
}
