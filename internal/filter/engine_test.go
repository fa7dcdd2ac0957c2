package filter

import (
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topomerge/internal/domain"
)

func topologies() []domain.Record {
	return []domain.Record{
		{
			"id":      "t1",
			"name":    "hub-east",
			"metrics": map[string]any{"count": float64(5)},
			"ike":     map[string]any{"v2": map[string]any{"enabled": true}},
		},
		{
			"id":      "t2",
			"name":    "spoke-west",
			"metrics": map[string]any{"count": float64(12)},
			"ike":     map[string]any{"v2": map[string]any{"enabled": false}},
		},
		{
			"id":   "t3",
			"name": "orphan",
		},
	}
}

func ids(records []domain.Record) []string {
	return domain.RecordIDs(records)
}

func TestEvaluateIdentity(t *testing.T) {
	records := topologies()

	t.Run("nil set", func(t *testing.T) {
		assert.Equal(t, records, Evaluate(records, nil))
	})

	t.Run("empty set", func(t *testing.T) {
		assert.Equal(t, records, Evaluate(records, NewFilterSet()))
	})

	t.Run("all filters invalid", func(t *testing.T) {
		p, err := NewStringPattern("^nothing$")
		require.NoError(t, err)
		s := NewFilterSet(
			Filter{Path: domain.Fields("name"), Predicate: p},
			Filter{Path: domain.Fields("missing"), Predicate: BooleanEquals{Value: true}},
		)
		require.NoError(t, s.MarkInvalid(0))
		require.NoError(t, s.MarkInvalid(1))
		assert.Equal(t, records, Evaluate(records, s))
	})
}

func TestEvaluateStringPattern(t *testing.T) {
	records := topologies()

	tests := []struct {
		pattern string
		want    []string
	}{
		{"", []string{"t1", "t2", "t3"}},
		{"hub", []string{"t1"}},
		{"-", []string{"t1", "t2"}},
		{"^spoke", []string{"t2"}},
		{"east$", []string{"t1"}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p, err := NewStringPattern(tt.pattern)
			require.NoError(t, err)
			s := NewFilterSet(Filter{Path: domain.Fields("name"), Predicate: p})
			assert.Equal(t, tt.want, ids(Evaluate(records, s)))
		})
	}
}

func TestStringPatternIsSearch(t *testing.T) {
	// non-empty result iff the pattern matches somewhere in the value
	values := []string{"alpha", "beta-1", "gamma", ""}
	patterns := []string{"a", "^b", "[0-9]", "ph", "^$", "mm+"}
	for _, v := range values {
		for _, pat := range patterns {
			p, err := NewStringPattern(pat)
			require.NoError(t, err)
			r := domain.Record{"name": v}
			got := len(Evaluate([]domain.Record{r}, NewFilterSet(Filter{Path: domain.Fields("name"), Predicate: p}))) > 0
			want := regexp.MustCompile(pat).MatchString(v)
			assert.Equal(t, want, got, "pattern %q on %q", pat, v)
		}
	}
}

func TestStringPatternNonString(t *testing.T) {
	p, err := NewStringPattern("5")
	require.NoError(t, err)
	s := NewFilterSet(Filter{Path: domain.Fields("metrics", "count"), Predicate: p})
	assert.Empty(t, Evaluate(topologies(), s))
}

func TestNumericRangeInclusive(t *testing.T) {
	s := NewFilterSet(Filter{Path: domain.Fields("v"), Predicate: NumericRange{Min: 5, Max: 5}})

	assert.Len(t, Evaluate([]domain.Record{{"v": float64(5)}}, s), 1)
	assert.Empty(t, Evaluate([]domain.Record{{"v": 4.999}}, s))
	assert.Empty(t, Evaluate([]domain.Record{{"v": 5.001}}, s))
	assert.Len(t, Evaluate([]domain.Record{{"v": 5}}, s), 1, "integers from YAML decode count as numbers")
}

func TestNumericRangeNaN(t *testing.T) {
	records := []domain.Record{{"v": float64(1)}}
	for _, r := range []NumericRange{
		{Min: math.NaN(), Max: 10},
		{Min: 0, Max: math.NaN()},
		{Min: math.NaN(), Max: math.NaN()},
	} {
		s := NewFilterSet(Filter{Path: domain.Fields("v"), Predicate: r})
		assert.Empty(t, Evaluate(records, s))
		assert.False(t, r.Valid())
	}
}

func TestNumericRangeUnbounded(t *testing.T) {
	s := NewFilterSet(Filter{Path: domain.Fields("v"), Predicate: Unbounded()})
	records := []domain.Record{{"v": -1e300}, {"v": float64(0)}, {"v": 1e300}, {"v": "12"}}
	assert.Len(t, Evaluate(records, s), 3)
}

func TestBooleanEquals(t *testing.T) {
	path := domain.Fields("ike", "v2", "enabled")

	s := NewFilterSet(Filter{Path: path, Predicate: BooleanEquals{Value: true}})
	assert.Equal(t, []string{"t1"}, ids(Evaluate(topologies(), s)))

	s = NewFilterSet(Filter{Path: path, Predicate: BooleanEquals{Value: false}})
	assert.Equal(t, []string{"t2"}, ids(Evaluate(topologies(), s)))

	s = NewFilterSet(Filter{Path: domain.Fields("name"), Predicate: BooleanEquals{Value: false}})
	assert.Empty(t, Evaluate(topologies(), s), "strings never equal a boolean")
}

func TestConjunction(t *testing.T) {
	p, err := NewStringPattern("-")
	require.NoError(t, err)
	s := NewFilterSet(
		Filter{Path: domain.Fields("name"), Predicate: p},
		Filter{Path: domain.Fields("metrics", "count"), Predicate: NumericRange{Min: 10, Max: 20}},
	)
	assert.Equal(t, []string{"t2"}, ids(Evaluate(topologies(), s)))
}

func TestMissingPathFailsClosed(t *testing.T) {
	s := NewFilterSet(Filter{Path: domain.Fields("metrics", "count"), Predicate: Unbounded()})
	results := EvaluateDetailed(topologies(), s)

	require.Len(t, results, 3)
	assert.Equal(t, OutcomeMatched, results[0].Outcome)
	assert.Equal(t, OutcomeMatched, results[1].Outcome)
	assert.Equal(t, OutcomePathError, results[2].Outcome)
	assert.ErrorIs(t, results[2].Err, domain.ErrPathNotFound)
	assert.Equal(t, 0, results[2].Filter)

	assert.Equal(t, []string{"t1", "t2"}, ids(Evaluate(topologies(), s)))
}

func TestLeafFirstScenario(t *testing.T) {
	r := domain.Record{"name": "A", "metrics": map[string]any{"count": float64(5)}}
	f := Filter{
		Path:      domain.LeafFirst(domain.Field("count"), domain.Field("metrics")),
		Predicate: NumericRange{Min: 1, Max: 10},
	}
	assert.Len(t, Evaluate([]domain.Record{r}, NewFilterSet(f)), 1)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "matched", OutcomeMatched.String())
	assert.Equal(t, "not_matched", OutcomeNotMatched.String())
	assert.Equal(t, "path_error", OutcomePathError.String())
}
