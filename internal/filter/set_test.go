package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topomerge/internal/domain"
)

func TestDefaultFilter(t *testing.T) {
	f := DefaultFilter()
	assert.True(t, f.Path.Equal(domain.Fields("name")))
	sp, ok := f.Predicate.(StringPattern)
	require.True(t, ok)
	assert.Equal(t, "", sp.Pattern)
}

func TestInitialPredicate(t *testing.T) {
	p, err := InitialPredicate(domain.KindString)
	require.NoError(t, err)
	assert.Equal(t, KindStringPattern, p.Kind())

	p, err = InitialPredicate(domain.KindNumber)
	require.NoError(t, err)
	r := p.(NumericRange)
	assert.True(t, math.IsInf(r.Min, -1))
	assert.True(t, math.IsInf(r.Max, 1))

	p, err = InitialPredicate(domain.KindBoolean)
	require.NoError(t, err)
	assert.Equal(t, BooleanEquals{Value: false}, p)

	for _, k := range []domain.Kind{domain.KindObject, domain.KindArray, domain.KindNull, domain.KindOther} {
		_, err := InitialPredicate(k)
		assert.ErrorIs(t, err, domain.ErrUnsupportedLeafType, "kind %s", k)
	}
}

func TestFilterSetInsertRemove(t *testing.T) {
	s := NewDefaultFilterSet()
	require.Equal(t, 1, s.Len())

	f := Filter{Path: domain.Fields("enabled"), Predicate: BooleanEquals{Value: true}}
	require.NoError(t, s.Insert(1, f))
	require.NoError(t, s.Insert(0, Filter{Path: domain.Fields("n"), Predicate: Unbounded()}))
	require.Equal(t, 3, s.Len())

	got, err := s.At(2)
	require.NoError(t, err)
	assert.Equal(t, f, got)

	assert.ErrorIs(t, s.Insert(5, f), ErrIndexOutOfRange)
	assert.ErrorIs(t, s.Remove(3), ErrIndexOutOfRange)
	_, err = s.At(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	require.NoError(t, s.Remove(0))
	require.NoError(t, s.Remove(0))
	require.NoError(t, s.Remove(0))
	assert.Equal(t, 1, s.Len(), "removing the last filter reseeds the default")
	got, _ = s.At(0)
	assert.True(t, got.Path.Equal(domain.Fields("name")))
}

func TestInvalidFlagsFollowTheirFilter(t *testing.T) {
	s := NewFilterSet(
		Filter{Path: domain.Fields("a"), Predicate: Unbounded()},
		Filter{Path: domain.Fields("b"), Predicate: Unbounded()},
		Filter{Path: domain.Fields("c"), Predicate: Unbounded()},
	)
	require.NoError(t, s.MarkInvalid(1))

	require.NoError(t, s.Insert(0, DefaultFilter()))
	assert.Equal(t, []int{2}, s.InvalidIndices())
	f, _ := s.At(2)
	assert.True(t, f.Path.Equal(domain.Fields("b")))

	require.NoError(t, s.Remove(0))
	assert.Equal(t, []int{1}, s.InvalidIndices())

	require.NoError(t, s.Remove(1))
	assert.Empty(t, s.InvalidIndices())
	assert.Equal(t, 2, s.Len())
}

func TestMarkInvalidRetainsFilter(t *testing.T) {
	s := NewFilterSet(Filter{Path: domain.Fields("a"), Predicate: BooleanEquals{Value: true}})
	require.NoError(t, s.MarkInvalid(0))

	assert.True(t, s.IsInvalid(0))
	assert.Equal(t, 1, s.Len())
	assert.Empty(t, s.Active())

	require.NoError(t, s.UnmarkInvalid(0))
	assert.Len(t, s.Active(), 1)
}

func TestSetPattern(t *testing.T) {
	s := NewDefaultFilterSet()
	records := []domain.Record{{"name": "hub"}, {"name": "spoke"}}

	require.NoError(t, s.SetPattern(0, "^h"))
	assert.Len(t, Evaluate(records, s), 1)

	err := s.SetPattern(0, "(unclosed")
	assert.ErrorIs(t, err, domain.ErrInvalidPattern)
	assert.True(t, s.IsInvalid(0))
	assert.Equal(t, "(unclosed", s.Draft(0))
	assert.Len(t, Evaluate(records, s), 2, "invalid filter must not take part")

	f, _ := s.At(0)
	assert.Equal(t, "^h", f.Predicate.(StringPattern).Pattern, "stale predicate is kept")

	require.NoError(t, s.SetPattern(0, "e$"))
	assert.False(t, s.IsInvalid(0))
	assert.Equal(t, []string{"spoke"}, []string{domain.RecordName(Evaluate(records, s)[0])})
}

func TestTypedEdits(t *testing.T) {
	s := NewFilterSet(
		Filter{Path: domain.Fields("n"), Predicate: Unbounded()},
		Filter{Path: domain.Fields("b"), Predicate: BooleanEquals{}},
	)

	require.NoError(t, s.SetRange(0, 1, 2))
	f, _ := s.At(0)
	assert.Equal(t, NumericRange{Min: 1, Max: 2}, f.Predicate)

	require.NoError(t, s.SetBool(1, true))
	f, _ = s.At(1)
	assert.Equal(t, BooleanEquals{Value: true}, f.Predicate)

	assert.ErrorIs(t, s.SetBool(0, true), ErrKindMismatch)
	assert.ErrorIs(t, s.SetRange(1, 0, 1), ErrKindMismatch)
	assert.ErrorIs(t, s.SetPattern(1, "x"), ErrKindMismatch)
}

func TestReplaceClearsInvalid(t *testing.T) {
	s := NewDefaultFilterSet()
	_ = s.SetPattern(0, "[")
	require.True(t, s.IsInvalid(0))

	require.NoError(t, s.Replace(0, Filter{Path: domain.Fields("x"), Predicate: Unbounded()}))
	assert.False(t, s.IsInvalid(0))
}

func TestZeroValueFilterSet(t *testing.T) {
	var s FilterSet
	require.NoError(t, s.Insert(0, DefaultFilter()))
	require.NoError(t, s.MarkInvalid(0))
	assert.True(t, s.IsInvalid(0))
}

func TestParseExpr(t *testing.T) {
	tests := []struct {
		in   string
		path domain.KeyPath
		pred Predicate
	}{
		{"metrics.count=1..10", domain.Fields("metrics", "count"), NumericRange{Min: 1, Max: 10}},
		{"metrics.count=5", domain.Fields("metrics", "count"), NumericRange{Min: 5, Max: 5}},
		{"metrics.count=..3", domain.Fields("metrics", "count"), NumericRange{Min: math.Inf(-1), Max: 3}},
		{"ike.enabled=true", domain.Fields("ike", "enabled"), BooleanEquals{Value: true}},
		{"ike.enabled=false", domain.Fields("ike", "enabled"), BooleanEquals{Value: false}},
	}
	for _, tt := range tests {
		f, err := ParseExpr(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.path.Equal(f.Path), tt.in)
		assert.Equal(t, tt.pred, f.Predicate, tt.in)
	}

	f, err := ParseExpr("name~^hub")
	require.NoError(t, err)
	assert.True(t, f.Predicate.Match("hub-1"))

	_, err = ParseExpr("name~(")
	assert.ErrorIs(t, err, domain.ErrInvalidPattern)

	_, err = ParseExpr("name")
	assert.Error(t, err)

	_, err = ParseExpr("n=abc")
	assert.Error(t, err)
}

func TestForLeaf(t *testing.T) {
	sample := domain.Record{"name": "x", "n": float64(1), "ok": true, "list": []any{}}

	f, err := ForLeaf(sample, domain.Fields("n"))
	require.NoError(t, err)
	assert.Equal(t, KindNumericRange, f.Predicate.Kind())

	_, err = ForLeaf(sample, domain.Fields("list"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedLeafType)

	_, err = ForLeaf(sample, domain.Fields("missing"))
	assert.ErrorIs(t, err, domain.ErrPathNotFound)
}
