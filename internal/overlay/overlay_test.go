package overlay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topomerge/internal/domain"
)

func conflictFixture() Conflict {
	return Conflict{
		"ikeV2Enabled": []any{true, false},
		"ikeSettings": map[string]any{
			"ikeV2Settings": map[string]any{
				"authenticationType": []any{"MANUAL_PRE_SHARED_KEY", "CERTIFICATE"},
				"policies":           []any{[]any{"AES-GCM-256", "AES-256"}},
			},
		},
		"ipsecSettings": map[string]any{
			"lifetimeSeconds": []any{float64(28800), float64(3600)},
		},
	}
}

// shape replaces every leaf with a marker so two trees can be compared by structure
func shape(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return "leaf"
	}
	out := make(map[string]any, len(obj))
	for k, child := range obj {
		out[k] = shape(child)
	}
	return out
}

func TestBuildSkeleton(t *testing.T) {
	c := conflictFixture()
	sk := BuildSkeleton(c)

	assert.Nil(t, sk["ikeV2Enabled"])
	v2 := sk["ikeSettings"].(map[string]any)["ikeV2Settings"].(map[string]any)
	assert.Contains(t, v2, "authenticationType")
	assert.Nil(t, v2["authenticationType"])
	assert.Nil(t, v2["policies"])
	assert.Equal(t, shape(c), shape(sk))

	t.Run("idempotent on shape", func(t *testing.T) {
		again := BuildSkeleton(c)
		assert.Equal(t, sk, again)
	})

	t.Run("does not alias the conflict record", func(t *testing.T) {
		v2["authenticationType"] = "x"
		orig := c["ikeSettings"].(map[string]any)["ikeV2Settings"].(map[string]any)["authenticationType"]
		assert.Equal(t, []any{"MANUAL_PRE_SHARED_KEY", "CERTIFICATE"}, orig)
	})

	t.Run("peer scenario", func(t *testing.T) {
		c := Conflict{"peer": []any{"X", "Y"}}
		assert.False(t, IsInformational(c["peer"]))
		assert.Equal(t, Override{"peer": nil}, BuildSkeleton(c))
	})
}

func TestIsInformational(t *testing.T) {
	tests := []struct {
		name string
		node any
		want bool
	}{
		{"one element", []any{"x"}, true},
		{"one nested list", []any{[]any{"a", "b"}}, true},
		{"one object", []any{map[string]any{"a": 1}}, true},
		{"empty", []any{}, false},
		{"two elements", []any{"x", "y"}, false},
		{"three elements", []any{1, 2, 3}, false},
		{"object", map[string]any{"a": []any{"x"}}, false},
		{"string", "x", false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		if got := IsInformational(tt.node); got != tt.want {
			t.Errorf("IsInformational(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHasAnyConflict(t *testing.T) {
	assert.False(t, HasAnyConflict(Conflict{}))
	assert.False(t, HasAnyConflict(nil))
	assert.True(t, HasAnyConflict(Conflict{"a": []any{1, 2}}))
	assert.False(t, New(nil).HasAnyConflict())
}

func TestValidateText(t *testing.T) {
	for _, ok := range []string{"", `"x"`, "5", "true", "null", `{"a":[1,2]}`, ` [1] `} {
		assert.NoError(t, ValidateText(ok), ok)
	}
	for _, bad := range []string{"{bad json", "x", "  ", "[1,", `{"a":}`, `{"a":1,}`, `[1,]`, `{"a" 1}`} {
		assert.ErrorIs(t, ValidateText(bad), domain.ErrInvalidOverrideJSON, bad)
	}
}

func TestSetOverrideAt(t *testing.T) {
	o := New(conflictFixture())
	auth := domain.Fields("ikeSettings", "ikeV2Settings", "authenticationType")
	life := domain.Fields("ipsecSettings", "lifetimeSeconds")

	require.NoError(t, o.SetOverrideAt(auth, `"CERTIFICATE"`))
	require.NoError(t, o.SetOverrideAt(life, "{bad json"))

	v, err := domain.Resolve(o.Override(), life)
	require.NoError(t, err)
	assert.Equal(t, "{bad json", v, "invalid text is still written")

	assert.True(t, o.Invalid(life))
	assert.False(t, o.Invalid(auth))

	problems := o.Problems()
	require.Len(t, problems, 1)
	assert.ErrorIs(t, problems[0], domain.ErrInvalidOverrideJSON)
	assert.True(t, problems[0].Path.Equal(life))

	sub := o.Submission()
	v, _ = domain.Resolve(sub, auth)
	assert.Equal(t, `"CERTIFICATE"`, v, "valid fields stay submittable")
	v, _ = domain.Resolve(sub, life)
	assert.Nil(t, v, "invalid field has no effect")

	live, _ := domain.Resolve(o.Override(), life)
	assert.Equal(t, "{bad json", live, "submission does not disturb the edit buffer")

	require.NoError(t, o.SetOverrideAt(life, "3600"))
	assert.Empty(t, o.Problems())
	assert.Equal(t, o.Override(), o.Submission())
}

func TestMalformedObjectIsWithheld(t *testing.T) {
	o := New(conflictFixture())
	life := domain.Fields("ipsecSettings", "lifetimeSeconds")
	enabled := domain.Fields("ikeV2Enabled")

	require.NoError(t, o.SetOverrideAt(life, `{"a":}`))
	require.NoError(t, o.SetOverrideAt(enabled, "false"))
	require.Len(t, o.Problems(), 1)
	assert.True(t, o.Invalid(life))

	base := domain.Record{
		"ikeV2Enabled":  true,
		"ipsecSettings": map[string]any{"lifetimeSeconds": float64(28800)},
	}
	got, err := Preview(base, o.Submission())
	require.NoError(t, err, "only the flagged field is held back")
	assert.Equal(t, false, got["ikeV2Enabled"])
	v, err := domain.Resolve(got, life)
	require.NoError(t, err)
	assert.Equal(t, float64(28800), v)
}

func TestParentWriteDropsNestedFlags(t *testing.T) {
	o := New(conflictFixture())
	parent := domain.Fields("ipsecSettings")
	life := parent.Append(domain.Field("lifetimeSeconds"))

	require.NoError(t, o.SetOverrideAt(life, "{bad"))
	require.True(t, o.Invalid(life))

	require.NoError(t, o.SetOverrideAt(parent, `{"lifetimeSeconds":7200}`))
	assert.False(t, o.Invalid(life))
	assert.Empty(t, o.Problems())
	assert.Equal(t, `{"lifetimeSeconds":7200}`, o.Submission()["ipsecSettings"])

	require.NoError(t, o.SetOverrideAt(parent, "{bad"))
	assert.True(t, o.Invalid(parent))
	assert.Nil(t, o.Submission()["ipsecSettings"])
	assert.Equal(t, "{bad", o.Override()["ipsecSettings"])
}

func TestSetOverrideAtLeafFirstPath(t *testing.T) {
	o := New(conflictFixture())
	p := domain.LeafFirst(domain.Field("lifetimeSeconds"), domain.Field("ipsecSettings"))
	require.NoError(t, o.SetOverrideAt(p, "1"))
	assert.Equal(t, "1", o.Override()["ipsecSettings"].(map[string]any)["lifetimeSeconds"])
}

func TestSetOverrideAtInformational(t *testing.T) {
	o := New(conflictFixture())
	p := domain.Fields("ikeSettings", "ikeV2Settings", "policies")

	assert.False(t, o.Editable(p))
	assert.True(t, o.Editable(domain.Fields("ikeV2Enabled")))
	assert.False(t, o.Editable(domain.Fields("missing")))

	err := o.SetOverrideAt(p, `["AES-256"]`)
	assert.ErrorIs(t, err, ErrReadOnly)
	v, _ := domain.Resolve(o.Override(), p)
	assert.Nil(t, v)
}

func TestSetOverrideAtBadPath(t *testing.T) {
	o := New(conflictFixture())
	err := o.SetOverrideAt(domain.Fields("nope", "deeper"), "1")
	assert.ErrorIs(t, err, domain.ErrPathNotFound)
}

func TestPromote(t *testing.T) {
	t.Run("absent takes the observed value", func(t *testing.T) {
		o := New(conflictFixture())
		p := domain.Fields("ipsecSettings", "lifetimeSeconds")
		changed, err := o.Promote(p, float64(3600))
		require.NoError(t, err)
		assert.True(t, changed)
		v, _ := domain.Resolve(o.Override(), p)
		assert.Equal(t, "3600", v)
	})

	t.Run("existing text is replaced", func(t *testing.T) {
		o := New(conflictFixture())
		p := domain.Fields("ikeV2Enabled")
		require.NoError(t, o.SetOverrideAt(p, "{oops"))
		changed, err := o.Promote(p, false)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "false", o.Override()["ikeV2Enabled"])
		assert.False(t, o.Invalid(p))
	})

	t.Run("strings are not HTML escaped", func(t *testing.T) {
		o := New(Conflict{"psk": []any{"a<b", "c&d"}})
		_, err := o.Promote(domain.Fields("psk"), "a<b")
		require.NoError(t, err)
		assert.Equal(t, `"a<b"`, o.Override()["psk"])
	})

	t.Run("object override is not clobbered", func(t *testing.T) {
		o := New(conflictFixture())
		changed, err := o.Promote(domain.Fields("ikeSettings"), "scalar")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.IsType(t, map[string]any{}, o.Override()["ikeSettings"])
	})

	t.Run("missing parent", func(t *testing.T) {
		o := New(conflictFixture())
		_, err := o.Promote(domain.Fields("missing"), 1)
		assert.ErrorIs(t, err, domain.ErrPathNotFound)
	})
}

func TestClear(t *testing.T) {
	o := New(conflictFixture())
	p := domain.Fields("ikeV2Enabled")
	require.NoError(t, o.SetOverrideAt(p, "{"))
	require.NoError(t, o.Clear(p))
	assert.Nil(t, o.Override()["ikeV2Enabled"])
	assert.False(t, o.Invalid(p))
}

func TestSubmissionEncodesAbsentAsNull(t *testing.T) {
	o := New(Conflict{"a": []any{1, 2}, "b": map[string]any{"c": []any{1, 2}}})
	require.NoError(t, o.SetOverrideAt(domain.Fields("a"), "2"))

	out, err := json.Marshal(o.Submission())
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"2","b":{"c":null}}`, string(out))
}
