package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topomerge/internal/domain"
)

func TestPreview(t *testing.T) {
	base := domain.Record{
		"name":         "p2p-1",
		"ikeV2Enabled": true,
		"ipsecSettings": map[string]any{
			"lifetimeSeconds": float64(28800),
			"mode":            "TUNNEL",
		},
	}
	ov := Override{
		"ikeV2Enabled": "false",
		"ipsecSettings": map[string]any{
			"lifetimeSeconds": "3600",
			"mode":            nil,
		},
		"ikeSettings": map[string]any{
			"ikeV2Settings": map[string]any{"authenticationType": `"CERTIFICATE"`},
		},
		"untouched": "",
	}

	got, err := Preview(base, ov)
	require.NoError(t, err)

	assert.Equal(t, false, got["ikeV2Enabled"])
	ipsec := got["ipsecSettings"].(map[string]any)
	assert.Equal(t, float64(3600), ipsec["lifetimeSeconds"])
	assert.Equal(t, "TUNNEL", ipsec["mode"])
	v, err := domain.Resolve(got, domain.Fields("ikeSettings", "ikeV2Settings", "authenticationType"))
	require.NoError(t, err)
	assert.Equal(t, "CERTIFICATE", v)
	assert.NotContains(t, got, "untouched")

	assert.Equal(t, true, base["ikeV2Enabled"], "base record is not modified")
}

func TestPreviewReportsInvalidText(t *testing.T) {
	base := domain.Record{"a": float64(1), "b": float64(2)}
	got, err := Preview(base, Override{"a": "{bad", "b": "3"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidOverrideJSON)
	assert.Equal(t, float64(1), got["a"])
	assert.Equal(t, float64(3), got["b"])
}
