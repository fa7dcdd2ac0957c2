package fixture

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topomerge/internal/domain"
	"topomerge/internal/overlay"
)

func loadTestdata(t *testing.T) *Data {
	t.Helper()
	d, err := LoadFile("testdata/topologies.yaml")
	require.NoError(t, err)
	return d
}

func TestDiff(t *testing.T) {
	records := []domain.Record{
		{
			"id": "a", "name": "x", "endpoints": []any{"e1"},
			"ikeV2Enabled": true,
			"lifetime":     float64(28800),
			"mode":         "TUNNEL",
			"policies":     []any{"AES-GCM-256"},
			"same":         []any{"p"},
			"nested":       map[string]any{"auth": "PSK", "equal": "x"},
			"quiet":        map[string]any{"v": float64(1)},
		},
		{
			"id": "b", "name": "y", "endpoints": []any{"e2"},
			"ikeV2Enabled": false,
			"lifetime":     3600,
			"mode":         "TUNNEL",
			"policies":     []any{"AES-GCM-256", "AES-256"},
			"same":         []any{"p"},
			"nested":       map[string]any{"auth": "CERT", "equal": "x"},
			"quiet":        map[string]any{"v": 1},
		},
	}

	got, err := Diff(records, IgnoredKeys)
	require.NoError(t, err)
	assert.Equal(t, overlay.Conflict{
		"ikeV2Enabled": []any{true, false},
		"lifetime":     []any{float64(28800), 3600},
		"policies":     []any{[]any{"AES-GCM-256", "AES-256"}},
		"nested":       map[string]any{"auth": []any{"PSK", "CERT"}},
	}, got)

	assert.True(t, overlay.IsInformational(got["policies"]))
	assert.False(t, overlay.IsInformational(got["ikeV2Enabled"]))
}

func TestDiffListUnionOrder(t *testing.T) {
	records := []domain.Record{
		{"l": []any{"b", "a"}},
		{"l": []any{"a", "c"}},
		{"l": []any{"b"}},
	}
	got, err := Diff(records, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"b", "a", "c"}}, got["l"])

	t.Run("subset of first list is no conflict", func(t *testing.T) {
		got, err := Diff([]domain.Record{{"l": []any{"a", "b"}}, {"l": []any{"b"}}}, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestDiffEdgeCases(t *testing.T) {
	_, err := Diff(nil, IgnoredKeys)
	assert.ErrorIs(t, err, ErrNoRecords)

	got, err := Diff([]domain.Record{{"a": float64(1), "o": map[string]any{"x": "y"}}}, IgnoredKeys)
	require.NoError(t, err)
	assert.Empty(t, got, "a single record never conflicts")

	got, err = Diff([]domain.Record{{"a": "x"}, {}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", nil}, got["a"], "a missing key counts as null")
}

func TestParse(t *testing.T) {
	d := loadTestdata(t)
	assert.Equal(t, []string{"hub-1", "hub-2"}, d.DeviceIDs())
	assert.Len(t, d.Devices["hub-1"], 3)
	assert.Empty(t, d.Devices["hub-2"])
	assert.Len(t, d.HNSTopologies, 1)
	assert.Len(t, d.HNSP2PTopologies["hns-1"], 1)
	assert.Equal(t, "Global", d.Domains["e276abec-e0f2-11e3-8169-6d9ed49b625f"])

	v, err := domain.Resolve(d.Devices["hub-1"][0], domain.Fields("ipsecSettings", "lifetimeSeconds"))
	require.NoError(t, err)
	assert.Equal(t, float64(28800), v)
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"- just a list",
		"devices: [1]",
		"devices: {hub: [1]}",
		"hns_topologies: {a: b}",
	} {
		_, err := Parse(strings.NewReader(input))
		assert.Error(t, err, input)
	}

	d, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"default": "Global"}, d.Domains)
}

func login(t *testing.T, s *Store) string {
	t.Helper()
	sess, _, err := s.Login("fmc.example admin", "pw")
	require.NoError(t, err)
	return sess.Token
}

func TestLogin(t *testing.T) {
	s := NewStore(loadTestdata(t), 0)
	sess, domains, err := s.Login("fmc.example admin", "pw")
	require.NoError(t, err)
	assert.Equal(t, "fmc.example", sess.Host)
	assert.Equal(t, "admin", sess.User)
	assert.Len(t, domains, 1)
	assert.True(t, s.Authorized(sess.Token))
	assert.False(t, s.Authorized("nope"))

	for _, bad := range [][2]string{{"nospace", "pw"}, {"host user", ""}, {" ", "pw"}} {
		_, _, err := s.Login(bad[0], bad[1])
		assert.ErrorIs(t, err, ErrInvalidCredentials, bad[0])
	}
}

func TestSelectDomainStartsTopologyTask(t *testing.T) {
	s := NewStore(loadTestdata(t), 20*time.Millisecond)
	defer s.Close()
	tok := login(t, s)

	var mu sync.Mutex
	var done []string
	s.OnTaskDone(func(token, task string) {
		mu.Lock()
		done = append(done, task)
		mu.Unlock()
	})

	require.NoError(t, s.SelectDomain(tok, "e276abec-e0f2-11e3-8169-6d9ed49b625f"))
	assert.True(t, s.Pending(tok, TaskTopologies))
	require.NoError(t, s.SelectDomain(tok, "e276abec-e0f2-11e3-8169-6d9ed49b625f"), "same domain is a no-op")

	require.Eventually(t, func() bool { return !s.Pending(tok, TaskTopologies) }, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{TaskTopologies}, done)
	mu.Unlock()

	assert.ErrorIs(t, s.SelectDomain(tok, "missing"), ErrNotFound)
	assert.ErrorIs(t, s.SelectDomain("bad", "x"), ErrUnauthorized)
}

func TestMergeNewTopology(t *testing.T) {
	s := NewStore(loadTestdata(t), 0)
	tok := login(t, s)

	_, err := s.Conflicts(tok, []string{"p2p-a"})
	assert.ErrorIs(t, err, ErrNoDevice)

	recs, err := s.P2PTopologies(tok, "hub-1")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	conflict, err := s.Conflicts(tok, []string{"p2p-a", "p2p-b"})
	require.NoError(t, err)
	assert.Equal(t, []any{"MANUAL_PRE_SHARED_KEY", "CERTIFICATE"},
		conflict["ikeSettings"].(map[string]any)["ikeV2Settings"].(map[string]any)["authenticationType"])
	assert.NotContains(t, conflict, "ikeV2Enabled")

	ov := overlay.New(conflict)
	require.NoError(t, ov.SetOverrideAt(domain.Fields("ipsecSettings", "lifetimeSeconds"), "7200"))

	merged, err := s.Merge(tok, []string{"p2p-a", "p2p-b"}, ov.Submission(), nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(domain.RecordName(merged), "HNS-"))
	assert.Equal(t, "HUB_AND_SPOKE", merged["topologyType"])
	assert.NotEqual(t, "p2p-a", domain.RecordID(merged))
	v, _ := domain.Resolve(merged, domain.Fields("ipsecSettings", "lifetimeSeconds"))
	assert.Equal(t, float64(7200), v)
	assert.Len(t, merged["endpoints"], 3, "hub endpoint appears once")

	hns, err := s.HNSTopologies(tok)
	require.NoError(t, err)
	assert.Len(t, hns, 2)

	require.NoError(t, s.Deploy(tok))
	recs, err = s.P2PTopologies(tok, "hub-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2p-lab"}, domain.RecordIDs(recs))
	assert.ErrorIs(t, s.Deploy(tok), ErrNothingMerged)
}

func TestMergeIntoExisting(t *testing.T) {
	s := NewStore(loadTestdata(t), 0)
	tok := login(t, s)

	_, err := s.HNSP2PTopologies(tok, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	recs, err := s.HNSP2PTopologies(tok, "hns-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	id := "hns-1"
	merged, err := s.Merge(tok, []string{"p2p-c"}, overlay.Override{"ikeV2Enabled": "false"}, &id)
	require.NoError(t, err)
	assert.Equal(t, "existing-hub", domain.RecordName(merged))
	assert.Equal(t, false, merged["ikeV2Enabled"])
	assert.Len(t, merged["endpoints"], 2)

	hns, err := s.HNSTopologies(tok)
	require.NoError(t, err)
	require.Len(t, hns, 1)
	assert.Equal(t, false, hns[0]["ikeV2Enabled"])

	_, err = s.Merge(tok, []string{"unknown"}, nil, &id)
	assert.ErrorIs(t, err, ErrNoRecords)

	_, err = s.Merge(tok, []string{"p2p-c"}, overlay.Override{"ikeV2Enabled": "{bad"}, &id)
	assert.ErrorIs(t, err, domain.ErrInvalidOverrideJSON)
}

func TestRecordsAreCopies(t *testing.T) {
	s := NewStore(loadTestdata(t), 0)
	tok := login(t, s)
	recs, err := s.P2PTopologies(tok, "hub-1")
	require.NoError(t, err)
	recs[0]["name"] = "mutated"

	again, err := s.P2PTopologies(tok, "hub-1")
	require.NoError(t, err)
	assert.Equal(t, "branch-a", domain.RecordName(again[0]))
}
