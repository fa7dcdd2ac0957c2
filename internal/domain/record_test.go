package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		v    any
		want Kind
	}{
		{"x", KindString},
		{float64(1), KindNumber},
		{3, KindNumber},
		{uint16(3), KindNumber},
		{json.Number("2.5"), KindNumber},
		{true, KindBoolean},
		{map[string]any{}, KindObject},
		{Record{}, KindObject},
		{[]any{}, KindArray},
		{nil, KindNull},
		{struct{}{}, KindOther},
	}
	for _, tt := range tests {
		if got := KindOf(tt.v); got != tt.want {
			t.Errorf("KindOf(%#v) = %s, want %s", tt.v, got, tt.want)
		}
	}
}

func TestDeepCopy(t *testing.T) {
	r := Record{"a": map[string]any{"b": []any{float64(1), "x"}}}
	c := CopyRecord(r)
	c["a"].(map[string]any)["b"].([]any)[0] = float64(2)

	assert.Equal(t, float64(1), r["a"].(map[string]any)["b"].([]any)[0])
	assert.Nil(t, CopyRecord(nil))
}

func TestRecordIDs(t *testing.T) {
	records := []Record{{"id": "1"}, {"name": "no id"}, {"id": "3"}}
	assert.Equal(t, []string{"1", "3"}, RecordIDs(records))
	assert.Equal(t, "no id", RecordName(records[1]))
}
