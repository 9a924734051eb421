package node

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWithRepairValidPassthrough(t *testing.T) {
	cases := []string{
		`{"a":1,"b":2}`,
		`[1,2,3]`,
		`{"nested":{"list":[{"x":"y"}]}}`,
		`{"text":"line one\nline two"}`,
	}
	for _, raw := range cases {
		got, err := ParseWithRepair(raw)
		require.NoError(t, err, raw)

		var want any
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		require.NoError(t, dec.Decode(&want))
		assert.Equal(t, want, got, raw)
	}
}

func TestParseWithRepairTrailingComma(t *testing.T) {
	got, err := ParseWithRepair(`{"a":1,"b":2,}`)
	require.NoError(t, err)

	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("1"), m["a"])
	assert.Equal(t, json.Number("2"), m["b"])
}

func TestParseWithRepairTrailingCommaInArray(t *testing.T) {
	got, err := ParseWithRepair(`[1, 2, 3,]`)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestParseWithRepairMissingSeparator(t *testing.T) {
	got, err := ParseWithRepair(`{"items":[{"a":1} {"b":2}]}`)
	require.NoError(t, err)

	m := got.(map[string]any)
	items := m["items"].([]any)
	assert.Len(t, items, 2)
}

func TestParseWithRepairControlChars(t *testing.T) {
	got, err := ParseWithRepair("{\"title\":\"first\nsecond\"}")
	require.NoError(t, err)

	m := got.(map[string]any)
	assert.Equal(t, "first\nsecond", m["title"])
}

func TestParseWithRepairTruncatedStructure(t *testing.T) {
	got, err := ParseWithRepair(`{"items":[{"a":1},{"b":2}`)
	require.NoError(t, err)

	m := got.(map[string]any)
	items := m["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, json.Number("1"), first["a"])
}

func TestParseWithRepairTruncatedDanglingElement(t *testing.T) {
	// 悬空的不完整键值对被丢弃，已完整的部分保留
	got, err := ParseWithRepair(`{"a":1,"b":`)
	require.NoError(t, err)

	m := got.(map[string]any)
	assert.Equal(t, json.Number("1"), m["a"])
	_, hasB := m["b"]
	assert.False(t, hasB)
}

func TestParseWithRepairTruncatedString(t *testing.T) {
	got, err := ParseWithRepair(`["ok","trunca`)
	require.NoError(t, err)
	arr := got.([]any)
	require.NotEmpty(t, arr)
	assert.Equal(t, "ok", arr[0])
}

func TestParseWithRepairUnrepairable(t *testing.T) {
	_, err := ParseWithRepair("not json {{{")
	require.Error(t, err)
}

func TestParseWithRepairSurroundingProse(t *testing.T) {
	raw := "Here is the metadata you asked for:\n```json\n{\"title\":\"Pythagoras\"}\n```\nHope it helps."
	got, err := ParseWithRepair(raw)
	require.NoError(t, err)
	m := got.(map[string]any)
	assert.Equal(t, "Pythagoras", m["title"])
}

func TestUnmarshalWithRepair(t *testing.T) {
	var meta struct {
		Title    string  `json:"title"`
		Duration float64 `json:"duration"`
	}
	err := UnmarshalWithRepair(`{"title":"Euler","duration":42.5,}`, &meta)
	require.NoError(t, err)
	assert.Equal(t, "Euler", meta.Title)
	assert.Equal(t, 42.5, meta.Duration)
}

func TestExtractJSONObjectPrefersFirstValue(t *testing.T) {
	raw := "noise before {\"a\":1} noise after"
	assert.Equal(t, `{"a":1}`, ExtractJSONObject(raw))
}

func TestExtractJSONObjectEmptyInput(t *testing.T) {
	assert.Equal(t, "", ExtractJSONObject("   "))
}
