package viz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func option(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestSummaryBar(t *testing.T) {
	got := Summary(option(t, `{
		"xAxis": {"type": "category", "data": ["Jan", "Feb"]},
		"series": [{"type": "bar", "data": [10, 12.5]}]
	}`))
	assert.Contains(t, got, "series 1 [bar]")
	assert.Contains(t, got, "Jan")
	assert.Contains(t, got, "12.5")
}

func TestSummaryPie(t *testing.T) {
	got := Summary(option(t, `{
		"series": [{"type": "pie", "name": "share", "data": [{"name": "card", "value": 3}]}]
	}`))
	assert.Contains(t, got, "share [pie]")
	assert.Contains(t, got, "card")
	assert.Contains(t, got, "3")
}

func TestSummaryScatterAndRadar(t *testing.T) {
	got := Summary(option(t, `{"series": [{"type": "scatter", "data": [[1, 2]]}]}`))
	assert.Contains(t, got, "(1, 2)")

	got = Summary(option(t, `{
		"radar": {"indicator": [{"name": "speed"}, {"name": "cost"}]},
		"series": [{"type": "radar", "data": [{"name": "p1", "value": [4, 5]}]}]
	}`))
	assert.Contains(t, got, "speed=4 cost=5")
}

func TestSummaryEmptyAndError(t *testing.T) {
	assert.Equal(t, "(no data)\n", Summary(option(t, `{"series": []}`)))
	assert.Equal(t, "(No data available)\n", Summary(option(t, `{"series": [], "error": "No data available"}`)))
}

func TestSeriesKinds(t *testing.T) {
	opt := option(t, `{"series":[{"type":"bar"},{"type":"line"},{"type":"bar"},{"name":"untyped"},"junk"]}`)
	assert.Equal(t, []string{"bar", "line"}, SeriesKinds(opt))
	assert.Empty(t, SeriesKinds(map[string]any{}))
}
