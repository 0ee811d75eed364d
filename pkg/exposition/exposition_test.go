package exposition

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/opencode-exporter/pkg/models"
)

func scenarioSnapshot() *models.Snapshot {
	return &models.Snapshot{
		SessionCount:     2,
		MessageCount:     2,
		TotalCost:        2,
		TotalTokens:      models.TokenCounts{Input: 300, Output: 150, Reasoning: 7, CacheRead: 40, CacheWrite: 3},
		CostPerDay:       2,
		TokensPerSession: 225,
		ModelStats: map[models.ModelKey]models.ModelStats{
			{Model: "model-b", Provider: "prov"}: {MessageCount: 1, Cost: 1.5, TokensInput: 200, TokensOutput: 100},
			{Model: "model-a", Provider: "prov"}: {MessageCount: 1, Cost: 0.5, TokensInput: 100, TokensOutput: 50},
		},
	}
}

func TestRenderScenario(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, scenarioSnapshot()))
	out := buf.String()

	for _, line := range []string{
		"# TYPE opencode_sessions_total gauge",
		"opencode_sessions_total 2",
		"opencode_messages_total 2",
		"opencode_cost_total 2",
		"opencode_tokens_input_total 300",
		"opencode_tokens_output_total 150",
		"opencode_tokens_reasoning_total 7",
		"opencode_tokens_cache_read_total 40",
		"opencode_tokens_cache_write_total 3",
		"opencode_cost_per_day 2",
		"opencode_tokens_per_session 225",
		"# HELP opencode_model_cost_total Cost by model",
		`opencode_model_messages_total{model="model-a",provider="prov"} 1`,
		`opencode_model_cost_total{model="model-b",provider="prov"} 1.5`,
		`opencode_model_tokens_input_total{model="model-b",provider="prov"} 200`,
		`opencode_model_tokens_output_total{model="model-a",provider="prov"} 50`,
	} {
		assert.Contains(t, out, line+"\n")
	}

	// Models render in a stable order.
	assert.Less(t,
		strings.Index(out, `opencode_model_cost_total{model="model-a"`),
		strings.Index(out, `opencode_model_cost_total{model="model-b"`))
}

func TestRenderEmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, models.EmptySnapshot()))
	out := buf.String()

	assert.Contains(t, out, "opencode_cost_per_day 0\n")
	assert.Contains(t, out, "opencode_tokens_per_session 0\n")
	assert.NotContains(t, out, "opencode_model_messages_total{")
}

func TestRenderNilSnapshotIsEmpty(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, Render(&a, nil))
	require.NoError(t, Render(&b, models.EmptySnapshot()))
	assert.Equal(t, b.String(), a.String())
}

func TestRenderDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, Render(&a, scenarioSnapshot()))
	require.NoError(t, Render(&b, scenarioSnapshot()))
	assert.Equal(t, a.String(), b.String())
}

func TestGathererValues(t *testing.T) {
	e := New(scenarioSnapshot)
	families, err := e.Gatherer().Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	require.Len(t, byName, len(allDescs))

	tpd := byName["opencode_tokens_per_session"]
	require.NotNil(t, tpd)
	assert.Equal(t, dto.MetricType_GAUGE, tpd.GetType())
	assert.InDelta(t, 225.0, tpd.GetMetric()[0].GetGauge().GetValue(), 1e-12)

	assert.Len(t, byName["opencode_model_tokens_input_total"].GetMetric(), 2)
}

func TestCollectorMatchesText(t *testing.T) {
	expected := `
# HELP opencode_sessions_total Total number of sessions
# TYPE opencode_sessions_total gauge
opencode_sessions_total 2
# HELP opencode_model_messages_total Messages by model
# TYPE opencode_model_messages_total gauge
opencode_model_messages_total{model="model-a",provider="prov"} 1
opencode_model_messages_total{model="model-b",provider="prov"} 1
`
	err := testutil.CollectAndCompare(NewCollector(scenarioSnapshot), strings.NewReader(expected),
		"opencode_sessions_total", "opencode_model_messages_total")
	assert.NoError(t, err)
}

func TestCollectorReadsSnapshotOncePerScrape(t *testing.T) {
	calls := 0
	c := NewCollector(func() *models.Snapshot {
		calls++
		return scenarioSnapshot()
	})
	assert.Equal(t, 10+4*2, testutil.CollectAndCount(c))
	assert.Equal(t, 1, calls)
}

func TestInvalidUTF8LabelsDoNotFailScrape(t *testing.T) {
	s := models.EmptySnapshot()
	s.ModelStats[models.ModelKey{Model: "bad\xffmodel", Provider: "p"}] = models.ModelStats{MessageCount: 1}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s))
	assert.Contains(t, buf.String(), `model="bad`+"\uFFFD"+`model"`)
}
