// Package exposition renders snapshots in the Prometheus text format.
package exposition

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/pario-ai/opencode-exporter/pkg/models"
)

// ContentType is the media type of the text exposition format.
const ContentType = "text/plain; version=0.0.4"

const namespace = "opencode"

var modelLabels = []string{"model", "provider"}

func gauge(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
}

var (
	sessionsDesc         = gauge("sessions_total", "Total number of sessions")
	messagesDesc         = gauge("messages_total", "Total number of messages")
	costDesc             = gauge("cost_total", "Total cost in USD")
	tokensInputDesc      = gauge("tokens_input_total", "Total input tokens")
	tokensOutputDesc     = gauge("tokens_output_total", "Total output tokens")
	tokensReasoningDesc  = gauge("tokens_reasoning_total", "Total reasoning tokens")
	tokensCacheReadDesc  = gauge("tokens_cache_read_total", "Total cache read tokens")
	tokensCacheWriteDesc = gauge("tokens_cache_write_total", "Total cache write tokens")
	costPerDayDesc       = gauge("cost_per_day", "Average cost per day")
	tokensPerSessionDesc = gauge("tokens_per_session", "Average tokens per session")

	modelMessagesDesc     = gauge("model_messages_total", "Messages by model", modelLabels...)
	modelCostDesc         = gauge("model_cost_total", "Cost by model", modelLabels...)
	modelTokensInputDesc  = gauge("model_tokens_input_total", "Input tokens by model", modelLabels...)
	modelTokensOutputDesc = gauge("model_tokens_output_total", "Output tokens by model", modelLabels...)
)

var allDescs = []*prometheus.Desc{
	sessionsDesc, messagesDesc, costDesc,
	tokensInputDesc, tokensOutputDesc, tokensReasoningDesc, tokensCacheReadDesc, tokensCacheWriteDesc,
	costPerDayDesc, tokensPerSessionDesc,
	modelMessagesDesc, modelCostDesc, modelTokensInputDesc, modelTokensOutputDesc,
}

// snapshotCollector emits every gauge from a single snapshot read, so one
// scrape never mixes values from two cycles.
type snapshotCollector struct {
	snapshot func() *models.Snapshot
}

// NewCollector returns a prometheus.Collector that reports the snapshot
// returned by fn at collection time.
func NewCollector(fn func() *models.Snapshot) prometheus.Collector {
	return &snapshotCollector{snapshot: fn}
}

func (c *snapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range allDescs {
		ch <- d
	}
}

func (c *snapshotCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	if s == nil {
		s = models.EmptySnapshot()
	}

	emit := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	emit(sessionsDesc, float64(s.SessionCount))
	emit(messagesDesc, float64(s.MessageCount))
	emit(costDesc, s.TotalCost)
	emit(tokensInputDesc, float64(s.TotalTokens.Input))
	emit(tokensOutputDesc, float64(s.TotalTokens.Output))
	emit(tokensReasoningDesc, float64(s.TotalTokens.Reasoning))
	emit(tokensCacheReadDesc, float64(s.TotalTokens.CacheRead))
	emit(tokensCacheWriteDesc, float64(s.TotalTokens.CacheWrite))
	emit(costPerDayDesc, s.CostPerDay)
	emit(tokensPerSessionDesc, s.TokensPerSession)

	for _, k := range s.SortedModelKeys() {
		st := s.ModelStats[k]
		model, provider := labelValue(k.Model), labelValue(k.Provider)
		emit(modelMessagesDesc, float64(st.MessageCount), model, provider)
		emit(modelCostDesc, st.Cost, model, provider)
		emit(modelTokensInputDesc, float64(st.TokensInput), model, provider)
		emit(modelTokensOutputDesc, float64(st.TokensOutput), model, provider)
	}
}

// labelValue repairs invalid UTF-8, which the registry would otherwise reject
// and fail the whole scrape.
func labelValue(v string) string {
	return strings.ToValidUTF8(v, "\uFFFD")
}

// Exporter gathers snapshot gauges through a private registry.
type Exporter struct {
	reg *prometheus.Registry
}

// New creates an Exporter that reads the snapshot to render from fn.
func New(fn func() *models.Snapshot) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(fn))
	return &Exporter{reg: reg}
}

// Gatherer exposes the underlying registry.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	return e.reg
}

// Write renders the current snapshot to w.
func (e *Exporter) Write(w io.Writer) error {
	families, err := e.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Render writes s in the text exposition format.
func Render(w io.Writer, s *models.Snapshot) error {
	return New(func() *models.Snapshot { return s }).Write(w)
}
