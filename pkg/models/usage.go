package models

import (
	"sort"
	"strings"
	"time"
)

// UnknownLabel replaces an absent model or provider identifier.
const UnknownLabel = "unknown"

// TokenCounts holds the per-category token usage of a message or a total.
type TokenCounts struct {
	Input      int64 `json:"input"`
	Output     int64 `json:"output"`
	Reasoning  int64 `json:"reasoning"`
	CacheRead  int64 `json:"cache_read"`
	CacheWrite int64 `json:"cache_write"`
}

// Add returns the field-wise sum of t and o.
func (t TokenCounts) Add(o TokenCounts) TokenCounts {
	return TokenCounts{
		Input:      t.Input + o.Input,
		Output:     t.Output + o.Output,
		Reasoning:  t.Reasoning + o.Reasoning,
		CacheRead:  t.CacheRead + o.CacheRead,
		CacheWrite: t.CacheWrite + o.CacheWrite,
	}
}

// Sum returns the total across all token categories.
func (t TokenCounts) Sum() int64 {
	return t.Input + t.Output + t.Reasoning + t.CacheRead + t.CacheWrite
}

// UsageRecord is the billable usage carried by one assistant message.
// Cost and every token field are never negative.
type UsageRecord struct {
	ModelID         string      `json:"model_id,omitempty"`
	ProviderID      string      `json:"provider_id,omitempty"`
	Agent           string      `json:"agent,omitempty"`
	Cost            float64     `json:"cost"`
	Tokens          TokenCounts `json:"tokens"`
	CreatedAtMillis int64       `json:"created_at_millis"`
}

// Key returns the per-model aggregation key for the record.
func (r UsageRecord) Key() ModelKey {
	return NewModelKey(r.ModelID, r.ProviderID)
}

// ModelKey identifies a (model, provider) pair.
type ModelKey struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// NewModelKey builds a ModelKey, substituting UnknownLabel for empty values.
// Invalid UTF-8 is replaced with U+FFFD, so ids that differ only in invalid
// bytes share one key and one label set.
func NewModelKey(model, provider string) ModelKey {
	model = strings.ToValidUTF8(model, "\uFFFD")
	provider = strings.ToValidUTF8(provider, "\uFFFD")
	if model == "" {
		model = UnknownLabel
	}
	if provider == "" {
		provider = UnknownLabel
	}
	return ModelKey{Model: model, Provider: provider}
}

// ModelStats aggregates usage for a single ModelKey.
type ModelStats struct {
	MessageCount int64   `json:"message_count"`
	Cost         float64 `json:"cost"`
	TokensInput  int64   `json:"tokens_input"`
	TokensOutput int64   `json:"tokens_output"`
}

// Snapshot is the complete set of measurements computed by one poll cycle.
// A Snapshot is never modified after it has been built.
type Snapshot struct {
	SessionCount     int64                   `json:"session_count"`
	MessageCount     int64                   `json:"message_count"`
	TotalCost        float64                 `json:"total_cost"`
	TotalTokens      TokenCounts             `json:"total_tokens"`
	CostPerDay       float64                 `json:"cost_per_day"`
	TokensPerSession float64                 `json:"tokens_per_session"`
	ModelStats       map[ModelKey]ModelStats `json:"-"`
	CollectedAt      time.Time               `json:"collected_at"`
}

// EmptySnapshot returns the all-zero snapshot served before any cycle succeeds.
func EmptySnapshot() *Snapshot {
	return &Snapshot{ModelStats: map[ModelKey]ModelStats{}}
}

// SortedModelKeys returns the snapshot's model keys ordered by model, then provider.
func (s *Snapshot) SortedModelKeys() []ModelKey {
	keys := make([]ModelKey, 0, len(s.ModelStats))
	for k := range s.ModelStats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Model != keys[j].Model {
			return keys[i].Model < keys[j].Model
		}
		return keys[i].Provider < keys[j].Provider
	})
	return keys
}
