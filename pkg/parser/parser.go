// Package parser turns raw OpenCode message payloads into usage records.
package parser

import (
	"github.com/tidwall/gjson"

	"github.com/pario-ai/opencode-exporter/pkg/models"
)

// RoleAssistant is the only message role that carries billable usage.
const RoleAssistant = "assistant"

// Parse normalizes one message payload into a UsageRecord.
// It returns false when the payload is not a JSON object, is not an
// assistant message, or has no token object. Missing or non-numeric
// numeric fields default to 0 and negative values are clamped to 0.
func Parse(raw []byte) (models.UsageRecord, bool) {
	if !gjson.ValidBytes(raw) {
		return models.UsageRecord{}, false
	}
	msg := gjson.ParseBytes(raw)
	if !msg.IsObject() {
		return models.UsageRecord{}, false
	}

	role := msg.Get("role")
	if role.Type != gjson.String || role.Str != RoleAssistant {
		return models.UsageRecord{}, false
	}

	tokens := msg.Get("tokens")
	if !tokens.IsObject() || isEmptyObject(tokens) {
		return models.UsageRecord{}, false
	}

	agent := stringField(msg, "agent")
	if agent == "" {
		agent = stringField(msg, "mode")
	}

	return models.UsageRecord{
		ModelID:    stringField(msg, "modelID"),
		ProviderID: stringField(msg, "providerID"),
		Agent:      agent,
		Cost:       max(0, floatField(msg, "cost")),
		Tokens: models.TokenCounts{
			Input:      max(0, intField(tokens, "input")),
			Output:     max(0, intField(tokens, "output")),
			Reasoning:  max(0, intField(tokens, "reasoning")),
			CacheRead:  max(0, intField(tokens, "cache.read")),
			CacheWrite: max(0, intField(tokens, "cache.write")),
		},
		CreatedAtMillis: intField(msg, "time.created"),
	}, true
}

func isEmptyObject(r gjson.Result) bool {
	empty := true
	r.ForEach(func(_, _ gjson.Result) bool {
		empty = false
		return false
	})
	return empty
}

func stringField(r gjson.Result, path string) string {
	v := r.Get(path)
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

// floatField reads a numeric value. Booleans count as 0 or 1; strings,
// objects, arrays and null read as 0.
func floatField(r gjson.Result, path string) float64 {
	v := r.Get(path)
	switch v.Type {
	case gjson.Number:
		return v.Num
	case gjson.True:
		return 1
	default:
		return 0
	}
}

// intField is floatField for integer counters; fractions truncate toward zero.
func intField(r gjson.Result, path string) int64 {
	v := r.Get(path)
	switch v.Type {
	case gjson.Number:
		return v.Int()
	case gjson.True:
		return 1
	default:
		return 0
	}
}
