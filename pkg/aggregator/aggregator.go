// Package aggregator folds a cycle's message payloads into a metrics snapshot.
package aggregator

import (
	"time"

	"github.com/pario-ai/opencode-exporter/pkg/models"
	"github.com/pario-ai/opencode-exporter/pkg/parser"
)

const millisPerDay = 24 * 60 * 60 * 1000

// Input is everything one poll cycle read from the data source.
type Input struct {
	SessionCount int64
	// Payloads are the raw message documents matched by the assistant query.
	Payloads    [][]byte
	CollectedAt time.Time
}

// Aggregate builds a snapshot from in. It has no side effects and returns
// identical snapshots for identical input.
func Aggregate(in Input) *models.Snapshot {
	snap := &models.Snapshot{
		SessionCount: in.SessionCount,
		MessageCount: int64(len(in.Payloads)),
		ModelStats:   make(map[models.ModelKey]models.ModelStats),
		CollectedAt:  in.CollectedAt,
	}

	var (
		earliest, latest int64
		seen             bool
	)
	for _, raw := range in.Payloads {
		rec, ok := parser.Parse(raw)
		if !ok {
			continue
		}

		snap.TotalCost += rec.Cost
		snap.TotalTokens = snap.TotalTokens.Add(rec.Tokens)

		if !seen || rec.CreatedAtMillis < earliest {
			earliest = rec.CreatedAtMillis
		}
		if !seen || rec.CreatedAtMillis > latest {
			latest = rec.CreatedAtMillis
		}
		seen = true

		key := rec.Key()
		st := snap.ModelStats[key]
		st.MessageCount++
		st.Cost += rec.Cost
		st.TokensInput += rec.Tokens.Input
		st.TokensOutput += rec.Tokens.Output
		snap.ModelStats[key] = st
	}

	days := 1.0
	if seen {
		days = DaySpan(earliest, latest)
	}
	snap.CostPerDay = snap.TotalCost / days

	if in.SessionCount > 0 {
		snap.TokensPerSession = float64(snap.TotalTokens.Sum()) / float64(in.SessionCount)
	}

	return snap
}

// DaySpan returns the number of days between two millisecond timestamps,
// floored at 1.
func DaySpan(earliestMillis, latestMillis int64) float64 {
	return max(1, float64(latestMillis-earliestMillis)/millisPerDay)
}
