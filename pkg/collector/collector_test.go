package collector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/opencode-exporter/pkg/models"
	"github.com/pario-ai/opencode-exporter/pkg/source"
	"github.com/pario-ai/opencode-exporter/pkg/source/sourcetest"
)

func TestCollectFromDatabase(t *testing.T) {
	fx := sourcetest.New(t)
	s1 := fx.AddSession(t)
	fx.AddSession(t)
	fx.AddMessage(t, s1, `{"role":"user","tokens":{"input":1000}}`)
	fx.AddMessage(t, s1, `{"role":"assistant","modelID":"model-a","providerID":"prov","cost":0.5,"tokens":{"input":100,"output":50},"time":{"created":0}}`)
	fx.AddMessage(t, s1, `{"role":"assistant","modelID":"model-b","providerID":"prov","cost":1.5,"tokens":{"input":200,"output":100},"time":{"created":86400000}}`)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := New(fx.Path, WithNow(func() time.Time { return now }))

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.SessionCount)
	assert.Equal(t, int64(2), snap.MessageCount)
	assert.InDelta(t, 2.0, snap.TotalCost, 1e-9)
	assert.InDelta(t, 2.0, snap.CostPerDay, 1e-9)
	assert.InDelta(t, 225.0, snap.TokensPerSession, 1e-9)
	assert.Len(t, snap.ModelStats, 2)
	assert.Equal(t, now, snap.CollectedAt)
}

func TestCollectEmptyDatabase(t *testing.T) {
	fx := sourcetest.New(t)

	snap, err := New(fx.Path).Collect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Zero(t, snap.SessionCount)
	assert.Zero(t, snap.MessageCount)
	assert.Empty(t, snap.ModelStats)
}

func TestCollectSkipsMalformedRow(t *testing.T) {
	fx := sourcetest.New(t)
	s := fx.AddSession(t)
	fx.AddMessage(t, s, `{"role":"assistant","modelID":"m","providerID":"p","cost":0.25,"tokens":{"input":10,"output":4}}`)
	fx.AddMessage(t, s, `{not json`)

	snap, err := New(fx.Path).Collect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(1), snap.SessionCount)
	assert.Equal(t, int64(1), snap.MessageCount)
	assert.InDelta(t, 0.25, snap.TotalCost, 1e-12)
	assert.Equal(t, models.ModelStats{MessageCount: 1, Cost: 0.25, TokensInput: 10, TokensOutput: 4},
		snap.ModelStats[models.ModelKey{Model: "m", Provider: "p"}])
}

func TestCollectMissingDatabase(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "missing.db"))
	snap, err := c.Collect(context.Background())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, source.ErrNotFound)
}

type fakeSource struct {
	sessions    int64
	msgs        []source.Message
	sessionErr  error
	messagesErr error
	closed      bool
}

func (f *fakeSource) SessionCount(context.Context) (int64, error) { return f.sessions, f.sessionErr }
func (f *fakeSource) AssistantMessages(context.Context) ([]source.Message, error) {
	return f.msgs, f.messagesErr
}
func (f *fakeSource) Close() error { f.closed = true; return nil }

func TestCollectQueryErrors(t *testing.T) {
	boom := errors.New("disk I/O error")
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{"sessions", &fakeSource{sessionErr: boom}},
		{"messages", &fakeSource{messagesErr: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("unused", WithOpener(func(string) (source.Source, error) { return tt.src, nil }))
			snap, err := c.Collect(context.Background())
			assert.Nil(t, snap)
			assert.ErrorIs(t, err, boom)
			assert.NotErrorIs(t, err, source.ErrNotFound)
			assert.True(t, tt.src.closed)
		})
	}
}

func TestCollectUsesFakeSource(t *testing.T) {
	src := &fakeSource{
		sessions: 4,
		msgs: []source.Message{
			{ID: "1", Data: []byte(`{"role":"assistant","tokens":{"input":6,"output":2}}`)},
			{ID: "2", Data: []byte(`{broken`)},
		},
	}
	c := New("unused", WithOpener(func(string) (source.Source, error) { return src, nil }))

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.MessageCount)
	assert.InDelta(t, 2.0, snap.TokensPerSession, 1e-12)
	assert.Equal(t, models.ModelStats{MessageCount: 1, TokensInput: 6, TokensOutput: 2},
		snap.ModelStats[models.NewModelKey("", "")])
	assert.True(t, src.closed)
}
