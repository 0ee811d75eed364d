// Package snapshot holds the most recently published metrics snapshot.
package snapshot

import (
	"sync/atomic"

	"github.com/pario-ai/opencode-exporter/pkg/models"
)

// Store publishes snapshots to concurrent readers. Readers always observe a
// whole snapshot, never a mix of two cycles.
type Store struct {
	current atomic.Pointer[models.Snapshot]
	empty   *models.Snapshot
}

// NewStore returns a Store with nothing published.
func NewStore() *Store {
	return &Store{empty: models.EmptySnapshot()}
}

// Publish makes s the current snapshot and returns the one it replaced,
// or nil on the first publish. A nil s is ignored.
func (st *Store) Publish(s *models.Snapshot) *models.Snapshot {
	if s == nil {
		return st.current.Load()
	}
	return st.current.Swap(s)
}

// CurrentOrEmpty returns the current snapshot, or the all-zero snapshot if
// nothing has been published yet. Callers must not modify the result.
func (st *Store) CurrentOrEmpty() *models.Snapshot {
	if s := st.current.Load(); s != nil {
		return s
	}
	return st.empty
}

// Published reports whether any snapshot has been published.
func (st *Store) Published() bool {
	return st.current.Load() != nil
}
