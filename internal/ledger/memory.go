package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/kitsync/internal/domain"
)

// StatsRecord is one stats write.
type StatsRecord struct {
	DocumentID  string
	BroadcastID string
	Stats       domain.NormalizedStats
	RecordedAt  time.Time
}

// Memory is a process-local ledger for dry runs and single-shot use.
type Memory struct {
	mu    sync.Mutex
	sends map[string]SendRecord
	stats []StatsRecord
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{sends: make(map[string]SendRecord)}
}

func (m *Memory) LookupSend(_ context.Context, documentID string) (*SendRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sends[documentID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) RecordSend(_ context.Context, rec SendRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.sends[rec.DocumentID] = rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) MarkReconciled(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sends[documentID]
	if !ok {
		return ErrNotFound
	}
	rec.Reconciled = true
	rec.ReconciledAt = time.Now().UTC()
	m.sends[documentID] = rec
	return nil
}

func (m *Memory) RecordStats(_ context.Context, documentID, broadcastID string, s domain.NormalizedStats) error {
	m.mu.Lock()
	m.stats = append(m.stats, StatsRecord{
		DocumentID:  documentID,
		BroadcastID: broadcastID,
		Stats:       s,
		RecordedAt:  time.Now().UTC(),
	})
	m.mu.Unlock()
	return nil
}

// Stats returns a copy of every stats write, oldest first.
func (m *Memory) Stats() []StatsRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatsRecord(nil), m.stats...)
}
