package store

import (
	"Go2DAQSpectra/internal/config"
	"Go2DAQSpectra/internal/model"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

func init() {
	Register("memory", func(config.StoreConfig, *zap.Logger) (Store, error) {
		return NewMemory(), nil
	})
}

// SaveEvent is one call to Memory.Save.
type SaveEvent struct {
	ID       string
	Points   int
	Finished bool
}

// Memory keeps records in process. It also records every save for inspection.
type Memory struct {
	mu      sync.Mutex
	records map[string]*model.Record
	saves   []SaveEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*model.Record)}
}

func (m *Memory) Create(_ context.Context, h model.Header) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[h.ID]; exists {
		return nil, fmt.Errorf("record %s already exists", h.ID)
	}
	rec := model.NewRecord(h)
	m.records[h.ID] = rec
	return rec, nil
}

func (m *Memory) Save(_ context.Context, rec *model.Record, finished bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID()]; !ok {
		return fmt.Errorf("record %s not found", rec.ID())
	}
	m.saves = append(m.saves, SaveEvent{ID: rec.ID(), Points: rec.Total(), Finished: finished})
	return nil
}

// Get returns a stored record.
func (m *Memory) Get(id string) (*model.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, ok
}

// Saves returns every save recorded so far.
func (m *Memory) Saves() []SaveEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SaveEvent(nil), m.saves...)
}

func (m *Memory) Close() error { return nil }
