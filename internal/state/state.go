package state

import (
	"Go2DAQSpectra/internal/model"
	"sync"
)

// Store holds the process-wide measurement settings and the measuring flag.
// A running session works on its own snapshot, so edits here only affect the next one.
type Store struct {
	mu        sync.RWMutex
	settings  model.SessionConfig
	measuring bool
}

// New creates a store seeded with initial settings.
func New(initial model.SessionConfig) *Store {
	return &Store{settings: initial.Normalize()}
}

// Snapshot returns a deep copy of the current settings.
func (s *Store) Snapshot() model.SessionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// Update applies fn to a copy of the settings and commits it if the ranges are valid.
// An empty channel selection is accepted; it is only rejected when a session starts.
func (s *Store) Update(fn func(cfg *model.SessionConfig)) (model.SessionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.Clone()
	fn(&next)
	next = next.Normalize()
	if err := next.ValidateRanges(); err != nil {
		return s.settings.Clone(), err
	}
	s.settings = next
	return next.Clone(), nil
}

// SetMeasuring records whether a session is active.
func (s *Store) SetMeasuring(v bool) {
	s.mu.Lock()
	s.measuring = v
	s.mu.Unlock()
}

// IsMeasuring reports whether a session is active.
func (s *Store) IsMeasuring() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.measuring
}
