package store

import (
	"Go2DAQSpectra/internal/config"
	"Go2DAQSpectra/internal/model"
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Store persists measurement records.
type Store interface {
	// Create persists a header-only record and returns it for appending.
	Create(ctx context.Context, h model.Header) (*model.Record, error)
	// Save writes the current record contents; finished marks the final save.
	Save(ctx context.Context, rec *model.Record, finished bool) error
	Close() error
}

// Factory builds a store from the store section of the configuration.
type Factory func(cfg config.StoreConfig, logger *zap.Logger) (Store, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register makes a store backend available under name.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("store type '%s' already registered", name))
	}
	registry[name] = factory
}

// Open creates the store selected by cfg.Type.
func Open(cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	mu.RLock()
	factory, ok := registry[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store type: '%s' (registered: %v)", cfg.Type, Types())
	}
	s, err := factory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating store type '%s': %w", cfg.Type, err)
	}
	return s, nil
}

// Types lists the registered backends.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
