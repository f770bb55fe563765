package file

import (
	"Go2DAQSpectra/internal/config"
	"Go2DAQSpectra/internal/model"
	"Go2DAQSpectra/internal/store"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	headerFile  = "header.json"
	summaryFile = "summary.json"
	dirLayout   = "2006-01-02_15-04-05"
)

func init() {
	store.Register("file", func(cfg config.StoreConfig, logger *zap.Logger) (store.Store, error) {
		return New(cfg.File.RootPath, logger)
	})
}

// Summary is written next to the channel files on every save.
type Summary struct {
	ID       string      `json:"id"`
	Finished bool        `json:"finished"`
	Points   map[int]int `json:"points"`
	SavedAt  string      `json:"saved_at"`
}

// Store writes each record to its own directory: a JSON header and summary
// plus one gob file per channel.
type Store struct {
	root   string
	logger *zap.Logger

	mu   sync.Mutex
	dirs map[string]string
}

// New creates a store rooted at root, creating the directory if needed.
func New(root string, logger *zap.Logger) (*Store, error) {
	if root == "" {
		return nil, errors.New("file store root path is empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &Store{
		root:   root,
		logger: logger.With(zap.String("store", "file")),
		dirs:   make(map[string]string),
	}, nil
}

// Dir returns the directory of a record created by this store.
func (s *Store) Dir(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir, ok := s.dirs[id]
	return dir, ok
}

func (s *Store) Create(_ context.Context, h model.Header) (*model.Record, error) {
	// 1. Create the record directory
	dir := filepath.Join(s.root, fmt.Sprintf("%s_%s", h.CreatedAt.Format(dirLayout), h.ID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}

	// 2. Write the header
	if err := writeJSON(filepath.Join(dir, headerFile), h); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.dirs[h.ID] = dir
	s.mu.Unlock()
	s.logger.Info("record created", zap.String("record", h.ID), zap.String("dir", dir))
	return model.NewRecord(h), nil
}

func (s *Store) Save(_ context.Context, rec *model.Record, finished bool) error {
	dir, ok := s.Dir(rec.ID())
	if !ok {
		return fmt.Errorf("record %s was not created by this store", rec.ID())
	}

	// 1. Write each channel's series to a .gob file
	counts := make(map[int]int)
	for _, ch := range rec.Channels() {
		series, _ := rec.Series(ch)
		counts[ch] = series.Len()
		if err := writeGob(filepath.Join(dir, channelFile(ch)), series); err != nil {
			return err
		}
	}

	// 2. Write the summary last so it never claims more than the channel files hold
	summary := Summary{
		ID:       rec.ID(),
		Finished: finished,
		Points:   counts,
		SavedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeJSON(filepath.Join(dir, summaryFile), summary); err != nil {
		return err
	}
	s.logger.Info("record saved", zap.String("record", rec.ID()), zap.Bool("finished", finished))
	return nil
}

func (s *Store) Close() error { return nil }

// Load reads a record directory back into memory.
func Load(dir string) (*model.Record, Summary, error) {
	var h model.Header
	if err := readJSON(filepath.Join(dir, headerFile), &h); err != nil {
		return nil, Summary{}, err
	}
	var summary Summary
	if err := readJSON(filepath.Join(dir, summaryFile), &summary); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, Summary{}, err
	}

	rec := model.NewRecord(h)
	for _, ch := range h.Channels {
		f, err := os.Open(filepath.Join(dir, channelFile(ch)))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, Summary{}, fmt.Errorf("failed to open channel file: %w", err)
		}
		var series model.Series
		err = gob.NewDecoder(f).Decode(&series)
		f.Close()
		if err != nil {
			return nil, Summary{}, fmt.Errorf("failed to decode channel %d: %w", ch, err)
		}
		if err := rec.Restore(ch, series); err != nil {
			return nil, Summary{}, err
		}
	}
	if summary.Finished {
		rec.MarkFinished()
	}
	return rec, summary, nil
}

func channelFile(ch int) string {
	return fmt.Sprintf("channel_%d.gob", ch)
}

func writeGob(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("failed to encode gob for file '%s': %w", path, err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file '%s': %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json for file '%s': %w", path, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse '%s': %w", path, err)
	}
	return nil
}
