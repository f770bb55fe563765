package file

import (
	"Go2DAQSpectra/internal/model"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStore_CreateSaveLoad(t *testing.T) {
	ctx := context.Background()

	// 1. Create a store in a temporary directory
	root := t.TempDir()
	s, err := New(root, zap.NewNop())
	require.NoError(t, err)

	// 2. Create a raw-mode record; the header is on disk before any data
	h := model.NewHeader(model.SessionConfig{
		Duration:           time.Minute,
		SampleRate:         model.SampleRate1kHz,
		Voltage:            model.Voltage10V,
		ElementsPerRequest: 3,
		Channels:           []int{2, 4},
		PlotWindow:         10,
	})
	rec, err := s.Create(ctx, h)
	require.NoError(t, err)
	dir, ok := s.Dir(h.ID)
	require.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, headerFile))
	require.NoError(t, s.Save(ctx, rec, false))

	// 3. Append and finalize
	require.NoError(t, rec.Append(model.Point{Channel: 2, Value: model.SequenceValue([]float64{1, 2, 3}), Elapsed: time.Second}))
	require.NoError(t, rec.Append(model.Point{Channel: 2, Value: model.SequenceValue([]float64{4, 5, 6}), Elapsed: 2 * time.Second}))
	require.NoError(t, s.Save(ctx, rec, true))

	// 4. Exactly one directory holding the header, summary and channel files
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.FileExists(t, filepath.Join(dir, summaryFile))
	assert.FileExists(t, filepath.Join(dir, "channel_2.gob"))
	assert.FileExists(t, filepath.Join(dir, "channel_4.gob"))

	// 5. Load it back
	loaded, summary, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, summary.Finished)
	assert.True(t, loaded.Finished())
	assert.Equal(t, map[int]int{2: 2, 4: 0}, summary.Points)
	assert.Equal(t, h.ID, loaded.Header().ID)
	assert.Equal(t, model.Voltage10V, loaded.Header().Voltage)

	s2, ok := loaded.Series(2)
	require.True(t, ok)
	assert.Equal(t, model.KindSequence, s2.Kind)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, s2.Sequences)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, s2.Elapsed)
}

func TestStore_SaveUnknownRecord(t *testing.T) {
	s, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	rec := model.NewRecord(model.Header{ID: "missing", Channels: []int{1}})
	assert.Error(t, s.Save(context.Background(), rec, true))
}

func TestNew_EmptyRoot(t *testing.T) {
	_, err := New("", zap.NewNop())
	assert.Error(t, err)
}
