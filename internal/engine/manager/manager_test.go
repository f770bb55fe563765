package manager

import (
	"Go2DAQSpectra/internal/config"
	"Go2DAQSpectra/internal/session"
	"Go2DAQSpectra/internal/store/file"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Device.Settle = 0
	cfg.Session.SampleRate = 100000
	cfg.Session.ElementsPerRequest = 10
	cfg.Session.Channels = []int{1, 2}
	cfg.Store.File.RootPath = t.TempDir()
	return cfg
}

func TestManager_SessionToDisk(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	id, err := m.Controller.Start(ctx, m.Settings.Snapshot())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return m.Controller.Status().Total >= 10 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop(ctx))
	dir, ok := m.RecordDir(id)
	assert.True(t, ok)
	assert.DirExists(t, dir)
	assert.Equal(t, session.StateFinished, m.Controller.State())
	assert.False(t, m.Settings.IsMeasuring())
	assert.NotEmpty(t, m.Window.Channels())

	entries, err := os.ReadDir(cfg.Store.File.RootPath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	rec, summary, err := file.Load(filepath.Join(cfg.Store.File.RootPath, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID())
	assert.True(t, summary.Finished)
	assert.Equal(t, m.Controller.Status().Total, rec.Total())
}

func TestNewManager_UnknownDevice(t *testing.T) {
	cfg := testConfig(t)
	cfg.Device.Type = "daq122"
	_, err := NewManager(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "unknown device type")
}

func TestManager_RecordDirOnlyForDiskStores(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Type = "memory"
	m, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	defer m.Stop(context.Background())

	_, ok := m.RecordDir("anything")
	assert.False(t, ok)
}
