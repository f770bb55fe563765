package store

import (
	"Go2DAQSpectra/internal/config"
	"Go2DAQSpectra/internal/model"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func header() model.Header {
	return model.NewHeader(model.SessionConfig{
		Duration:           time.Minute,
		SampleRate:         model.SampleRate1kHz,
		Voltage:            model.Voltage5V,
		ElementsPerRequest: 10,
		Channels:           []int{1},
		Averaging:          true,
		PlotWindow:         10,
	})
}

func TestOpen_Registry(t *testing.T) {
	s, err := Open(config.StoreConfig{Type: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(config.StoreConfig{Type: "tape"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown store type")

	assert.Panics(t, func() {
		Register("memory", func(config.StoreConfig, *zap.Logger) (Store, error) { return nil, nil })
	})
}

func TestMemory_CreateAndSave(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	h := header()

	rec, err := m.Create(ctx, h)
	require.NoError(t, err)
	_, err = m.Create(ctx, h)
	assert.Error(t, err)

	require.NoError(t, m.Save(ctx, rec, false))
	require.NoError(t, rec.Append(model.Point{Channel: 1, Value: model.ScalarValue(1)}))
	require.NoError(t, m.Save(ctx, rec, true))

	assert.Equal(t, []SaveEvent{
		{ID: h.ID, Points: 0, Finished: false},
		{ID: h.ID, Points: 1, Finished: true},
	}, m.Saves())

	got, ok := m.Get(h.ID)
	require.True(t, ok)
	assert.Same(t, rec, got)
}
