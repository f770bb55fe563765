package clickhouse

import (
	"Go2DAQSpectra/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingRows_OnlyNewPoints(t *testing.T) {
	rec := model.NewRecord(model.Header{ID: "r1", Averaging: true, Channels: []int{1, 2}})
	require.NoError(t, rec.Append(model.Point{Channel: 1, Value: model.ScalarValue(0.5), Elapsed: time.Millisecond}))
	require.NoError(t, rec.Append(model.Point{Channel: 2, Value: model.ScalarValue(1.5), Elapsed: 2 * time.Millisecond}))

	rows, done := pendingRows(rec, map[int]int{})
	require.Len(t, rows, 2)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, done)
	assert.Equal(t, uint8(1), rows[0].Channel)
	assert.Equal(t, 0.5, rows[0].Value)
	assert.Equal(t, int64(time.Millisecond), rows[0].ElapsedNs)

	require.NoError(t, rec.Append(model.Point{Channel: 1, Value: model.ScalarValue(2.5), Elapsed: 3 * time.Millisecond}))
	rows, done = pendingRows(rec, done)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(1), rows[0].Seq)
	assert.Equal(t, 2.5, rows[0].Value)
	assert.Equal(t, map[int]int{1: 2, 2: 1}, done)

	rows, _ = pendingRows(rec, done)
	assert.Empty(t, rows)
}

func TestPendingRows_Sequences(t *testing.T) {
	rec := model.NewRecord(model.Header{ID: "r2", Channels: []int{3}})
	require.NoError(t, rec.Append(model.Point{Channel: 3, Value: model.SequenceValue([]float64{1, 2})}))

	rows, _ := pendingRows(rec, map[int]int{})
	require.Len(t, rows, 1)
	assert.Equal(t, []float64{1, 2}, rows[0].Values)
	assert.Zero(t, rows[0].Value)
}
