package acquisition

import (
	"Go2DAQSpectra/internal/model"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]model.Point
	fail    bool
}

func (p *recordingPublisher) Publish(ctx context.Context, points []model.Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]model.Point(nil), points...))
	if p.fail {
		return errors.New("display gone")
	}
	return nil
}

func (p *recordingPublisher) points() []model.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.Point
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func newRecord(averaging bool, channels ...int) *model.Record {
	return model.NewRecord(model.NewHeader(model.SessionConfig{
		Duration:           time.Minute,
		SampleRate:         model.SampleRate1kHz,
		Voltage:            model.Voltage5V,
		ElementsPerRequest: 4,
		Channels:           channels,
		Averaging:          averaging,
		PlotWindow:         50,
	}))
}

func TestReduce(t *testing.T) {
	b := model.Burst{Channel: 2, Readings: []float64{1, 2, 3, 4}, Elapsed: time.Second}

	avg := Reduce(b, true)
	assert.Equal(t, model.KindScalar, avg.Value.Kind)
	assert.InDelta(t, 2.5, avg.Value.Scalar, 1e-12)
	assert.Equal(t, 2, avg.Channel)
	assert.Equal(t, time.Second, avg.Elapsed)

	raw := Reduce(b, false)
	assert.Equal(t, model.KindSequence, raw.Value.Kind)
	assert.Equal(t, []float64{1, 2, 3, 4}, raw.Value.Sequence)
}

func TestAggregator_DrainsEverythingAfterStop(t *testing.T) {
	raw := NewQueue[model.Burst]()
	points := NewQueue[model.Point]()
	stop := NewStopFlag()
	rec := newRecord(true, 1, 2)

	// 1. Fill the raw queue and raise the stop flag before the aggregator starts
	const perChannel = 200
	for i := 0; i < perChannel; i++ {
		for _, ch := range []int{1, 2} {
			raw.Push(model.Burst{Channel: ch, Readings: []float64{float64(i)}, Elapsed: time.Duration(i)})
		}
	}
	stop.Set()
	raw.Close()

	// 2. Run to completion
	agg := NewAggregator(raw, points, rec, true, stop, zap.NewNop())
	agg.Run()

	// 3. Every burst reached the record and the point queue, in order per channel
	assert.Equal(t, map[int]int{1: perChannel, 2: perChannel}, rec.Count())
	out := collect(points)
	require.Len(t, out, 2*perChannel)

	last := map[int]float64{1: -1, 2: -1}
	for _, p := range out {
		assert.Greater(t, p.Value.Scalar, last[p.Channel])
		last[p.Channel] = p.Value.Scalar
	}
	s, _ := rec.Series(2)
	assert.Equal(t, float64(perChannel-1), s.Scalars[perChannel-1])
}

func TestDeliverer_BatchesAndFlushesPartial(t *testing.T) {
	points := NewQueue[model.Point]()
	for i := 0; i < 7; i++ {
		points.Push(model.Point{Channel: 1, Value: model.ScalarValue(float64(i))})
	}
	points.Close()

	pub := &recordingPublisher{}
	d := NewDeliverer(points, pub, 3, zap.NewNop())
	d.Run(context.Background())

	select {
	case <-d.Done():
	default:
		t.Fatal("done not signalled")
	}
	got := pub.points()
	require.Len(t, got, 7)
	for i, p := range got {
		assert.Equal(t, float64(i), p.Value.Scalar)
	}
	for _, b := range pub.batches {
		assert.LessOrEqual(t, len(b), 3)
	}
}

func TestDeliverer_FlushesLonePointWithoutWaiting(t *testing.T) {
	points := NewQueue[model.Point]()
	pub := &recordingPublisher{}
	d := NewDeliverer(points, pub, 3, zap.NewNop())
	go d.Run(context.Background())

	// 1. A single point is published while the queue stays open
	points.Push(model.Point{Channel: 1, Value: model.ScalarValue(1)})
	require.Eventually(t, func() bool { return len(pub.points()) == 1 }, 2*time.Second, time.Millisecond)

	// 2. Closing the queue ends the run
	points.Close()
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("done not signalled")
	}
}

func TestDeliverer_PublishErrorsDoNotStopDrain(t *testing.T) {
	points := NewQueue[model.Point]()
	for i := 0; i < 5; i++ {
		points.Push(model.Point{Channel: 1, Value: model.ScalarValue(float64(i))})
	}
	points.Close()

	pub := &recordingPublisher{fail: true}
	d := NewDeliverer(points, pub, 0, zap.NewNop())
	d.Run(context.Background())

	assert.Len(t, pub.batches, 5, "default batch size is one")
	<-d.Done()
}

func TestPipeline_NoDropEndToEnd(t *testing.T) {
	dev := &fakeSession{}
	stop := NewStopFlag()
	dev.onRead = func(n int) {
		if n == 300 {
			stop.Set()
		}
	}
	raw := NewQueue[model.Burst]()
	logs := NewQueue[string]()
	points := NewQueue[model.Point]()
	rec := newRecord(false, 1, 2, 3)
	pub := &recordingPublisher{}

	reader := NewReader(readerConfig(time.Hour, 1, 2, 3), opener(dev), raw, logs, stop, zap.NewNop())
	agg := NewAggregator(raw, points, rec, false, stop, zap.NewNop())
	del := NewDeliverer(points, pub, 4, zap.NewNop())

	go reader.Run(context.Background())
	go agg.Run()
	go del.Run(context.Background())

	select {
	case <-del.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not drain")
	}
	collect(logs)

	assert.Equal(t, 300, rec.Total())
	assert.Len(t, pub.points(), 300)
	for _, ch := range []int{1, 2, 3} {
		s, ok := rec.Series(ch)
		require.True(t, ok)
		assert.Equal(t, model.KindSequence, s.Kind)
		assert.Len(t, s.Sequences, 100)
		for i := 1; i < len(s.Sequences); i++ {
			assert.Greater(t, s.Sequences[i][0], s.Sequences[i-1][0])
		}
	}
}
