package acquisition

import (
	"Go2DAQSpectra/internal/metrics"
	"Go2DAQSpectra/internal/model"
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultBatchSize delivers every point on its own.
const DefaultBatchSize = 1

// Publisher receives batches of points for live display.
type Publisher interface {
	Publish(ctx context.Context, points []model.Point) error
}

// Deliverer republishes aggregated points to the display in batches.
type Deliverer struct {
	in        *Queue[model.Point]
	sink      Publisher
	batchSize int
	logger    *zap.Logger

	done     chan struct{}
	doneOnce sync.Once
}

// NewDeliverer creates a deliverer; batchSize below one means DefaultBatchSize.
func NewDeliverer(in *Queue[model.Point], sink Publisher, batchSize int, logger *zap.Logger) *Deliverer {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Deliverer{
		in:        in,
		sink:      sink,
		batchSize: batchSize,
		logger:    logger.With(zap.String("component", "deliverer")),
		done:      make(chan struct{}),
	}
}

// Done is closed once every point has been handed to the sink.
func (d *Deliverer) Done() <-chan struct{} {
	return d.done
}

// Run drains the point queue. A partial batch is flushed as soon as no
// further point is ready.
func (d *Deliverer) Run(ctx context.Context) {
	defer d.doneOnce.Do(func() { close(d.done) })

	out := d.in.Out()
	for p := range out {
		batch := make([]model.Point, 1, d.batchSize)
		batch[0] = p
		open := d.fill(out, &batch)
		d.flush(ctx, batch)
		if !open {
			return
		}
	}
}

// fill adds ready points to batch without blocking. It reports false once out is closed.
func (d *Deliverer) fill(out <-chan model.Point, batch *[]model.Point) bool {
	for len(*batch) < d.batchSize {
		select {
		case p, ok := <-out:
			if !ok {
				return false
			}
			*batch = append(*batch, p)
		default:
			return true
		}
	}
	return true
}

func (d *Deliverer) flush(ctx context.Context, batch []model.Point) {
	if err := d.sink.Publish(ctx, batch); err != nil {
		metrics.DeliveryErrors.Inc()
		d.logger.Warn("failed to publish points", zap.Int("points", len(batch)), zap.Error(err))
		return
	}
	metrics.PointsDelivered.Add(float64(len(batch)))
}
