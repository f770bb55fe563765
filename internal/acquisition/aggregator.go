package acquisition

import (
	"Go2DAQSpectra/internal/metrics"
	"Go2DAQSpectra/internal/model"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Reduce turns a burst into a point: the mean of the readings when
// averaging, otherwise the readings themselves.
func Reduce(b model.Burst, averaging bool) model.Point {
	p := model.Point{Channel: b.Channel, Elapsed: b.Elapsed}
	if averaging {
		p.Value = model.ScalarValue(stat.Mean(b.Readings, nil))
	} else {
		p.Value = model.SequenceValue(b.Readings)
	}
	return p
}

// Aggregator reduces raw bursts and writes the points to the record and downstream.
type Aggregator struct {
	in        *Queue[model.Burst]
	out       *Queue[model.Point]
	record    *model.Record
	averaging bool
	stop      *StopFlag
	logger    *zap.Logger
}

// NewAggregator creates an aggregator. It closes out when in is drained.
func NewAggregator(in *Queue[model.Burst], out *Queue[model.Point], record *model.Record, averaging bool, stop *StopFlag, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		in:        in,
		out:       out,
		record:    record,
		averaging: averaging,
		stop:      stop,
		logger:    logger.With(zap.String("component", "aggregator")),
	}
}

// Run consumes bursts until the raw queue is closed and empty.
func (a *Aggregator) Run() {
	defer a.out.Close()

	draining := false
	processed := 0
	for b := range a.in.Out() {
		if !draining && a.stop.IsSet() {
			draining = true
			a.logger.Info("stop requested, draining raw queue", zap.Int("pending", a.in.Len()+1))
		}

		p := Reduce(b, a.averaging)
		a.out.Push(p)
		if err := a.record.Append(p); err != nil {
			metrics.RecordAppendErrors.Inc()
			a.logger.Error("failed to append point", zap.Int("channel", p.Channel), zap.Error(err))
		}
		metrics.PointsAggregated.Inc()
		processed++
	}
	a.logger.Info("aggregator drained", zap.Int("points", processed))
}
