package display

import (
	"Go2DAQSpectra/internal/model"
	"context"

	"github.com/hashicorp/go-multierror"
)

// Sink receives aggregated points for live display.
type Sink interface {
	Publish(ctx context.Context, points []model.Point) error
	Clear(ctx context.Context) error
}

// LogSink receives status lines in order.
type LogSink interface {
	WriteLine(ctx context.Context, line string) error
}

// Resizer is implemented by sinks that keep a bounded per-channel history.
type Resizer interface {
	Resize(window int)
}

// Reset resizes sink to window points per channel if it supports it, then clears it.
func Reset(ctx context.Context, sink Sink, window int) error {
	if r, ok := sink.(Resizer); ok {
		r.Resize(window)
	}
	return sink.Clear(ctx)
}

// Fanout forwards every call to all of its sinks and collects their errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, points []model.Point) error {
	var result *multierror.Error
	for _, s := range f {
		if err := s.Publish(ctx, points); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (f Fanout) Clear(ctx context.Context) error {
	var result *multierror.Error
	for _, s := range f {
		if err := s.Clear(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (f Fanout) Resize(window int) {
	for _, s := range f {
		if r, ok := s.(Resizer); ok {
			r.Resize(window)
		}
	}
}

// LogFanout forwards each line to all of its sinks.
type LogFanout []LogSink

func (f LogFanout) WriteLine(ctx context.Context, line string) error {
	var result *multierror.Error
	for _, s := range f {
		if err := s.WriteLine(ctx, line); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
