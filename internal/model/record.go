package model

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownChannel is returned when a point targets a channel the record was not created with.
	ErrUnknownChannel = errors.New("channel not in record")
	// ErrSeriesKind is returned when a point's value kind does not match the series kind.
	ErrSeriesKind = errors.New("value kind does not match series kind")
)

// Header describes a measurement record. It is written before acquisition starts.
type Header struct {
	ID                 string        `json:"id"`
	CreatedAt          time.Time     `json:"created_at"`
	SampleRate         SampleRate    `json:"sample_rate"`
	Voltage            Voltage       `json:"voltage"`
	ElementsPerRequest int           `json:"elements_per_request"`
	Averaging          bool          `json:"averaging"`
	Channels           []int         `json:"channels"`
	Duration           time.Duration `json:"duration"`
}

// NewHeader builds a header with a fresh ID from a session config.
func NewHeader(cfg SessionConfig) Header {
	return Header{
		ID:                 uuid.NewString(),
		CreatedAt:          time.Now().UTC(),
		SampleRate:         cfg.SampleRate,
		Voltage:            cfg.Voltage,
		ElementsPerRequest: cfg.ElementsPerRequest,
		Averaging:          cfg.Averaging,
		Channels:           append([]int(nil), cfg.Channels...),
		Duration:           cfg.Duration,
	}
}

// Kind returns the series kind every channel of the record uses.
func (h Header) Kind() Kind {
	return KindFor(h.Averaging)
}

// Series is the per-channel data of a record. Only the slice matching Kind is populated.
type Series struct {
	Kind      Kind            `json:"kind"`
	Scalars   []float64       `json:"scalars,omitempty"`
	Sequences [][]float64     `json:"sequences,omitempty"`
	Elapsed   []time.Duration `json:"elapsed"`
}

// Len returns the number of points in the series.
func (s *Series) Len() int {
	return len(s.Elapsed)
}

func (s *Series) clone() Series {
	out := Series{
		Kind:    s.Kind,
		Elapsed: append([]time.Duration(nil), s.Elapsed...),
	}
	if s.Scalars != nil {
		out.Scalars = append([]float64(nil), s.Scalars...)
	}
	if s.Sequences != nil {
		out.Sequences = make([][]float64, len(s.Sequences))
		for i, seq := range s.Sequences {
			out.Sequences[i] = append([]float64(nil), seq...)
		}
	}
	return out
}

// Record is a measurement header plus one series per channel.
// A single writer appends to it while readers take copies.
type Record struct {
	mu       sync.RWMutex
	header   Header
	series   map[int]*Series
	finished bool
}

// NewRecord creates an empty record with one series per header channel.
func NewRecord(h Header) *Record {
	r := &Record{
		header: h,
		series: make(map[int]*Series, len(h.Channels)),
	}
	kind := h.Kind()
	for _, ch := range h.Channels {
		r.series[ch] = &Series{Kind: kind}
	}
	return r
}

// Header returns a copy of the record header.
func (r *Record) Header() Header {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := r.header
	h.Channels = append([]int(nil), r.header.Channels...)
	return h
}

// ID is shorthand for Header().ID.
func (r *Record) ID() string {
	return r.header.ID
}

// Append adds a point to the series of its channel.
func (r *Record) Append(p Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.series[p.Channel]
	if !ok {
		return fmt.Errorf("append to channel %d: %w", p.Channel, ErrUnknownChannel)
	}
	if p.Value.Kind != s.Kind {
		return fmt.Errorf("append %s to %s series of channel %d: %w", p.Value.Kind, s.Kind, p.Channel, ErrSeriesKind)
	}
	switch s.Kind {
	case KindScalar:
		s.Scalars = append(s.Scalars, p.Value.Scalar)
	case KindSequence:
		s.Sequences = append(s.Sequences, append([]float64(nil), p.Value.Sequence...))
	}
	s.Elapsed = append(s.Elapsed, p.Elapsed)
	return nil
}

// Restore replaces the series of a channel; used by stores when loading a record.
func (r *Record) Restore(channel int, s Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.series[channel]
	if !ok {
		return fmt.Errorf("restore channel %d: %w", channel, ErrUnknownChannel)
	}
	if s.Kind != cur.Kind {
		return fmt.Errorf("restore %s series into channel %d: %w", s.Kind, channel, ErrSeriesKind)
	}
	restored := s.clone()
	r.series[channel] = &restored
	return nil
}

// Series returns a copy of one channel's series.
func (r *Record) Series(channel int) (Series, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.series[channel]
	if !ok {
		return Series{}, false
	}
	return s.clone(), true
}

// Channels returns the record channels in ascending order.
func (r *Record) Channels() []int {
	return append([]int(nil), r.header.Channels...)
}

// Count returns the number of points stored per channel.
func (r *Record) Count() map[int]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]int, len(r.series))
	for ch, s := range r.series {
		out[ch] = s.Len()
	}
	return out
}

// Total returns the number of points across all channels.
func (r *Record) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.series {
		n += s.Len()
	}
	return n
}

// MarkFinished flags the record as finalized. It returns false if it already was.
func (r *Record) MarkFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return false
	}
	r.finished = true
	return true
}

// Finished reports whether the record has been finalized.
func (r *Record) Finished() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finished
}
