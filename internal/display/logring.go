package display

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LogCapacity is how many lines the log view keeps.
const LogCapacity = 50

// LogLine is a status line with the time it was received.
type LogLine struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// LogRing keeps the most recent status lines.
type LogRing struct {
	mu       sync.RWMutex
	capacity int
	lines    []LogLine
}

// NewLogRing creates a ring of capacity lines; zero means LogCapacity.
func NewLogRing(capacity int) *LogRing {
	if capacity <= 0 {
		capacity = LogCapacity
	}
	return &LogRing{capacity: capacity}
}

func (r *LogRing) WriteLine(_ context.Context, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, LogLine{Time: time.Now().UTC(), Text: line})
	if over := len(r.lines) - r.capacity; over > 0 {
		r.lines = append(r.lines[:0:0], r.lines[over:]...)
	}
	return nil
}

// Lines returns the kept lines, oldest first.
func (r *LogRing) Lines() []LogLine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]LogLine(nil), r.lines...)
}

// ZapLogSink writes status lines to a structured logger.
type ZapLogSink struct {
	logger *zap.Logger
}

// NewZapLogSink creates a sink logging at info level under the "device" name.
func NewZapLogSink(logger *zap.Logger) *ZapLogSink {
	return &ZapLogSink{logger: logger.Named("device")}
}

func (s *ZapLogSink) WriteLine(_ context.Context, line string) error {
	s.logger.Info(line)
	return nil
}
