package display

import (
	"Go2DAQSpectra/internal/model"
	"context"
	"sort"
	"sync"
)

// DefaultWindow is the plot window used until a session resizes it.
const DefaultWindow = 100

// Window keeps the most recent points of every channel, like a scrolling plot.
type Window struct {
	mu       sync.RWMutex
	capacity int
	points   map[int][]model.Point
}

// NewWindow creates a window keeping capacity points per channel.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Window{capacity: capacity, points: make(map[int][]model.Point)}
}

func (w *Window) Publish(_ context.Context, points []model.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range points {
		buf := append(w.points[p.Channel], p)
		if over := len(buf) - w.capacity; over > 0 {
			buf = append(buf[:0:0], buf[over:]...)
		}
		w.points[p.Channel] = buf
	}
	return nil
}

func (w *Window) Clear(_ context.Context) error {
	w.mu.Lock()
	w.points = make(map[int][]model.Point)
	w.mu.Unlock()
	return nil
}

// Resize changes the per-channel capacity, trimming the oldest points.
func (w *Window) Resize(capacity int) {
	if capacity <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.capacity = capacity
	for ch, buf := range w.points {
		if over := len(buf) - capacity; over > 0 {
			w.points[ch] = append(buf[:0:0], buf[over:]...)
		}
	}
}

// Capacity returns the number of points kept per channel.
func (w *Window) Capacity() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.capacity
}

// Points returns a copy of the points of one channel, oldest first.
func (w *Window) Points(channel int) []model.Point {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]model.Point(nil), w.points[channel]...)
}

// Channels returns the channels that have points, ascending.
func (w *Window) Channels() []int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]int, 0, len(w.points))
	for ch := range w.points {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}
