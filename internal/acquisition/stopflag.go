package acquisition

import "sync/atomic"

// StopFlag is a one-way switch shared by the workers of a session.
// Once set it stays set.
type StopFlag struct {
	set  atomic.Bool
	done chan struct{}
}

// NewStopFlag returns a cleared flag.
func NewStopFlag() *StopFlag {
	return &StopFlag{done: make(chan struct{})}
}

// Set raises the flag. It returns true only for the call that raised it.
func (f *StopFlag) Set() bool {
	if f.set.CompareAndSwap(false, true) {
		close(f.done)
		return true
	}
	return false
}

// IsSet reports whether the flag has been raised.
func (f *StopFlag) IsSet() bool {
	return f.set.Load()
}

// Done is closed when the flag is raised.
func (f *StopFlag) Done() <-chan struct{} {
	return f.done
}
