package device

import (
	"Go2DAQSpectra/internal/model"
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrFault marks an error raised by the device itself rather than a
// refused request. Every non-nil error returned by a Session matches it.
var ErrFault = errors.New("device fault")

// Error carries the failing operation of a device fault.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("device %s: fault", e.Op)
	}
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrFault.
func (e *Error) Is(target error) bool { return target == ErrFault }

// Fault wraps err as a device fault for op.
func Fault(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// Session is a handle on one connected acquisition device.
// A false result means the device refused the request; a non-nil error is a fault.
type Session interface {
	Connect(ctx context.Context) (bool, error)
	Configure(ctx context.Context, voltage model.Voltage, rate model.SampleRate) (bool, error)
	ConfigureChannels(ctx context.Context, mask model.ChannelMask) (bool, error)
	StartCollection(ctx context.Context) error
	// ReadBurst reads count readings from the 0-based device channel.
	// ok is false when the device did not deliver within timeout.
	ReadBurst(ctx context.Context, count int, channel int, timeout time.Duration) ([]float64, bool, error)
	Disconnect() error
}

// Opener creates a fresh device session. The reader calls it once per measurement.
type Opener func() (Session, error)
