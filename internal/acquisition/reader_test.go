package acquisition

import (
	"Go2DAQSpectra/internal/device"
	"Go2DAQSpectra/internal/model"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSession returns bursts of ascending values and records every read.
type fakeSession struct {
	mu           sync.Mutex
	refuse       bool
	startErr     error
	faultOnRead  int
	timeoutEvery int
	reads        []int
	next         float64
	disconnected bool
	onRead       func(n int)
}

func (f *fakeSession) Connect(ctx context.Context) (bool, error) { return !f.refuse, nil }

func (f *fakeSession) Configure(ctx context.Context, v model.Voltage, r model.SampleRate) (bool, error) {
	return true, nil
}

func (f *fakeSession) ConfigureChannels(ctx context.Context, m model.ChannelMask) (bool, error) {
	return m == model.AllChannels, nil
}

func (f *fakeSession) StartCollection(ctx context.Context) error { return f.startErr }

func (f *fakeSession) ReadBurst(ctx context.Context, count, channel int, timeout time.Duration) ([]float64, bool, error) {
	f.mu.Lock()
	f.reads = append(f.reads, channel)
	n := len(f.reads)
	hook := f.onRead
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}

	if f.faultOnRead > 0 && n == f.faultOnRead {
		return nil, false, device.Fault("read", errors.New("usb transfer failed"))
	}
	if f.timeoutEvery > 0 && n%f.timeoutEvery == 0 {
		return nil, false, nil
	}
	out := make([]float64, count)
	for i := range out {
		f.next++
		out[i] = f.next
	}
	return out, true, nil
}

func (f *fakeSession) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

func opener(s device.Session) device.Opener {
	return func() (device.Session, error) { return s, nil }
}

func readerConfig(duration time.Duration, channels ...int) ReaderConfig {
	return ReaderConfig{
		Session: model.SessionConfig{
			Duration:           duration,
			SampleRate:         model.SampleRate1kHz,
			Voltage:            model.Voltage5V,
			ElementsPerRequest: 4,
			Channels:           channels,
		},
		ReadTimeout: time.Second,
	}
}

func runReader(t *testing.T, cfg ReaderConfig, dev device.Opener, stop *StopFlag) ([]model.Burst, []string) {
	t.Helper()
	raw := NewQueue[model.Burst]()
	logs := NewQueue[string]()
	r := NewReader(cfg, dev, raw, logs, stop, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not exit")
	}
	return collect(raw), collect(logs)
}

func errorLines(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, ErrorTag) {
			n++
		}
	}
	return n
}

func TestReader_DurationExpiryCompletesSweep(t *testing.T) {
	dev := &fakeSession{}
	stop := NewStopFlag()

	bursts, lines := runReader(t, readerConfig(0, 1, 2, 3), opener(dev), stop)

	// The first burst already exceeds a zero duration, but the sweep finishes.
	require.Len(t, bursts, 3)
	assert.Equal(t, 1, bursts[0].Channel)
	assert.Equal(t, 2, bursts[1].Channel)
	assert.Equal(t, 3, bursts[2].Channel)
	assert.Equal(t, []int{0, 1, 2}, dev.reads, "device channel is channel minus one")
	assert.True(t, stop.IsSet())
	assert.True(t, dev.disconnected)

	assert.Equal(t, []string{
		LineInitialized,
		LineConnected,
		LineSamplingConfigured,
		LineChannelConfigured,
		LineStarted,
		LineDisconnected,
		FinishedSentinel,
	}, lines)
}

func TestReader_ExternalStopHasNoSentinel(t *testing.T) {
	stop := NewStopFlag()
	dev := &fakeSession{}
	dev.onRead = func(n int) {
		if n == 5 {
			stop.Set()
		}
	}

	bursts, lines := runReader(t, readerConfig(time.Hour, 1, 2), opener(dev), stop)

	// Stop lands during the third sweep; that sweep is still completed.
	assert.Len(t, bursts, 6)
	assert.NotContains(t, lines, FinishedSentinel)
	assert.Equal(t, LineDisconnected, lines[len(lines)-1])
	assert.Zero(t, errorLines(lines))
}

func TestReader_FaultAbortsWithOneErrorLine(t *testing.T) {
	dev := &fakeSession{faultOnRead: 3}
	stop := NewStopFlag()

	bursts, lines := runReader(t, readerConfig(time.Hour, 1, 2), opener(dev), stop)

	assert.Len(t, bursts, 2)
	assert.True(t, stop.IsSet())
	assert.Equal(t, 1, errorLines(lines))
	assert.Equal(t, FinishedSentinel, lines[len(lines)-1])
	assert.True(t, dev.disconnected)
}

// faultyDisconnect fails to release the device.
type faultyDisconnect struct {
	*fakeSession
}

func (f faultyDisconnect) Disconnect() error {
	return device.Fault("disconnect", errors.New("usb reset"))
}

func TestReader_DisconnectFaultIsLogged(t *testing.T) {
	// 1. Self stop: the error line comes before the sentinel
	stop := NewStopFlag()
	_, lines := runReader(t, readerConfig(0, 1), opener(faultyDisconnect{&fakeSession{}}), stop)

	assert.Equal(t, []string{
		LineInitialized,
		LineConnected,
		LineSamplingConfigured,
		LineChannelConfigured,
		LineStarted,
		ErrorLine("device disconnect: usb reset"),
		FinishedSentinel,
	}, lines)

	// 2. External stop: one error line and still no sentinel
	stop = NewStopFlag()
	dev := &fakeSession{}
	dev.onRead = func(n int) {
		if n == 2 {
			stop.Set()
		}
	}
	_, lines = runReader(t, readerConfig(time.Hour, 1), opener(faultyDisconnect{dev}), stop)

	assert.Equal(t, 1, errorLines(lines))
	assert.NotContains(t, lines, FinishedSentinel)
	assert.NotContains(t, lines, LineDisconnected)
}

func TestReader_RefusedConnectProducesNoBursts(t *testing.T) {
	dev := &fakeSession{refuse: true}
	stop := NewStopFlag()

	bursts, lines := runReader(t, readerConfig(time.Hour, 1), opener(dev), stop)

	assert.Empty(t, bursts)
	assert.True(t, stop.IsSet())
	assert.Equal(t, 1, errorLines(lines))
	assert.Contains(t, lines, FinishedSentinel)
	assert.NotContains(t, lines, LineConnected)
}

func TestReader_OpenFailure(t *testing.T) {
	stop := NewStopFlag()
	failing := func() (device.Session, error) {
		return nil, device.Fault("open", errors.New("no device on bus"))
	}

	bursts, lines := runReader(t, readerConfig(time.Hour, 1), failing, stop)

	assert.Empty(t, bursts)
	assert.True(t, stop.IsSet())
	assert.Equal(t, []string{ErrorLine("device open: no device on bus"), FinishedSentinel}, lines)
}

func TestReader_TimeoutsSkipBurst(t *testing.T) {
	dev := &fakeSession{timeoutEvery: 2}
	stop := NewStopFlag()
	dev.onRead = func(n int) {
		if n == 4 {
			stop.Set()
		}
	}

	bursts, lines := runReader(t, readerConfig(time.Hour, 1, 2), opener(dev), stop)

	// Reads 2 and 4 time out; the sweep keeps going.
	require.Len(t, bursts, 2)
	assert.Equal(t, 1, bursts[0].Channel)
	assert.Equal(t, 1, bursts[1].Channel)
	assert.Zero(t, errorLines(lines))
}

func TestReader_SettleInterruptedByStop(t *testing.T) {
	dev := &fakeSession{}
	stop := NewStopFlag()
	cfg := readerConfig(time.Hour, 1)
	cfg.Settle = time.Minute

	go func() {
		time.Sleep(20 * time.Millisecond)
		stop.Set()
	}()
	bursts, lines := runReader(t, cfg, opener(dev), stop)

	assert.Empty(t, bursts)
	assert.Empty(t, dev.reads)
	assert.Contains(t, lines, LineStarted)
	assert.NotContains(t, lines, FinishedSentinel)
}
