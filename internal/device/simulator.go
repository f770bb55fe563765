package device

import (
	"Go2DAQSpectra/internal/model"
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimulatorConfig shapes the synthetic signal and the failure points of a Simulator.
type SimulatorConfig struct {
	// Frequency of the sine wave in Hz.
	Frequency float64
	// Amplitude as a fraction of the voltage range.
	Amplitude float64
	// Noise is the standard deviation of the added gaussian noise, in volts.
	Noise float64
	// Paced makes ReadBurst take count/rate seconds, like real hardware.
	Paced bool
	Seed  int64

	// Failure injection used by tests and the demo.
	RefuseConnect   bool
	RefuseConfigure bool
	RefuseChannels  bool
	FailStart       bool
	// FaultAfter makes ReadBurst fault after that many successful reads; 0 disables it.
	FaultAfter int
	// DropEvery makes every n-th ReadBurst time out; 0 disables it.
	DropEvery int
}

// DefaultSimulatorConfig returns a 50 Hz wave at half scale with light noise.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Frequency: 50,
		Amplitude: 0.5,
		Noise:     0.01,
		Seed:      1,
	}
}

// Simulator is an in-process device producing a per-channel sine wave.
type Simulator struct {
	cfg SimulatorConfig

	mu        sync.Mutex
	rng       *rand.Rand
	connected bool
	started   bool
	voltage   model.Voltage
	rate      model.SampleRate
	mask      model.ChannelMask
	sample    map[int]int64
	reads     int
}

// NewSimulator returns a disconnected simulator.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	return &Simulator{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		sample: make(map[int]int64),
	}
}

// NewSimulatorOpener returns an Opener creating a fresh simulator per session.
func NewSimulatorOpener(cfg SimulatorConfig) Opener {
	return func() (Session, error) {
		return NewSimulator(cfg), nil
	}
}

func (s *Simulator) Connect(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.RefuseConnect {
		return false, nil
	}
	s.connected = true
	return true, nil
}

func (s *Simulator) Configure(ctx context.Context, voltage model.Voltage, rate model.SampleRate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return false, Fault("configure", errors.New("not connected"))
	}
	if s.cfg.RefuseConfigure || !voltage.Valid() || !rate.Valid() {
		return false, nil
	}
	s.voltage, s.rate = voltage, rate
	return true, nil
}

func (s *Simulator) ConfigureChannels(ctx context.Context, mask model.ChannelMask) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return false, Fault("configure channels", errors.New("not connected"))
	}
	if s.cfg.RefuseChannels || mask == 0 {
		return false, nil
	}
	s.mask = mask
	return true, nil
}

func (s *Simulator) StartCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return Fault("start collection", errors.New("not connected"))
	}
	if s.cfg.FailStart {
		return Fault("start collection", errors.New("collection refused"))
	}
	s.started = true
	return nil
}

func (s *Simulator) ReadBurst(ctx context.Context, count int, channel int, timeout time.Duration) ([]float64, bool, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, false, Fault("read", errors.New("collection not started"))
	}
	if !s.mask.Has(channel + 1) {
		s.mu.Unlock()
		return nil, false, Fault("read", errors.New("channel not enabled"))
	}
	s.reads++
	if s.cfg.FaultAfter > 0 && s.reads > s.cfg.FaultAfter {
		s.mu.Unlock()
		return nil, false, Fault("read", errors.New("usb transfer failed"))
	}
	if s.cfg.DropEvery > 0 && s.reads%s.cfg.DropEvery == 0 {
		s.mu.Unlock()
		return nil, false, nil
	}
	out := s.generate(count, channel)
	rate := s.rate
	s.mu.Unlock()

	if !s.cfg.Paced {
		return out, true, nil
	}
	wait := time.Duration(float64(count) / float64(rate) * float64(time.Second))
	if wait > timeout {
		return nil, false, nil
	}
	select {
	case <-ctx.Done():
		return nil, false, nil
	case <-time.After(wait):
		return out, true, nil
	}
}

// generate must be called with s.mu held.
func (s *Simulator) generate(count, channel int) []float64 {
	full := s.voltage.Volts()
	phase := float64(channel) * math.Pi / 4
	start := s.sample[channel]
	out := make([]float64, count)
	for i := range out {
		t := float64(start+int64(i)) / float64(s.rate)
		v := s.cfg.Amplitude*full*math.Sin(2*math.Pi*s.cfg.Frequency*t+phase) + s.rng.NormFloat64()*s.cfg.Noise
		out[i] = math.Max(-full, math.Min(full, v))
	}
	s.sample[channel] = start + int64(count)
	return out
}

func (s *Simulator) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.started = false
	return nil
}
