package acquisition

import (
	"Go2DAQSpectra/internal/device"
	"Go2DAQSpectra/internal/metrics"
	"Go2DAQSpectra/internal/model"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Status lines emitted on the log queue.
const (
	LineInitialized        = "Device initialized and created!"
	LineConnected          = "Device state is connected!"
	LineSamplingConfigured = "Device sampling parameters configured!"
	LineChannelConfigured  = "Device ADC channel configured!"
	LineStarted            = "Device started collection!"
	LineDisconnected       = "Device disconnected!"

	// FinishedSentinel tells the controller the reader stopped on its own.
	FinishedSentinel = "Receiver finished."
	// ErrorTag prefixes every error line.
	ErrorTag = "!ERROR!"
)

const (
	DefaultReadTimeout = 5 * time.Second
	DefaultSettle      = time.Second
)

// ErrorLine formats an error-tagged log line.
func ErrorLine(msg string) string {
	return ErrorTag + " " + msg
}

// ReaderConfig holds what the reader needs from a session snapshot.
type ReaderConfig struct {
	Session     model.SessionConfig
	ReadTimeout time.Duration
	// Settle is the pause between starting collection and the first read.
	Settle time.Duration
}

// Reader owns the device session and produces raw bursts.
type Reader struct {
	cfg    ReaderConfig
	open   device.Opener
	raw    *Queue[model.Burst]
	log    *Queue[string]
	stop   *StopFlag
	logger *zap.Logger
}

// NewReader creates a reader. It closes raw and log when Run returns.
func NewReader(cfg ReaderConfig, open device.Opener, raw *Queue[model.Burst], log *Queue[string], stop *StopFlag, logger *zap.Logger) *Reader {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &Reader{
		cfg:    cfg,
		open:   open,
		raw:    raw,
		log:    log,
		stop:   stop,
		logger: logger.With(zap.String("component", "reader")),
	}
}

// Run reads bursts until the stop flag is set or the session duration elapses.
func (r *Reader) Run(ctx context.Context) {
	defer r.log.Close()
	defer r.raw.Close()

	selfStop := r.acquire(ctx)
	if selfStop {
		r.stop.Set()
		r.emit(FinishedSentinel)
	}
	r.logger.Info("reader exited", zap.Bool("self_stop", selfStop))
}

// acquire runs the device session and reports whether it ended the session itself.
func (r *Reader) acquire(ctx context.Context) bool {
	dev, err := r.open()
	if err != nil {
		r.fault(err)
		return true
	}
	// A failed disconnect is reported as a fault, ahead of any sentinel.
	defer func() {
		if err := dev.Disconnect(); err != nil {
			r.fault(err)
			return
		}
		r.emit(LineDisconnected)
	}()
	r.emit(LineInitialized)

	if err := r.prepare(ctx, dev); err != nil {
		r.fault(err)
		return true
	}

	if r.cfg.Settle > 0 {
		select {
		case <-time.After(r.cfg.Settle):
		case <-r.stop.Done():
			return false
		}
	}

	expired, err := r.loop(ctx, dev)
	if err != nil {
		r.fault(err)
		return true
	}
	return expired
}

// prepare connects and configures the device, one status line per step.
func (r *Reader) prepare(ctx context.Context, dev device.Session) error {
	sc := r.cfg.Session

	// 1. Connect
	ok, err := dev.Connect(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("device refused connection")
	}
	r.emit(LineConnected)

	// 2. Sampling parameters
	ok, err = dev.Configure(ctx, sc.Voltage, sc.SampleRate)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("device refused sampling parameters %s at %d Hz", sc.Voltage, sc.SampleRate)
	}
	r.emit(LineSamplingConfigured)

	// 3. Channels; every input is enabled, only the selected ones are read
	ok, err = dev.ConfigureChannels(ctx, model.AllChannels)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("device refused ADC channel configuration")
	}
	r.emit(LineChannelConfigured)

	// 4. Start
	if err := dev.StartCollection(ctx); err != nil {
		return err
	}
	r.emit(LineStarted)
	return nil
}

// loop sweeps the selected channels until stopped. A sweep is never cut short.
func (r *Reader) loop(ctx context.Context, dev device.Session) (bool, error) {
	sc := r.cfg.Session
	start := time.Now()

	for !r.stop.IsSet() {
		expired := false
		for _, ch := range sc.Channels {
			label := strconv.Itoa(ch)
			data, ok, err := dev.ReadBurst(ctx, sc.ElementsPerRequest, ch-1, r.cfg.ReadTimeout)
			if err != nil {
				return false, err
			}
			if !ok || len(data) == 0 {
				metrics.ReadFailures.WithLabelValues(label).Inc()
				r.logger.Debug("read returned no data", zap.Int("channel", ch))
				continue
			}

			elapsed := time.Since(start)
			r.raw.Push(model.Burst{Channel: ch, Readings: data, Elapsed: elapsed})
			metrics.BurstsRead.WithLabelValues(label).Inc()
			if elapsed > sc.Duration {
				expired = true
			}
		}
		if expired {
			r.logger.Info("measurement duration elapsed", zap.Duration("duration", sc.Duration))
			return true, nil
		}
	}
	return false, nil
}

func (r *Reader) fault(err error) {
	if errors.Is(err, device.ErrFault) {
		metrics.DeviceFaults.Inc()
	}
	r.logger.Error("acquisition aborted", zap.Error(err))
	r.emit(ErrorLine(err.Error()))
}

func (r *Reader) emit(line string) {
	r.log.Push(line)
}
