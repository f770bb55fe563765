package session

import (
	"Go2DAQSpectra/internal/acquisition"
	"Go2DAQSpectra/internal/device"
	"Go2DAQSpectra/internal/display"
	"Go2DAQSpectra/internal/metrics"
	"Go2DAQSpectra/internal/model"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

var (
	// ErrSessionActive is returned by Start while a session is running or draining.
	ErrSessionActive = errors.New("measurement session already active")
	// ErrNotRunning is returned by Stop when there is nothing to stop.
	ErrNotRunning = errors.New("no measurement session running")
)

// Controller log lines.
const (
	LineStopping = "Wait to finish measuring..."
	LineFinished = "Measure finished!"
)

// State is the lifecycle position of the controller.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopRequested
	StateDraining
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop_requested"
	case StateDraining:
		return "draining"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Active reports whether a session occupies the controller in this state.
func (s State) Active() bool {
	return s == StateRunning || s == StateStopRequested || s == StateDraining
}

// RecordStore persists measurement records.
type RecordStore interface {
	Create(ctx context.Context, h model.Header) (*model.Record, error)
	Save(ctx context.Context, rec *model.Record, finished bool) error
}

// LogSink receives the ordered status lines of a session.
type LogSink interface {
	WriteLine(ctx context.Context, line string) error
}

// MeasuringFlag is the process-wide "measurement in progress" cell.
type MeasuringFlag interface {
	SetMeasuring(bool)
}

// Options wires a Controller to its collaborators.
type Options struct {
	Device    device.Opener
	Store     RecordStore
	Display   display.Sink
	Log       LogSink
	Measuring MeasuringFlag

	ReadTimeout time.Duration
	// Settle is the pause after starting collection; zero disables it.
	Settle    time.Duration
	BatchSize int

	Logger *zap.Logger
	// OnStateChange is called with the controller lock held; it must not call back into the controller.
	OnStateChange func(State)
}

// Status is a point-in-time view of the controller.
type Status struct {
	State      State
	StateName  string
	RecordID   string
	Config     *model.SessionConfig
	Points     map[int]int
	Total      int
	StartedAt  time.Time
	FinishedAt time.Time
	Aborted    bool
}

// run holds the per-session resources.
type run struct {
	cfg       model.SessionConfig
	record    *model.Record
	stop      *acquisition.StopFlag
	logs      *acquisition.Queue[string]
	deliverer *acquisition.Deliverer

	startedAt  time.Time
	stoppedAt  time.Time
	finishedAt time.Time
	aborted    bool
	selfStop   bool
	err        error

	finishOnce sync.Once
	finished   chan struct{}
}

// Controller runs one measurement session at a time and owns its state transitions.
type Controller struct {
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	run      *run
	starting bool
}

// New creates an idle controller.
func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = acquisition.DefaultBatchSize
	}
	if opts.Display == nil {
		opts.Display = display.Fanout{}
	}
	c := &Controller{
		opts:   opts,
		logger: opts.Logger.With(zap.String("component", "controller")),
	}
	metrics.SessionState.Set(float64(StateIdle))
	return c
}

// Start validates cfg, persists the record header and launches the workers.
// It returns the new record ID. Invalid settings are rejected before any side effect.
func (c *Controller) Start(ctx context.Context, cfg model.SessionConfig) (string, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	// Reserve the controller; the display and store calls below run unlocked.
	c.mu.Lock()
	if c.state.Active() || c.starting {
		c.mu.Unlock()
		return "", ErrSessionActive
	}
	c.starting = true
	c.mu.Unlock()

	r, w, err := c.prepare(ctx, cfg)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	if c.opts.Measuring != nil {
		c.opts.Measuring.SetMeasuring(true)
	}
	c.run = r
	c.setState(StateRunning)
	c.mu.Unlock()

	// Workers outlive the caller's context
	wctx := context.WithoutCancel(ctx)
	go w.reader.Run(wctx)
	go w.aggregator.Run()
	go r.deliverer.Run(wctx)
	go c.supervise(wctx, r)

	c.logger.Info("measurement started",
		zap.String("record", r.record.ID()),
		zap.Ints("channels", cfg.Channels),
		zap.Duration("duration", cfg.Duration),
		zap.Bool("averaging", cfg.Averaging))
	return r.record.ID(), nil
}

// workers are the pipeline stages of one session, built but not yet running.
type workers struct {
	reader     *acquisition.Reader
	aggregator *acquisition.Aggregator
}

// prepare clears the display, persists the record header and builds the pipeline.
func (c *Controller) prepare(ctx context.Context, cfg model.SessionConfig) (*run, workers, error) {
	// 1. Fresh display
	if err := display.Reset(ctx, c.opts.Display, cfg.PlotWindow); err != nil {
		c.logger.Warn("failed to clear display", zap.Error(err))
	}

	// 2. Header-only record, persisted before acquisition
	rec, err := c.opts.Store.Create(ctx, model.NewHeader(cfg))
	if err != nil {
		return nil, workers{}, fmt.Errorf("failed to create record: %w", err)
	}
	if err := c.opts.Store.Save(ctx, rec, false); err != nil {
		return nil, workers{}, fmt.Errorf("failed to save record header: %w", err)
	}

	// 3. Per-session queues and stop flag
	raw := acquisition.NewQueue[model.Burst]()
	points := acquisition.NewQueue[model.Point]()
	r := &run{
		cfg:       cfg,
		record:    rec,
		stop:      acquisition.NewStopFlag(),
		logs:      acquisition.NewQueue[string](),
		startedAt: time.Now().UTC(),
		finished:  make(chan struct{}),
	}
	logger := c.opts.Logger.With(zap.String("session", rec.ID()))
	w := workers{
		reader: acquisition.NewReader(acquisition.ReaderConfig{
			Session:     cfg,
			ReadTimeout: c.opts.ReadTimeout,
			Settle:      c.opts.Settle,
		}, c.opts.Device, raw, r.logs, r.stop, logger),
		aggregator: acquisition.NewAggregator(raw, points, rec, cfg.Averaging, r.stop, logger),
	}
	r.deliverer = acquisition.NewDeliverer(points, c.opts.Display, c.opts.BatchSize, logger)
	return r, w, nil
}

// Stop asks the running session to finish. Calling it while the session is
// already stopping is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	r := c.run
	state := c.state
	c.mu.Unlock()

	if r == nil || !state.Active() {
		return ErrNotRunning
	}
	c.requestStop(ctx, r)
	return nil
}

// requestStop raises the stop flag and moves Running to StopRequested.
func (c *Controller) requestStop(ctx context.Context, r *run) {
	r.stop.Set()

	c.mu.Lock()
	moved := c.run == r && c.state == StateRunning
	if moved {
		r.stoppedAt = time.Now()
		c.setState(StateStopRequested)
	}
	c.mu.Unlock()

	if moved {
		c.writeLine(ctx, LineStopping)
	}
}

// supervise pumps status lines until the reader exits, then waits for the
// delivery stage to drain and finalizes the session.
func (c *Controller) supervise(ctx context.Context, r *run) {
	for line := range r.logs.Out() {
		c.writeLine(ctx, line)
		switch {
		case strings.HasPrefix(line, acquisition.ErrorTag):
			c.mu.Lock()
			r.aborted = true
			c.mu.Unlock()
		case line == acquisition.FinishedSentinel:
			c.mu.Lock()
			r.selfStop = true
			c.mu.Unlock()
			c.requestStop(ctx, r)
		}
	}

	// The reader only closes the log queue after the stop flag is set.
	c.mu.Lock()
	if c.run == r && (c.state == StateRunning || c.state == StateStopRequested) {
		if r.stoppedAt.IsZero() {
			r.stoppedAt = time.Now()
		}
		c.setState(StateDraining)
	}
	c.mu.Unlock()

	<-r.deliverer.Done()
	c.finish(ctx, r)
}

// finish finalizes the record exactly once and releases the session.
func (c *Controller) finish(ctx context.Context, r *run) {
	r.finishOnce.Do(func() {
		var result *multierror.Error

		if r.record.MarkFinished() {
			if err := c.opts.Store.Save(ctx, r.record, true); err != nil {
				c.logger.Error("failed to finalize record", zap.String("record", r.record.ID()), zap.Error(err))
				result = multierror.Append(result, err)
			}
		}
		if c.opts.Measuring != nil {
			c.opts.Measuring.SetMeasuring(false)
		}

		c.mu.Lock()
		r.err = result.ErrorOrNil()
		r.finishedAt = time.Now().UTC()
		outcome := metrics.OutcomeStopped
		switch {
		case r.aborted:
			outcome = metrics.OutcomeAborted
		case r.selfStop:
			outcome = metrics.OutcomeCompleted
		}
		if !r.stoppedAt.IsZero() {
			metrics.DrainDuration.Observe(time.Since(r.stoppedAt).Seconds())
		}
		c.setState(StateFinished)
		c.mu.Unlock()

		metrics.SessionsTotal.WithLabelValues(outcome).Inc()
		c.writeLine(ctx, LineFinished)
		c.logger.Info("measurement finished",
			zap.String("record", r.record.ID()),
			zap.Int("points", r.record.Total()),
			zap.String("outcome", outcome))
		close(r.finished)
	})
}

// Wait blocks until the current session is finished or ctx is done.
// It returns the finalization error of the session, if any.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.finished:
		c.mu.Lock()
		defer c.mu.Unlock()
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports the current state and the counters of the latest session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state, StateName: c.state.String()}
	if r := c.run; r != nil {
		cfg := r.cfg.Clone()
		st.RecordID = r.record.ID()
		st.Config = &cfg
		st.Points = r.record.Count()
		st.Total = r.record.Total()
		st.StartedAt = r.startedAt
		st.FinishedAt = r.finishedAt
		st.Aborted = r.aborted
	}
	return st
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close stops an active session and waits for it to be finalized.
// A session that had already finished is not reported again.
func (c *Controller) Close(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		if errors.Is(err, ErrNotRunning) {
			return nil
		}
		return err
	}
	return c.Wait(ctx)
}

// setState must be called with c.mu held.
func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("state change", zap.Stringer("from", c.state), zap.Stringer("to", s))
	c.state = s
	metrics.SessionState.Set(float64(s))
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

func (c *Controller) writeLine(ctx context.Context, line string) {
	if c.opts.Log == nil {
		return
	}
	if err := c.opts.Log.WriteLine(ctx, line); err != nil {
		c.logger.Warn("failed to write log line", zap.String("line", line), zap.Error(err))
	}
}
