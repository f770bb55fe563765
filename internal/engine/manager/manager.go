package manager

import (
	"Go2DAQSpectra/internal/api"
	"Go2DAQSpectra/internal/config"
	"Go2DAQSpectra/internal/device"
	"Go2DAQSpectra/internal/display"
	"Go2DAQSpectra/internal/session"
	"Go2DAQSpectra/internal/state"
	"Go2DAQSpectra/internal/store"
	_ "Go2DAQSpectra/internal/store/clickhouse" // Registers the clickhouse record store
	_ "Go2DAQSpectra/internal/store/file"       // Registers the file record store
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Manager wires the session controller to the configured device, store and displays.
type Manager struct {
	Settings   *state.Store
	Window     *display.Window
	Logs       *display.LogRing
	Controller *session.Controller
	Health     *api.Health

	store  store.Store
	nats   *display.NATSSink
	logger *zap.Logger
}

// NewManager builds every collaborator from cfg.
func NewManager(cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	opener, err := NewDeviceOpener(cfg.Device)
	if err != nil {
		return nil, err
	}

	// 1. Record store
	st, err := store.Open(cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	// 2. Display and log sinks
	m := &Manager{
		Settings: state.New(cfg.Session.Model()),
		Window:   display.NewWindow(cfg.Session.PlotWindow),
		Logs:     display.NewLogRing(display.LogCapacity),
		Health:   api.NewHealth(logger),
		store:    st,
		logger:   logger,
	}
	sinks := display.Fanout{m.Window}
	logSinks := display.LogFanout{m.Logs, display.NewZapLogSink(logger)}
	if cfg.NATS.Enabled {
		ns, err := display.NewNATSSink(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
		m.nats = ns
		sinks = append(sinks, ns)
		logSinks = append(logSinks, ns)
	}

	// 3. Controller
	m.Controller = session.New(session.Options{
		Device:        opener,
		Store:         st,
		Display:       sinks,
		Log:           logSinks,
		Measuring:     m.Settings,
		ReadTimeout:   cfg.Device.ReadTimeout,
		Settle:        cfg.Device.Settle,
		BatchSize:     cfg.Pipeline.BatchSize,
		Logger:        logger,
		OnStateChange: m.Health.SetState,
	})
	logger.Info("manager initialized",
		zap.String("device", cfg.Device.Type),
		zap.String("store", cfg.Store.Type),
		zap.Bool("nats", cfg.NATS.Enabled))
	return m, nil
}

// NewDeviceOpener returns the opener for the configured device type.
func NewDeviceOpener(cfg config.DeviceConfig) (device.Opener, error) {
	switch cfg.Type {
	case "simulator":
		sim := device.DefaultSimulatorConfig()
		sim.Frequency = cfg.Simulator.Frequency
		sim.Amplitude = cfg.Simulator.Amplitude
		sim.Noise = cfg.Simulator.Noise
		sim.Paced = cfg.Simulator.Paced
		sim.Seed = cfg.Simulator.Seed
		return device.NewSimulatorOpener(sim), nil
	default:
		return nil, fmt.Errorf("unknown device type: '%s'", cfg.Type)
	}
}

// Handler returns the HTTP control API bound to this manager.
func (m *Manager) Handler() *api.Handler {
	return api.NewHandler(m.Controller, m.Settings, m.Window, m.Logs, m.logger)
}

// RecordDir returns where the store keeps record id, for stores that keep records on disk.
func (m *Manager) RecordDir(id string) (string, bool) {
	if d, ok := m.store.(interface{ Dir(string) (string, bool) }); ok {
		return d.Dir(id)
	}
	return "", false
}

// Stop finishes an active session, then releases the NATS connection and the store.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("manager stopping")
	var result *multierror.Error

	// 1. Drain and finalize any running session
	if err := m.Controller.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("session: %w", err))
	}

	// 2. Release outputs
	if m.nats != nil {
		if err := m.nats.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := m.store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("store: %w", err))
	}
	m.Health.Stop()

	m.logger.Info("manager stopped")
	return result.ErrorOrNil()
}
