package config

import (
	"Go2DAQSpectra/internal/logging"
	"Go2DAQSpectra/internal/model"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DAQ_SESSION_DURATION.
const EnvPrefix = "DAQ"

// SessionConfig seeds the settings store. Every field can be changed between sessions.
type SessionConfig struct {
	Duration           time.Duration `yaml:"duration"`
	SampleRate         int           `yaml:"sample_rate" split_words:"true"`
	Voltage            string        `yaml:"voltage"`
	ElementsPerRequest int           `yaml:"elements_per_request" split_words:"true"`
	Channels           []int         `yaml:"channels"`
	Averaging          bool          `yaml:"averaging"`
	PlotWindow         int           `yaml:"plot_window" split_words:"true"`
}

// Model converts the section into the settings the session controller runs with.
func (s SessionConfig) Model() model.SessionConfig {
	return model.SessionConfig{
		Duration:           s.Duration,
		SampleRate:         model.SampleRate(s.SampleRate),
		Voltage:            model.Voltage(s.Voltage),
		ElementsPerRequest: s.ElementsPerRequest,
		Channels:           append([]int(nil), s.Channels...),
		Averaging:          s.Averaging,
		PlotWindow:         s.PlotWindow,
	}.Normalize()
}

// SimulatorConfig shapes the synthetic device.
type SimulatorConfig struct {
	Frequency float64 `yaml:"frequency"`
	Amplitude float64 `yaml:"amplitude"`
	Noise     float64 `yaml:"noise"`
	Paced     bool    `yaml:"paced"`
	Seed      int64   `yaml:"seed"`
}

// DeviceConfig selects and tunes the acquisition device.
type DeviceConfig struct {
	Type        string          `yaml:"type"`
	ReadTimeout time.Duration   `yaml:"read_timeout" split_words:"true"`
	Settle      time.Duration   `yaml:"settle"`
	Simulator   SimulatorConfig `yaml:"simulator"`
}

// PipelineConfig tunes the live delivery stage.
type PipelineConfig struct {
	BatchSize int `yaml:"batch_size" split_words:"true"`
}

// FileStoreConfig configures the on-disk record store.
type FileStoreConfig struct {
	RootPath string `yaml:"root_path" split_words:"true"`
}

// ClickHouseConfig holds the connection settings of the ClickHouse record store.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Type       string           `yaml:"type"`
	File       FileStoreConfig  `yaml:"file"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse" envconfig:"CLICKHOUSE"`
}

// NATSConfig configures the remote display fan-out.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// APIConfig configures the HTTP control API.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr" split_words:"true"`
}

// GRPCConfig configures the gRPC health endpoint.
type GRPCConfig struct {
	ListenAddr string `yaml:"listen_addr" split_words:"true"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Session  SessionConfig  `yaml:"session"`
	Device   DeviceConfig   `yaml:"device"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
	NATS     NATSConfig     `yaml:"nats"`
	API      APIConfig      `yaml:"api"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Logging  logging.Config `yaml:"logging"`
}

// Default returns a configuration that runs against the simulator and stores records on disk.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			Duration:           10 * time.Second,
			SampleRate:         int(model.SampleRate10kHz),
			Voltage:            string(model.Voltage5V),
			ElementsPerRequest: 100,
			Channels:           []int{1},
			Averaging:          true,
			PlotWindow:         100,
		},
		Device: DeviceConfig{
			Type:        "simulator",
			ReadTimeout: 5 * time.Second,
			Settle:      time.Second,
			Simulator: SimulatorConfig{
				Frequency: 50,
				Amplitude: 0.5,
				Noise:     0.01,
				Paced:     true,
				Seed:      1,
			},
		},
		Pipeline: PipelineConfig{BatchSize: 1},
		Store: StoreConfig{
			Type: "file",
			File: FileStoreConfig{RootPath: "./measurements"},
			ClickHouse: ClickHouseConfig{
				Host:     "localhost",
				Port:     9000,
				Database: "default",
				Username: "default",
			},
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "daq",
		},
		API:     APIConfig{ListenAddr: ":8080"},
		GRPC:    GRPCConfig{ListenAddr: ":50051"},
		Logging: logging.DefaultConfig(),
	}
}

// LoadConfig reads the YAML file over the defaults, then applies DAQ_* environment overrides.
// An empty path skips the file.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := c.Session.Model().ValidateRanges(); err != nil {
		result = multierror.Append(result, fmt.Errorf("session: %w", err))
	}
	if c.Device.Type != "simulator" {
		result = multierror.Append(result, fmt.Errorf("device: unsupported type %q", c.Device.Type))
	}
	if c.Device.ReadTimeout <= 0 {
		result = multierror.Append(result, errors.New("device: read_timeout must be positive"))
	}
	if c.Device.Settle < 0 {
		result = multierror.Append(result, errors.New("device: settle must not be negative"))
	}
	if c.Pipeline.BatchSize < 1 {
		result = multierror.Append(result, errors.New("pipeline: batch_size must be at least 1"))
	}
	if c.Store.Type == "" {
		result = multierror.Append(result, errors.New("store: type is required"))
	}
	if c.NATS.Enabled && (c.NATS.URL == "" || c.NATS.Subject == "") {
		result = multierror.Append(result, errors.New("nats: url and subject are required when enabled"))
	}
	return result.ErrorOrNil()
}
