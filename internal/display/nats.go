package display

import (
	"Go2DAQSpectra/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subject suffixes under the configured base subject.
const (
	PointsSuffix = ".points"
	LogsSuffix   = ".logs"
	ClearSuffix  = ".clear"
)

// NATSSink publishes points, status lines and clear events for remote viewers.
type NATSSink struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSSink connects to url and publishes under subject.
func NewNATSSink(url, subject string, logger *zap.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("daq-engine"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	logger.Info("connected to NATS", zap.String("url", url), zap.String("subject", subject))
	return &NATSSink{nc: nc, subject: subject, logger: logger}, nil
}

func (s *NATSSink) Publish(_ context.Context, points []model.Point) error {
	data, err := EncodePoints(points)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.subject+PointsSuffix, data)
}

func (s *NATSSink) Clear(_ context.Context) error {
	return s.nc.Publish(s.subject+ClearSuffix, nil)
}

func (s *NATSSink) WriteLine(_ context.Context, line string) error {
	data, err := EncodeLogLine(LogLine{Time: time.Now().UTC(), Text: line})
	if err != nil {
		return err
	}
	return s.nc.Publish(s.subject+LogsSuffix, data)
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() error {
	if s.nc == nil {
		return nil
	}
	if err := s.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	s.logger.Info("NATS connection drained and closed")
	return nil
}
