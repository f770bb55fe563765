package display

import (
	"Go2DAQSpectra/internal/model"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Handlers are called for each message a Subscriber receives. Nil handlers are skipped.
type Handlers struct {
	OnPoints func(points []model.Point)
	OnLine   func(line LogLine)
	OnClear  func()
}

// Subscriber receives what a NATSSink publishes.
type Subscriber struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	subject  string
	handlers Handlers
	logger   *zap.Logger
}

// NewSubscriber connects to url; call Start to begin receiving.
func NewSubscriber(url, subject string, logger *zap.Logger) (*Subscriber, error) {
	nc, err := nats.Connect(url, nats.Name("daq-view"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	logger.Info("connected to NATS", zap.String("url", url))
	return &Subscriber{nc: nc, subject: subject, logger: logger}, nil
}

// Start subscribes to every subject under the base subject.
func (s *Subscriber) Start(h Handlers) error {
	s.handlers = h
	sub, err := s.nc.Subscribe(s.subject+".>", s.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("subscribed, waiting for messages", zap.String("subject", s.subject))
	return nil
}

func (s *Subscriber) handle(msg *nats.Msg) {
	switch {
	case strings.HasSuffix(msg.Subject, PointsSuffix):
		points, err := DecodePoints(msg.Data)
		if err != nil {
			s.logger.Warn("dropping malformed points message", zap.Error(err))
			return
		}
		if s.handlers.OnPoints != nil {
			s.handlers.OnPoints(points)
		}
	case strings.HasSuffix(msg.Subject, LogsSuffix):
		line, err := DecodeLogLine(msg.Data)
		if err != nil {
			s.logger.Warn("dropping malformed log message", zap.Error(err))
			return
		}
		if s.handlers.OnLine != nil {
			s.handlers.OnLine(line)
		}
	case strings.HasSuffix(msg.Subject, ClearSuffix):
		if s.handlers.OnClear != nil {
			s.handlers.OnClear()
		}
	default:
		s.logger.Debug("ignoring message", zap.String("subject", msg.Subject))
	}
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.Warn("failed to unsubscribe", zap.Error(err))
		}
	}
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("NATS connection closed")
	}
}
