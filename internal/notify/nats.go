package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"strategy-lab/internal/domain"
)

// NATSSink publishes alerts to a JetStream stream as JSON. Subjects are
// <prefix>.<strategy>.<instrument>, with "global" filling empty parts so
// regime-change events stay subscribable.
type NATSSink struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
}

// NewNATSSink connects to NATS and ensures the alert stream exists.
func NewNATSSink(url, stream, subject string, logger *zap.Logger) (*NATSSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:     stream,
		Subjects: []string{subject + ".>"},
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist with the same subjects.
		if _, err := js.UpdateStream(cfg); err != nil {
			logger.Warn("failed to create or update alert stream",
				zap.String("stream", stream), zap.Error(err))
		}
	}

	return &NATSSink{nc: nc, js: js, subject: subject}, nil
}

// Name identifies the sink.
func (s *NATSSink) Name() string { return "nats" }

// Publish sends the alert as JSON on the alert subject hierarchy.
func (s *NATSSink) Publish(ctx context.Context, alert domain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.%s",
		s.subject, subjectToken(alert.StrategyID), subjectToken(alert.Instrument))

	if _, err := s.js.Publish(subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// Close drains the connection.
func (s *NATSSink) Close() error {
	s.nc.Close()
	return nil
}

// subjectToken makes a value safe for use as a NATS subject token.
func subjectToken(v string) string {
	if v == "" {
		return "global"
	}
	out := []byte(v)
	for i, c := range out {
		switch c {
		case '.', ' ', '*', '>':
			out[i] = '_'
		}
	}
	return string(out)
}

var _ Sink = (*NATSSink)(nil)
