// Package notify delivers the alert stream to external collaborators.
// Sinks are best-effort: a failing sink is logged and counted, and never
// fails the monitoring cycle that produced the alert.
package notify

import (
	"context"

	"go.uber.org/zap"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
)

// Sink publishes one alert to an external destination.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string

	// Publish delivers the alert. Implementations must not block beyond
	// the context deadline.
	Publish(ctx context.Context, alert domain.Alert) error

	// Close releases the sink's resources.
	Close() error
}

// Fanout delivers each alert to every sink. Errors are absorbed: the
// producer already holds the alert in memory and in its store, and a
// broken notification channel must not discard it.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout creates a fan-out over the given sinks. A nil logger is
// replaced with a no-op logger.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{sinks: sinks, logger: logger}
}

// Publish delivers the alert to all sinks, continuing past failures.
func (f *Fanout) Publish(ctx context.Context, alert domain.Alert) {
	for _, s := range f.sinks {
		if err := s.Publish(ctx, alert); err != nil {
			observability.RecordPublishDrop(s.Name())
			f.logger.Warn("alert publish dropped",
				zap.String("sink", s.Name()),
				zap.String("alert_id", alert.ID),
				zap.String("type", alert.Type),
				zap.Error(err),
			)
		}
	}
}

// Close closes every sink, returning the first error encountered.
func (f *Fanout) Close() error {
	var first error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
