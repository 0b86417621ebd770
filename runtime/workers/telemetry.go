package workers

import (
	"context"
	"log/slog"

	"emolab/domain/event"
	"emolab/observability"
)

// Telemetry folds domain events into the monitoring counters, off the
// hot path. Losing one under pressure skews a counter, nothing more.
type Telemetry struct {
	Log        *slog.Logger
	Events     chan event.DomainEvent
	monitoring *observability.MonitoringManager
}

func NewTelemetry(log *slog.Logger, events chan event.DomainEvent, monitoring *observability.MonitoringManager) *Telemetry {
	return &Telemetry{Log: log, Events: events, monitoring: monitoring}
}

func (w *Telemetry) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.Events:
			w.monitoring.Record(evt)
		case <-ctx.Done():
			w.Log.Debug("Context done, stopping telemetry")
			return nil
		}
	}
}
