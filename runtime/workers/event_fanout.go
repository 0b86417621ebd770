package workers

import (
	"context"
	"log/slog"
	"time"

	"emolab/contract"
	"emolab/domain/event"
)

// EventFanout routes domain events to the viewer sessions watching the
// event's conversation. Private events (whisper_created) reach only their
// recipient's sink.
//
// Delivery is best-effort and at-least-once from the viewer's point of
// view: events are invalidation hints, a lost one is repaired by the next
// fetch. EventFanout is not a message broker.
type EventFanout struct {
	Log            *slog.Logger
	DomainEvent    chan event.DomainEvent
	TelemetryEvent chan event.DomainEvent
	registry       contract.IRegistry
	sinkTimeout    time.Duration
}

func NewEventFanout(log *slog.Logger, domainEvent, telemetryEvent chan event.DomainEvent,
	registry contract.IRegistry, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		Log:            log,
		DomainEvent:    domainEvent,
		TelemetryEvent: telemetryEvent,
		registry:       registry,
		sinkTimeout:    sinkTimeout,
	}
}

func (w EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.DomainEvent:
			w.Fanout(ctx, evt)
			select {
			case w.TelemetryEvent <- evt:
			default:
				w.Log.Debug("Observability telemetry event lost")
			}
		case <-ctx.Done():
			w.Log.Debug("Context done, stopping domainEvent send")
			return nil
		}
	}
}

// Fanout resolves the target sinks at delivery time, so a viewer who
// connected after the event was produced still gets later ones.
func (w EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	if private, ok := evt.(event.PrivateEvent); ok {
		sink, online := w.registry.SinkForParticipant(private.Recipient())
		if !online {
			return
		}
		w.deliver(ctx, sink, evt)
		return
	}

	for _, sink := range w.registry.SinksFor(evt.Conversation()) {
		w.deliver(ctx, sink, evt)
	}
}

// deliver bounds each sink write so one stuck viewer cannot stall the
// fanout loop.
func (w EventFanout) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, evt); err != nil {
		w.Log.Debug("Sink delivery failed", slog.Any("error", err))
	}
}
