// Package runtime handles event propagation and background effects. It
// orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"emolab/contract"
	"emolab/domain/event"
	"emolab/observability"
	"emolab/runtime/workers"

	"github.com/google/uuid"
)

type Orchestrator struct {
	log             *slog.Logger
	supervisor      contract.ISupervisor
	registry        contract.IRegistry
	monitoring      *observability.MonitoringManager
	domainEvents    chan event.DomainEvent
	telemetryEvents chan event.DomainEvent
	effectJobs      chan contract.PublishEffect
	sinkTimeout     time.Duration
	maxAttempts     int
	retryDelay      time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor *workers.Supervisor, registry *Registry,
	monitoring *observability.MonitoringManager, bufferSize int, sinkTimeout time.Duration,
	maxAttempts int, retryDelay time.Duration) *Orchestrator {
	return &Orchestrator{
		log:             log,
		supervisor:      supervisor,
		registry:        registry,
		monitoring:      monitoring,
		domainEvents:    make(chan event.DomainEvent, bufferSize),
		telemetryEvents: make(chan event.DomainEvent, bufferSize),
		effectJobs:      make(chan contract.PublishEffect, bufferSize),
		sinkTimeout:     sinkTimeout,
		maxAttempts:     maxAttempts,
		retryDelay:      retryDelay,
	}
}

// Dispatch pushes an event toward the viewers. Never blocks: a full
// channel drops the event, viewers resynchronize on fetch.
func (o *Orchestrator) Dispatch(e event.DomainEvent) {
	select {
	case o.domainEvents <- e:
	default:
		o.monitoring.IncrEventDropped()
		o.log.Warn("Domain event channel full, dropping event",
			slog.String("conversation", e.Conversation().String()))
	}
}

// Enqueue hands a publish effect job to the background worker.
func (o *Orchestrator) Enqueue(job contract.PublishEffect) bool {
	select {
	case o.effectJobs <- job:
		return true
	default:
		return false
	}
}

// RegisterViewer attaches a participant's live connection to a
// conversation's event stream.
func (o *Orchestrator) RegisterViewer(participantID string, conversationID uuid.UUID, sink contract.EventSink) {
	o.registry.Subscribe(participantID, conversationID, sink)
}

// UnregisterViewer disconnects a participant.
func (o *Orchestrator) UnregisterViewer(participantID string, conversationID uuid.UUID) {
	o.registry.Unsubscribe(participantID, conversationID)
}

// Start wires the workers under the supervisor and runs them until ctx
// is canceled. runEffect executes one publish effect job; it is injected
// so the runtime stays free of service dependencies.
func (o *Orchestrator) Start(ctx context.Context, runEffect func(ctx context.Context, job contract.PublishEffect) error) {
	fanout := workers.NewEventFanout(o.log, o.domainEvents, o.telemetryEvents, o.registry, o.sinkTimeout)
	effects := workers.NewPublishEffects(o.log, o.effectJobs, runEffect, o.maxAttempts, o.retryDelay)
	telemetry := workers.NewTelemetry(o.log, o.telemetryEvents, o.monitoring)

	o.supervisor.Add(fanout, effects, telemetry)
	go o.supervisor.Run(ctx)
}

// Stop cancels the supervised workers.
func (o *Orchestrator) Stop() {
	o.supervisor.Stop()
}
