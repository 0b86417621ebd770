package observability

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"emolab/domain/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MonitoringStats aggregates engine counters for the debug UI.
type MonitoringStats struct {
	TurnsGranted       uint64 `json:"turns_granted"`
	VersionsCreated    uint64 `json:"versions_created"`
	MessagesPublished  uint64 `json:"messages_published"`
	GenerationFailures uint64 `json:"generation_failures"`
	WhispersDispatched uint64 `json:"whispers_dispatched"`
	WhispersRevealed   uint64 `json:"whispers_revealed"`
	EventsDropped      uint64 `json:"events_dropped"`
	UpdatedAt          string `json:"updated_at"`
}

// MonitoringManager keeps real-time telemetry. Hot paths only touch the
// atomic counters; the prometheus collectors mirror them for scrapes.
type MonitoringManager struct {
	log *slog.Logger
	mu  sync.RWMutex

	turnsGranted       uint64
	versionsCreated    uint64
	messagesPublished  uint64
	generationFailures uint64
	whispersDispatched uint64
	whispersRevealed   uint64
	eventsDropped      uint64

	promTurns       prometheus.Counter
	promVersions    prometheus.Counter
	promPublished   prometheus.Counter
	promFailures    prometheus.Counter
	promWhispers    prometheus.Counter
	promRevealed    prometheus.Counter
	promDropped     prometheus.Counter
	promEventsTotal *prometheus.CounterVec
}

func NewMonitoringManager(log *slog.Logger, reg prometheus.Registerer) *MonitoringManager {
	factory := promauto.With(reg)
	return &MonitoringManager{
		log: log,
		promTurns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "emolab", Name: "turns_granted_total",
			Help: "Floor grants across all conversations.",
		}),
		promVersions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "emolab", Name: "versions_created_total",
			Help: "Distillation versions appended.",
		}),
		promPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "emolab", Name: "messages_published_total",
			Help: "Messages made visible to their conversation.",
		}),
		promFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "emolab", Name: "generation_failures_total",
			Help: "Distillation or whisper generation calls that failed.",
		}),
		promWhispers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "emolab", Name: "whispers_dispatched_total",
			Help: "Private whispers stored for recipients.",
		}),
		promRevealed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "emolab", Name: "whispers_revealed_total",
			Help: "Whispers made visible to the whole conversation.",
		}),
		promDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "emolab", Name: "events_dropped_total",
			Help: "Domain events dropped on a full channel.",
		}),
		promEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emolab", Name: "events_total",
			Help: "Domain events seen by telemetry, by type.",
		}, []string{"type"}),
	}
}

func (mm *MonitoringManager) IncrGenerationFailure() {
	atomic.AddUint64(&mm.generationFailures, 1)
	mm.promFailures.Inc()
}

func (mm *MonitoringManager) IncrEventDropped() {
	atomic.AddUint64(&mm.eventsDropped, 1)
	mm.promDropped.Inc()
}

// Record folds one domain event into the counters. Fed by the telemetry
// worker, never by request handlers.
func (mm *MonitoringManager) Record(e event.DomainEvent) {
	switch e.(type) {
	case event.TurnChanged:
		atomic.AddUint64(&mm.turnsGranted, 1)
		mm.promTurns.Inc()
		mm.promEventsTotal.WithLabelValues("turn_changed").Inc()
	case event.VersionCreated:
		atomic.AddUint64(&mm.versionsCreated, 1)
		mm.promVersions.Inc()
		mm.promEventsTotal.WithLabelValues("version_created").Inc()
	case event.MessagePublished:
		atomic.AddUint64(&mm.messagesPublished, 1)
		mm.promPublished.Inc()
		mm.promEventsTotal.WithLabelValues("message_published").Inc()
	case event.WhisperCreated:
		atomic.AddUint64(&mm.whispersDispatched, 1)
		mm.promWhispers.Inc()
		mm.promEventsTotal.WithLabelValues("whisper_created").Inc()
	case event.WhisperRevealed:
		atomic.AddUint64(&mm.whispersRevealed, 1)
		mm.promRevealed.Inc()
		mm.promEventsTotal.WithLabelValues("whisper_revealed").Inc()
	}
}

// GetLatest snapshots the counters for the debug endpoint.
func (mm *MonitoringManager) GetLatest() MonitoringStats {
	return MonitoringStats{
		TurnsGranted:       atomic.LoadUint64(&mm.turnsGranted),
		VersionsCreated:    atomic.LoadUint64(&mm.versionsCreated),
		MessagesPublished:  atomic.LoadUint64(&mm.messagesPublished),
		GenerationFailures: atomic.LoadUint64(&mm.generationFailures),
		WhispersDispatched: atomic.LoadUint64(&mm.whispersDispatched),
		WhispersRevealed:   atomic.LoadUint64(&mm.whispersRevealed),
		EventsDropped:      atomic.LoadUint64(&mm.eventsDropped),
		UpdatedAt:          time.Now().Format(time.RFC3339),
	}
}
