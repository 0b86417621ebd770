//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"emolab/domain"
	"emolab/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for supervision logs so workers don't need to carry a name themselves.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives change notifications. Implementations must tolerate
// duplicate delivery and treat payloads as hints, re-fetching real state.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks which viewer sessions are watching which conversation.
type IRegistry interface {
	SinksFor(conversationID uuid.UUID) []EventSink
	SinkForParticipant(participantID string) (EventSink, bool)
	Subscribe(participantID string, conversationID uuid.UUID, sink EventSink)
	Unsubscribe(participantID string, conversationID uuid.UUID)
}

// IDispatcher pushes domain events into the runtime for fan-out. Dispatch
// never blocks; under pressure events are dropped, viewers resynchronize on
// the next fetch.
type IDispatcher interface {
	Dispatch(e event.DomainEvent)
}

// PublishEffect is a queued job for the trailing effects of a publish:
// whisper dispatch and floor release. Attempts counts deliveries so the
// worker can give up on a poisoned job.
type PublishEffect struct {
	MessageID uuid.UUID
	Attempts  int
}

// IEffectQueue hands publish effects to the background worker. Enqueue is
// non-blocking; a full queue is reported so the caller can log the loss.
type IEffectQueue interface {
	Enqueue(job PublishEffect) bool
}

// DistillRequest carries everything the capability needs to produce facets.
// PriorFacets and RefinementComment are set on refinement rounds only.
type DistillRequest struct {
	RawContent        string
	PriorFacets       *domain.Facets
	RefinementComment string
}

// WhisperRequest asks for one private guidance text about a published
// version, addressed to a single recipient.
type WhisperRequest struct {
	AuthorName    string
	RecipientName string
	Facets        domain.Facets
}

// IDistiller is the text-generation capability. Calls are fallible and
// latency-bearing; implementations must bound the wait and classify every
// failure mode (transport, timeout, non-conforming output) as
// errors.ErrGenerationFailure.
type IDistiller interface {
	Distill(ctx context.Context, req DistillRequest) (domain.Facets, error)
	Whisper(ctx context.Context, req WhisperRequest) (string, error)
}
