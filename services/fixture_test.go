package services

import (
	"sync"
	"testing"
	"time"

	"emolab/concurrency"
	"emolab/contract"
	"emolab/domain"
	"emolab/domain/event"
	"emolab/moderation"
	"emolab/observability"
	"emolab/repositories"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// recordingDispatcher captures dispatched events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (d *recordingDispatcher) Dispatch(e event.DomainEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *recordingDispatcher) ofType(match func(event.DomainEvent) bool) []event.DomainEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo.Filter(d.events, func(e event.DomainEvent, _ int) bool { return match(e) })
}

// recordingQueue captures enqueued publish effects.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []contract.PublishEffect
}

func (q *recordingQueue) Enqueue(job contract.PublishEffect) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return true
}

func (q *recordingQueue) all() []contract.PublishEffect {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]contract.PublishEffect(nil), q.jobs...)
}

// engineFixture wires real repositories over a temp badger and bluge,
// with the distiller injected by the test.
type engineFixture struct {
	turn          *TurnService
	pipeline      *PipelineService
	whispers      *WhisperService
	conversations *ConversationService
	dispatcher    *recordingDispatcher
	queue         *recordingQueue

	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	versionRepo      *repositories.VersionRepository
	whisperRepo      repositories.WhisperRepository
}

func newEngineFixture(t *testing.T, distiller contract.IDistiller) *engineFixture {
	t.Helper()
	_, log, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.CleanupDB(badgerDB, blugeWriter) })

	conversationRepo := repositories.NewConversationRepository(badgerDB, log)
	turnRepo := repositories.NewTurnRepository(badgerDB, log)
	messageRepo := repositories.NewMessageRepository(badgerDB, log, nil)
	versionRepo := repositories.NewVersionRepository(badgerDB, log)
	whisperRepo := repositories.NewWhisperRepository(badgerDB, log)
	searchRepo := repositories.NewSearchRepository(blugeWriter, log, lo.ToPtr(10), 10)

	moderator, err := moderation.NewModerator([]string{"idiot"}, '*', log)
	require.NoError(t, err)

	dispatcher := &recordingDispatcher{}
	queue := &recordingQueue{}
	locks := concurrency.NewKeyedMutex()
	monitoring := observability.NewMonitoringManager(log, prometheus.NewRegistry())

	return &engineFixture{
		turn:     NewTurnService(log, conversationRepo, turnRepo, locks, dispatcher),
		pipeline: NewPipelineService(log, conversationRepo, messageRepo, versionRepo, searchRepo, distiller, moderator, dispatcher, queue, monitoring, locks),
		whispers: NewWhisperService(log, conversationRepo, messageRepo, versionRepo, whisperRepo, distiller, dispatcher),
		conversations: NewConversationService(log, conversationRepo, messageRepo, versionRepo,
			searchRepo, locks, dispatcher),
		dispatcher:       dispatcher,
		queue:            queue,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		versionRepo:      versionRepo,
		whisperRepo:      whisperRepo,
	}
}

// newActiveConversation persists a conversation with alice holding the floor.
func (f *engineFixture) newActiveConversation(t *testing.T, speaker string, participants ...string) domain.Conversation {
	t.Helper()
	conversation := domain.Conversation{
		ID:           uuid.New(),
		Topic:        "deadline tension",
		Participants: participants,
		Status:       domain.ConversationActive,
		CreatedAt:    time.Now().UTC(),
	}
	if speaker != "" {
		conversation.CurrentSpeaker = lo.ToPtr(speaker)
	}
	require.NoError(t, f.conversationRepo.Create(conversation))
	return conversation
}

func distilled(synopsis string) domain.Facets {
	return domain.Facets{
		Synopsis:   synopsis,
		Summary:    "the factual points",
		Contention: "the trigger words",
	}
}
