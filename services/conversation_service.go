//go:generate go run go.uber.org/mock/mockgen -source=conversation_service.go -destination=../mocks/mock_conversation_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"emolab/concurrency"
	"emolab/contract"
	"emolab/domain"
	"emolab/domain/event"
	"emolab/errors"
	"emolab/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IConversationService interface {
	Create(ctx context.Context, cmd CreateConversationCommand) (domain.Conversation, error)
	Get(ctx context.Context, id uuid.UUID, actorID string) (domain.Conversation, error)
	List(ctx context.Context, actorID string) ([]domain.Conversation, error)
	Timeline(ctx context.Context, id uuid.UUID, actorID string, cursor *string) ([]TimelineEntry, *string, error)
	Archive(ctx context.Context, id uuid.UUID, actorID string) error
	Search(ctx context.Context, id uuid.UUID, actorID, query string, offset int) ([]TimelineEntry, uint64, error)
}

type CreateConversationCommand struct {
	Topic        string   `validate:"required,min=3,max=200"`
	Participants []string `validate:"required,min=2,unique,dive,required"`
	CreatorID    string   `validate:"required"`
}

// TimelineEntry pairs a published message with the facets everyone sees.
// The raw content never appears here.
type TimelineEntry struct {
	MessageID      uuid.UUID     `json:"message_id"`
	AuthorID       string        `json:"author_id"`
	Version        int           `json:"version"`
	Facets         domain.Facets `json:"facets"`
	PublishedAt    time.Time     `json:"published_at"`
	ConversationID uuid.UUID     `json:"conversation_id"`
}

type ConversationService struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	versions      repositories.IVersionRepository
	search        repositories.ISearchRepository
	locks         *concurrency.KeyedMutex
	dispatcher    contract.IDispatcher
	validate      *validator.Validate
}

func NewConversationService(
	log *slog.Logger,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	versions repositories.IVersionRepository,
	search repositories.ISearchRepository,
	locks *concurrency.KeyedMutex,
	dispatcher contract.IDispatcher,
) *ConversationService {
	return &ConversationService{
		log:           log,
		conversations: conversations,
		messages:      messages,
		versions:      versions,
		search:        search,
		locks:         locks,
		dispatcher:    dispatcher,
		validate:      validator.New(),
	}
}

// Create opens an active conversation with a free floor. The creator must
// be among the participants.
func (s *ConversationService) Create(ctx context.Context, cmd CreateConversationCommand) (domain.Conversation, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return domain.Conversation{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if !lo.Contains(cmd.Participants, cmd.CreatorID) {
		return domain.Conversation{}, errors.ErrNotAuthorized
	}

	conversation := domain.Conversation{
		ID:           uuid.New(),
		Topic:        cmd.Topic,
		Participants: cmd.Participants,
		Status:       domain.ConversationActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.conversations.Create(conversation); err != nil {
		return domain.Conversation{}, err
	}
	s.log.Info("conversation created",
		slog.String("conversation", conversation.ID.String()),
		slog.Int("participants", len(conversation.Participants)))
	return conversation, nil
}

func (s *ConversationService) Get(ctx context.Context, id uuid.UUID, actorID string) (domain.Conversation, error) {
	conversation, err := s.conversations.Get(id)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conversation.HasParticipant(actorID) {
		return domain.Conversation{}, errors.ErrNotAuthorized
	}
	return conversation, nil
}

func (s *ConversationService) List(ctx context.Context, actorID string) ([]domain.Conversation, error) {
	return s.conversations.ListForParticipant(actorID)
}

// Timeline pages through the published messages, newest first. Each entry
// carries the published facets, fetched from the frozen version history.
func (s *ConversationService) Timeline(ctx context.Context, id uuid.UUID, actorID string, cursor *string) ([]TimelineEntry, *string, error) {
	conversation, err := s.conversations.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if !conversation.HasParticipant(actorID) {
		return nil, nil, errors.ErrNotAuthorized
	}

	messages, next, err := s.messages.PublishedByConversation(id, cursor)
	if err != nil {
		return nil, nil, err
	}
	entries := make([]TimelineEntry, 0, len(messages))
	for _, message := range messages {
		entry, err := s.entryFor(message)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, entry)
	}
	return entries, next, nil
}

// Archive closes the conversation. The floor is cleared so nobody stays
// speaker of a dead room; pending requests die with it.
func (s *ConversationService) Archive(ctx context.Context, id uuid.UUID, actorID string) error {
	s.locks.Lock(id.String())
	defer s.locks.Unlock(id.String())

	conversation, err := s.conversations.Get(id)
	if err != nil {
		return err
	}
	if !conversation.HasParticipant(actorID) {
		return errors.ErrNotAuthorized
	}
	if conversation.Status == domain.ConversationArchived {
		return nil
	}

	if err := s.conversations.SetStatus(id, domain.ConversationArchived); err != nil {
		return err
	}
	if conversation.CurrentSpeaker != nil {
		if err := s.conversations.SetSpeaker(id, nil); err != nil {
			return err
		}
		s.dispatcher.Dispatch(event.TurnChanged{
			ConversationID: id,
			Speaker:        nil,
			At:             time.Now().UTC(),
		})
	}
	return nil
}

// Search runs a full-text query over the conversation's published facets.
func (s *ConversationService) Search(ctx context.Context, id uuid.UUID, actorID, query string, offset int) ([]TimelineEntry, uint64, error) {
	conversation, err := s.conversations.Get(id)
	if err != nil {
		return nil, 0, err
	}
	if !conversation.HasParticipant(actorID) {
		return nil, 0, errors.ErrNotAuthorized
	}

	hits, total, err := s.search.SearchPaginated(ctx, query, id, offset)
	if err != nil {
		return nil, 0, err
	}
	entries := make([]TimelineEntry, 0, len(hits))
	for _, hit := range hits {
		message, err := s.messages.Get(hit.MessageID)
		if err != nil {
			// Index lag: a hit without a row is skipped, not fatal.
			s.log.Warn("search hit without stored message",
				slog.String("message", hit.MessageID.String()))
			continue
		}
		entry, err := s.entryFor(message)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, nil
}

func (s *ConversationService) entryFor(message domain.Message) (TimelineEntry, error) {
	version, err := s.versions.Latest(message.ID)
	if err != nil {
		return TimelineEntry{}, err
	}
	return TimelineEntry{
		MessageID:      message.ID,
		AuthorID:       message.AuthorID,
		Version:        message.PublishedVersion,
		Facets:         version.Facets,
		PublishedAt:    message.CreatedAt,
		ConversationID: message.ConversationID,
	}, nil
}
