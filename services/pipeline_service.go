//go:generate go run go.uber.org/mock/mockgen -source=pipeline_service.go -destination=../mocks/mock_pipeline_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"emolab/concurrency"
	"emolab/contract"
	"emolab/domain"
	"emolab/domain/event"
	"emolab/errors"
	"emolab/moderation"
	"emolab/observability"
	"emolab/repositories"

	"github.com/google/uuid"
)

type IPipelineService interface {
	Submit(ctx context.Context, conversationID uuid.UUID, authorID, rawContent string) (domain.MessageVersion, error)
	Refine(ctx context.Context, messageID uuid.UUID, authorID, comment string) (domain.MessageVersion, error)
	Approve(ctx context.Context, messageID uuid.UUID, authorID string, versionNumber int) (domain.Message, error)
	Versions(ctx context.Context, messageID uuid.UUID, actorID string) ([]domain.MessageVersion, []domain.Refinement, error)
}

// PipelineService drives a contribution from raw text to published facets.
// Generation runs outside any lock; the version store settles races when
// the result comes back.
type PipelineService struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	versions      repositories.IVersionRepository
	search        repositories.ISearchRepository
	distiller     contract.IDistiller
	moderator     moderation.Moderator
	dispatcher    contract.IDispatcher
	effects       contract.IEffectQueue
	monitoring    *observability.MonitoringManager
	locks         *concurrency.KeyedMutex
	inFlight      sync.Map
}

func NewPipelineService(
	log *slog.Logger,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	versions repositories.IVersionRepository,
	search repositories.ISearchRepository,
	distiller contract.IDistiller,
	moderator moderation.Moderator,
	dispatcher contract.IDispatcher,
	effects contract.IEffectQueue,
	monitoring *observability.MonitoringManager,
	locks *concurrency.KeyedMutex,
) *PipelineService {
	return &PipelineService{
		log:           log,
		conversations: conversations,
		messages:      messages,
		versions:      versions,
		search:        search,
		distiller:     distiller,
		moderator:     moderator,
		dispatcher:    dispatcher,
		effects:       effects,
		monitoring:    monitoring,
		locks:         locks,
	}
}

// Submit starts (or retries) the distillation of the floor holder's raw
// content. On success the message is awaiting review with version 1; on a
// generation failure the draft survives untouched so a retry produces
// version 1, not 2.
func (s *PipelineService) Submit(ctx context.Context, conversationID uuid.UUID, authorID, rawContent string) (domain.MessageVersion, error) {
	message, err := s.prepareDraft(conversationID, authorID, rawContent)
	if err != nil {
		return domain.MessageVersion{}, err
	}

	return s.distillOnce(ctx, message, contract.DistillRequest{RawContent: message.RawContent}, 0)
}

// prepareDraft reserves the drafting message under the conversation lock.
// A failed earlier submission left a draft behind; it is reused so the
// retry extends the same history.
func (s *PipelineService) prepareDraft(conversationID uuid.UUID, authorID, rawContent string) (domain.Message, error) {
	s.locks.Lock(conversationID.String())
	defer s.locks.Unlock(conversationID.String())

	conversation, err := s.conversations.Get(conversationID)
	if err != nil {
		return domain.Message{}, err
	}
	if conversation.Status != domain.ConversationActive {
		return domain.Message{}, errors.ErrInvalidTransition
	}
	if !conversation.HasParticipant(authorID) {
		return domain.Message{}, errors.ErrNotAuthorized
	}
	if !conversation.HoldsFloor(authorID) {
		return domain.Message{}, errors.ErrTurnConflict
	}

	censored, matches := s.moderator.Censor(rawContent)
	if len(matches) > 0 {
		s.log.Info("raw content censored before distillation",
			slog.String("conversation", conversationID.String()),
			slog.Int("matches", len(matches)))
	}

	draft, err := s.messages.CurrentDraft(conversationID)
	switch {
	case err == nil:
		if draft.Status != domain.StatusDrafting {
			return domain.Message{}, errors.ErrInvalidTransition
		}
		if draft.AuthorID != authorID {
			return domain.Message{}, errors.ErrNotAuthorized
		}
		draft.RawContent = censored
		if err := s.messages.Update(draft); err != nil {
			return domain.Message{}, err
		}
		return draft, nil
	case err == errors.ErrNotFound:
		message := domain.Message{
			ID:             uuid.New(),
			ConversationID: conversationID,
			AuthorID:       authorID,
			RawContent:     censored,
			Status:         domain.StatusDrafting,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.messages.Create(message); err != nil {
			return domain.Message{}, err
		}
		return message, nil
	default:
		return domain.Message{}, err
	}
}

// Refine regenerates the facets, steered by the author's comment. The
// comment is kept even when generation fails, it documents intent.
func (s *PipelineService) Refine(ctx context.Context, messageID uuid.UUID, authorID, comment string) (domain.MessageVersion, error) {
	message, err := s.messages.Get(messageID)
	if err != nil {
		return domain.MessageVersion{}, err
	}
	if message.AuthorID != authorID {
		return domain.MessageVersion{}, errors.ErrNotAuthorized
	}
	if message.Status == domain.StatusPublished {
		return domain.MessageVersion{}, errors.ErrAlreadyPublished
	}
	if message.Status != domain.StatusAwaitingReview {
		return domain.MessageVersion{}, errors.ErrInvalidTransition
	}

	latest, err := s.versions.Latest(messageID)
	if err != nil {
		return domain.MessageVersion{}, err
	}

	refinement := domain.Refinement{
		ID:        uuid.New(),
		MessageID: messageID,
		Version:   latest.Number,
		AuthorID:  authorID,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.versions.AddRefinement(refinement); err != nil {
		return domain.MessageVersion{}, err
	}

	request := contract.DistillRequest{
		RawContent:        message.RawContent,
		PriorFacets:       &latest.Facets,
		RefinementComment: comment,
	}
	return s.distillOnce(ctx, message, request, latest.Number)
}

// distillOnce calls the capability at most once per message at a time.
// A second caller while generation is running gets ErrDistillationInFlight
// instead of a second expensive call.
func (s *PipelineService) distillOnce(ctx context.Context, message domain.Message, request contract.DistillRequest, expectedPrior int) (domain.MessageVersion, error) {
	key := message.ID.String()
	if _, loaded := s.inFlight.LoadOrStore(key, struct{}{}); loaded {
		return domain.MessageVersion{}, errors.ErrDistillationInFlight
	}
	defer s.inFlight.Delete(key)

	return s.distillAndAppend(ctx, message, request, expectedPrior)
}

func (s *PipelineService) distillAndAppend(ctx context.Context, message domain.Message, request contract.DistillRequest, expectedPrior int) (domain.MessageVersion, error) {
	facets, err := s.distiller.Distill(ctx, request)
	if err != nil {
		s.monitoring.IncrGenerationFailure()
		s.log.Warn("distillation failed, state unchanged",
			slog.String("message", message.ID.String()),
			slog.Any("error", err))
		return domain.MessageVersion{}, err
	}

	version, err := s.versions.Append(message.ID, facets, expectedPrior)
	if err != nil {
		return domain.MessageVersion{}, err
	}

	if message.Status == domain.StatusDrafting {
		message.Status = domain.StatusAwaitingReview
		if err := s.messages.Update(message); err != nil {
			return domain.MessageVersion{}, err
		}
	}

	s.dispatcher.Dispatch(event.VersionCreated{
		ConversationID: message.ConversationID,
		MessageID:      message.ID,
		Number:         version.Number,
		At:             version.CreatedAt,
	})
	return version, nil
}

// Approve freezes the reviewed version and makes the message visible.
// The publish itself is durable before this returns; whisper dispatch and
// floor release run as queued effects and never undo it.
func (s *PipelineService) Approve(ctx context.Context, messageID uuid.UUID, authorID string, versionNumber int) (domain.Message, error) {
	message, err := s.messages.Get(messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if message.AuthorID != authorID {
		return domain.Message{}, errors.ErrNotAuthorized
	}
	if message.Status == domain.StatusPublished {
		return domain.Message{}, errors.ErrAlreadyPublished
	}
	if message.Status != domain.StatusAwaitingReview {
		return domain.Message{}, errors.ErrInvalidTransition
	}

	version, err := s.versions.ApproveLatest(messageID, versionNumber)
	if err != nil {
		return domain.Message{}, err
	}

	if err := s.messages.MarkPublished(message, version.Number); err != nil {
		return domain.Message{}, err
	}
	message.Status = domain.StatusPublished
	message.PublishedVersion = version.Number

	s.dispatcher.Dispatch(event.MessagePublished{
		ConversationID: message.ConversationID,
		MessageID:      message.ID,
		Version:        version.Number,
		At:             time.Now().UTC(),
	})

	// Trailing, non-fatal: the search index catches up on the next publish
	// if this one fails.
	if err := s.search.Index(message.ConversationID, message.ID, version.Facets); err != nil {
		s.log.Warn("indexing published facets failed", slog.Any("error", err))
	} else if err := s.search.Flush(); err != nil {
		s.log.Warn("flushing search index failed", slog.Any("error", err))
	}

	if !s.effects.Enqueue(contract.PublishEffect{MessageID: message.ID}) {
		s.log.Error("publish effect queue full",
			slog.String("message", message.ID.String()),
			slog.Any("error", errors.ErrPartialPublishEffect))
	}
	return message, nil
}

// Versions exposes the full distillation history of a message to its
// author. Other participants only ever see the published facets.
func (s *PipelineService) Versions(ctx context.Context, messageID uuid.UUID, actorID string) ([]domain.MessageVersion, []domain.Refinement, error) {
	message, err := s.messages.Get(messageID)
	if err != nil {
		return nil, nil, err
	}
	if message.AuthorID != actorID {
		return nil, nil, fmt.Errorf("%w: version history is author-only", errors.ErrNotAuthorized)
	}
	versions, err := s.versions.List(messageID)
	if err != nil {
		return nil, nil, err
	}
	refinements, err := s.versions.ListRefinements(messageID)
	if err != nil {
		return nil, nil, err
	}
	return versions, refinements, nil
}
