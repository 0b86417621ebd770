//go:generate go run go.uber.org/mock/mockgen -source=turn_service.go -destination=../mocks/mock_turn_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"time"

	"emolab/concurrency"
	"emolab/contract"
	"emolab/domain"
	"emolab/domain/event"
	"emolab/errors"
	"emolab/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type ITurnService interface {
	RequestTurn(ctx context.Context, conversationID uuid.UUID, requesterID string) (domain.SpeakerRequest, error)
	ReleaseFloor(ctx context.Context, conversationID uuid.UUID, holderID string) error
	Queue(ctx context.Context, conversationID uuid.UUID, actorID string) ([]domain.SpeakerRequest, error)
}

// TurnService arbitrates the floor. Exactly one speaker per conversation,
// granted first-come-first-served; every decision runs under the
// conversation's lock so two requests can never both see a free floor.
type TurnService struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	turns         repositories.ITurnRepository
	locks         *concurrency.KeyedMutex
	dispatcher    contract.IDispatcher
}

func NewTurnService(log *slog.Logger, conversations repositories.IConversationRepository,
	turns repositories.ITurnRepository, locks *concurrency.KeyedMutex, dispatcher contract.IDispatcher) *TurnService {
	return &TurnService{
		log:           log,
		conversations: conversations,
		turns:         turns,
		locks:         locks,
		dispatcher:    dispatcher,
	}
}

// RequestTurn asks for the floor. A free floor with an empty queue is
// granted on the spot; otherwise the request joins the queue and waits for
// the holder to release.
func (s *TurnService) RequestTurn(ctx context.Context, conversationID uuid.UUID, requesterID string) (domain.SpeakerRequest, error) {
	s.locks.Lock(conversationID.String())
	defer s.locks.Unlock(conversationID.String())

	conversation, err := s.conversations.Get(conversationID)
	if err != nil {
		return domain.SpeakerRequest{}, err
	}
	if conversation.Status != domain.ConversationActive {
		return domain.SpeakerRequest{}, errors.ErrInvalidTransition
	}
	if !conversation.HasParticipant(requesterID) {
		return domain.SpeakerRequest{}, errors.ErrNotAuthorized
	}
	if conversation.HoldsFloor(requesterID) {
		return domain.SpeakerRequest{}, errors.ErrAlreadyRequested
	}

	request := domain.SpeakerRequest{
		ID:             uuid.New(),
		ConversationID: conversationID,
		RequesterID:    requesterID,
		Status:         domain.RequestPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.turns.AddRequest(request); err != nil {
		return domain.SpeakerRequest{}, err
	}

	if conversation.CurrentSpeaker == nil {
		granted, err := s.grantNext(conversation)
		if err != nil {
			return domain.SpeakerRequest{}, err
		}
		if granted != nil && granted.ID == request.ID {
			request.Status = domain.RequestGranted
		}
	}
	return request, nil
}

// ReleaseFloor gives up the floor and hands it to the oldest pending
// request. Releasing a floor you do not hold is a no-op; publish effects
// retry and must be able to call this twice.
func (s *TurnService) ReleaseFloor(ctx context.Context, conversationID uuid.UUID, holderID string) error {
	s.locks.Lock(conversationID.String())
	defer s.locks.Unlock(conversationID.String())

	conversation, err := s.conversations.Get(conversationID)
	if err != nil {
		return err
	}
	if !conversation.HoldsFloor(holderID) {
		s.log.Debug("release ignored, floor not held",
			slog.String("conversation", conversationID.String()),
			slog.String("holder", holderID))
		return nil
	}

	_, err = s.grantNext(conversation)
	return err
}

// Queue exposes the pending requests to participants.
func (s *TurnService) Queue(ctx context.Context, conversationID uuid.UUID, actorID string) ([]domain.SpeakerRequest, error) {
	conversation, err := s.conversations.Get(conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(actorID) {
		return nil, errors.ErrNotAuthorized
	}
	return s.turns.PendingRequests(conversationID)
}

// grantNext settles the head of the queue, or frees the floor when nobody
// is waiting. Caller holds the conversation lock.
func (s *TurnService) grantNext(conversation domain.Conversation) (*domain.SpeakerRequest, error) {
	pending, err := s.turns.PendingRequests(conversation.ID)
	if err != nil {
		return nil, err
	}

	var speaker *string
	var granted *domain.SpeakerRequest
	if len(pending) > 0 {
		head := pending[0]
		if err := s.turns.SetRequestStatus(head, domain.RequestGranted); err != nil {
			return nil, err
		}
		speaker = lo.ToPtr(head.RequesterID)
		head.Status = domain.RequestGranted
		granted = &head
	}

	if err := s.conversations.SetSpeaker(conversation.ID, speaker); err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(event.TurnChanged{
		ConversationID: conversation.ID,
		Speaker:        speaker,
		At:             time.Now().UTC(),
	})
	return granted, nil
}
