//go:generate go run go.uber.org/mock/mockgen -source=whisper_service.go -destination=../mocks/mock_whisper_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"emolab/contract"
	"emolab/domain"
	"emolab/domain/event"
	"emolab/errors"
	"emolab/repositories"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type IWhisperService interface {
	DispatchForMessage(ctx context.Context, messageID uuid.UUID) error
	Reveal(ctx context.Context, whisperID uuid.UUID, actorID string) (domain.Whisper, error)
	ListFor(ctx context.Context, conversationID uuid.UUID, participantID string) ([]domain.Whisper, error)
}

// WhisperService generates one private guidance text per non-author
// participant after a publish. Dispatch is idempotent: recipients already
// served are skipped, so retries only fill the gaps.
type WhisperService struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	versions      repositories.IVersionRepository
	whispers      repositories.IWhisperRepository
	distiller     contract.IDistiller
	dispatcher    contract.IDispatcher
}

func NewWhisperService(
	log *slog.Logger,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	versions repositories.IVersionRepository,
	whispers repositories.IWhisperRepository,
	distiller contract.IDistiller,
	dispatcher contract.IDispatcher,
) *WhisperService {
	return &WhisperService{
		log:           log,
		conversations: conversations,
		messages:      messages,
		versions:      versions,
		whispers:      whispers,
		distiller:     distiller,
		dispatcher:    dispatcher,
	}
}

// DispatchForMessage whispers to every participant except the author.
// Recipients run in parallel; one failed generation never blocks the
// others. A non-nil return means at least one recipient is still owed a
// whisper and the caller should retry later.
func (s *WhisperService) DispatchForMessage(ctx context.Context, messageID uuid.UUID) error {
	message, err := s.messages.Get(messageID)
	if err != nil {
		return err
	}
	if message.Status != domain.StatusPublished {
		return errors.ErrInvalidTransition
	}
	conversation, err := s.conversations.Get(message.ConversationID)
	if err != nil {
		return err
	}
	version, err := s.versions.Latest(messageID)
	if err != nil {
		return err
	}

	served, err := s.whispers.Recipients(conversation.ID, messageID)
	if err != nil {
		return err
	}
	remaining, _ := lo.Difference(conversation.Others(message.AuthorID), served)
	if len(remaining) == 0 {
		return nil
	}

	// Zero-value group: no shared context, a failed recipient never cancels
	// the others.
	var g errgroup.Group
	for _, recipient := range remaining {
		recipient := recipient
		g.Go(func() error {
			err := s.whisperTo(ctx, conversation, message, version.Facets, recipient)
			if err != nil {
				s.log.Warn("whisper generation failed",
					slog.String("message", messageID.String()),
					slog.String("recipient", recipient),
					slog.Any("error", err))
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrPartialPublishEffect, err)
	}
	return nil
}

func (s *WhisperService) whisperTo(ctx context.Context, conversation domain.Conversation, message domain.Message, facets domain.Facets, recipient string) error {
	content, err := s.distiller.Whisper(ctx, contract.WhisperRequest{
		AuthorName:    message.AuthorID,
		RecipientName: recipient,
		Facets:        facets,
	})
	if err != nil {
		return err
	}

	whisper := domain.Whisper{
		ID:             uuid.New(),
		ConversationID: conversation.ID,
		MessageID:      message.ID,
		RecipientID:    recipient,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	stored, inserted, err := s.whispers.InsertIfAbsent(whisper)
	if err != nil {
		return err
	}
	if inserted {
		s.dispatcher.Dispatch(event.WhisperCreated{
			ConversationID: conversation.ID,
			WhisperID:      stored.ID,
			MessageID:      message.ID,
			RecipientID:    recipient,
			At:             stored.CreatedAt,
		})
	}
	return nil
}

// Reveal shares a whisper with the whole conversation. Only its recipient
// may reveal it, and revealing twice is the same as revealing once.
func (s *WhisperService) Reveal(ctx context.Context, whisperID uuid.UUID, actorID string) (domain.Whisper, error) {
	whisper, err := s.whispers.Get(whisperID)
	if err != nil {
		return domain.Whisper{}, err
	}
	if whisper.RecipientID != actorID {
		return domain.Whisper{}, errors.ErrNotAuthorized
	}
	if whisper.Revealed {
		return whisper, nil
	}

	revealed, err := s.whispers.SetRevealed(whisperID)
	if err != nil {
		return domain.Whisper{}, err
	}
	s.dispatcher.Dispatch(event.WhisperRevealed{
		ConversationID: revealed.ConversationID,
		WhisperID:      revealed.ID,
		RecipientID:    revealed.RecipientID,
		At:             time.Now().UTC(),
	})
	return revealed, nil
}

// ListFor returns what a participant may see: their own whispers plus the
// ones other recipients revealed.
func (s *WhisperService) ListFor(ctx context.Context, conversationID uuid.UUID, participantID string) ([]domain.Whisper, error) {
	conversation, err := s.conversations.Get(conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(participantID) {
		return nil, errors.ErrNotAuthorized
	}

	own, err := s.whispers.ListForRecipient(conversationID, participantID)
	if err != nil {
		return nil, err
	}
	revealed, err := s.whispers.ListRevealed(conversationID)
	if err != nil {
		return nil, err
	}
	return lo.UniqBy(append(own, revealed...), func(w domain.Whisper) uuid.UUID {
		return w.ID
	}), nil
}
