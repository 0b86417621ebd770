package services

import (
	"context"
	"testing"

	"emolab/contract"
	"emolab/domain"
	"emolab/domain/event"
	"emolab/errors"
	"emolab/mocks"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// publishMessage runs a full submit and approve so whispers have a real target.
func publishMessage(t *testing.T, fixture *engineFixture, distiller *mocks.MockIDistiller, conversation domain.Conversation, author string) domain.Message {
	t.Helper()
	distiller.EXPECT().Distill(gomock.Any(), gomock.Any()).Return(distilled("published facets"), nil)
	version, err := fixture.pipeline.Submit(context.Background(), conversation.ID, author, "raw content")
	require.NoError(t, err)
	message, err := fixture.pipeline.Approve(context.Background(), version.MessageID, author, version.Number)
	require.NoError(t, err)
	return message
}

func TestWhisper_Dispatch_Targets_Everyone_But_The_Author(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	distiller := mocks.NewMockIDistiller(ctrl)
	fixture := newEngineFixture(t, distiller)

	conversation := fixture.newActiveConversation(t, "alice", "alice", "bob", "clara")
	message := publishMessage(t, fixture, distiller, conversation, "alice")

	distiller.EXPECT().
		Whisper(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, request contract.WhisperRequest) (string, error) {
			return "guidance for " + request.RecipientName, nil
		}).
		Times(2)

	req.NoError(fixture.whispers.DispatchForMessage(context.Background(), message.ID))

	recipients, err := fixture.whisperRepo.Recipients(conversation.ID, message.ID)
	req.NoError(err)
	req.ElementsMatch([]string{"bob", "clara"}, recipients)

	bobWhispers, err := fixture.whispers.ListFor(context.Background(), conversation.ID, "bob")
	req.NoError(err)
	req.Len(bobWhispers, 1)
	req.Equal("guidance for bob", bobWhispers[0].Content)
	req.False(bobWhispers[0].Revealed)

	created := fixture.dispatcher.ofType(func(e event.DomainEvent) bool {
		_, ok := e.(event.WhisperCreated)
		return ok
	})
	req.Len(created, 2)
}

func TestWhisper_Dispatch_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	distiller := mocks.NewMockIDistiller(ctrl)
	fixture := newEngineFixture(t, distiller)

	conversation := fixture.newActiveConversation(t, "alice", "alice", "bob")
	message := publishMessage(t, fixture, distiller, conversation, "alice")

	distiller.EXPECT().Whisper(gomock.Any(), gomock.Any()).Return("guidance", nil).Times(1)

	req.NoError(fixture.whispers.DispatchForMessage(context.Background(), message.ID))

	// Second dispatch finds bob already served and never calls the distiller
	req.NoError(fixture.whispers.DispatchForMessage(context.Background(), message.ID))

	whispers, err := fixture.whispers.ListFor(context.Background(), conversation.ID, "bob")
	req.NoError(err)
	req.Len(whispers, 1)
}

func TestWhisper_Partial_Failure_Then_Retry_Fills_The_Gap(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	distiller := mocks.NewMockIDistiller(ctrl)
	fixture := newEngineFixture(t, distiller)

	conversation := fixture.newActiveConversation(t, "alice", "alice", "bob", "clara")
	message := publishMessage(t, fixture, distiller, conversation, "alice")

	// First round: clara's generation fails, bob's succeeds
	distiller.EXPECT().
		Whisper(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, request contract.WhisperRequest) (string, error) {
			if request.RecipientName == "clara" {
				return "", errors.ErrGenerationFailure
			}
			return "guidance for bob", nil
		}).
		Times(2)

	err := fixture.whispers.DispatchForMessage(context.Background(), message.ID)
	req.ErrorIs(err, errors.ErrPartialPublishEffect)

	recipients, err := fixture.whisperRepo.Recipients(conversation.ID, message.ID)
	req.NoError(err)
	req.ElementsMatch([]string{"bob"}, recipients)

	// Retry only targets the missing recipient
	distiller.EXPECT().
		Whisper(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, request contract.WhisperRequest) (string, error) {
			req.Equal("clara", request.RecipientName)
			return "guidance for clara", nil
		}).
		Times(1)

	req.NoError(fixture.whispers.DispatchForMessage(context.Background(), message.ID))

	recipients, err = fixture.whisperRepo.Recipients(conversation.ID, message.ID)
	req.NoError(err)
	req.ElementsMatch([]string{"bob", "clara"}, recipients)
}

func TestWhisper_Dispatch_Refuses_Unpublished_Messages(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	distiller := mocks.NewMockIDistiller(ctrl)
	fixture := newEngineFixture(t, distiller)

	conversation := fixture.newActiveConversation(t, "alice", "alice", "bob")
	distiller.EXPECT().Distill(gomock.Any(), gomock.Any()).Return(distilled("draft"), nil)
	version, err := fixture.pipeline.Submit(context.Background(), conversation.ID, "alice", "raw")
	req.NoError(err)

	err = fixture.whispers.DispatchForMessage(context.Background(), version.MessageID)
	req.ErrorIs(err, errors.ErrInvalidTransition)
}

func TestWhisper_Reveal_Is_Recipient_Only_And_One_Way(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	distiller := mocks.NewMockIDistiller(ctrl)
	fixture := newEngineFixture(t, distiller)

	conversation := fixture.newActiveConversation(t, "alice", "alice", "bob")
	message := publishMessage(t, fixture, distiller, conversation, "alice")
	distiller.EXPECT().Whisper(gomock.Any(), gomock.Any()).Return("private guidance", nil)
	req.NoError(fixture.whispers.DispatchForMessage(context.Background(), message.ID))

	whispers, err := fixture.whispers.ListFor(context.Background(), conversation.ID, "bob")
	req.NoError(err)
	req.Len(whispers, 1)
	whisperID := whispers[0].ID

	// Only the recipient can reveal
	_, err = fixture.whispers.Reveal(context.Background(), whisperID, "alice")
	req.ErrorIs(err, errors.ErrNotAuthorized)

	revealed, err := fixture.whispers.Reveal(context.Background(), whisperID, "bob")
	req.NoError(err)
	req.True(revealed.Revealed)

	// Revealing twice returns the whisper without a second event
	again, err := fixture.whispers.Reveal(context.Background(), whisperID, "bob")
	req.NoError(err)
	req.True(again.Revealed)

	events := fixture.dispatcher.ofType(func(e event.DomainEvent) bool {
		_, ok := e.(event.WhisperRevealed)
		return ok
	})
	req.Len(events, 1)
}

func TestWhisper_ListFor_Shows_Own_Plus_Revealed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	distiller := mocks.NewMockIDistiller(ctrl)
	fixture := newEngineFixture(t, distiller)

	conversation := fixture.newActiveConversation(t, "alice", "alice", "bob", "clara")
	message := publishMessage(t, fixture, distiller, conversation, "alice")
	distiller.EXPECT().
		Whisper(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, request contract.WhisperRequest) (string, error) {
			return "guidance for " + request.RecipientName, nil
		}).
		Times(2)
	req.NoError(fixture.whispers.DispatchForMessage(context.Background(), message.ID))

	bobWhispers, err := fixture.whispers.ListFor(context.Background(), conversation.ID, "bob")
	req.NoError(err)
	bobID := bobWhispers[0].ID

	// Before any reveal, clara only sees her own
	claraView, err := fixture.whispers.ListFor(context.Background(), conversation.ID, "clara")
	req.NoError(err)
	recipients := lo.Map(claraView, func(w domain.Whisper, _ int) string { return w.RecipientID })
	req.ElementsMatch([]string{"clara"}, recipients)

	_, err = fixture.whispers.Reveal(context.Background(), bobID, "bob")
	req.NoError(err)

	// After bob reveals, his whisper shows up for clara too
	claraView, err = fixture.whispers.ListFor(context.Background(), conversation.ID, "clara")
	req.NoError(err)
	recipients = lo.Map(claraView, func(w domain.Whisper, _ int) string { return w.RecipientID })
	req.ElementsMatch([]string{"clara", "bob"}, recipients)

	// Outsiders get nothing
	_, err = fixture.whispers.ListFor(context.Background(), conversation.ID, "mallory")
	req.ErrorIs(err, errors.ErrNotAuthorized)

	_, err = fixture.whispers.ListFor(context.Background(), uuid.New(), "bob")
	req.ErrorIs(err, errors.ErrNotFound)
}
