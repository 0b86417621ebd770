package services

import (
	"context"

	"emolab/contract"
	"emolab/errors"
	"emolab/repositories"
)

// PublishEffectRunner composes the trailing effects of an approval: whisper
// dispatch and floor release. Both run on every attempt and both are
// idempotent, so a retry only re-executes the effect that is still failing.
func PublishEffectRunner(messages repositories.IMessageRepository,
	whispers IWhisperService, turns ITurnService) func(ctx context.Context, job contract.PublishEffect) error {
	return func(ctx context.Context, job contract.PublishEffect) error {
		message, err := messages.Get(job.MessageID)
		if err != nil {
			return err
		}
		dispatchErr := whispers.DispatchForMessage(ctx, job.MessageID)
		releaseErr := turns.ReleaseFloor(ctx, message.ConversationID, message.AuthorID)
		return errors.Join(dispatchErr, releaseErr)
	}
}
