package domain

import (
	"time"

	"github.com/google/uuid"
)

// Whisper is a private, recipient-specific guidance artifact generated after
// a message publishes. Revealed transitions false to true exactly once and
// never reverts.
type Whisper struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	RecipientID    string
	MessageID      uuid.UUID
	Content        string
	Revealed       bool
	CreatedAt      time.Time
}
