// Package event defines the change notifications emitted by the engine.
// Events are invalidation hints: they carry identifiers, never authoritative
// state. Viewers re-fetch on receipt. Delivery is best-effort, at-least-once.
package event

import (
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	Conversation() uuid.UUID
}

// PrivateEvent is delivered only to the sink of its recipient, never
// broadcast to the whole conversation.
type PrivateEvent interface {
	DomainEvent
	Recipient() string
}

// TurnChanged signals that the floor holder of a conversation changed.
// Speaker is nil when the floor was released with no pending request.
type TurnChanged struct {
	ConversationID uuid.UUID
	Speaker        *string
	At             time.Time
}

func (e TurnChanged) Conversation() uuid.UUID { return e.ConversationID }

// VersionCreated signals a new distillation version for a message still
// under review. Only the author's viewer cares, but the hint is harmless to
// broadcast since it carries no content.
type VersionCreated struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Number         int
	At             time.Time
}

func (e VersionCreated) Conversation() uuid.UUID { return e.ConversationID }

// MessagePublished signals that a message became visible to everyone.
type MessagePublished struct {
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	Version        int
	At             time.Time
}

func (e MessagePublished) Conversation() uuid.UUID { return e.ConversationID }

// WhisperCreated is private: only the recipient learns a whisper exists.
type WhisperCreated struct {
	ConversationID uuid.UUID
	WhisperID      uuid.UUID
	MessageID      uuid.UUID
	RecipientID    string
	At             time.Time
}

func (e WhisperCreated) Conversation() uuid.UUID { return e.ConversationID }
func (e WhisperCreated) Recipient() string       { return e.RecipientID }

// WhisperRevealed signals that a recipient made their whisper visible to the
// whole conversation.
type WhisperRevealed struct {
	ConversationID uuid.UUID
	WhisperID      uuid.UUID
	RecipientID    string
	At             time.Time
}

func (e WhisperRevealed) Conversation() uuid.UUID { return e.ConversationID }
