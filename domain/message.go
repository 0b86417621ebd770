package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	StatusDrafting       MessageStatus = "drafting"
	StatusAwaitingReview MessageStatus = "awaiting_review"
	StatusPublished      MessageStatus = "published"
)

// Message is one authored contribution. The raw content is never shown to
// other participants; only the facets of the published version are.
// PublishedVersion is 0 until the message reaches StatusPublished, then it
// refers to exactly one version number, forever.
type Message struct {
	ID               uuid.UUID
	ConversationID   uuid.UUID
	AuthorID         string
	RawContent       string
	Status           MessageStatus
	PublishedVersion int
	CreatedAt        time.Time
}

// Facets is the three-part distillation of a raw contribution. The validate
// tags carry the capability output contract: a response missing any facet is
// not a version.
type Facets struct {
	Synopsis   string `json:"synopsis" validate:"required"`
	Summary    string `json:"summary" validate:"required"`
	Contention string `json:"contention_points" validate:"required"`
}

// MessageVersion is one immutable distillation attempt. Number starts at 1
// per message and grows without gaps. Once written a version is never
// updated or deleted; Approved is the only field set after creation, exactly
// once, when the author publishes.
type MessageVersion struct {
	ID        uuid.UUID
	MessageID uuid.UUID
	Number    int
	Facets    Facets
	Approved  bool
	CreatedAt time.Time
}

// Refinement is an author comment on a version, kept for the audit trail of
// what each regeneration was asked to change.
type Refinement struct {
	ID        uuid.UUID
	MessageID uuid.UUID
	Version   int
	AuthorID  string
	Comment   string
	CreatedAt time.Time
}
