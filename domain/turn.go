package domain

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestPending RequestStatus = "pending"
	RequestGranted RequestStatus = "granted"
	RequestDenied  RequestStatus = "denied"
)

// SpeakerRequest is one participant asking for the floor. Several requests
// may be pending for the same conversation; arbitration is first-come-first-
// served on CreatedAt, with the request ID as tie-breaker.
type SpeakerRequest struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	RequesterID    string
	Status         RequestStatus
	CreatedAt      time.Time
}
