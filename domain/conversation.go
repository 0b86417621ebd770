// Package domain contains core concepts of the mediated conversation system.
// Conversations, messages, versions and whispers are plain values; all rules
// about who may mutate what live in the services layer.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// Conversation is a mediated multi-party exchange. CurrentSpeaker is nil when
// the floor is free; it always refers to one of the Participants.
type Conversation struct {
	ID             uuid.UUID
	Topic          string
	Participants   []string
	CurrentSpeaker *string
	Status         ConversationStatus
	CreatedAt      time.Time
}

func (c Conversation) HasParticipant(userID string) bool {
	return lo.Contains(c.Participants, userID)
}

// Others returns every participant except the given one. Used for whisper
// fan-out, where the author never receives a whisper about their own message.
func (c Conversation) Others(userID string) []string {
	return lo.Filter(c.Participants, func(p string, _ int) bool {
		return p != userID
	})
}

// HoldsFloor reports whether userID is the current speaker.
func (c Conversation) HoldsFloor(userID string) bool {
	return c.CurrentSpeaker != nil && *c.CurrentSpeaker == userID
}
