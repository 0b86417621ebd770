package runtime

import (
	"sync"

	"emolab/contract"

	"github.com/google/uuid"
)

type Set map[string]struct{}

// Registry tracks which viewer sessions are watching which conversation.
// A participant has at most one live sink no matter how many conversations
// they watch.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink
	members  map[uuid.UUID]Set
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]contract.EventSink),
		members:  make(map[uuid.UUID]Set),
	}
}

// SinksFor resolves the active sinks of everyone watching a conversation.
// Two-step lookup: membership gives participant IDs, sessions give their
// live connections. Returns nil when nobody is watching.
func (r *Registry) SinksFor(conversationID uuid.UUID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	watching, ok := r.members[conversationID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for participantID := range watching {
		if sink, exists := r.sessions[participantID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

// SinkForParticipant resolves a single participant's connection. Private
// events (whisper_created) are routed through here, never broadcast.
func (r *Registry) SinkForParticipant(participantID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sessions[participantID]
	return sink, ok
}

// Subscribe registers a participant's connection and marks them as watching
// the conversation.
func (r *Registry) Subscribe(participantID string, conversationID uuid.UUID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[participantID] = sink

	if _, ok := r.members[conversationID]; !ok {
		r.members[conversationID] = make(Set)
	}
	r.members[conversationID][participantID] = struct{}{}
}

// Unsubscribe drops the participant's session and their membership. Empty
// membership sets are removed so the map doesn't grow with dead rooms.
func (r *Registry) Unsubscribe(participantID string, conversationID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, participantID)

	if watching, ok := r.members[conversationID]; ok {
		delete(watching, participantID)
		if len(watching) == 0 {
			delete(r.members, conversationID)
		}
	}
}
