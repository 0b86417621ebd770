package runtime

import (
	"context"
	"testing"

	"emolab/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name string
}

func (s *recordingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_And_Resolve(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conversationID := uuid.New()
	sink := &recordingSink{name: "alice"}

	// Given nobody watching
	req.Empty(registry.SinksFor(conversationID))
	_, online := registry.SinkForParticipant("alice")
	req.False(online)

	// When alice subscribes
	registry.Subscribe("alice", conversationID, sink)

	// Then she is resolvable both by conversation and by name
	sinks := registry.SinksFor(conversationID)
	req.Len(sinks, 1)
	req.Same(sink, sinks[0].(*recordingSink))

	direct, online := registry.SinkForParticipant("alice")
	req.True(online)
	req.Same(sink, direct.(*recordingSink))
}

func TestRegistry_Multiple_Participants_Same_Conversation(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conversationID := uuid.New()

	registry.Subscribe("alice", conversationID, &recordingSink{name: "alice"})
	registry.Subscribe("bob", conversationID, &recordingSink{name: "bob"})

	req.Len(registry.SinksFor(conversationID), 2)
}

func TestRegistry_Unsubscribe_Cleans_Up(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conversationID := uuid.New()

	registry.Subscribe("alice", conversationID, &recordingSink{name: "alice"})
	registry.Subscribe("bob", conversationID, &recordingSink{name: "bob"})

	registry.Unsubscribe("alice", conversationID)

	req.Len(registry.SinksFor(conversationID), 1)
	_, online := registry.SinkForParticipant("alice")
	req.False(online)

	registry.Unsubscribe("bob", conversationID)
	req.Empty(registry.SinksFor(conversationID))
}

func TestRegistry_One_Sink_Across_Conversations(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	first, second := uuid.New(), uuid.New()
	sink := &recordingSink{name: "alice"}

	registry.Subscribe("alice", first, sink)
	registry.Subscribe("alice", second, sink)

	req.Len(registry.SinksFor(first), 1)
	req.Len(registry.SinksFor(second), 1)
}
