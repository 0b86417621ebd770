//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"emolab/domain"
	"emolab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IConversationRepository interface {
	Create(conversation domain.Conversation) error
	Get(id uuid.UUID) (domain.Conversation, error)
	ListForParticipant(participant string) ([]domain.Conversation, error)
	SetSpeaker(id uuid.UUID, speaker *string) error
	SetStatus(id uuid.UUID, status domain.ConversationStatus) error
}

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

func conversationKey(id uuid.UUID) []byte {
	return []byte("conv:" + id.String())
}

// Create persists the conversation and one index entry per participant.
// The index key is "convidx:{participant}:{conversation_id}" so that
// listing a member's conversations is a single prefix scan.
func (c ConversationRepository) Create(conversation domain.Conversation) error {
	bytes, err := json.Marshal(conversation)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(conversationKey(conversation.ID), bytes); err != nil {
			return err
		}
		for _, participant := range conversation.Participants {
			indexKey := fmt.Sprintf("convidx:%s:%s", participant, conversation.ID)
			if err := txn.Set([]byte(indexKey), []byte(conversation.ID.String())); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c ConversationRepository) Get(id uuid.UUID) (domain.Conversation, error) {
	var conversation domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, conversationKey(id), &conversation)
	})
	return conversation, err
}

func (c ConversationRepository) ListForParticipant(participant string) ([]domain.Conversation, error) {
	var ids []uuid.UUID
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("convidx:%s:", participant))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				id, err := uuid.Parse(string(value))
				if err != nil {
					return err
				}
				ids = append(ids, id)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	conversations := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		conversation, err := c.Get(id)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

// SetSpeaker records the current floor holder. A nil speaker means the
// floor is free.
func (c ConversationRepository) SetSpeaker(id uuid.UUID, speaker *string) error {
	return c.mutate(id, func(conversation *domain.Conversation) {
		conversation.CurrentSpeaker = speaker
	})
}

func (c ConversationRepository) SetStatus(id uuid.UUID, status domain.ConversationStatus) error {
	return c.mutate(id, func(conversation *domain.Conversation) {
		conversation.Status = status
	})
}

func (c ConversationRepository) mutate(id uuid.UUID, apply func(*domain.Conversation)) error {
	return c.db.Update(func(txn *badger.Txn) error {
		var conversation domain.Conversation
		if err := getJSON(txn, conversationKey(id), &conversation); err != nil {
			return err
		}
		apply(&conversation)
		bytes, err := json.Marshal(conversation)
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(id), bytes)
	})
}

// getJSON reads a key inside a transaction and decodes its JSON value.
// A missing key surfaces as errors.ErrNotFound so callers never see
// badger sentinels.
func getJSON(txn *badger.Txn, key []byte, target any) error {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return errors.ErrNotFound
		}
		return err
	}
	return item.Value(func(value []byte) error {
		return json.Unmarshal(value, target)
	})
}
