//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
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

type IMessageRepository interface {
	Create(message domain.Message) error
	Get(id uuid.UUID) (domain.Message, error)
	Update(message domain.Message) error
	CurrentDraft(conversationID uuid.UUID) (domain.Message, error)
	MarkPublished(message domain.Message, version int) error
	PublishedByConversation(conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

func messageKey(id uuid.UUID) []byte {
	return []byte("msg:" + id.String())
}

func draftKey(conversationID uuid.UUID) []byte {
	return []byte("draft:" + conversationID.String())
}

// Create persists a new message and points the conversation's draft
// pointer at it. One drafting message per conversation at a time, the
// floor holder owns it until it publishes or is abandoned.
func (m MessageRepository) Create(message domain.Message) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.ID), bytes); err != nil {
			return err
		}
		return txn.Set(draftKey(message.ConversationID), []byte(message.ID.String()))
	})
}

func (m MessageRepository) Get(id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, messageKey(id), &message)
	})
	return message, err
}

func (m MessageRepository) Update(message domain.Message) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.ID), bytes)
	})
}

// CurrentDraft resolves the conversation's in-flight message, the one a
// failed or pending distillation left behind. ErrNotFound means the
// next submission starts a fresh message.
func (m MessageRepository) CurrentDraft(conversationID uuid.UUID) (domain.Message, error) {
	var id uuid.UUID
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(draftKey(conversationID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrNotFound
			}
			return err
		}
		return item.Value(func(value []byte) error {
			id, err = uuid.Parse(string(value))
			return err
		})
	})
	if err != nil {
		return domain.Message{}, err
	}
	return m.Get(id)
}

// MarkPublished flips the message to published, records which version
// went out, appends it to the conversation timeline and clears the
// draft pointer, all in one transaction.
func (m MessageRepository) MarkPublished(message domain.Message, version int) error {
	message.Status = domain.StatusPublished
	message.PublishedVersion = version
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.ID), bytes); err != nil {
			return err
		}
		timelineKey := fmt.Sprintf("timeline:%s:%019d:%s",
			message.ConversationID, message.CreatedAt.UnixNano(), message.ID)
		if err := txn.Set([]byte(timelineKey), []byte(message.ID.String())); err != nil {
			return err
		}
		return txn.Delete(draftKey(message.ConversationID))
	})
}

// PublishedByConversation walks the timeline newest-first with a cursor,
// exactly like a chat history scroll. The cursor is the key suffix of
// the last message returned.
func (m MessageRepository) PublishedByConversation(conversationID uuid.UUID, cursor *string) ([]domain.Message, *string, error) {
	var ids []uuid.UUID
	var lastKey string
	prefixStr := fmt.Sprintf("timeline:%s:", conversationID)
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(ids) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
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
		return nil, nil, err
	}

	messages := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		message, err := m.Get(id)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	return messages, &lastKey, nil
}
