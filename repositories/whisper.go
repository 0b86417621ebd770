//go:generate go run go.uber.org/mock/mockgen -source=whisper.go -destination=../mocks/mock_whisper_repository.go -package=mocks
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

type IWhisperRepository interface {
	InsertIfAbsent(whisper domain.Whisper) (domain.Whisper, bool, error)
	Get(id uuid.UUID) (domain.Whisper, error)
	Recipients(conversationID, messageID uuid.UUID) ([]string, error)
	ListForRecipient(conversationID uuid.UUID, recipient string) ([]domain.Whisper, error)
	ListRevealed(conversationID uuid.UUID) ([]domain.Whisper, error)
	SetRevealed(id uuid.UUID) (domain.Whisper, error)
}

type WhisperRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewWhisperRepository(db *badger.DB, log *slog.Logger) WhisperRepository {
	return WhisperRepository{db: db, log: log}
}

// whisperKey identifies one whisper by its natural key. A recipient
// gets at most one whisper per published message no matter how many
// times dispatch runs.
func whisperKey(conversationID, messageID uuid.UUID, recipient string) []byte {
	return []byte(fmt.Sprintf("whisper:%s:%s:%s", conversationID, messageID, recipient))
}

func whisperIDKey(id uuid.UUID) []byte {
	return []byte("whisperid:" + id.String())
}

// InsertIfAbsent persists the whisper unless its natural key already
// exists, in which case the stored one is returned. The boolean reports
// whether this call did the insert.
func (w WhisperRepository) InsertIfAbsent(whisper domain.Whisper) (domain.Whisper, bool, error) {
	key := whisperKey(whisper.ConversationID, whisper.MessageID, whisper.RecipientID)
	inserted := false
	var stored domain.Whisper
	err := w.db.Update(func(txn *badger.Txn) error {
		err := getJSON(txn, key, &stored)
		if err == nil {
			return nil
		}
		if err != errors.ErrNotFound {
			return err
		}

		bytes, err := json.Marshal(whisper)
		if err != nil {
			return err
		}
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		if err := txn.Set(whisperIDKey(whisper.ID), key); err != nil {
			return err
		}
		inserted = true
		stored = whisper
		return nil
	})
	return stored, inserted, err
}

// Get resolves a whisper through its ID index.
func (w WhisperRepository) Get(id uuid.UUID) (domain.Whisper, error) {
	var whisper domain.Whisper
	err := w.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(whisperIDKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrNotFound
			}
			return err
		}
		var naturalKey []byte
		err = item.Value(func(value []byte) error {
			naturalKey = append([]byte(nil), value...)
			return nil
		})
		if err != nil {
			return err
		}
		return getJSON(txn, naturalKey, &whisper)
	})
	return whisper, err
}

// Recipients lists who already has a whisper for the given message,
// letting dispatch skip work a previous attempt finished.
func (w WhisperRepository) Recipients(conversationID, messageID uuid.UUID) ([]string, error) {
	var recipients []string
	prefixStr := fmt.Sprintf("whisper:%s:%s:", conversationID, messageID)
	err := w.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			recipients = append(recipients, string(it.Item().Key()[len(prefixStr):]))
		}
		return nil
	})
	return recipients, err
}

func (w WhisperRepository) ListForRecipient(conversationID uuid.UUID, recipient string) ([]domain.Whisper, error) {
	return w.list(conversationID, func(whisper domain.Whisper) bool {
		return whisper.RecipientID == recipient
	})
}

// ListRevealed returns the whispers their recipients chose to share
// with the whole conversation.
func (w WhisperRepository) ListRevealed(conversationID uuid.UUID) ([]domain.Whisper, error) {
	return w.list(conversationID, func(whisper domain.Whisper) bool {
		return whisper.Revealed
	})
}

func (w WhisperRepository) list(conversationID uuid.UUID, keep func(domain.Whisper) bool) ([]domain.Whisper, error) {
	var whispers []domain.Whisper
	err := w.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("whisper:%s:", conversationID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var whisper domain.Whisper
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &whisper)
			})
			if err != nil {
				return err
			}
			if keep(whisper) {
				whispers = append(whispers, whisper)
			}
		}
		return nil
	})
	return whispers, err
}

// SetRevealed flips the whisper to revealed. Revealing twice is a
// no-op, the flag never goes back.
func (w WhisperRepository) SetRevealed(id uuid.UUID) (domain.Whisper, error) {
	var whisper domain.Whisper
	err := w.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(whisperIDKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return errors.ErrNotFound
			}
			return err
		}
		var naturalKey []byte
		err = item.Value(func(value []byte) error {
			naturalKey = append([]byte(nil), value...)
			return nil
		})
		if err != nil {
			return err
		}
		if err := getJSON(txn, naturalKey, &whisper); err != nil {
			return err
		}
		if whisper.Revealed {
			return nil
		}
		whisper.Revealed = true
		bytes, err := json.Marshal(whisper)
		if err != nil {
			return err
		}
		return txn.Set(naturalKey, bytes)
	})
	return whisper, err
}
