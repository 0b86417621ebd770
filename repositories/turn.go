//go:generate go run go.uber.org/mock/mockgen -source=turn.go -destination=../mocks/mock_turn_repository.go -package=mocks
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

type ITurnRepository interface {
	AddRequest(request domain.SpeakerRequest) error
	PendingRequests(conversationID uuid.UUID) ([]domain.SpeakerRequest, error)
	SetRequestStatus(request domain.SpeakerRequest, status domain.RequestStatus) error
}

type TurnRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewTurnRepository(db *badger.DB, log *slog.Logger) TurnRepository {
	return TurnRepository{db: db, log: log}
}

// requestKey orders pending requests by arrival time. The 19-digit
// padding keeps lexicographic order equal to chronological order, the
// UUID disambiguates same-nanosecond arrivals.
func requestKey(request domain.SpeakerRequest) []byte {
	return []byte(fmt.Sprintf("req:%s:%019d:%s",
		request.ConversationID,
		request.CreatedAt.UnixNano(),
		request.ID,
	))
}

func requestIndexKey(conversationID uuid.UUID, requester string) []byte {
	return []byte(fmt.Sprintf("reqidx:%s:%s", conversationID, requester))
}

// AddRequest appends a pending request to the conversation's queue.
// A requester with a request already pending gets ErrAlreadyRequested,
// the queue never holds the same person twice.
func (t TurnRepository) AddRequest(request domain.SpeakerRequest) error {
	bytes, err := json.Marshal(request)
	if err != nil {
		return err
	}
	return t.db.Update(func(txn *badger.Txn) error {
		indexKey := requestIndexKey(request.ConversationID, request.RequesterID)
		if _, err := txn.Get(indexKey); err == nil {
			return errors.ErrAlreadyRequested
		}
		if err := txn.Set(indexKey, requestKey(request)); err != nil {
			return err
		}
		return txn.Set(requestKey(request), bytes)
	})
}

// PendingRequests returns the queue in arrival order, oldest first.
func (t TurnRepository) PendingRequests(conversationID uuid.UUID) ([]domain.SpeakerRequest, error) {
	var requests []domain.SpeakerRequest
	err := t.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("req:%s:", conversationID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var request domain.SpeakerRequest
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &request)
			})
			if err != nil {
				return err
			}
			requests = append(requests, request)
		}
		return nil
	})
	return requests, err
}

// SetRequestStatus settles a pending request. The settled record moves
// under "reqdone:" for audit so the pending scan stays proportional to
// what is actually waiting.
func (t TurnRepository) SetRequestStatus(request domain.SpeakerRequest, status domain.RequestStatus) error {
	request.Status = status
	bytes, err := json.Marshal(request)
	if err != nil {
		return err
	}
	return t.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(requestKey(request)); err != nil {
			return err
		}
		if err := txn.Delete(requestIndexKey(request.ConversationID, request.RequesterID)); err != nil {
			return err
		}
		settledKey := fmt.Sprintf("reqdone:%s:%019d:%s",
			request.ConversationID, request.CreatedAt.UnixNano(), request.ID)
		return txn.Set([]byte(settledKey), bytes)
	})
}
