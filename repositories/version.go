//go:generate go run go.uber.org/mock/mockgen -source=version.go -destination=../mocks/mock_version_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"emolab/concurrency"
	"emolab/domain"
	"emolab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IVersionRepository interface {
	Append(messageID uuid.UUID, facets domain.Facets, expectedPrior int) (domain.MessageVersion, error)
	Latest(messageID uuid.UUID) (domain.MessageVersion, error)
	List(messageID uuid.UUID) ([]domain.MessageVersion, error)
	ApproveLatest(messageID uuid.UUID, expectedNumber int) (domain.MessageVersion, error)
	AddRefinement(refinement domain.Refinement) error
	ListRefinements(messageID uuid.UUID) ([]domain.Refinement, error)
}

// VersionRepository stores the append-only version history of a message.
// Numbers start at 1 and never skip; the per-message lock makes the
// read-latest-then-write sequence atomic against concurrent appends.
type VersionRepository struct {
	db    *badger.DB
	log   *slog.Logger
	locks *concurrency.KeyedMutex
}

func NewVersionRepository(db *badger.DB, log *slog.Logger) *VersionRepository {
	return &VersionRepository{db: db, log: log, locks: concurrency.NewKeyedMutex()}
}

// versionKey pads the number to six digits so a forward prefix scan
// returns versions in order and a reverse seek lands on the latest.
func versionKey(messageID uuid.UUID, number int) []byte {
	return []byte(fmt.Sprintf("ver:%s:%06d", messageID, number))
}

// Append writes the next version of a message. The caller states which
// version it saw last; if another append won the race in the meantime
// the write is refused with ErrStaleVersion instead of silently
// stacking a version nobody reviewed.
func (v *VersionRepository) Append(messageID uuid.UUID, facets domain.Facets, expectedPrior int) (domain.MessageVersion, error) {
	v.locks.Lock(messageID.String())
	defer v.locks.Unlock(messageID.String())

	latest := 0
	if current, err := v.Latest(messageID); err == nil {
		// A history whose tip is approved is frozen, the writer raced an
		// approval and must see the final state.
		if current.Approved {
			return domain.MessageVersion{}, errors.ErrStaleVersion
		}
		latest = current.Number
	} else if err != errors.ErrNotFound {
		return domain.MessageVersion{}, err
	}
	if latest != expectedPrior {
		return domain.MessageVersion{}, errors.ErrStaleVersion
	}

	version := domain.MessageVersion{
		ID:        uuid.New(),
		MessageID: messageID,
		Number:    latest + 1,
		Facets:    facets,
		CreatedAt: time.Now().UTC(),
	}
	bytes, err := json.Marshal(version)
	if err != nil {
		return domain.MessageVersion{}, err
	}
	err = v.db.Update(func(txn *badger.Txn) error {
		return txn.Set(versionKey(messageID, version.Number), bytes)
	})
	if err != nil {
		return domain.MessageVersion{}, err
	}
	return version, nil
}

// Latest finds the highest version with a single reverse seek past the
// end of the message's key range.
func (v *VersionRepository) Latest(messageID uuid.UUID) (domain.MessageVersion, error) {
	var version domain.MessageVersion
	found := false
	err := v.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("ver:%s:", messageID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(append(prefix, []byte("999999")...))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		found = true
		return it.Item().Value(func(value []byte) error {
			return json.Unmarshal(value, &version)
		})
	})
	if err != nil {
		return domain.MessageVersion{}, err
	}
	if !found {
		return domain.MessageVersion{}, errors.ErrNotFound
	}
	return version, nil
}

func (v *VersionRepository) List(messageID uuid.UUID) ([]domain.MessageVersion, error) {
	var versions []domain.MessageVersion
	err := v.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("ver:%s:", messageID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var version domain.MessageVersion
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &version)
			})
			if err != nil {
				return err
			}
			versions = append(versions, version)
		}
		return nil
	})
	return versions, err
}

// ApproveLatest freezes the history at the version the caller reviewed.
// Under the message lock it verifies the tip is still the expected number;
// a concurrent refinement that slipped in first wins and the approval is
// refused with ErrStaleVersion. Approving an already frozen history is
// ErrAlreadyPublished.
func (v *VersionRepository) ApproveLatest(messageID uuid.UUID, expectedNumber int) (domain.MessageVersion, error) {
	v.locks.Lock(messageID.String())
	defer v.locks.Unlock(messageID.String())

	latest, err := v.Latest(messageID)
	if err != nil {
		return domain.MessageVersion{}, err
	}
	if latest.Approved {
		return domain.MessageVersion{}, errors.ErrAlreadyPublished
	}
	// Zero means the caller accepts whatever the latest version is.
	if expectedNumber != 0 && latest.Number != expectedNumber {
		return domain.MessageVersion{}, errors.ErrStaleVersion
	}

	latest.Approved = true
	bytes, err := json.Marshal(latest)
	if err != nil {
		return domain.MessageVersion{}, err
	}
	err = v.db.Update(func(txn *badger.Txn) error {
		return txn.Set(versionKey(messageID, latest.Number), bytes)
	})
	if err != nil {
		return domain.MessageVersion{}, err
	}
	return latest, nil
}

// AddRefinement keeps the author's steering comments alongside the
// version history. They explain why version N+1 exists.
func (v *VersionRepository) AddRefinement(refinement domain.Refinement) error {
	bytes, err := json.Marshal(refinement)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("ref:%s:%019d:%s",
		refinement.MessageID, refinement.CreatedAt.UnixNano(), refinement.ID)
	return v.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

func (v *VersionRepository) ListRefinements(messageID uuid.UUID) ([]domain.Refinement, error) {
	var refinements []domain.Refinement
	err := v.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("ref:%s:", messageID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var refinement domain.Refinement
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &refinement)
			})
			if err != nil {
				return err
			}
			refinements = append(refinements, refinement)
		}
		return nil
	})
	return refinements, err
}
