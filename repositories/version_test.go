package repositories

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"emolab/domain"
	"emolab/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testFacets(synopsis string) domain.Facets {
	return domain.Facets{
		Synopsis:   synopsis,
		Summary:    "the facts",
		Contention: "the triggers",
	}
}

func Test_Version_Append_Numbers_From_One(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewVersionRepository(db, slog.Default())
	messageID := uuid.New()

	first, err := repository.Append(messageID, testFacets("first"), 0)
	req.NoError(err)
	req.Equal(1, first.Number)

	second, err := repository.Append(messageID, testFacets("second"), 1)
	req.NoError(err)
	req.Equal(2, second.Number)

	latest, err := repository.Latest(messageID)
	req.NoError(err)
	req.Equal(2, latest.Number)
	req.Equal("second", latest.Facets.Synopsis)

	versions, err := repository.List(messageID)
	req.NoError(err)
	req.Len(versions, 2)
	req.Equal(1, versions[0].Number)
	req.Equal(2, versions[1].Number)
}

func Test_Version_Append_Stale_Expectation(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewVersionRepository(db, slog.Default())
	messageID := uuid.New()

	_, err := repository.Append(messageID, testFacets("first"), 0)
	req.NoError(err)

	// A writer that never saw version 1 loses
	_, err = repository.Append(messageID, testFacets("late"), 0)
	req.ErrorIs(err, errors.ErrStaleVersion)

	latest, err := repository.Latest(messageID)
	req.NoError(err)
	req.Equal(1, latest.Number)
}

func Test_Version_Concurrent_Appends_Stay_Gapless(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewVersionRepository(db, slog.Default())
	messageID := uuid.New()

	// Racing writers all claim to extend version 0; exactly one wins.
	var wg sync.WaitGroup
	winners := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			version, err := repository.Append(messageID, testFacets("race"), 0)
			if err == nil {
				winners <- version.Number
			}
		}()
	}
	wg.Wait()
	close(winners)

	var numbers []int
	for n := range winners {
		numbers = append(numbers, n)
	}
	req.Len(numbers, 1)
	req.Equal(1, numbers[0])

	versions, err := repository.List(messageID)
	req.NoError(err)
	req.Len(versions, 1)
}

func Test_Version_ApproveLatest(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewVersionRepository(db, slog.Default())
	messageID := uuid.New()

	version, err := repository.Append(messageID, testFacets("first"), 0)
	req.NoError(err)
	req.False(version.Approved)

	approved, err := repository.ApproveLatest(messageID, version.Number)
	req.NoError(err)
	req.True(approved.Approved)

	latest, err := repository.Latest(messageID)
	req.NoError(err)
	req.True(latest.Approved)
}

func Test_Version_ApproveLatest_Stale_And_Frozen(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewVersionRepository(db, slog.Default())
	messageID := uuid.New()

	_, err := repository.Append(messageID, testFacets("first"), 0)
	req.NoError(err)
	_, err = repository.Append(messageID, testFacets("second"), 1)
	req.NoError(err)

	// Approving version 1 after a refinement produced version 2
	_, err = repository.ApproveLatest(messageID, 1)
	req.ErrorIs(err, errors.ErrStaleVersion)

	_, err = repository.ApproveLatest(messageID, 2)
	req.NoError(err)

	// The frozen history rejects both a re-approval and a late append
	_, err = repository.ApproveLatest(messageID, 2)
	req.ErrorIs(err, errors.ErrAlreadyPublished)
	_, err = repository.Append(messageID, testFacets("late refinement"), 2)
	req.ErrorIs(err, errors.ErrStaleVersion)
}

func Test_Version_Refinements_In_Order(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewVersionRepository(db, slog.Default())
	messageID := uuid.New()

	at := time.Now().UTC()
	comments := []string{"too harsh", "closer, soften the ending"}
	for i, comment := range comments {
		refinement := domain.Refinement{
			ID:        uuid.New(),
			MessageID: messageID,
			Version:   i + 1,
			AuthorID:  "alice",
			Comment:   comment,
			CreatedAt: at.Add(time.Duration(i) * time.Second),
		}
		req.NoError(repository.AddRefinement(refinement))
	}

	refinements, err := repository.ListRefinements(messageID)
	req.NoError(err)
	req.Len(refinements, 2)
	req.Equal("too harsh", refinements[0].Comment)
	req.Equal("closer, soften the ending", refinements[1].Comment)
}

func Test_Version_Key_Order_Past_Three_Digits(t *testing.T) {
	req := require.New(t)
	messageID := uuid.New()

	// Byte order must follow numeric order across the three-digit boundary,
	// or Latest stops seeing appends past version 999.
	req.Equal(-1, bytes.Compare(versionKey(messageID, 999), versionKey(messageID, 1000)))
	req.Equal(-1, bytes.Compare(versionKey(messageID, 9), versionKey(messageID, 10)))

	db := openTestDB(t)
	repository := NewVersionRepository(db, slog.Default())
	for prior := 0; prior < 1002; prior++ {
		_, err := repository.Append(messageID, testFacets("v"), prior)
		req.NoError(err)
	}

	latest, err := repository.Latest(messageID)
	req.NoError(err)
	req.Equal(1002, latest.Number)
}
