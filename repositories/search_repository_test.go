package repositories

import (
	"testing"
	"time"

	"emolab/domain"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func Test_Search_Scoped_To_Conversation(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repo := NewSearchRepository(blugeWriter, log, lo.ToPtr(10), 10)

	// Given facets indexed in two different conversations
	conversationA, conversationB := uuid.New(), uuid.New()
	messageInA := uuid.New()
	req.NoError(repo.Index(conversationA, messageInA, domain.Facets{
		Synopsis:   "She feels the deadline pressure is dismissed",
		Summary:    "Two sprint deadlines slipped because estimates were cut",
		Contention: "The word lazy is a trigger",
	}))
	req.NoError(repo.Index(conversationB, uuid.New(), domain.Facets{
		Synopsis:   "Budget deadline concerns",
		Summary:    "Quarterly budget deadline moved up",
		Contention: "None",
	}))
	req.NoError(repo.Flush())
	time.Sleep(50 * time.Millisecond)

	// When searching inside conversation A only
	hits, total, err := repo.SearchPaginated(ctx, "deadline", conversationA, 0)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal(messageInA, hits[0].MessageID)
}

func Test_Search_Matches_Any_Facet(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repo := NewSearchRepository(blugeWriter, log, lo.ToPtr(10), 10)
	conversationID := uuid.New()
	messageID := uuid.New()
	req.NoError(repo.Index(conversationID, messageID, domain.Facets{
		Synopsis:   "He wants recognition",
		Summary:    "The refactor shipped without credit",
		Contention: "Sarcasm about overtime",
	}))
	req.NoError(repo.Flush())
	time.Sleep(50 * time.Millisecond)

	for _, query := range []string{"recognition", "refactor", "sarcasm"} {
		hits, total, err := repo.SearchPaginated(ctx, query, conversationID, 0)
		req.NoError(err)
		req.Equal(uint64(1), total, "query %q", query)
		req.Equal(messageID, hits[0].MessageID)
	}

	hits, total, err := repo.SearchPaginated(ctx, "unrelated gibberish", conversationID, 0)
	req.NoError(err)
	req.Zero(total)
	req.Empty(hits)
}

func Test_Search_AutoFlush_On_BatchSize(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := database.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	// Batch size of 2, third insert triggers nothing extra
	repo := NewSearchRepository(blugeWriter, log, lo.ToPtr(10), 2)
	conversationID := uuid.New()
	for i := 0; i < 2; i++ {
		req.NoError(repo.Index(conversationID, uuid.New(), domain.Facets{
			Synopsis:   "shared topic",
			Summary:    "s",
			Contention: "c",
		}))
	}
	time.Sleep(50 * time.Millisecond)

	// No explicit Flush, the batch threshold already pushed them
	_, total, err := repo.SearchPaginated(ctx, "shared", conversationID, 0)
	req.NoError(err)
	req.Equal(uint64(2), total)
}
