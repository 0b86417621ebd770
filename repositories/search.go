//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_repository.go -package=mocks
package repositories

import (
	"context"
	"log/slog"
	"sync"

	"emolab/domain"

	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/index"
	"github.com/google/uuid"
)

type ISearchRepository interface {
	Index(conversationID uuid.UUID, messageID uuid.UUID, facets domain.Facets) error
	Flush() error
	SearchPaginated(ctx context.Context, query string, conversationID uuid.UUID, offset int) ([]SearchHit, uint64, error)
}

type SearchHit struct {
	MessageID uuid.UUID
	Score     float64
}

// SearchRepository maintains a full-text index over published facets.
// Documents are buffered in a batch and flushed either explicitly or
// once batchSize entries pile up.
type SearchRepository struct {
	writer    *bluge.Writer
	log       *slog.Logger
	limit     *int
	batchSize int

	mu      sync.Mutex
	batch   *index.Batch
	pending int
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger, limit *int, batchSize int) *SearchRepository {
	return &SearchRepository{
		writer:    writer,
		log:       log,
		limit:     limit,
		batchSize: batchSize,
		batch:     bluge.NewBatch(),
	}
}

// Index queues the facets of a published message for search. Only
// approved content ever reaches this index, drafts stay private.
func (s *SearchRepository) Index(conversationID uuid.UUID, messageID uuid.UUID, facets domain.Facets) error {
	doc := bluge.NewDocument(messageID.String()).
		AddField(bluge.NewKeywordField("conversation_id", conversationID.String())).
		AddField(bluge.NewTextField("synopsis", facets.Synopsis)).
		AddField(bluge.NewTextField("summary", facets.Summary)).
		AddField(bluge.NewTextField("contention", facets.Contention))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch.Update(doc.ID(), doc)
	s.pending++
	if s.pending >= s.batchSize {
		return s.flushLocked()
	}
	return nil
}

// Flush pushes any buffered documents to the index.
func (s *SearchRepository) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *SearchRepository) flushLocked() error {
	if s.pending == 0 {
		return nil
	}
	if err := s.writer.Batch(s.batch); err != nil {
		return err
	}
	s.batch.Reset()
	s.pending = 0
	return nil
}

// SearchPaginated matches the query against all three facet fields of
// a conversation's published messages. It returns one page of hits and
// the total match count.
func (s *SearchRepository) SearchPaginated(ctx context.Context, query string, conversationID uuid.UUID, offset int) ([]SearchHit, uint64, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			s.log.Warn("closing search reader", slog.Any("error", err))
		}
	}()

	boolean := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(conversationID.String()).SetField("conversation_id")).
		AddShould(
			bluge.NewMatchQuery(query).SetField("synopsis"),
			bluge.NewMatchQuery(query).SetField("summary"),
			bluge.NewMatchQuery(query).SetField("contention"),
		).
		SetMinShould(1)

	limit := 10
	if s.limit != nil {
		limit = *s.limit
	}
	request := bluge.NewTopNSearch(limit, boolean).
		SetFrom(offset).
		WithStandardAggregations()

	dmi, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var hits []SearchHit
	for {
		match, err := dmi.Next()
		if err != nil {
			return nil, 0, err
		}
		if match == nil {
			break
		}
		var messageID uuid.UUID
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				messageID, _ = uuid.Parse(string(value))
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, SearchHit{MessageID: messageID, Score: match.Score})
	}
	return hits, dmi.Aggregations().Count(), nil
}
