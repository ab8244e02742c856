package milvus

import (
	"context"
	"fmt"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/internal/vector"
	"github.com/policy-rag/backend/pkg/logger"
)

// Store backs the vector store interface with a Milvus collection. Vectors
// must arrive normalized; the index uses the inner-product metric so scores
// stay comparable with the flat backend.
type Store struct {
	client         client.Client
	collectionName string
	dimension      int

	mu   sync.RWMutex
	size int
}

func NewStore(endpoint, collectionName string, dimension int) (*Store, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	s := &Store{
		client:         c,
		collectionName: collectionName,
		dimension:      dimension,
	}

	if err := s.ensureCollection(context.Background()); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("Milvus vector store initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
		zap.Int("dimension", dimension),
	)

	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	has, err := s.client.HasCollection(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !has {
		schema := &entity.Schema{
			CollectionName: s.collectionName,
			Description:    "Store policy chunk embeddings",
			Fields: []*entity.Field{
				{
					Name:       "chunk_id",
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "128"},
				},
				{
					Name:     "embedding",
					DataType: entity.FieldTypeFloatVector,
					TypeParams: map[string]string{
						"dim": fmt.Sprintf("%d", s.dimension),
					},
				},
				{
					Name:       "text",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "4096"},
				},
				{
					Name:       "source",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "512"},
				},
				{
					Name:       "page",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "32"},
				},
				{
					Name:     "ordinal",
					DataType: entity.FieldTypeInt64,
				},
			},
		}

		if err := s.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collectionName, "embedding", idx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := s.client.LoadCollection(ctx, s.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	stats, err := s.client.GetCollectionStatistics(ctx, s.collectionName)
	if err == nil {
		if rows, ok := stats["row_count"]; ok {
			fmt.Sscanf(rows, "%d", &s.size)
		}
	}

	return nil
}

func (s *Store) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return vector.ErrLengthMismatch
	}
	if len(chunks) == 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return vector.ErrDimensionMismatch
		}
	}

	chunkIDs := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	pages := make([]string, len(chunks))
	ordinals := make([]int64, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		texts[i] = chunk.Text
		sources[i] = chunk.Source
		pages[i] = chunk.Page
		ordinals[i] = int64(chunk.Ordinal)
	}

	_, err := s.client.Insert(
		ctx,
		s.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", s.dimension, vectors),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("page", pages),
		entity.NewColumnInt64("ordinal", ordinals),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	s.mu.Lock()
	s.size += len(chunks)
	s.mu.Unlock()

	logger.Info("Chunks inserted into Milvus", zap.Int("count", len(chunks)))
	return nil
}

func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.RetrievedChunk, error) {
	if len(query) != s.dimension {
		return nil, vector.ErrDimensionMismatch
	}
	if k <= 0 {
		return nil, nil
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := s.client.Search(
		ctx,
		s.collectionName,
		[]string{},
		"",
		[]string{"chunk_id", "text", "source", "page"},
		[]entity.Vector{entity.FloatVector(query)},
		"embedding",
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]models.RetrievedChunk, 0, k)
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn("chunk_id")
		textCol := sr.Fields.GetColumn("text")
		sourceCol := sr.Fields.GetColumn("source")
		pageCol := sr.Fields.GetColumn("page")

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.Get(i)
			text, _ := textCol.Get(i)
			source, _ := sourceCol.Get(i)
			page, _ := pageCol.Get(i)

			results = append(results, models.RetrievedChunk{
				ChunkID: chunkID.(string),
				Text:    text.(string),
				Source:  source.(string),
				Page:    page.(string),
				Score:   sr.Scores[i],
			})
		}
	}

	return results, nil
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *Store) Dimension() int { return s.dimension }

func (s *Store) Flush(ctx context.Context) error {
	if err := s.client.Flush(ctx, s.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
