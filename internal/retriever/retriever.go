package retriever

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/embedding"
	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/internal/vector"
	"github.com/policy-rag/backend/pkg/logger"
)

const DefaultTopK = 5

// Retriever embeds a query and returns the most similar stored chunks.
type Retriever struct {
	embedder embedding.Embedder
	store    vector.Store
	topK     int
}

// Stats summarizes the retrieval corpus for the stats endpoint.
type Stats struct {
	TotalChunks        int    `json:"total_chunks"`
	IndexSize          int    `json:"index_size"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	ModelName          string `json:"model_name"`
}

func New(embedder embedding.Embedder, store vector.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		topK:     topK,
	}
}

// Search returns up to k chunks ranked by similarity, highest first. k <= 0
// falls back to the configured default. An empty query returns no results
// rather than embedding whitespace.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if k <= 0 {
		k = r.topK
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.store.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	logger.Debug("Retrieval completed",
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)

	return results, nil
}

func (r *Retriever) TopK() int { return r.topK }

func (r *Retriever) Stats() Stats {
	return Stats{
		TotalChunks:        r.store.Size(),
		IndexSize:          r.store.Size(),
		EmbeddingDimension: r.embedder.Dimension(),
		ModelName:          r.embedder.ModelName(),
	}
}
