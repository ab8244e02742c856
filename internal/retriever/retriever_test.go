package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-rag/backend/internal/embedding"
	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/internal/vector/flat"
)

func newFixture(t *testing.T, texts map[string]string) *Retriever {
	t.Helper()

	embedder := embedding.NewHashingEmbedder(128)
	store, err := flat.NewStore(t.TempDir(), 128)
	require.NoError(t, err)

	var chunks []models.Chunk
	var raw []string
	i := 0
	for id, text := range texts {
		chunks = append(chunks, models.Chunk{
			ID:      id,
			Source:  "policies.txt",
			Ordinal: i,
			Text:    text,
			Page:    "N/A",
		})
		raw = append(raw, text)
		i++
	}

	vectors, err := embedder.Embed(context.Background(), raw)
	require.NoError(t, err)
	require.NoError(t, store.Add(context.Background(), chunks, vectors))

	return New(embedder, store, 5)
}

func TestSearchReturnsMostRelevantFirst(t *testing.T) {
	r := newFixture(t, map[string]string{
		"doc_p.txt_2_chunk_0": "Refunds are processed within 15 days of the return request.",
		"doc_p.txt_2_chunk_1": "Gift cards are shipped by standard mail and arrive in a week.",
	})

	results, err := r.Search(context.Background(), "how long do refunds take", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc_p.txt_2_chunk_0", results[0].ChunkID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearchEmptyQuery(t *testing.T) {
	r := newFixture(t, map[string]string{
		"doc_p.txt_1_chunk_0": "Exchanges require a receipt.",
	})

	results, err := r.Search(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchDefaultsK(t *testing.T) {
	r := newFixture(t, map[string]string{
		"doc_p.txt_1_chunk_0": "Exchanges require a receipt.",
	})

	results, err := r.Search(context.Background(), "receipt", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStats(t *testing.T) {
	r := newFixture(t, map[string]string{
		"doc_p.txt_2_chunk_0": "Refunds are processed within 15 days.",
		"doc_p.txt_2_chunk_1": "Gift cards never expire.",
	})

	stats := r.Stats()
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, 2, stats.IndexSize)
	assert.Equal(t, 128, stats.EmbeddingDimension)
	assert.Equal(t, "hashing-v1", stats.ModelName)
}
