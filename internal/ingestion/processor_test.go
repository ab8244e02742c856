package ingestion

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-rag/backend/internal/chunker"
	"github.com/policy-rag/backend/internal/embedding"
	"github.com/policy-rag/backend/internal/storage/sqlite"
	"github.com/policy-rag/backend/internal/vector/flat"
)

func newTestProcessor(t *testing.T) (*Processor, *flat.Store, *sqlite.Client) {
	t.Helper()

	dir := t.TempDir()

	db, err := sqlite.NewClient(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	embedder := embedding.NewHashingEmbedder(64)
	store, err := flat.NewStore(filepath.Join(dir, "vectors"), 64)
	require.NoError(t, err)

	p := NewProcessor(chunker.New(700, 10), embedder, store, db, nil)
	return p, store, db
}

func TestIngestDocument(t *testing.T) {
	p, store, db := newTestProcessor(t)

	result, err := p.IngestDocument(context.Background(), "returns.txt",
		"Returns are accepted within 15 days of purchase.")
	require.NoError(t, err)

	assert.Equal(t, "doc_returns.txt_1", result.DocumentID)
	assert.Equal(t, 1, result.ChunksCreated)
	assert.Equal(t, 1, store.Size())

	doc, err := db.GetDocument(result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "returns.txt", doc.Filename)
	assert.Equal(t, 1, doc.ChunkCount)

	count, err := db.CountChunks()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestDocumentChunkIDFormat(t *testing.T) {
	p, store, _ := newTestProcessor(t)
	ctx := context.Background()

	result, err := p.IngestDocument(ctx, "policy.txt",
		"Paragraph one about returns.\n\nParagraph two about exchanges.")
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.ChunksCreated, 1)

	// Chunk ids embed the document id and the ordinal.
	embedder := embedding.NewHashingEmbedder(64)
	vecs, err := embedder.Embed(ctx, []string{"returns"})
	require.NoError(t, err)

	hits, err := store.Search(ctx, vecs[0], result.ChunksCreated)
	require.NoError(t, err)
	for _, hit := range hits {
		assert.Regexp(t, `^doc_policy\.txt_\d+_chunk_\d+$`, hit.ChunkID)
		assert.Equal(t, "policy.txt", hit.Source)
		assert.Equal(t, "N/A", hit.Page)
	}
}

func TestIngestEmptyDocumentFails(t *testing.T) {
	p, store, _ := newTestProcessor(t)

	_, err := p.IngestDocument(context.Background(), "empty.txt", "   \n\n  ")
	assert.Error(t, err)
	assert.Zero(t, store.Size())
}

func TestIngestBatchPartialFailure(t *testing.T) {
	p, store, _ := newTestProcessor(t)

	results := p.IngestBatch(context.Background(), []BatchItem{
		{Filename: "good.txt", Text: "Refunds are issued within 15 days."},
		{Filename: "bad.txt", Text: ""},
		{Filename: "also-good.txt", Text: "Exchanges require a receipt."},
	})

	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[1].Error)
	assert.Empty(t, results[2].Error)
	assert.Equal(t, 2, store.Size())
}
