package flat

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/internal/vector"
)

func testChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:         "doc_returns.txt_3_chunk_" + string(rune('0'+i)),
			DocumentID: "doc_returns.txt_3",
			Source:     "returns.txt",
			Ordinal:    i,
			Text:       "chunk text",
			Page:       "N/A",
		}
	}
	return chunks
}

func TestAddAndSearchRanksByInnerProduct(t *testing.T) {
	s, err := NewStore(t.TempDir(), 3)
	require.NoError(t, err)

	chunks := testChunks(3)
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.6, 0.8, 0},
	}
	require.NoError(t, s.Add(context.Background(), chunks, vectors))

	results, err := s.Search(context.Background(), []float32{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, chunks[1].ID, results[0].ChunkID)
	assert.Equal(t, chunks[2].ID, results[1].ChunkID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchReturnsFewerWhenStoreIsSmall(t *testing.T) {
	s, err := NewStore(t.TempDir(), 2)
	require.NoError(t, err)

	require.NoError(t, s.Add(context.Background(), testChunks(1), [][]float32{{1, 0}}))

	results, err := s.Search(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchEmptyStore(t *testing.T) {
	s, err := NewStore(t.TempDir(), 2)
	require.NoError(t, err)

	results, err := s.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAddRejectsMismatchedLengths(t *testing.T) {
	s, err := NewStore(t.TempDir(), 2)
	require.NoError(t, err)

	err = s.Add(context.Background(), testChunks(2), [][]float32{{1, 0}})
	assert.ErrorIs(t, err, vector.ErrLengthMismatch)
	assert.Zero(t, s.Size())
}

func TestAddRejectsWrongDimensionWithoutPartialWrite(t *testing.T) {
	s, err := NewStore(t.TempDir(), 2)
	require.NoError(t, err)

	err = s.Add(context.Background(), testChunks(2), [][]float32{{1, 0}, {1, 0, 0}})
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
	assert.Zero(t, s.Size())
}

func TestSearchRejectsWrongQueryDimension(t *testing.T) {
	s, err := NewStore(t.TempDir(), 2)
	require.NoError(t, err)
	require.NoError(t, s.Add(context.Background(), testChunks(1), [][]float32{{1, 0}}))

	_, err = s.Search(context.Background(), []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
}

func TestFlushAndReload(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir, 2)
	require.NoError(t, err)
	require.NoError(t, s.Add(context.Background(), testChunks(2), [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, s.Flush(context.Background()))

	reloaded, err := NewStore(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Size())

	results, err := reloaded.Search(context.Background(), []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, testChunks(2)[1].ID, results[0].ChunkID)
}

func TestVersionMismatchStartsEmpty(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir, 2)
	require.NoError(t, err)
	require.NoError(t, s.Add(context.Background(), testChunks(2), [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, s.Flush(context.Background()))

	// Corrupt the pairing by rewriting the chunks file under a new stamp.
	chunksPath := filepath.Join(dir, chunksFilename)
	data, err := os.ReadFile(chunksPath)
	require.NoError(t, err)
	var chf chunksFile
	require.NoError(t, json.Unmarshal(data, &chf))
	chf.Version = "other-version"
	data, err = json.Marshal(chf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(chunksPath, data, 0644))

	reloaded, err := NewStore(dir, 2)
	require.NoError(t, err)
	assert.Zero(t, reloaded.Size())
}

func TestMissingPairedFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(dir, 2)
	require.NoError(t, err)
	require.NoError(t, s.Add(context.Background(), testChunks(1), [][]float32{{1, 0}}))
	require.NoError(t, s.Flush(context.Background()))

	require.NoError(t, os.Remove(filepath.Join(dir, indexFilename)))

	reloaded, err := NewStore(dir, 2)
	require.NoError(t, err)
	assert.Zero(t, reloaded.Size())
}
