package vector

import (
	"context"
	"errors"

	"github.com/policy-rag/backend/internal/storage/models"
)

var (
	// ErrDimensionMismatch means a vector's length does not match the store's
	// configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrLengthMismatch means Add was called with differing numbers of chunks
	// and vectors.
	ErrLengthMismatch = errors.New("chunk and vector counts differ")

	// ErrVersionMismatch means the persisted index and chunk files carry
	// different version stamps and cannot be trusted as a pair.
	ErrVersionMismatch = errors.New("persisted index and chunk store versions differ")
)

// Store holds chunk payloads alongside their embeddings and answers
// similarity queries. Positions are aligned: the vector at position i always
// belongs to the chunk at position i.
type Store interface {
	// Add appends chunks with their vectors. Either all entries are added or
	// none are.
	Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error

	// Search returns up to k chunks ranked by similarity to the query vector,
	// highest first. Fewer than k results are returned when the store holds
	// fewer entries.
	Search(ctx context.Context, vector []float32, k int) ([]models.RetrievedChunk, error)

	Size() int
	Dimension() int

	// Flush persists the current state where the backend supports it.
	Flush(ctx context.Context) error

	Close() error
}
