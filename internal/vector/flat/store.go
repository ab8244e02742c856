package flat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/internal/vector"
	"github.com/policy-rag/backend/pkg/logger"
)

const (
	indexFilename  = "index.json"
	chunksFilename = "chunks.json"
)

// Store is the file-backed flat vector store. Vectors and chunk payloads are
// kept in two parallel slices and persisted as two JSON files stamped with a
// shared version id; loading refuses files whose stamps differ. One RWMutex
// serializes writers against the paired structures.
type Store struct {
	dir       string
	dimension int

	mu     sync.RWMutex
	index  *index
	chunks []models.Chunk
}

type indexFile struct {
	Version   string      `json:"version"`
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
}

type chunksFile struct {
	Version string         `json:"version"`
	Chunks  []models.Chunk `json:"chunks"`
}

// NewStore loads the persisted pair from dir, or starts empty when the files
// are absent. A version mismatch between the two files is reported and the
// store starts empty rather than serving misaligned data.
func NewStore(dir string, dimension int) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vector store directory: %w", err)
	}

	s := &Store{
		dir:       dir,
		dimension: dimension,
		index:     newIndex(dimension),
	}

	if err := s.load(); err != nil {
		if errors.Is(err, vector.ErrVersionMismatch) {
			logger.Warn("Discarding persisted vector store",
				zap.String("dir", dir),
				zap.Error(err),
			)
			s.index = newIndex(dimension)
			s.chunks = nil
			return s, nil
		}
		return nil, err
	}

	logger.Info("Vector store loaded",
		zap.String("dir", dir),
		zap.Int("chunks", len(s.chunks)),
		zap.Int("dimension", dimension),
	)

	return s, nil
}

func (s *Store) load() error {
	indexPath := filepath.Join(s.dir, indexFilename)
	chunksPath := filepath.Join(s.dir, chunksFilename)

	indexData, indexErr := os.ReadFile(indexPath)
	chunksData, chunksErr := os.ReadFile(chunksPath)

	if os.IsNotExist(indexErr) && os.IsNotExist(chunksErr) {
		return nil
	}
	// One file present without the other is as broken as a stamp mismatch.
	if os.IsNotExist(indexErr) || os.IsNotExist(chunksErr) {
		return fmt.Errorf("%w: one of the paired files is missing", vector.ErrVersionMismatch)
	}
	if indexErr != nil {
		return fmt.Errorf("failed to read index file: %w", indexErr)
	}
	if chunksErr != nil {
		return fmt.Errorf("failed to read chunks file: %w", chunksErr)
	}

	var ixf indexFile
	if err := json.Unmarshal(indexData, &ixf); err != nil {
		return fmt.Errorf("failed to parse index file: %w", err)
	}
	var chf chunksFile
	if err := json.Unmarshal(chunksData, &chf); err != nil {
		return fmt.Errorf("failed to parse chunks file: %w", err)
	}

	if ixf.Version != chf.Version {
		return fmt.Errorf("%w: index %s, chunks %s", vector.ErrVersionMismatch, ixf.Version, chf.Version)
	}
	if len(ixf.Vectors) != len(chf.Chunks) {
		return fmt.Errorf("%w: %d vectors vs %d chunks", vector.ErrVersionMismatch, len(ixf.Vectors), len(chf.Chunks))
	}
	if ixf.Dimension != s.dimension {
		return fmt.Errorf("%w: persisted dimension %d, configured %d", vector.ErrVersionMismatch, ixf.Dimension, s.dimension)
	}

	if err := s.index.add(ixf.Vectors); err != nil {
		return fmt.Errorf("%w: persisted vectors are malformed", vector.ErrVersionMismatch)
	}
	s.chunks = chf.Chunks
	return nil
}

func (s *Store) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return vector.ErrLengthMismatch
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate before mutating so a bad vector cannot leave the pair
	// misaligned.
	for _, v := range vectors {
		if len(v) != s.dimension {
			return vector.ErrDimensionMismatch
		}
	}

	if err := s.index.add(vectors); err != nil {
		return err
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.index.search(query, k)
	if err != nil {
		return nil, err
	}

	results := make([]models.RetrievedChunk, len(hits))
	for i, h := range hits {
		chunk := s.chunks[h.position]
		results[i] = models.RetrievedChunk{
			ChunkID: chunk.ID,
			Text:    chunk.Text,
			Source:  chunk.Source,
			Page:    chunk.Page,
			Score:   h.score,
		}
	}
	return results, nil
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.size()
}

func (s *Store) Dimension() int { return s.dimension }

// Flush writes both files atomically under one fresh version stamp: each is
// written to a temp file and renamed into place, index first.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version := uuid.New().String()

	ixf := indexFile{
		Version:   version,
		Dimension: s.dimension,
		Vectors:   s.index.vectors,
	}
	chf := chunksFile{
		Version: version,
		Chunks:  s.chunks,
	}

	if err := writeJSON(filepath.Join(s.dir, indexFilename), ixf); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	if err := writeJSON(filepath.Join(s.dir, chunksFilename), chf); err != nil {
		return fmt.Errorf("failed to persist chunks: %w", err)
	}

	logger.Debug("Vector store flushed",
		zap.String("version", version),
		zap.Int("chunks", len(s.chunks)),
	)
	return nil
}

func (s *Store) Close() error {
	return s.Flush(context.Background())
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
