package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/chunker"
	"github.com/policy-rag/backend/internal/embedding"
	"github.com/policy-rag/backend/internal/metrics"
	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/internal/storage/sqlite"
	"github.com/policy-rag/backend/internal/vector"
	"github.com/policy-rag/backend/pkg/logger"
)

// AnswerInvalidator wipes cached answers after the corpus changes.
type AnswerInvalidator interface {
	InvalidateAnswers(ctx context.Context) error
}

// Processor runs the ingestion flow: chunk the raw text, embed every chunk,
// append the chunk/vector pairs to the vector store, and persist the
// document record. A document is indexed completely or not at all.
type Processor struct {
	chunker  *chunker.Chunker
	embedder embedding.Embedder
	store    vector.Store
	db       *sqlite.Client
	cache    AnswerInvalidator
}

// Result reports one document's ingestion outcome.
type Result struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	Error         string `json:"error,omitempty"`
}

// BatchItem is one document in a batch ingest request.
type BatchItem struct {
	Filename string
	Text     string
}

func NewProcessor(c *chunker.Chunker, e embedding.Embedder, store vector.Store, db *sqlite.Client, cache AnswerInvalidator) *Processor {
	return &Processor{
		chunker:  c,
		embedder: e,
		store:    store,
		db:       db,
		cache:    cache,
	}
}

// IngestDocument indexes one document and returns its id and the number of
// chunks created. Re-ingesting the same filename creates new chunks; there
// is no deduplication.
func (p *Processor) IngestDocument(ctx context.Context, filename, text string) (*Result, error) {
	texts := p.chunker.Chunk(text)
	if len(texts) == 0 {
		return nil, fmt.Errorf("document %q produced no chunks", filename)
	}

	docID := fmt.Sprintf("doc_%s_%d", filename, len(texts))

	chunks := make([]models.Chunk, len(texts))
	for i, chunkText := range texts {
		chunks[i] = models.Chunk{
			ID:         fmt.Sprintf("%s_chunk_%d", docID, i),
			DocumentID: docID,
			Source:     filename,
			Ordinal:    i,
			Text:       chunkText,
			Page:       "N/A",
		}
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document %q: %w", filename, err)
	}

	// Add is all-or-nothing, so a failure here leaves the store untouched.
	if err := p.store.Add(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("failed to index document %q: %w", filename, err)
	}

	if err := p.store.Flush(ctx); err != nil {
		logger.Warn("Failed to flush vector store", zap.Error(err))
	}

	if p.db != nil {
		doc := &models.Document{
			ID:         docID,
			Filename:   filename,
			RawText:    text,
			ChunkCount: len(chunks),
			CreatedAt:  time.Now(),
		}
		if err := p.db.InsertDocument(doc); err != nil {
			logger.Error("Failed to persist document record", zap.Error(err))
		} else if err := p.db.InsertChunks(chunks); err != nil {
			logger.Error("Failed to persist chunk records", zap.Error(err))
		}
	}

	if p.cache != nil {
		if err := p.cache.InvalidateAnswers(ctx); err != nil {
			logger.Warn("Failed to invalidate answer cache", zap.Error(err))
		}
	}

	metrics.DocumentsIngested.Inc()
	metrics.ChunksIndexed.Set(float64(p.store.Size()))

	logger.Info("Document ingested",
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
	)

	return &Result{
		DocumentID:    docID,
		Filename:      filename,
		ChunksCreated: len(chunks),
	}, nil
}

// IngestBatch processes documents independently: one bad document is
// reported in its result and does not stop the rest.
func (p *Processor) IngestBatch(ctx context.Context, items []BatchItem) []Result {
	results := make([]Result, 0, len(items))

	for _, item := range items {
		select {
		case <-ctx.Done():
			results = append(results, Result{Filename: item.Filename, Error: ctx.Err().Error()})
			continue
		default:
		}

		res, err := p.IngestDocument(ctx, item.Filename, item.Text)
		if err != nil {
			results = append(results, Result{Filename: item.Filename, Error: err.Error()})
			continue
		}
		results = append(results, *res)
	}

	return results
}
