package rag

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-rag/backend/internal/chunker"
	"github.com/policy-rag/backend/internal/embedding"
	"github.com/policy-rag/backend/internal/ingestion"
	"github.com/policy-rag/backend/internal/retriever"
	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/internal/storage/sqlite"
	"github.com/policy-rag/backend/internal/vector/flat"
)

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", errors.New("backend unreachable")
}

func (failingGenerator) ModelName() string { return "failing" }

type fixture struct {
	pipeline  *Pipeline
	processor *ingestion.Processor
	db        *sqlite.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()

	db, err := sqlite.NewClient(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	embedder := embedding.NewHashingEmbedder(128)
	store, err := flat.NewStore(filepath.Join(dir, "vectors"), 128)
	require.NoError(t, err)

	ret := retriever.New(embedder, store, 5)
	chnk := chunker.New(700, 10)

	return &fixture{
		pipeline:  NewPipeline(ret, nil, nil, nil, db),
		processor: ingestion.NewProcessor(chnk, embedder, store, db, nil),
		db:        db,
	}
}

func TestEndToEndReturnWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.processor.IngestDocument(ctx, "returns.txt",
		"Returns: 15-day window, original packaging required.")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksCreated)
	assert.Equal(t, "doc_returns.txt_1", result.DocumentID)

	resp, err := f.pipeline.Answer(ctx, QueryRequest{
		Question: "How many days do I have to return an item?",
		TopK:     1,
	})
	require.NoError(t, err)

	require.Len(t, resp.RetrievedChunks, 1)
	assert.Greater(t, resp.RetrievedChunks[0].Score, float32(0))
	assert.Contains(t, resp.Answer, "15")
	require.NotEmpty(t, resp.Citations)
	assert.Contains(t, resp.Citations[0], "returns.txt")
	assert.Contains(t, resp.Answer, "contact customer service")
}

func TestAnswerOutOfScopeShortCircuits(t *testing.T) {
	f := newFixture(t)

	resp, err := f.pipeline.Answer(context.Background(), QueryRequest{
		Question: "Can you give me legal advice about my lawsuit?",
	})
	require.NoError(t, err)

	assert.True(t, resp.OutOfScope)
	assert.Empty(t, resp.RetrievedChunks)
	assert.Empty(t, resp.Citations)
	assert.Contains(t, resp.Answer, "store's policies")
	assert.Contains(t, resp.Answer, "Policy Information")
}

func TestAnswerEmptyIndexStillAnswers(t *testing.T) {
	f := newFixture(t)

	resp, err := f.pipeline.Answer(context.Background(), QueryRequest{
		Question: "What is the exchange policy?",
	})
	require.NoError(t, err)

	assert.Empty(t, resp.RetrievedChunks)
	assert.NotEmpty(t, resp.Answer)
	assert.Contains(t, resp.Answer, "customer service")
}

func TestAnswerProviderFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.processor.IngestDocument(ctx, "shipping.txt",
		"Standard shipping takes 5 to 7 business days.")
	require.NoError(t, err)

	f.pipeline.generator = failingGenerator{}

	resp, err := f.pipeline.Answer(ctx, QueryRequest{
		Question: "How long does shipping take?",
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "business days")
}

func TestFallbackAnswerTruncatesOnRuneBoundary(t *testing.T) {
	chunks := []models.RetrievedChunk{{
		ChunkID: "doc_policy.txt_1_chunk_0",
		Source:  "policy.txt",
		Text:    strings.Repeat("é", 1600),
	}}

	answer := fallbackAnswer(chunks, nil)
	assert.True(t, utf8.ValidString(answer))
	assert.Contains(t, answer, "...")
}

func TestAnswerRejectsUnknownTemplate(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Answer(context.Background(), QueryRequest{
		Question: "What is the return policy?",
		Template: "aggressive",
	})
	assert.Error(t, err)
}

func TestAnswerRecordsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.processor.IngestDocument(ctx, "returns.txt",
		"Returns: 15-day window, original packaging required.")
	require.NoError(t, err)

	resp, err := f.pipeline.Answer(ctx, QueryRequest{Question: "What is the return window?"})
	require.NoError(t, err)

	records, err := f.db.GetQueryHistory(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, resp.QueryID, records[0].ID)
	assert.Equal(t, "What is the return window?", records[0].Question)
	assert.Equal(t, "balanced", records[0].Template)
}
