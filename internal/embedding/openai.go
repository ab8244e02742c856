package embedding

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/pkg/circuitbreaker"
	"github.com/policy-rag/backend/pkg/logger"
	"github.com/policy-rag/backend/pkg/retry"
)

const (
	openAIBatchSize      = 100
	openAIEmbedDimension = 1536
	openAIRequestTimeout = 30 * time.Second
)

// OpenAIEmbedder calls the OpenAI embeddings API in batches, with retry and
// a circuit breaker around every request.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	breaker *circuitbreaker.CircuitBreaker
}

func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		breaker: circuitbreaker.New("openai-embeddings", circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			Logger:           logger.GetLogger(),
		}),
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += openAIBatchSize {
		end := start + openAIBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", start, err)
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, openAIRequestTimeout)
	defer cancel()

	var resp openai.EmbeddingResponse
	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = logger.GetLogger()

	err := retry.Do(reqCtx, retryCfg, func() error {
		return e.breaker.Execute(reqCtx, func() error {
			var callErr error
			resp, callErr = e.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
				Input: texts,
				Model: openai.EmbeddingModel(e.model),
			})
			return callErr
		})
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		normalize(vec)
		vectors[item.Index] = vec
	}

	logger.Debug("Embedded batch via OpenAI",
		zap.Int("texts", len(texts)),
		zap.String("model", e.model),
	)

	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension() int { return openAIEmbedDimension }

func (e *OpenAIEmbedder) ModelName() string { return e.model }
