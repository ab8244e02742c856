package rag

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/llm"
	"github.com/policy-rag/backend/internal/prompt"
	"github.com/policy-rag/backend/internal/retriever"
	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/internal/storage/sqlite"

	"github.com/policy-rag/backend/internal/metrics"
	"github.com/policy-rag/backend/pkg/logger"
	"github.com/policy-rag/backend/pkg/utils"
)

// Searcher supplies web snippets for queries that opt into web search.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.WebSnippet, error)
}

// AnswerCache holds finished responses keyed by query hash.
type AnswerCache interface {
	GetAnswer(ctx context.Context, queryHash string, response interface{}) (bool, error)
	SetAnswer(ctx context.Context, queryHash string, response interface{}) error
}

type QueryRequest struct {
	Question     string
	TopK         int
	UseWebSearch bool
	Template     string
}

type QueryResponse struct {
	QueryID         string                  `json:"query_id"`
	Answer          string                  `json:"answer"`
	Citations       []string                `json:"citations"`
	RetrievedChunks []models.RetrievedChunk `json:"retrieved_chunks"`
	WebResults      []models.WebSnippet     `json:"web_results,omitempty"`
	OutOfScope      bool                    `json:"out_of_scope"`
	Template        string                  `json:"template"`
	LatencyMS       int                     `json:"latency_ms"`
}

// Pipeline runs a query end to end: retrieval, optional web search, prompt
// assembly, generation, and post-processing. Generator, searcher, and cache
// may be nil; the pipeline degrades to extractive answers, no web context,
// and no caching respectively.
type Pipeline struct {
	retriever *retriever.Retriever
	generator llm.Generator
	searcher  Searcher
	cache     AnswerCache
	db        *sqlite.Client
}

func NewPipeline(r *retriever.Retriever, g llm.Generator, s Searcher, cache AnswerCache, db *sqlite.Client) *Pipeline {
	return &Pipeline{
		retriever: r,
		generator: g,
		searcher:  s,
		cache:     cache,
		db:        db,
	}
}

func (p *Pipeline) Answer(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	start := time.Now()

	template, err := prompt.ParseTemplate(req.Template)
	if err != nil {
		return nil, err
	}

	k := req.TopK
	if k <= 0 {
		k = p.retriever.TopK()
	}

	cacheKey := utils.HashString(fmt.Sprintf("%s|%s|%d|%t", req.Question, template, k, req.UseWebSearch))
	if p.cache != nil {
		var cached QueryResponse
		hit, cacheErr := p.cache.GetAnswer(ctx, cacheKey, &cached)
		if cacheErr != nil {
			logger.Warn("Answer cache lookup failed", zap.Error(cacheErr))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("answer").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("answer").Inc()
	}

	// The scope gate runs before retrieval: out-of-scope questions never
	// reach the embedder or the generator.
	if prompt.IsOutOfScope(req.Question) {
		metrics.ScopeGateTriggered.Inc()
		resp := &QueryResponse{
			QueryID:         uuid.New().String(),
			Answer:          addDisclaimer(prompt.Build(req.Question, nil, nil, template).Redirect),
			Citations:       []string{},
			RetrievedChunks: []models.RetrievedChunk{},
			OutOfScope:      true,
			Template:        string(template),
			LatencyMS:       int(time.Since(start).Milliseconds()),
		}
		p.record(resp, req.Question, false)
		metrics.QueryTotal.WithLabelValues("out_of_scope").Inc()
		return resp, nil
	}

	chunks, err := p.retriever.Search(ctx, req.Question, k)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	var snippets []models.WebSnippet
	webSearchUsed := false
	if req.UseWebSearch && p.searcher != nil {
		snippets, err = p.searcher.Search(ctx, req.Question, 0)
		if err != nil {
			// Web context is supplementary; a failed search degrades the
			// answer rather than failing the query.
			logger.Warn("Web search failed", zap.Error(err))
			snippets = nil
		} else {
			webSearchUsed = true
			metrics.WebSearchTriggered.Inc()
		}
	}

	built := prompt.Build(req.Question, chunks, snippets, template)

	raw := ""
	if p.generator != nil {
		raw, err = p.generator.Generate(ctx, built.Prompt)
		if err != nil {
			logger.Warn("Generation failed, using extractive fallback", zap.Error(err))
			raw = ""
		}
	}
	if raw == "" {
		raw = fallbackAnswer(chunks, snippets)
		metrics.GenerationFallbacks.Inc()
	}

	answer, citations := Finalize(raw, chunks, snippets)

	if len(chunks) > 0 {
		metrics.RetrievalScore.Observe(float64(chunks[0].Score))
	}
	metrics.RetrievalResultsCount.Observe(float64(len(chunks)))
	metrics.QueryDuration.WithLabelValues(string(template)).Observe(time.Since(start).Seconds())
	metrics.QueryTotal.WithLabelValues("success").Inc()

	resp := &QueryResponse{
		QueryID:         uuid.New().String(),
		Answer:          answer,
		Citations:       citations,
		RetrievedChunks: chunks,
		WebResults:      snippets,
		Template:        string(template),
		LatencyMS:       int(time.Since(start).Milliseconds()),
	}

	p.record(resp, req.Question, webSearchUsed)

	if p.cache != nil {
		if cacheErr := p.cache.SetAnswer(ctx, cacheKey, resp); cacheErr != nil {
			logger.Warn("Answer cache store failed", zap.Error(cacheErr))
		}
	}

	return resp, nil
}

// record persists the query trace. History failures are logged, not
// surfaced; the user already has their answer.
func (p *Pipeline) record(resp *QueryResponse, question string, webSearchUsed bool) {
	if p.db == nil {
		return
	}

	err := p.db.InsertQueryRecord(&models.QueryRecord{
		ID:             resp.QueryID,
		Question:       question,
		Template:       resp.Template,
		Answer:         resp.Answer,
		RetrievedCount: len(resp.RetrievedChunks),
		WebSearchUsed:  webSearchUsed,
		OutOfScope:     resp.OutOfScope,
		LatencyMS:      resp.LatencyMS,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		logger.Error("Failed to record query", zap.Error(err))
		return
	}

	for _, chunk := range resp.RetrievedChunks {
		err := p.db.InsertQuerySource(&models.QuerySource{
			QueryID: resp.QueryID,
			Source:  chunk.Source,
			ChunkID: chunk.ChunkID,
			Score:   float64(chunk.Score),
		})
		if err != nil {
			logger.Error("Failed to record query source", zap.Error(err))
		}
	}
}

// fallbackAnswer is the deterministic extractive answer used when no
// generation backend is configured or the provider call failed.
func fallbackAnswer(chunks []models.RetrievedChunk, snippets []models.WebSnippet) string {
	context := prompt.BuildContext(chunks, snippets)
	if context == "" {
		return "I don't have enough information in the store's policy documents to answer that question. Please contact customer service for assistance."
	}

	if len(context) > 1500 {
		cut := 1500
		for cut > 0 && !utf8.RuneStart(context[cut]) {
			cut--
		}
		context = context[:cut] + "..."
	}

	return "Based on the store's policy documents, here is the most relevant information:\n\n" + context
}

func (p *Pipeline) Retriever() *retriever.Retriever { return p.retriever }
