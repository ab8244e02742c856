package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/policy-rag/backend/pkg/circuitbreaker"
	"github.com/policy-rag/backend/pkg/config"
	"github.com/policy-rag/backend/pkg/logger"
	"github.com/policy-rag/backend/pkg/retry"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiGenerator answers via the Google Generative Language HTTP API.
type GeminiGenerator struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	breaker    *circuitbreaker.CircuitBreaker
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func NewGeminiGenerator(cfg config.LLMConfig) *GeminiGenerator {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &GeminiGenerator{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    geminiBaseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		breaker: circuitbreaker.New("gemini", circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			Logger:           logger.GetLogger(),
		}),
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	var answer string
	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = logger.GetLogger()

	err = retry.Do(ctx, retryCfg, func() error {
		return g.breaker.Execute(ctx, func() error {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if reqErr != nil {
				return reqErr
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-goog-api-key", g.apiKey)

			resp, callErr := g.httpClient.Do(req)
			if callErr != nil {
				return callErr
			}
			defer resp.Body.Close()

			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return readErr
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode, string(body))
			}

			var parsed geminiResponse
			if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil {
				return fmt.Errorf("failed to parse gemini response: %w", jsonErr)
			}
			if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
				return fmt.Errorf("unexpected gemini response format")
			}

			answer = parsed.Candidates[0].Content.Parts[0].Text
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	logger.Debug("Answer generated via Gemini",
		zap.String("model", g.model),
		zap.Int("answer_length", len(answer)),
	)

	return answer, nil
}

func (g *GeminiGenerator) ModelName() string { return g.model }
