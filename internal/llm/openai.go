package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/pkg/circuitbreaker"
	"github.com/policy-rag/backend/pkg/config"
	"github.com/policy-rag/backend/pkg/logger"
	"github.com/policy-rag/backend/pkg/retry"
)

// OpenAIGenerator answers via the OpenAI chat completions API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	breaker     *circuitbreaker.CircuitBreaker
}

func NewOpenAIGenerator(cfg config.LLMConfig) *OpenAIGenerator {
	model := cfg.Model
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		breaker: circuitbreaker.New("openai-chat", circuitbreaker.Config{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			Logger:           logger.GetLogger(),
		}),
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var answer string
	retryCfg := retry.DefaultConfig()
	retryCfg.Logger = logger.GetLogger()

	err := retry.Do(reqCtx, retryCfg, func() error {
		return g.breaker.Execute(reqCtx, func() error {
			resp, callErr := g.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
				Model:       g.model,
				Temperature: g.temperature,
				MaxTokens:   g.maxTokens,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
			})
			if callErr != nil {
				return callErr
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("empty completion response")
			}
			answer = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("openai generation failed: %w", err)
	}

	logger.Debug("Answer generated via OpenAI",
		zap.String("model", g.model),
		zap.Int("answer_length", len(answer)),
	)

	return answer, nil
}

func (g *OpenAIGenerator) ModelName() string { return g.model }
