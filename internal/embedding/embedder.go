package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/policy-rag/backend/pkg/config"
)

// ErrUnavailable means the configured provider could not be constructed,
// for example a missing API key. Treated as fatal at startup.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Embedder turns text into fixed-dimension vectors. Implementations must
// return one vector per input, in input order, all of the same dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ModelName() string
}

// NewFromConfig selects the provider by name. The redis cache decorator is
// applied by the caller so this package stays free of cache wiring.
func NewFromConfig(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "", "hashing":
		return NewHashingEmbedder(cfg.Dimension), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: openai provider requires an API key", ErrUnavailable)
		}
		return NewOpenAIEmbedder(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrUnavailable, cfg.Provider)
	}
}

// normalize scales v to unit L2 length in place so inner product equals
// cosine similarity. Zero vectors are left untouched.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
