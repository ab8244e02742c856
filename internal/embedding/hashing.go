package embedding

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

const DefaultDimension = 384

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// HashingEmbedder is a local, deterministic embedder: each token is hashed
// into a bucket of a fixed-width vector (feature hashing) and the result is
// L2-normalized. It needs no network or API key, and identical text always
// produces identical vectors, which keeps retrieval reproducible in tests
// and in deployments without an embedding provider.
type HashingEmbedder struct {
	dimension int
}

func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashingEmbedder{dimension: dimension}
}

func (h *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		vectors[i] = h.embedOne(text)
	}
	return vectors, nil
}

func (h *HashingEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, h.dimension)

	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, token := range tokens {
		token = stem(token)
		hasher := fnv.New64a()
		hasher.Write([]byte(token))
		sum := hasher.Sum64()

		bucket := int(sum % uint64(h.dimension))
		// The bit above the bucket decides the sign, which spreads collisions
		// across positive and negative contributions.
		if (sum>>32)&1 == 1 {
			vec[bucket] += 1
		} else {
			vec[bucket] -= 1
		}
	}

	normalize(vec)
	return vec
}

// stem strips a trailing plural "s" so singular and plural forms of policy
// vocabulary ("return"/"returns", "day"/"days") land in the same bucket. A
// deliberately crude heuristic, not a real stemmer.
func stem(token string) string {
	if len(token) > 3 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") {
		return token[:len(token)-1]
	}
	return token
}

func (h *HashingEmbedder) Dimension() int { return h.dimension }

func (h *HashingEmbedder) ModelName() string { return "hashing-v1" }
