package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-rag/backend/pkg/config"
)

func TestHashingEmbedderDeterministic(t *testing.T) {
	e := NewHashingEmbedder(384)

	a, err := e.Embed(context.Background(), []string{"refund policy for returns"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"refund policy for returns"})
	require.NoError(t, err)

	assert.Equal(t, a[0], b[0])
}

func TestHashingEmbedderUnitLength(t *testing.T) {
	e := NewHashingEmbedder(384)

	vecs, err := e.Embed(context.Background(), []string{
		"items may be exchanged within 30 days",
		"store credit never expires",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	for _, vec := range vecs {
		var sum float64
		for _, x := range vec {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	}
}

func TestHashingEmbedderSimilarTextScoresHigher(t *testing.T) {
	e := NewHashingEmbedder(384)

	vecs, err := e.Embed(context.Background(), []string{
		"what is the refund window for returns",
		"refunds are accepted within the return window",
		"shipping carriers deliver on weekdays only",
	})
	require.NoError(t, err)

	related := dot(vecs[0], vecs[1])
	unrelated := dot(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
}

func TestHashingEmbedderEmptyText(t *testing.T) {
	e := NewHashingEmbedder(64)

	vecs, err := e.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Len(t, vecs[0], 64)
	for _, x := range vecs[0] {
		assert.Zero(t, x)
	}
}

func TestNewFromConfigRejectsUnknownProvider(t *testing.T) {
	_, err := NewFromConfig(configFor("nonsense"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNewFromConfigOpenAIRequiresKey(t *testing.T) {
	_, err := NewFromConfig(configFor("openai"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func configFor(provider string) config.EmbeddingConfig {
	return config.EmbeddingConfig{Provider: provider, Dimension: 384}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
