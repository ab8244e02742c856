package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	in := "Returns  are   accepted.\r\n\r\n\r\n\r\nItems\tmust be   unworn.  "
	out := Normalize(in)
	assert.Equal(t, "Returns are accepted.\n\nItems must be unworn.", out)
}

func TestChunkEmptyInput(t *testing.T) {
	c := New(700, 10)
	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\n  \t "))
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := New(700, 10)
	chunks := c.Chunk("Refunds are issued within 15 days of purchase.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Refunds are issued within 15 days of purchase.", chunks[0])
}

func TestChunkRespectsMaxSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Each item may be returned within fifteen days of delivery. ")
	}
	c := New(200, 20)
	chunks := c.Chunk(b.String())
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqualf(t, len(chunk), 200, "chunk %d exceeds max size", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestChunkOverlapPrefix(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Store credit is valid for one year from the issue date. ")
	}
	overlap := 15
	c := New(150, overlap)
	chunks := c.Chunk(b.String())
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		want := prev
		if len(prev) > overlap {
			want = prev[len(prev)-overlap:]
		}
		assert.Truef(t, strings.HasPrefix(chunks[i], want),
			"chunk %d does not start with the tail of chunk %d", i, i-1)
	}
}

func TestChunkParagraphKeptTogetherWhenItFits(t *testing.T) {
	para1 := "Returns are accepted within 15 days."
	para2 := "Exchanges require the original receipt."
	c := New(700, 10)
	chunks := c.Chunk(para1 + "\n\n" + para2)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], para1)
	assert.Contains(t, chunks[0], para2)
}

func TestChunkOversizedSentenceEmittedWhole(t *testing.T) {
	sentence := strings.Repeat("warranty ", 40) + "coverage."
	c := New(100, 10)
	chunks := c.Chunk(sentence)
	require.NotEmpty(t, chunks)
	joined := strings.Join(chunks, "")
	assert.Contains(t, joined, "coverage.")
	for _, chunk := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestChunkSentenceFallbackForLongParagraph(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("Defective items qualify for a full refund. ")
	}
	c := New(120, 0)
	chunks := c.Chunk(b.String())
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 120)
	}
}

func TestChunkOverlapNeverExceedsMaxSize(t *testing.T) {
	// A single sentence sized between the packing budget and the cap used to
	// pick up the full overlap prefix and overflow the cap.
	sentence := strings.Repeat("word ", 18) + "ends."
	require.Len(t, sentence, 95)

	c := New(100, 10)
	chunks := c.Chunk("Intro paragraph sits here first.\n\n" + sentence)
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqualf(t, len(chunk), 100, "chunk %d exceeds max size", i)
	}
}

func TestNewClampsBadParameters(t *testing.T) {
	c := New(0, -5)
	assert.Equal(t, DefaultMaxSize, c.MaxSize())
	assert.Equal(t, DefaultOverlap, c.Overlap())

	c = New(100, 100)
	assert.Equal(t, 50, c.Overlap())
}
