package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-rag/backend/internal/storage/models"
)

func retrieved() []models.RetrievedChunk {
	return []models.RetrievedChunk{
		{ChunkID: "doc_returns.txt_2_chunk_0", Source: "returns.txt", Text: "a", Score: 0.9},
		{ChunkID: "doc_returns.txt_2_chunk_1", Source: "returns.txt", Text: "b", Score: 0.7},
		{ChunkID: "doc_shipping.txt_1_chunk_0", Source: "shipping.txt", Text: "c", Score: 0.5},
	}
}

func TestExtractCitationsOnePerSourceInRankOrder(t *testing.T) {
	citations := ExtractCitations(retrieved(), nil)

	require.Len(t, citations, 2)
	assert.Equal(t, "returns.txt (chunk: doc_returns.txt_2_chunk_0)", citations[0])
	assert.Equal(t, "shipping.txt (chunk: doc_shipping.txt_1_chunk_0)", citations[1])
}

func TestExtractCitationsAppendsWebURLs(t *testing.T) {
	snippets := []models.WebSnippet{
		{Title: "t", Snippet: "s", URL: "https://example.com/policy"},
		{Title: "no url"},
	}
	citations := ExtractCitations(retrieved(), snippets)

	require.Len(t, citations, 3)
	assert.Equal(t, "https://example.com/policy", citations[2])
}

func TestFinalizeAppendsSourcesAndDisclaimer(t *testing.T) {
	answer, citations := Finalize("You have 15 days to return items.", retrieved(), nil)

	assert.Contains(t, answer, "Sources:\n- returns.txt (chunk: doc_returns.txt_2_chunk_0)")
	assert.Contains(t, answer, "Policy Information")
	assert.Len(t, citations, 2)
}

func TestFinalizeSkipsSourcesWhenAnswerAlreadyCites(t *testing.T) {
	raw := "Per returns.txt (chunk: doc_returns.txt_2_chunk_0), you have 15 days."
	answer, _ := Finalize(raw, retrieved(), nil)

	assert.NotContains(t, answer, "Sources:")
	assert.Contains(t, answer, "Policy Information")
}

func TestFinalizeDisclaimerAppendedOnce(t *testing.T) {
	answer, _ := Finalize("Answer.", retrieved(), nil)
	again, _ := Finalize(answer, retrieved(), nil)

	assert.Equal(t, 1, strings.Count(again, "Policy Information"))
}

func TestAnswerBodyStripsAppendedSections(t *testing.T) {
	raw := "You have 15 days to return items."
	answer, _ := Finalize(raw, retrieved(), nil)

	assert.Equal(t, raw, AnswerBody(answer))
}

func TestAnswerBodyLeavesUnadornedAnswerAlone(t *testing.T) {
	raw := "Per returns.txt (chunk: doc_returns.txt_2_chunk_0), you have 15 days."
	assert.Equal(t, raw, AnswerBody(raw))
}

func TestFinalizeNeverFailsOnEmptyInputs(t *testing.T) {
	answer, citations := Finalize("", nil, nil)
	assert.Contains(t, answer, "Policy Information")
	assert.Empty(t, citations)
}
