package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policy-rag/backend/internal/storage/models"
)

func sampleChunks() []models.RetrievedChunk {
	return []models.RetrievedChunk{
		{
			ChunkID: "doc_returns.txt_2_chunk_0",
			Text:    "Returns are accepted within 15 days with original packaging.",
			Source:  "returns.txt",
			Page:    "N/A",
			Score:   0.82,
		},
		{
			ChunkID: "doc_shipping.txt_1_chunk_0",
			Text:    "Standard shipping takes 5 to 7 business days.",
			Source:  "shipping.txt",
			Page:    "N/A",
			Score:   0.41,
		},
	}
}

func TestScopeGateShortCircuitsRegardlessOfTemplate(t *testing.T) {
	question := "Can you give me legal advice about my lawsuit?"

	for _, template := range []Template{TemplateStrict, TemplateBalanced, TemplatePermissive} {
		result := Build(question, sampleChunks(), nil, template)
		assert.True(t, result.OutOfScope, "template %s", template)
		assert.Empty(t, result.Prompt, "template %s", template)
		assert.Contains(t, result.Redirect, "store's policies", "template %s", template)
	}
}

func TestScopeGateCaseInsensitive(t *testing.T) {
	assert.True(t, IsOutOfScope("Should I see a DOCTOR about this?"))
	assert.True(t, IsOutOfScope("my Attorney says otherwise"))
	assert.False(t, IsOutOfScope("What is the return window?"))
}

func TestBuildContextFormat(t *testing.T) {
	context := BuildContext(sampleChunks(), nil)

	assert.Contains(t, context, "[Document 1: returns.txt]\nReturns are accepted within 15 days with original packaging.")
	assert.Contains(t, context, "[Document 2: shipping.txt]")
	assert.Contains(t, context, "\n---\n")
}

func TestBuildContextWithWebSnippets(t *testing.T) {
	snippets := []models.WebSnippet{
		{Title: "Holiday returns", Snippet: "Extended window in December.", URL: "https://example.com/holiday"},
	}
	context := BuildContext(sampleChunks(), snippets)

	assert.Contains(t, context, "[Web Search Results]")
	assert.Contains(t, context, "Holiday returns")
	assert.Contains(t, context, "https://example.com/holiday")
	// Document blocks come before the web section.
	assert.Less(t, strings.Index(context, "[Document 1"), strings.Index(context, "[Web Search Results]"))
}

func TestBuildIncludesQuestionAndContext(t *testing.T) {
	result := Build("How long do I have to return an item?", sampleChunks(), nil, TemplateBalanced)

	require.False(t, result.OutOfScope)
	assert.Contains(t, result.Prompt, "Question: How long do I have to return an item?")
	assert.Contains(t, result.Prompt, "Context from policy documents:")
	assert.Contains(t, result.Prompt, "Returns are accepted within 15 days")
	assert.Contains(t, result.Prompt, "Answer:")
}

func TestTemplatesDiffer(t *testing.T) {
	question := "What is the warranty period?"
	strict := Build(question, sampleChunks(), nil, TemplateStrict).Prompt
	balanced := Build(question, sampleChunks(), nil, TemplateBalanced).Prompt
	permissive := Build(question, sampleChunks(), nil, TemplatePermissive).Prompt

	assert.NotEqual(t, strict, balanced)
	assert.NotEqual(t, balanced, permissive)

	assert.Contains(t, strict, "ONLY")
	assert.Contains(t, strict, "insufficient information")
	assert.Contains(t, permissive, "general knowledge")
}

func TestBuildWithoutContextAddsNote(t *testing.T) {
	result := Build("What is the exchange policy?", nil, nil, TemplateBalanced)

	require.False(t, result.OutOfScope)
	assert.NotContains(t, result.Prompt, "Context from policy documents:")
	assert.Contains(t, result.Prompt, "contacting customer service")
}

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("")
	require.NoError(t, err)
	assert.Equal(t, TemplateBalanced, tmpl)

	tmpl, err = ParseTemplate("strict")
	require.NoError(t, err)
	assert.Equal(t, TemplateStrict, tmpl)

	_, err = ParseTemplate("aggressive")
	assert.Error(t, err)
}
