package prompt

import (
	"fmt"
	"strings"

	"github.com/policy-rag/backend/internal/storage/models"
)

// outOfScopeKeywords trigger the scope gate. Matching is plain lowercase
// substring containment, an approximate heuristic rather than a semantic
// classifier; upgrading it would change evaluation results.
var outOfScopeKeywords = []string{
	"legal advice", "lawyer", "sue", "lawsuit", "attorney",
	"medical advice", "diagnosis", "prescription", "doctor",
}

const scopeRedirect = `I can only answer questions about the store's policies, including returns, exchanges, warranties, shipping, and general store information.

For questions outside of store policies, please:
- Contact customer service for specific account or order inquiries
- Consult appropriate professionals for legal or medical matters

How can I help you with the store's policies today?`

// BuildResult is the prompt builder's output. When OutOfScope is set, Prompt
// is empty and Redirect carries the fixed answer; generation must be skipped.
type BuildResult struct {
	Prompt     string
	OutOfScope bool
	Redirect   string
}

// Build assembles the generation prompt from the question, retrieved chunks,
// and optional web snippets under the selected template. The scope gate runs
// first and is independent of the template.
func Build(question string, chunks []models.RetrievedChunk, snippets []models.WebSnippet, template Template) BuildResult {
	if IsOutOfScope(question) {
		return BuildResult{OutOfScope: true, Redirect: scopeRedirect}
	}

	context := BuildContext(chunks, snippets)

	var b strings.Builder
	b.WriteString(template.preamble())
	b.WriteString("\n\n")

	if context != "" {
		b.WriteString("Context from policy documents:\n")
		b.WriteString(context)
		b.WriteString("\n\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\n")

	if context == "" {
		b.WriteString(noContextNote)
		b.WriteString("\n\n")
	}

	b.WriteString(template.directives())

	return BuildResult{Prompt: b.String()}
}

// IsOutOfScope reports whether the question trips the keyword gate.
func IsOutOfScope(question string) bool {
	lower := strings.ToLower(question)
	for _, keyword := range outOfScopeKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// BuildContext formats retrieved chunks as labeled document blocks separated
// by "---", with web snippets appended under a separate section:
//
//	[Document 1: policy.txt]
//	Return policy text...
//
//	---
//	[Document 2: shipping.txt]
//	...
func BuildContext(chunks []models.RetrievedChunk, snippets []models.WebSnippet) string {
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("[Document %d: %s]\n%s\n", i+1, chunk.Source, chunk.Text))
	}
	context := strings.Join(parts, "\n---\n")

	if len(snippets) == 0 {
		return context
	}

	var web strings.Builder
	web.WriteString("[Web Search Results]\n")
	for i, snippet := range snippets {
		fmt.Fprintf(&web, "%d. %s\n%s\nURL: %s\n\n", i+1, snippet.Title, snippet.Snippet, snippet.URL)
	}

	if context == "" {
		return strings.TrimRight(web.String(), "\n")
	}
	return context + "\n\n---\n\n" + strings.TrimRight(web.String(), "\n")
}
