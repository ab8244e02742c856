package rag

import (
	"fmt"
	"strings"

	"github.com/policy-rag/backend/internal/storage/models"
)

// policyDisclaimer is appended to every visible answer.
const policyDisclaimer = `

---
Policy Information: This information is based on the store's current policies as documented. Policies may change, and specific situations may vary. For the most up-to-date information or questions about your specific order, please contact customer service.`

// ExtractCitations derives the citation list from the chunks and snippets
// that were supplied to the prompt. Citations record input provenance, not
// claims about what the model actually used. Each source appears once, in
// retrieval rank order, followed by web URLs.
func ExtractCitations(chunks []models.RetrievedChunk, snippets []models.WebSnippet) []string {
	citations := make([]string, 0, len(chunks)+len(snippets))
	seen := make(map[string]bool)

	for _, chunk := range chunks {
		if seen[chunk.Source] {
			continue
		}
		seen[chunk.Source] = true
		citations = append(citations, fmt.Sprintf("%s (chunk: %s)", chunk.Source, chunk.ChunkID))
	}

	for _, snippet := range snippets {
		if snippet.URL != "" {
			citations = append(citations, snippet.URL)
		}
	}

	return citations
}

// Finalize appends the citation list (when the answer does not already carry
// one of the citations) and the fixed policy disclaimer. Pure text
// composition; never fails.
func Finalize(answer string, chunks []models.RetrievedChunk, snippets []models.WebSnippet) (string, []string) {
	citations := ExtractCitations(chunks, snippets)
	answer = addCitations(answer, citations)
	answer = addDisclaimer(answer)
	return answer, citations
}

// AnswerBody strips the appended Sources block and disclaimer, returning the
// text the generator (or fallback) actually produced. The evaluator scores
// this body so grounding metrics are not inflated by the fixed appendices.
func AnswerBody(answer string) string {
	answer = strings.TrimSuffix(answer, policyDisclaimer)
	if i := strings.LastIndex(answer, "\n\nSources:\n"); i >= 0 {
		answer = answer[:i]
	}
	return answer
}

func addCitations(answer string, citations []string) string {
	if len(citations) == 0 {
		return answer
	}
	for _, citation := range citations {
		if strings.Contains(answer, citation) {
			return answer
		}
	}

	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\nSources:\n")
	for i, citation := range citations {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(citation)
	}
	return b.String()
}

func addDisclaimer(answer string) string {
	if strings.Contains(answer, policyDisclaimer) {
		return answer
	}
	return answer + policyDisclaimer
}
