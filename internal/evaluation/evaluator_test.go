package evaluation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/policy-rag/backend/internal/rag"
	"github.com/policy-rag/backend/internal/storage/models"
)

func chunksFromTexts(texts ...string) []models.RetrievedChunk {
	chunks := make([]models.RetrievedChunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.RetrievedChunk{
			ChunkID: "doc_policy.txt_2_chunk_0",
			Source:  "policy.txt",
			Text:    text,
			Score:   0.5,
		}
	}
	return chunks
}

func TestPrecisionAtK(t *testing.T) {
	chunks := chunksFromTexts(
		"Returns are accepted within 15 days.",
		"Gift cards ship by standard mail.",
	)
	keywords := []string{"return", "refund"}

	assert.InDelta(t, 0.5, precisionAtK(chunks, keywords), 1e-9)
}

func TestPrecisionAtKEmpty(t *testing.T) {
	assert.Zero(t, precisionAtK(nil, []string{"return"}))
	assert.Zero(t, precisionAtK(chunksFromTexts("text"), nil))
}

func TestRecallAtKCountsKeywordsAcrossSet(t *testing.T) {
	chunks := chunksFromTexts(
		"Returns are accepted within 15 days.",
		"Refunds go back to the original payment method.",
	)
	// "return" and "refund" both appear somewhere in the set, "warranty"
	// does not.
	keywords := []string{"return", "refund", "warranty"}

	assert.InDelta(t, 2.0/3.0, recallAtK(chunks, keywords), 1e-9)
}

func TestAvgScore(t *testing.T) {
	chunks := []models.RetrievedChunk{
		{Score: 0.8},
		{Score: 0.4},
	}
	assert.InDelta(t, 0.6, avgScore(chunks), 1e-9)
}

func TestFaithfulnessFullyGrounded(t *testing.T) {
	chunks := chunksFromTexts("returns are accepted within 15 days of purchase")
	answer := "returns are accepted within 15 days"

	// All answer terms appear in context, so the ratio saturates at 1.0.
	assert.InDelta(t, 1.0, Faithfulness(answer, chunks), 1e-9)
}

func TestFaithfulnessUngrounded(t *testing.T) {
	chunks := chunksFromTexts("shipping takes five business days")
	answer := "quantum entanglement explains everything"

	assert.Less(t, Faithfulness(answer, chunks), 0.3)
}

func TestFaithfulnessCitationBonus(t *testing.T) {
	chunks := chunksFromTexts("shipping takes five business days")
	withoutCitation := "orders arrive after about a week usually"
	withCitation := withoutCitation + " [Source: policy.txt]"

	base := Faithfulness(withoutCitation, chunks)
	bonus := Faithfulness(withCitation, chunks)
	assert.Greater(t, bonus, base)
	assert.LessOrEqual(t, bonus, 1.0)
}

func TestFaithfulnessBonusIgnoresAppendedSources(t *testing.T) {
	chunks := chunksFromTexts("shipping takes five business days")
	raw := "orders arrive after about a week usually"

	// The post-processor appends a Sources block naming every source, which
	// must not count as the model citing anything.
	finalized, _ := rag.Finalize(raw, chunks, nil)
	assert.Equal(t, raw, rag.AnswerBody(finalized))
	assert.InDelta(t, Faithfulness(raw, chunks), Faithfulness(rag.AnswerBody(finalized), chunks), 1e-9)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 300)
	out := truncate(s, 201)

	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len(out), 204)
}

func TestFaithfulnessEmptyInputs(t *testing.T) {
	assert.Zero(t, Faithfulness("", chunksFromTexts("text")))
	assert.Zero(t, Faithfulness("answer", nil))
}

func TestAggregate(t *testing.T) {
	report := &Report{
		Results: []QuestionResult{
			{PrecisionAtK: 1.0, RecallAtK: 0.5, AvgScore: 0.8, Faithfulness: 0.6},
			{PrecisionAtK: 0.5, RecallAtK: 1.0, AvgScore: 0.4, Faithfulness: 1.0},
		},
	}
	aggregate(report)

	assert.InDelta(t, 0.75, report.AvgPrecisionAtK, 1e-9)
	assert.InDelta(t, 0.75, report.AvgRecallAtK, 1e-9)
	assert.InDelta(t, 0.6, report.AvgScore, 1e-9)
	assert.InDelta(t, 0.8, report.AvgFaithfulness, 1e-9)
}
