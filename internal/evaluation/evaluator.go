package evaluation

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/rag"
	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/internal/storage/sqlite"
	"github.com/policy-rag/backend/pkg/logger"
)

// TestQuestion is one labeled evaluation case.
type TestQuestion struct {
	Question         string   `json:"question"`
	ExpectedKeywords []string `json:"expected_keywords"`
	Category         string   `json:"category,omitempty"`
}

// QuestionResult holds per-question metrics.
type QuestionResult struct {
	Question     string  `json:"question"`
	Category     string  `json:"category,omitempty"`
	NumRetrieved int     `json:"num_retrieved"`
	PrecisionAtK float64 `json:"precision_at_k"`
	RecallAtK    float64 `json:"recall_at_k"`
	AvgScore     float64 `json:"avg_score"`
	Faithfulness float64 `json:"faithfulness"`
	Answer       string  `json:"answer"`
}

// Report aggregates a full evaluation run.
type Report struct {
	RunID           string           `json:"run_id"`
	TotalQuestions  int              `json:"total_questions"`
	Results         []QuestionResult `json:"results"`
	AvgPrecisionAtK float64          `json:"avg_precision_at_k"`
	AvgRecallAtK    float64          `json:"avg_recall_at_k"`
	AvgScore        float64          `json:"avg_score"`
	AvgFaithfulness float64          `json:"avg_faithfulness"`
}

// DefaultQuestions is the built-in test set used when a run supplies none.
var DefaultQuestions = []TestQuestion{
	{
		Question:         "What is the store's return policy?",
		ExpectedKeywords: []string{"return", "policy", "refund", "exchange"},
		Category:         "returns",
	},
	{
		Question:         "How long do I have to return an item?",
		ExpectedKeywords: []string{"return", "time", "days", "period"},
		Category:         "returns",
	},
	{
		Question:         "What items are eligible for return?",
		ExpectedKeywords: []string{"return", "eligible", "items", "products"},
		Category:         "returns",
	},
}

// Evaluator measures retrieval and grounding quality against labeled
// questions. Read-only against the pipeline; never mutates the index.
type Evaluator struct {
	pipeline *rag.Pipeline
	db       *sqlite.Client
	topK     int
}

func New(pipeline *rag.Pipeline, db *sqlite.Client, topK int) *Evaluator {
	if topK <= 0 {
		topK = 5
	}
	return &Evaluator{pipeline: pipeline, db: db, topK: topK}
}

// Evaluate runs every question through retrieval and generation and
// aggregates the metrics. Per-question failures score zero instead of
// aborting the run.
func (e *Evaluator) Evaluate(ctx context.Context, questions []TestQuestion) (*Report, error) {
	if len(questions) == 0 {
		questions = DefaultQuestions
	}

	report := &Report{
		RunID:          uuid.New().String(),
		TotalQuestions: len(questions),
		Results:        make([]QuestionResult, 0, len(questions)),
	}

	for _, tc := range questions {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result := QuestionResult{Question: tc.Question, Category: tc.Category}

		resp, err := e.pipeline.Answer(ctx, rag.QueryRequest{
			Question: tc.Question,
			TopK:     e.topK,
		})
		if err != nil {
			logger.Warn("Evaluation question failed",
				zap.String("question", tc.Question),
				zap.Error(err),
			)
			report.Results = append(report.Results, result)
			continue
		}

		chunks := resp.RetrievedChunks
		result.NumRetrieved = len(chunks)
		result.PrecisionAtK = precisionAtK(chunks, tc.ExpectedKeywords)
		result.RecallAtK = recallAtK(chunks, tc.ExpectedKeywords)
		result.AvgScore = avgScore(chunks)
		result.Faithfulness = Faithfulness(rag.AnswerBody(resp.Answer), chunks)
		result.Answer = truncate(resp.Answer, 200)

		report.Results = append(report.Results, result)

		if e.db != nil {
			err := e.db.InsertEvaluationResult(&models.EvaluationResult{
				RunID:        report.RunID,
				Question:     tc.Question,
				Category:     tc.Category,
				NumRetrieved: result.NumRetrieved,
				PrecisionAtK: result.PrecisionAtK,
				RecallAtK:    result.RecallAtK,
				AvgScore:     result.AvgScore,
				Faithfulness: result.Faithfulness,
				CreatedAt:    time.Now(),
			})
			if err != nil {
				logger.Error("Failed to persist evaluation result", zap.Error(err))
			}
		}
	}

	aggregate(report)

	logger.Info("Evaluation run completed",
		zap.String("run_id", report.RunID),
		zap.Int("questions", report.TotalQuestions),
		zap.Float64("avg_precision", report.AvgPrecisionAtK),
		zap.Float64("avg_faithfulness", report.AvgFaithfulness),
	)

	return report, nil
}

// precisionAtK is the fraction of retrieved chunks containing at least one
// expected keyword.
func precisionAtK(chunks []models.RetrievedChunk, keywords []string) float64 {
	if len(chunks) == 0 || len(keywords) == 0 {
		return 0
	}

	relevant := 0
	for _, chunk := range chunks {
		text := strings.ToLower(chunk.Text)
		for _, keyword := range keywords {
			if strings.Contains(text, strings.ToLower(keyword)) {
				relevant++
				break
			}
		}
	}
	return float64(relevant) / float64(len(chunks))
}

// recallAtK is the fraction of expected keywords found anywhere in the
// retrieved set.
func recallAtK(chunks []models.RetrievedChunk, keywords []string) float64 {
	if len(chunks) == 0 || len(keywords) == 0 {
		return 0
	}

	var combined strings.Builder
	for _, chunk := range chunks {
		combined.WriteString(strings.ToLower(chunk.Text))
		combined.WriteByte(' ')
	}
	text := combined.String()

	found := 0
	for _, keyword := range keywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			found++
		}
	}
	return float64(found) / float64(len(keywords))
}

func avgScore(chunks []models.RetrievedChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, chunk := range chunks {
		sum += float64(chunk.Score)
	}
	return sum / float64(len(chunks))
}

// Faithfulness measures grounding as term overlap between the answer and
// the concatenated retrieved context, normalized so that half the answer's
// terms matching scores 1.0, plus a 0.2 bonus when the answer carries a
// citation marker. Clamped to [0, 1]. An approximate lexical heuristic, not
// a semantic judgment.
func Faithfulness(answer string, chunks []models.RetrievedChunk) float64 {
	if answer == "" || len(chunks) == 0 {
		return 0
	}

	answerTerms := termSet(answer)
	if len(answerTerms) == 0 {
		return 0
	}

	contextTerms := make(map[string]bool)
	for _, chunk := range chunks {
		for term := range termSet(chunk.Text) {
			contextTerms[term] = true
		}
	}
	if len(contextTerms) == 0 {
		return 0
	}

	overlap := 0
	for term := range answerTerms {
		if contextTerms[term] {
			overlap++
		}
	}

	score := float64(overlap) / (float64(len(answerTerms)) * 0.5)
	if score > 1 {
		score = 1
	}

	if hasCitation(answer, chunks) {
		score += 0.2
		if score > 1 {
			score = 1
		}
	}

	return score
}

func hasCitation(answer string, chunks []models.RetrievedChunk) bool {
	for _, chunk := range chunks {
		if chunk.ChunkID != "" && strings.Contains(answer, chunk.ChunkID) {
			return true
		}
		if chunk.Source != "" && strings.Contains(answer, chunk.Source) {
			return true
		}
	}
	return false
}

func termSet(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		terms[term] = true
	}
	return terms
}

func aggregate(report *Report) {
	if len(report.Results) == 0 {
		return
	}

	for _, r := range report.Results {
		report.AvgPrecisionAtK += r.PrecisionAtK
		report.AvgRecallAtK += r.RecallAtK
		report.AvgScore += r.AvgScore
		report.AvgFaithfulness += r.Faithfulness
	}

	n := float64(len(report.Results))
	report.AvgPrecisionAtK /= n
	report.AvgRecallAtK /= n
	report.AvgScore /= n
	report.AvgFaithfulness /= n
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
