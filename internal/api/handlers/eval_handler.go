package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/evaluation"
	"github.com/policy-rag/backend/pkg/logger"
)

type EvalHandler struct {
	evaluator *evaluation.Evaluator
}

func NewEvalHandler(evaluator *evaluation.Evaluator) *EvalHandler {
	return &EvalHandler{evaluator: evaluator}
}

// RunEvaluation scores the pipeline against labeled questions; an empty
// body runs the built-in question set.
func (h *EvalHandler) RunEvaluation(c *fiber.Ctx) error {
	var req struct {
		Questions []evaluation.TestQuestion `json:"questions"`
	}

	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	report, err := h.evaluator.Evaluate(c.Context(), req.Questions)
	if err != nil {
		logger.Error("Evaluation run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Evaluation run failed",
		})
	}

	return c.JSON(report)
}
