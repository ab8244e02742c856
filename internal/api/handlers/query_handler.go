package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/metrics"
	"github.com/policy-rag/backend/internal/rag"
	"github.com/policy-rag/backend/internal/storage/models"
	"github.com/policy-rag/backend/internal/storage/sqlite"
	"github.com/policy-rag/backend/pkg/logger"
)

type QueryHandler struct {
	pipeline *rag.Pipeline
	db       *sqlite.Client
}

func NewQueryHandler(pipeline *rag.Pipeline, db *sqlite.Client) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, db: db}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Question       string `json:"question"`
		TopK           int    `json:"top_k"`
		UseWebSearch   bool   `json:"use_web_search"`
		PromptTemplate string `json:"prompt_template"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	response, err := h.pipeline.Answer(c.Context(), rag.QueryRequest{
		Question:     req.Question,
		TopK:         req.TopK,
		UseWebSearch: req.UseWebSearch,
		Template:     req.PromptTemplate,
	})
	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(response)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	records, err := h.db.GetQueryHistory(limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
		"count":   len(records),
	})
}

func (h *QueryHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		QueryID string `json:"query_id"`
		Helpful bool   `json:"helpful"`
		Comment string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.QueryID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query_id is required",
		})
	}

	err := h.db.StoreFeedback(&models.Feedback{
		QueryID: req.QueryID,
		Helpful: req.Helpful,
		Comment: req.Comment,
	})
	if err != nil {
		logger.Error("Failed to store feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	if req.Helpful {
		metrics.UserSatisfaction.WithLabelValues("true").Inc()
	} else {
		metrics.UserSatisfaction.WithLabelValues("false").Inc()
	}

	return c.JSON(fiber.Map{
		"message": "Feedback recorded",
	})
}

func (h *QueryHandler) GetStats(c *fiber.Ctx) error {
	return c.JSON(h.pipeline.Retriever().Stats())
}
