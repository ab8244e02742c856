package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/ingestion"
	"github.com/policy-rag/backend/internal/storage/sqlite"
	"github.com/policy-rag/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	db        *sqlite.Client
}

func NewDocumentHandler(processor *ingestion.Processor, db *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{processor: processor, db: db}
}

// UploadDocument ingests one document's extracted text. File-type detection
// and text extraction belong to the caller; this boundary accepts plain
// text plus a source filename.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req struct {
		Filename string `json:"filename"`
		Text     string `json:"text"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Filename == "" || req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Filename and text are required",
		})
	}

	result, err := h.processor.IngestDocument(c.Context(), req.Filename, req.Text)
	if err != nil {
		logger.Error("Failed to ingest document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest document",
		})
	}

	return c.JSON(result)
}

// UploadBatch ingests multiple documents with per-item outcomes; one failed
// document does not abort its siblings.
func (h *DocumentHandler) UploadBatch(c *fiber.Ctx) error {
	var req struct {
		Documents []struct {
			Filename string `json:"filename"`
			Text     string `json:"text"`
		} `json:"documents"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Documents) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one document is required",
		})
	}

	items := make([]ingestion.BatchItem, len(req.Documents))
	for i, doc := range req.Documents {
		items[i] = ingestion.BatchItem{Filename: doc.Filename, Text: doc.Text}
	}

	results := h.processor.IngestBatch(c.Context(), items)

	succeeded := 0
	for _, r := range results {
		if r.Error == "" {
			succeeded++
		}
	}

	return c.JSON(fiber.Map{
		"results":   results,
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	docs, err := h.db.ListDocuments(limit)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	return c.JSON(fiber.Map{
		"documents": docs,
		"count":     len(docs),
	})
}
