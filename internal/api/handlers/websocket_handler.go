package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/policy-rag/backend/internal/rag"
	"github.com/policy-rag/backend/pkg/logger"
)

// WebSocketHandler streams answers over a chat connection. The pipeline
// produces the full answer; the handler chunks it word by word so the UI
// can render progressively.
type WebSocketHandler struct {
	pipeline *rag.Pipeline
}

func NewWebSocketHandler(pipeline *rag.Pipeline) *WebSocketHandler {
	return &WebSocketHandler{pipeline: pipeline}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type           string `json:"type"`
			Question       string `json:"question"`
			TopK           int    `json:"top_k"`
			UseWebSearch   bool   `json:"use_web_search"`
			PromptTemplate string `json:"prompt_template"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read failed", zap.Error(err))
			break
		}

		if msg.Type != "query" || strings.TrimSpace(msg.Question) == "" {
			continue
		}

		err := h.streamAnswer(c, rag.QueryRequest{
			Question:     msg.Question,
			TopK:         msg.TopK,
			UseWebSearch: msg.UseWebSearch,
			Template:     msg.PromptTemplate,
		})
		if err != nil {
			logger.Error("Failed to stream answer", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, req rag.QueryRequest) error {
	if err := h.send(c, "status", "Processing query..."); err != nil {
		return err
	}

	response, err := h.pipeline.Answer(context.Background(), req)
	if err != nil {
		return err
	}

	words := strings.Fields(response.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}
		if err := h.send(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":         "complete",
		"query_id":     response.QueryID,
		"citations":    response.Citations,
		"out_of_scope": response.OutOfScope,
		"latency_ms":   response.LatencyMS,
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
