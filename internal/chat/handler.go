package chat

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/messages"
	"pdfchat-backend/internal/shared/server/middleware"
	"pdfchat-backend/internal/shared/server/respond"
	"pdfchat-backend/internal/shared/telemetry"
)

// Handler exposes the conversation engine over HTTP.
type Handler struct {
	Svc      *Service
	Messages messages.Repo
	Docs     documents.DocumentsRepo
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, msgs messages.Repo, docs documents.DocumentsRepo) *Handler {
	return &Handler{Svc: svc, Messages: msgs, Docs: docs}
}

// RegisterRoutes attaches chat routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/messages", h.send)
	rg.GET("/documents/:id/messages", h.listMessages)
}

type sendMessageRequest struct {
	DocumentID string `json:"documentId"`
	Message    string `json:"message"`
}

// send streams the assistant's answer as chunked text/plain, one write per
// token. Errors after the first byte cannot change the status code; they are
// logged and the connection is closed short.
func (h *Handler) send(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	req.DocumentID = strings.TrimSpace(req.DocumentID)

	wroteAny := false
	flusher, canFlush := c.Writer.(http.Flusher)
	onToken := func(token string) {
		if !wroteAny {
			c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
			c.Writer.WriteHeader(http.StatusOK)
			wroteAny = true
		}
		if _, err := c.Writer.WriteString(token); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}

	_, err := h.Svc.StreamTurn(c.Request.Context(), userID, req.DocumentID, req.Message, onToken)
	if err != nil {
		if wroteAny {
			// Mid-stream failure: the partial answer is on the wire but was
			// not persisted, and the status line already went out.
			telemetry.Error("chat stream aborted", map[string]any{
				"document_id": req.DocumentID,
				"request_id":  c.GetString("requestId"),
				"error":       err.Error(),
			})
			c.Abort()
			return
		}
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", "documentId and message are required", nil)
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		case errors.Is(err, documents.ErrNotReady):
			respond.Error(c, http.StatusConflict, "document_not_ready", "document is still being processed", nil)
		case errors.Is(err, ErrProvider):
			respond.Error(c, http.StatusBadGateway, "provider_error", "upstream provider failed", nil)
		case errors.Is(err, c.Request.Context().Err()):
			c.Abort()
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to answer message", nil)
		}
		return
	}

	if !wroteAny {
		// Empty completion; still a success.
		c.Data(http.StatusOK, "text/plain; charset=utf-8", nil)
	}
}

type messageResponse struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	IsUserMessage bool   `json:"isUserMessage"`
	CreatedAt     string `json:"createdAt"`
}

type listMessagesResponse struct {
	Messages   []messageResponse `json:"messages"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// listMessages pages a document's conversation newest-first, with an opaque
// numeric cursor for the next page.
func (h *Handler) listMessages(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")

	if _, err := h.Docs.GetByID(c.Request.Context(), userID, documentID); err != nil {
		switch {
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch document", nil)
		}
		return
	}

	limit := 10
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	msgs, nextCursor, err := h.Messages.ListPage(c.Request.Context(), documentID, limit, c.Query("cursor"))
	if err != nil {
		switch {
		case errors.Is(err, messages.ErrInvalidCursor):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid cursor", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list messages", nil)
		}
		return
	}

	resp := listMessagesResponse{
		Messages:   make([]messageResponse, 0, len(msgs)),
		NextCursor: nextCursor,
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageResponse{
			ID:            m.ID,
			Text:          m.Text,
			IsUserMessage: m.IsUserMessage,
			CreatedAt:     m.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}

	respond.JSON(c, http.StatusOK, resp)
}
