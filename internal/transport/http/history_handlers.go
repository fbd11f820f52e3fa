package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorchat/internal/history"
	"github.com/vovakirdan/mentorchat/internal/proto"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HistoryHandlers provides HTTP handlers for message history endpoints.
type HistoryHandlers struct {
	history *history.Service
	log     *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(hist *history.Service, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{
		history: hist,
		log:     logger,
	}
}

// Conversation returns the chat history with one user, oldest first.
// GET /api/messages/:userId?limit=&before=
func (h *HistoryHandlers) Conversation(c *gin.Context) {
	me, ok := identityFromContext(c, h.log)
	if !ok {
		return
	}
	other := c.Param("userId")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before timestamp"})
			return
		}
		before = &ts
	}

	messages, err := h.history.Conversation(c.Request.Context(), me, other, limit, before)
	if err != nil {
		h.log.Error().Err(err).Str("identity", me).Str("partner", other).Msg("failed to load conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]proto.PrivateMessage, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, privateMessage(msg))
	}
	c.JSON(http.StatusOK, resp)
}

// Conversations returns the latest message per conversation partner, newest first.
// GET /api/conversations
func (h *HistoryHandlers) Conversations(c *gin.Context) {
	me, ok := identityFromContext(c, h.log)
	if !ok {
		return
	}

	summaries, err := h.history.Conversations(c.Request.Context(), me)
	if err != nil {
		h.log.Error().Err(err).Str("identity", me).Msg("failed to list conversations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]proto.ConversationSummary, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, proto.ConversationSummary{
			Partner:     proto.Partner{ID: s.Partner},
			LastMessage: s.LastMessage,
			Timestamp:   s.Timestamp.UTC(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func identityFromContext(c *gin.Context, logger *zerolog.Logger) (string, bool) {
	identity := c.GetString(ContextKeyIdentity)
	if identity == "" {
		logger.Error().Msg("identity not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return "", false
	}
	return identity, true
}
