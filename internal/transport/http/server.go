package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorchat/internal/auth"
	"github.com/vovakirdan/mentorchat/internal/config"
	"github.com/vovakirdan/mentorchat/internal/core"
	"github.com/vovakirdan/mentorchat/internal/history"
)

// NewServer builds the HTTP server: health probe, websocket endpoint and history API.
func NewServer(hub *core.Hub, hist *history.Service, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, cfg, logger)))

	historyHandlers := NewHistoryHandlers(hist, logger)
	api := router.Group("/api", AuthMiddleware(authService, logger))
	api.GET("/messages/:userId", historyHandlers.Conversation)
	api.GET("/conversations", historyHandlers.Conversations)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
