// Package handler exposes the chat and administration services over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"persona-server/internal/middleware"
	"persona-server/internal/service"
)

// Services groups the services behind the routes.
type Services struct {
	Chat        service.ChatService
	Moderation  service.ModerationService
	Summary     service.SummaryService
	Characters  service.CharacterService
	Connections service.ConnectionService
	Settings    service.SettingsService
}

// Handler serves the public and admin HTTP API.
type Handler struct {
	svc        Services
	adminToken string
	logger     *zap.Logger
}

// NewHandler creates the HTTP handler. Admin routes accept adminToken as bearer token.
func NewHandler(svc Services, adminToken string, logger *zap.Logger) *Handler {
	return &Handler{
		svc:        svc,
		adminToken: adminToken,
		logger:     logger.Named("Handler"),
	}
}

// RegisterRoutes mounts every route on router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")

	user := api.Group("", middleware.RequireUser())
	{
		user.GET("/characters", h.listCharacters)
		user.GET("/characters/:id", h.getCharacter)
		user.POST("/characters/:id/chat", h.startChat)
		user.GET("/characters/:id/messages", h.listMessages)
		user.POST("/characters/:id/messages", h.sendMessage)
		user.POST("/characters/:id/messages/stream", h.streamMessage)
		user.DELETE("/characters/:id/messages/:messageId", h.deleteMessage)
		user.DELETE("/characters/:id/messages", h.resetChat)
		user.GET("/characters/:id/session", h.getSession)
		user.POST("/moderation/scan", h.scanText)
	}

	admin := api.Group("/admin", middleware.RequireAdmin(h.adminToken, h.logger))
	{
		admin.GET("/connections", h.listConnections)
		admin.POST("/connections", h.createConnection)
		admin.PUT("/connections/:id", h.updateConnection)
		admin.DELETE("/connections/:id", h.deleteConnection)

		admin.GET("/characters", h.listCharacters)
		admin.POST("/characters", h.createCharacter)
		admin.PUT("/characters/:id", h.updateCharacter)
		admin.DELETE("/characters/:id", h.deleteCharacter)
		admin.POST("/characters/:id/summarize", h.summarizeCharacter)

		admin.GET("/settings", h.getSettings)
		admin.PUT("/settings", h.updateSettings)

		admin.GET("/moderation/alerts", h.listAlerts)
	}
}

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}
