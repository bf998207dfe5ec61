package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"persona-server/internal/models"
)

const defaultAlertLimit = 100

func (h *Handler) listConnections(c *gin.Context) {
	conns, err := h.svc.Connections.List(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, conns)
}

func (h *Handler) createConnection(c *gin.Context) {
	var conn models.Connection
	if err := c.ShouldBindJSON(&conn); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Connections.Create(c.Request.Context(), &conn)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) updateConnection(c *gin.Context) {
	var conn models.Connection
	if err := c.ShouldBindJSON(&conn); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Connections.Update(c.Request.Context(), c.Param("id"), &conn)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) deleteConnection(c *gin.Context) {
	if err := h.svc.Connections.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createCharacter(c *gin.Context) {
	var char models.Character
	if err := c.ShouldBindJSON(&char); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Characters.Create(c.Request.Context(), &char)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) updateCharacter(c *gin.Context) {
	var char models.Character
	if err := c.ShouldBindJSON(&char); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Characters.Update(c.Request.Context(), c.Param("id"), &char)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) deleteCharacter(c *gin.Context) {
	if err := h.svc.Characters.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) summarizeCharacter(c *gin.Context) {
	out, err := h.svc.Summary.SummarizeCharacter(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getSettings(c *gin.Context) {
	s, err := h.svc.Settings.Get(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) updateSettings(c *gin.Context) {
	var s models.Settings
	if err := c.ShouldBindJSON(&s); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Settings.Update(c.Request.Context(), s)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) listAlerts(c *gin.Context) {
	limit := defaultAlertLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.handleServiceError(c, models.ErrBadRequest)
			return
		}
		limit = n
	}
	alerts, err := h.svc.Moderation.Alerts(c.Request.Context(), limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}
