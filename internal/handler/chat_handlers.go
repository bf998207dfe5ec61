package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) listCharacters(c *gin.Context) {
	chars, err := h.svc.Characters.List(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, chars)
}

func (h *Handler) getCharacter(c *gin.Context) {
	char, err := h.svc.Characters.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, char)
}

func (h *Handler) startChat(c *gin.Context) {
	msgs, err := h.svc.Chat.StartChat(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, messagesResponse{Messages: msgs})
}

func (h *Handler) listMessages(c *gin.Context) {
	msgs, err := h.svc.Chat.History(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, messagesResponse{Messages: msgs})
}

// sendMessage runs a blocking chat turn. A failed turn still returns the
// outcome so the client can show the stored failure reply.
func (h *Handler) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.svc.Chat.SendTurn(c.Request.Context(), req.toTurn(getUserID(c), c.Param("id")))
	if err != nil {
		if out != nil && out.Failed {
			status, _ := errorStatus(err)
			h.logger.Warn("Chat turn failed", zap.String("character_id", c.Param("id")), zap.Error(err))
			c.JSON(status, out)
			return
		}
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// streamMessage runs a chat turn as server-sent events: "delta" events carry
// the cumulative reply, the last event is "done" with the outcome or "error".
// Errors raised before anything was streamed are plain JSON responses.
func (h *Handler) streamMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
	}

	out, err := h.svc.Chat.StreamTurn(c.Request.Context(), req.toTurn(getUserID(c), c.Param("id")), func(text string) {
		begin()
		c.SSEvent("delta", deltaEvent{Text: text})
		c.Writer.Flush()
	})
	if err != nil {
		if !started && out == nil {
			h.handleServiceError(c, err)
			return
		}
		begin()
		_, msg := errorStatus(err)
		h.logger.Warn("Streamed chat turn failed", zap.String("character_id", c.Param("id")), zap.Error(err))
		c.SSEvent("error", streamErrorEvent{Error: msg, Outcome: out})
		c.Writer.Flush()
		return
	}
	begin()
	c.SSEvent("done", *out)
	c.Writer.Flush()
}

func (h *Handler) deleteMessage(c *gin.Context) {
	if err := h.svc.Chat.DeleteMessage(c.Request.Context(), getUserID(c), c.Param("id"), c.Param("messageId")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) resetChat(c *gin.Context) {
	if err := h.svc.Chat.ResetChat(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getSession(c *gin.Context) {
	session, err := h.svc.Chat.Session(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) scanText(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	res, err := h.svc.Moderation.Scan(c.Request.Context(), req.Text)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, scanResponse{Scanned: res != nil, Result: res})
}

