package handler

import (
	"net/http"
	"strconv"

	"cv-chat-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ConversationHandler exposes the recorded question/answer exchanges.
type ConversationHandler struct {
	conversationService service.ConversationService
}

func NewConversationHandler(conversationService service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// List accepts an optional cv_id query filter.
func (h *ConversationHandler) List(c *gin.Context) {
	var corpusID *uint
	if raw := c.Query("cv_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cv_id"})
			return
		}
		v := uint(id)
		corpusID = &v
	}

	exchanges, err := h.conversationService.List(c.Request.Context(), corpusID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchanges)
}

func (h *ConversationHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	exchange, err := h.conversationService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchange)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.conversationService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
