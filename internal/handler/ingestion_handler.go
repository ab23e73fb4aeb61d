package handler

import (
	"net/http"

	"cv-chat-go/internal/service"

	"github.com/gin-gonic/gin"
)

// IngestionHandler reports the progress of queued uploads.
type IngestionHandler struct {
	ingestionService service.IngestionService
}

func NewIngestionHandler(ingestionService service.IngestionService) *IngestionHandler {
	return &IngestionHandler{ingestionService: ingestionService}
}

func (h *IngestionHandler) Status(c *gin.Context) {
	status, err := h.ingestionService.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
