package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers bundles the handlers mounted by RegisterRoutes.
type Handlers struct {
	CV           *CVHandler
	Chat         *ChatHandler
	Conversation *ConversationHandler
	Ingestion    *IngestionHandler
}

// RegisterRoutes mounts the API under /api/v1. auth guards the API when it
// is not nil.
func RegisterRoutes(r *gin.Engine, h Handlers, auth gin.HandlerFunc) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the CV Chatbot API"})
	})

	api := r.Group("/api/v1")
	if auth != nil {
		api.Use(auth)
	}

	cvs := api.Group("/cvs")
	{
		cvs.GET("", h.CV.List)
		cvs.POST("/upload_cv", h.CV.Upload)
		cvs.GET("/:id", h.CV.Get)
		cvs.DELETE("/:id", h.CV.Delete)
		cvs.GET("/:id/chunks", h.CV.Chunks)
		cvs.GET("/:id/download", h.CV.Download)
	}

	chat := api.Group("/chat")
	{
		chat.POST("", h.Chat.Ask)
		chat.GET("/ws", h.Chat.Handle)
	}

	conversations := api.Group("/conversations")
	{
		conversations.GET("", h.Conversation.List)
		conversations.GET("/:id", h.Conversation.Get)
		conversations.DELETE("/:id", h.Conversation.Delete)
	}

	api.GET("/ingestions/:id", h.Ingestion.Status)
}
