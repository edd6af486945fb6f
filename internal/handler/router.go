package handler

import (
	"github.com/gin-gonic/gin"

	"advisor-gpt-go/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Query    *QueryHandler
	Feedback *FeedbackHandler
	Document *DocumentHandler
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger())

	r.GET("/health", Health)

	api := r.Group("/api/v1")
	{
		api.POST("/query", h.Query.Query)

		api.POST("/feedback", h.Feedback.Submit)
		api.GET("/feedback", h.Feedback.List)
		api.GET("/performance", h.Feedback.Performance)

		docs := api.Group("/documents")
		docs.POST("", h.Document.Upload)
		docs.GET("/:id/chunks", h.Document.ListChunks)
		docs.DELETE("/:id", h.Document.Delete)
	}
	return r
}
