package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/internal/service"
)

// FeedbackHandler serves feedback submission and the performance snapshot.
type FeedbackHandler struct {
	feedbackService    service.FeedbackService
	performanceService service.PerformanceService
}

// NewFeedbackHandler creates a FeedbackHandler.
func NewFeedbackHandler(feedbackService service.FeedbackService, performanceService service.PerformanceService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService, performanceService: performanceService}
}

// Submit handles POST /api/v1/feedback.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "feedback", err)
		return
	}
	ack, err := h.feedbackService.SubmitFeedback(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, "feedback", err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// List handles GET /api/v1/feedback.
func (h *FeedbackHandler) List(c *gin.Context) {
	records, err := h.feedbackService.ListFeedback(c.Request.Context())
	if err != nil {
		abortWithError(c, "list feedback", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": records})
}

// Performance handles GET /api/v1/performance.
func (h *FeedbackHandler) Performance(c *gin.Context) {
	snap, err := h.performanceService.Snapshot(c.Request.Context())
	if err != nil {
		abortWithError(c, "performance", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
