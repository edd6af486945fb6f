package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/internal/service"
)

// QueryHandler serves POST /api/v1/query.
type QueryHandler struct {
	queryService service.QueryService
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// Query handles POST /api/v1/query.
func (h *QueryHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "query", err)
		return
	}
	resp, err := h.queryService.SubmitQuery(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, "query", err)
		return
	}
	c.JSON(http.StatusOK, resp.ToDTO())
}
