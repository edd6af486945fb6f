package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/internal/service"
	"advisor-gpt-go/pkg/log"
)

// DocumentHandler serves document ingestion and the chunk catalog.
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler creates a DocumentHandler.
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// Upload accepts {document_id, content}. Queued uploads answer 202,
// inline ones 201.
func (h *DocumentHandler) Upload(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "upload document", err)
		return
	}
	res, err := h.docService.Upload(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, "upload document", err)
		return
	}
	status := http.StatusCreated
	if res.Status == model.UploadQueued {
		status = http.StatusAccepted
	}
	log.Infof("[DocumentHandler] document %s %s", res.DocumentID, res.Status)
	c.JSON(status, gin.H{"code": status, "message": res.Status, "data": res})
}

// ListChunks handles GET /api/v1/documents/:id/chunks.
func (h *DocumentHandler) ListChunks(c *gin.Context) {
	chunks, err := h.docService.ListChunks(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, "list chunks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": chunks})
}

// Delete handles DELETE /api/v1/documents/:id.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.docService.DeleteDocument(c.Request.Context(), id); err != nil {
		abortWithError(c, "delete document", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "document deleted", "data": nil})
}
