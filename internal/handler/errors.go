// Package handler holds the gin HTTP handlers.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/pkg/log"
)

func abortWithError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		msg = err.Error()
	case errors.Is(err, model.ErrAuditWrite):
		msg = "response could not be recorded"
	case errors.Is(err, model.ErrIndexUnavailable):
		status = http.StatusServiceUnavailable
		msg = "vector index unavailable"
	}
	if status >= 500 {
		log.Errorf("[Handler] %s failed: %v", op, err)
	} else {
		log.Warnf("[Handler] %s rejected: %v", op, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": msg, "data": nil})
}

func badRequest(c *gin.Context, op string, err error) {
	log.Warnf("[Handler] %s: invalid payload: %v", op, err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "invalid request payload", "data": nil})
}
