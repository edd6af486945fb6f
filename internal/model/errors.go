package model

import (
	"errors"
	"fmt"
)

// Callers match these with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidDocument is an ErrInvalidInput raised while chunking.
	ErrInvalidDocument   = fmt.Errorf("invalid document: %w", ErrInvalidInput)
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrGenerativeService = errors.New("generative service error")
	ErrSchemaViolation   = errors.New("schema violation")
	ErrIndexUnavailable  = errors.New("index unavailable")
	ErrAuditWrite        = errors.New("audit write failed")
)
