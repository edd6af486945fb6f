package model

import (
	"fmt"
	"regexp"
)

var documentIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// DocumentUploadRequest is the body of POST /api/v1/documents. Content is markdown.
type DocumentUploadRequest struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
}

// Validate requires a safe document id and non-blank content.
func (r DocumentUploadRequest) Validate() error {
	if err := requireFields(map[string]string{"document_id": r.DocumentID, "content": r.Content}); err != nil {
		return err
	}
	if !documentIDPattern.MatchString(r.DocumentID) {
		return fmt.Errorf("document_id %q may only contain letters, digits, '.', '_' and '-': %w", r.DocumentID, ErrInvalidInput)
	}
	return nil
}

// Upload statuses.
const (
	UploadQueued  = "queued"
	UploadIndexed = "indexed"
)

// DocumentUploadResult acknowledges an upload.
type DocumentUploadResult struct {
	DocumentID string `json:"document_id"`
	ObjectName string `json:"object_name"`
	Status     string `json:"status"`
	Chunks     int    `json:"chunks,omitempty"`
	Failed     int    `json:"failed,omitempty"`
}
