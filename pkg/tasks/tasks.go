// Package tasks defines the payloads sent over the ingestion queue.
package tasks

// IngestTask asks a worker to (re)index one stored document.
type IngestTask struct {
	DocumentID string `json:"document_id"`
	ObjectName string `json:"object_name"`
	FileName   string `json:"file_name,omitempty"`
}
