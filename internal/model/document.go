// Package model holds the domain types shared by the pipeline, services and handlers.
package model

// Metadata keys attached to documents and chunks.
const (
	MetaSourceDocument = "source_document"
	MetaSectionID      = "section_id"
	MetaSectionTitle   = "section_title"
	MetaSeverity       = "severity_level"
	MetaChunkSize      = "chunk_size"
	MetaChunkOverlap   = "chunk_overlap"
)

// Document is a unit of source text to be chunked.
type Document struct {
	ID       string            `json:"document_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	// Sections are optional rune ranges over Text, ordered by Start.
	Sections []Section `json:"sections,omitempty"`
}

// Section is a headed region of a markdown document.
type Section struct {
	ID       string `json:"section_id"`
	Title    string `json:"title"`
	Severity string `json:"severity_level,omitempty"`
	Start    int    `json:"start_offset"`
	End      int    `json:"end_offset"`
}

// Chunk is a contiguous window of a document's text. Offsets count runes.
type Chunk struct {
	ID          string            `json:"chunk_id"`
	DocumentID  string            `json:"document_id"`
	Seq         int               `json:"sequence_index"`
	Text        string            `json:"text"`
	StartOffset int               `json:"start_offset"`
	EndOffset   int               `json:"end_offset"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// EmbeddingRecord is a chunk together with its vector, as stored in an index.
type EmbeddingRecord struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text"`
	Vector     []float32         `json:"vector"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	ModelID    string            `json:"model_version,omitempty"`
}
