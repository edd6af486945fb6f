package model

import "strings"

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Query   string `json:"query"`
	CaseID  string `json:"case_id"`
	AgentID string `json:"agent_id"`
}

// Validate reports ErrInvalidInput when any field is blank.
func (r QueryRequest) Validate() error {
	return requireFields(map[string]string{
		"query":    r.Query,
		"case_id":  r.CaseID,
		"agent_id": r.AgentID,
	})
}

// EvidenceItem is a retrieved chunk with its similarity score.
type EvidenceItem struct {
	ChunkID        string            `json:"chunk_id"`
	DocumentID     string            `json:"document_id"`
	Text           string            `json:"text"`
	Score          float64           `json:"score"`
	SourceDocument string            `json:"source_document"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func requireFields(fields map[string]string) error {
	var missing []string
	for _, name := range []string{"query", "response_id", "case_id", "agent_id", "feedback_type", "document_id", "content"} {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &FieldError{Fields: missing}
	}
	return nil
}

// FieldError lists request fields that were missing or blank.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *FieldError) Unwrap() error { return ErrInvalidInput }
