package model

import "time"

// Outcome records how a response was produced.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomePartial  Outcome = "partial"
	OutcomeFallback Outcome = "fallback"
)

// FallbackReason says why a fallback answer was served.
type FallbackReason string

const (
	ReasonNone             FallbackReason = ""
	ReasonNoEvidence       FallbackReason = "no_evidence"
	ReasonBelowThreshold   FallbackReason = "below_threshold"
	ReasonIndexUnavailable FallbackReason = "index_unavailable"
	ReasonEmbeddingFailed  FallbackReason = "embedding_failed"
	ReasonGenerationFailed FallbackReason = "generation_failed"
	ReasonSchemaViolation  FallbackReason = "schema_violation"
)

// Source is a cited document excerpt shown to the agent.
type Source struct {
	Document string `json:"document"`
	Content  string `json:"content"`
}

// Response is a generated (or fallback) answer. Its JSON form is the audit
// record appended to the response log.
type Response struct {
	ResponseID     string         `json:"response_id"`
	Query          string         `json:"query"`
	CaseID         string         `json:"case_id"`
	AgentID        string         `json:"agent_id"`
	Answer         string         `json:"answer"`
	Steps          []string       `json:"steps"`
	CitedSpans     []string       `json:"cited_spans"`
	Sources        []Source       `json:"sources"`
	Confidence     float64        `json:"confidence"`
	Disclaimers    []string       `json:"disclaimers"`
	ModelVersion   string         `json:"model_version"`
	PromptVersion  string         `json:"prompt_version"`
	Outcome        Outcome        `json:"outcome"`
	FallbackReason FallbackReason `json:"fallback_reason,omitempty"`
	LatencyMS      int64          `json:"latency_ms"`
	CreatedAt      time.Time      `json:"created_at"`
}

// QueryResponseDTO is the body returned by POST /api/v1/query.
type QueryResponseDTO struct {
	ResponseID  string   `json:"response_id"`
	Response    string   `json:"response"`
	Steps       []string `json:"steps"`
	Sources     []Source `json:"sources"`
	Confidence  float64  `json:"confidence"`
	Disclaimers []string `json:"disclaimers"`
}

// ToDTO projects the response onto the wire shape. Nil slices become empty.
func (r *Response) ToDTO() QueryResponseDTO {
	return QueryResponseDTO{
		ResponseID:  r.ResponseID,
		Response:    r.Answer,
		Steps:       nonNil(r.Steps),
		Sources:     nonNilSources(r.Sources),
		Confidence:  r.Confidence,
		Disclaimers: nonNil(r.Disclaimers),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilSources(s []Source) []Source {
	if s == nil {
		return []Source{}
	}
	return s
}
