package model

import (
	"fmt"
	"time"
)

// FeedbackType is an agent's rating of a response.
type FeedbackType string

const (
	FeedbackLike    FeedbackType = "like"
	FeedbackDislike FeedbackType = "dislike"
)

// Valid reports whether t is one of the known ratings.
func (t FeedbackType) Valid() bool {
	return t == FeedbackLike || t == FeedbackDislike
}

// FeedbackRequest is the body of POST /api/v1/feedback.
type FeedbackRequest struct {
	ResponseID   string       `json:"response_id"`
	CaseID       string       `json:"case_id"`
	AgentID      string       `json:"agent_id"`
	FeedbackType FeedbackType `json:"feedback_type"`
	Comment      string       `json:"comment,omitempty"`
}

// Validate reports ErrInvalidInput for blank ids or an unknown feedback type.
func (r FeedbackRequest) Validate() error {
	if err := requireFields(map[string]string{
		"response_id":   r.ResponseID,
		"case_id":       r.CaseID,
		"agent_id":      r.AgentID,
		"feedback_type": string(r.FeedbackType),
	}); err != nil {
		return err
	}
	if !r.FeedbackType.Valid() {
		return fmt.Errorf("feedback_type must be %q or %q, got %q: %w",
			FeedbackLike, FeedbackDislike, r.FeedbackType, ErrInvalidInput)
	}
	return nil
}

// Feedback is an appended feedback record. ResponseID may reference a
// response that was never recorded.
type Feedback struct {
	ResponseID   string       `json:"response_id"`
	CaseID       string       `json:"case_id"`
	AgentID      string       `json:"agent_id"`
	FeedbackType FeedbackType `json:"feedback_type"`
	Comment      string       `json:"comment,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// FeedbackAck is returned after feedback is recorded.
type FeedbackAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PositiveFeedback is a liked response surfaced in the performance snapshot.
type PositiveFeedback struct {
	ResponseID string    `json:"response_id"`
	CaseID     string    `json:"case_id"`
	AgentID    string    `json:"agent_id"`
	Query      string    `json:"query,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PerformanceSnapshot aggregates the audit and feedback logs.
// SatisfactionRate is a fraction in [0, 1].
type PerformanceSnapshot struct {
	TotalResponses         int                `json:"total_responses"`
	TotalFeedback          int                `json:"total_feedback"`
	HelpfulResponses       int                `json:"helpful_responses"`
	SatisfactionRate       float64            `json:"satisfaction_rate"`
	RecentPositiveFeedback []PositiveFeedback `json:"recent_positive_feedback"`
}
