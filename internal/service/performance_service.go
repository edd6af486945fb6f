package service

import (
	"context"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/internal/repository"
)

// PerformanceService aggregates the audit logs on demand.
type PerformanceService interface {
	Snapshot(ctx context.Context) (*model.PerformanceSnapshot, error)
}

type performanceService struct {
	audit       repository.AuditRepository
	recentLimit int
}

// NewPerformanceService reports at most recentLimit recent positive feedback entries.
func NewPerformanceService(audit repository.AuditRepository, recentLimit int) PerformanceService {
	return &performanceService{audit: audit, recentLimit: recentLimit}
}

// Snapshot rescans both logs. SatisfactionRate is likes over all feedback
// records, and 0 when there is no feedback.
func (s *performanceService) Snapshot(ctx context.Context) (*model.PerformanceSnapshot, error) {
	responses, err := s.audit.ListResponses(ctx)
	if err != nil {
		return nil, err
	}
	feedback, err := s.audit.ListFeedback(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Response, len(responses))
	for _, r := range responses {
		byID[r.ResponseID] = r
	}

	snap := &model.PerformanceSnapshot{
		TotalResponses:         len(responses),
		TotalFeedback:          len(feedback),
		RecentPositiveFeedback: []model.PositiveFeedback{},
	}
	for _, fb := range feedback {
		if fb.FeedbackType == model.FeedbackLike {
			snap.HelpfulResponses++
		}
	}
	if snap.TotalFeedback > 0 {
		snap.SatisfactionRate = float64(snap.HelpfulResponses) / float64(snap.TotalFeedback)
	}

	// Newest first; the log is in append order.
	for i := len(feedback) - 1; i >= 0 && len(snap.RecentPositiveFeedback) < s.recentLimit; i-- {
		fb := feedback[i]
		if fb.FeedbackType != model.FeedbackLike {
			continue
		}
		pf := model.PositiveFeedback{
			ResponseID: fb.ResponseID,
			CaseID:     fb.CaseID,
			AgentID:    fb.AgentID,
			Comment:    fb.Comment,
			CreatedAt:  fb.CreatedAt,
		}
		if r, ok := byID[fb.ResponseID]; ok {
			pf.CaseID = r.CaseID
			pf.AgentID = r.AgentID
			pf.Query = r.Query
		}
		snap.RecentPositiveFeedback = append(snap.RecentPositiveFeedback, pf)
	}
	return snap, nil
}
