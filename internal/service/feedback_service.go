package service

import (
	"context"
	"time"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/internal/repository"
	"advisor-gpt-go/pkg/log"
)

// FeedbackService records agent ratings of responses.
type FeedbackService interface {
	SubmitFeedback(ctx context.Context, req model.FeedbackRequest) (*model.FeedbackAck, error)
	ListFeedback(ctx context.Context) ([]model.Feedback, error)
}

type feedbackService struct {
	audit repository.AuditRepository
}

// NewFeedbackService creates a FeedbackService writing to audit.
func NewFeedbackService(audit repository.AuditRepository) FeedbackService {
	return &feedbackService{audit: audit}
}

// SubmitFeedback appends the rating. The response id is not checked
// against the response log.
func (s *feedbackService) SubmitFeedback(ctx context.Context, req model.FeedbackRequest) (*model.FeedbackAck, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	fb := &model.Feedback{
		ResponseID:   req.ResponseID,
		CaseID:       req.CaseID,
		AgentID:      req.AgentID,
		FeedbackType: req.FeedbackType,
		Comment:      req.Comment,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.audit.AppendFeedback(ctx, fb); err != nil {
		log.Errorf("[FeedbackService] append failed for response %s: %v", req.ResponseID, err)
		return nil, err
	}
	log.Infof("[FeedbackService] %s recorded for response %s", req.FeedbackType, req.ResponseID)
	return &model.FeedbackAck{Status: "success", Message: "Feedback recorded"}, nil
}

func (s *feedbackService) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	return s.audit.ListFeedback(ctx)
}
