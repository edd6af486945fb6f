package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/internal/repository"
	"advisor-gpt-go/pkg/log"
)

const (
	fallbackTemplate = "I couldn't find specific information in our technical documentation to answer your question about: %q. " +
		"Please provide more details such as error codes or symptoms, or escalate to Level 2 technical support."

	// DisclaimerNoEvidence marks every fallback response.
	DisclaimerNoEvidence = "No supporting documentation was found for this question; this is general guidance only."
	// DisclaimerLimitedEvidence marks answers generated from fewer passages than requested.
	DisclaimerLimitedEvidence = "Limited evidence: this answer is based on fewer documentation passages than usual. Verify before acting."

	sourceExcerptRunes = 200
)

var fallbackSteps = []string{
	"Check the equipment manual for troubleshooting steps",
	"Verify all connections and power supply",
	"Review recent maintenance logs",
	"Contact technical support with specific error codes",
}

// QueryService answers agent questions and records every response.
type QueryService interface {
	SubmitQuery(ctx context.Context, req model.QueryRequest) (*model.Response, error)
}

type queryService struct {
	retriever     Retriever
	gate          EvidenceGate
	generator     AnswerGenerator
	audit         repository.AuditRepository
	modelVersion  string
	promptVersion string
	now           func() time.Time
}

// NewQueryService wires the query pipeline. modelVersion and promptVersion are stamped on every record.
func NewQueryService(retriever Retriever, gate EvidenceGate, generator AnswerGenerator, audit repository.AuditRepository,
	modelVersion, promptVersion string) QueryService {
	return &queryService{
		retriever:     retriever,
		gate:          gate,
		generator:     generator,
		audit:         audit,
		modelVersion:  modelVersion,
		promptVersion: promptVersion,
		now:           time.Now,
	}
}

// SubmitQuery validates req, retrieves evidence, generates or falls back and
// appends the response to the audit log. Retrieval and generation failures
// degrade to the fallback answer; only invalid input, a cancelled request
// and an audit failure are returned as errors.
func (s *queryService) SubmitQuery(ctx context.Context, req model.QueryRequest) (*model.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := s.now()
	log.Infof("[QueryService] query received, case: %s, agent: %s", req.CaseID, req.AgentID)

	retrieval, rerr := s.retriever.Retrieve(ctx, req.Query)
	decision := s.gate.Evaluate(retrieval, rerr)
	log.Infow("[QueryService] evidence gate",
		"action", decision.Action.String(),
		"reason", string(decision.Reason),
		"evidence", len(decision.Evidence))

	var resp *model.Response
	if decision.Action == GateBlock {
		resp = s.fallback(req, decision.Reason)
	} else {
		answer, gerr := s.generator.Generate(ctx, req.Query, decision.Evidence)
		switch {
		case gerr == nil:
			resp = s.answered(req, decision, answer)
		case IsSchemaViolation(gerr):
			log.Warnf("[QueryService] falling back, reason: %s", model.ReasonSchemaViolation)
			resp = s.fallback(req, model.ReasonSchemaViolation)
		default:
			log.Warnf("[QueryService] falling back, reason: %s, error: %v", model.ReasonGenerationFailed, gerr)
			resp = s.fallback(req, model.ReasonGenerationFailed)
		}
	}
	resp.ResponseID = uuid.NewString()
	resp.CreatedAt = s.now().UTC()
	resp.LatencyMS = s.now().Sub(start).Milliseconds()

	if err := s.audit.AppendResponse(ctx, resp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		log.Errorf("[QueryService] audit append failed for %s: %v", resp.ResponseID, err)
		if !errors.Is(err, model.ErrAuditWrite) {
			err = fmt.Errorf("%v: %w", err, model.ErrAuditWrite)
		}
		return nil, err
	}
	log.Infof("[QueryService] response %s recorded, outcome: %s, confidence: %.2f",
		resp.ResponseID, resp.Outcome, resp.Confidence)
	return resp, nil
}

func (s *queryService) base(req model.QueryRequest) *model.Response {
	return &model.Response{
		Query:         req.Query,
		CaseID:        req.CaseID,
		AgentID:       req.AgentID,
		ModelVersion:  s.modelVersion,
		PromptVersion: s.promptVersion,
	}
}

func (s *queryService) fallback(req model.QueryRequest, reason model.FallbackReason) *model.Response {
	resp := s.base(req)
	resp.Answer = fmt.Sprintf(fallbackTemplate, req.Query)
	resp.Steps = append([]string(nil), fallbackSteps...)
	resp.CitedSpans = []string{}
	resp.Sources = []model.Source{}
	resp.Confidence = 0
	resp.Disclaimers = []string{DisclaimerNoEvidence}
	resp.Outcome = model.OutcomeFallback
	resp.FallbackReason = reason
	return resp
}

func (s *queryService) answered(req model.QueryRequest, decision GateDecision, a *Answer) *model.Response {
	resp := s.base(req)
	resp.Answer = a.Answer
	resp.Steps = a.Steps
	resp.CitedSpans = a.CitedSpans
	resp.Confidence = a.Confidence
	resp.Disclaimers = a.Disclaimers
	resp.Outcome = model.OutcomeAnswered
	if decision.Action == GatePartial {
		resp.Outcome = model.OutcomePartial
		resp.Disclaimers = append(resp.Disclaimers, DisclaimerLimitedEvidence)
	}
	resp.Sources = sources(decision.Evidence, a.CitedSpans)
	return resp
}

// sources lists the cited evidence, or all evidence when nothing was cited.
func sources(evidence []model.EvidenceItem, cited []string) []model.Source {
	byID := make(map[string]model.EvidenceItem, len(evidence))
	for _, ev := range evidence {
		byID[ev.ChunkID] = ev
	}
	picked := make([]model.EvidenceItem, 0, len(evidence))
	for _, id := range cited {
		if ev, ok := byID[id]; ok {
			picked = append(picked, ev)
		}
	}
	if len(picked) == 0 {
		picked = evidence
	}
	out := make([]model.Source, 0, len(picked))
	for _, ev := range picked {
		out = append(out, model.Source{Document: ev.SourceDocument, Content: excerpt(ev.Text, sourceExcerptRunes)})
	}
	return out
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
