package service

import (
	"errors"

	"advisor-gpt-go/internal/model"
)

// GateAction is the evidence gate's verdict.
type GateAction int

const (
	GateBlock GateAction = iota
	GatePartial
	GateProceed
)

func (a GateAction) String() string {
	switch a {
	case GateProceed:
		return "proceed"
	case GatePartial:
		return "partial"
	default:
		return "block"
	}
}

// GateDecision carries the verdict, the evidence to generate from and, on
// Block, the reason.
type GateDecision struct {
	Action   GateAction
	Reason   model.FallbackReason
	Evidence []model.EvidenceItem
}

// EvidenceGate decides whether retrieved evidence can ground an answer.
// It is a pure function of its inputs.
type EvidenceGate struct {
	topK     int
	minScore float64
}

// NewEvidenceGate creates a gate expecting topK items scoring at least minScore.
func NewEvidenceGate(topK int, minScore float64) EvidenceGate {
	return EvidenceGate{topK: topK, minScore: minScore}
}

// Evaluate blocks on a retrieval error, on empty evidence or when the top
// item scores below the threshold. Fewer than topK items is a Partial pass.
func (g EvidenceGate) Evaluate(r Retrieval, retrievalErr error) GateDecision {
	switch {
	case errors.Is(retrievalErr, model.ErrEmbeddingService):
		return GateDecision{Action: GateBlock, Reason: model.ReasonEmbeddingFailed}
	case retrievalErr != nil:
		return GateDecision{Action: GateBlock, Reason: model.ReasonIndexUnavailable}
	}

	if len(r.Items) == 0 {
		if r.Candidates > 0 {
			return GateDecision{Action: GateBlock, Reason: model.ReasonBelowThreshold}
		}
		return GateDecision{Action: GateBlock, Reason: model.ReasonNoEvidence}
	}
	if r.Items[0].Score < g.minScore {
		return GateDecision{Action: GateBlock, Reason: model.ReasonBelowThreshold}
	}

	evidence := make([]model.EvidenceItem, 0, len(r.Items))
	for _, it := range r.Items {
		if it.Score >= g.minScore && len(evidence) < g.topK {
			evidence = append(evidence, it)
		}
	}
	if len(evidence) < g.topK {
		return GateDecision{Action: GatePartial, Evidence: evidence}
	}
	return GateDecision{Action: GateProceed, Evidence: evidence}
}
