package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/internal/repository"
	"advisor-gpt-go/pkg/retry"
	"advisor-gpt-go/pkg/vector"
)

const goodReply = `{"answer":"Check the impeller for wear.","steps":["Stop the pump","Inspect the impeller"],` +
	`"cited_spans":["pump_0"],"confidence":0.8,"disclaimers":[]}`

func newQueryService(t *testing.T, index vector.Index, client *scriptedLLM, audit repository.AuditRepository, topK int) QueryService {
	t.Helper()
	retriever := NewRetriever(&vecEmbedder{vectors: queryVectors}, index, topK, 0.35, retry.Policy{})
	gen := NewAnswerGenerator(client, NewPromptBuilder("", "", ""), nil, retry.Policy{Attempts: 2})
	return NewQueryService(retriever, NewEvidenceGate(topK, 0.35), gen, audit, "gpt-test", "v1")
}

func req(q string) model.QueryRequest {
	return model.QueryRequest{Query: q, CaseID: "CASE-1", AgentID: "agent-7"}
}

func TestSubmitQueryAnswered(t *testing.T) {
	ctx := context.Background()
	audit := newAudit(t)
	client := &scriptedLLM{replies: []string{goodReply}}
	svc := newQueryService(t, seededIndex(t), client, audit, 3)

	resp, err := svc.SubmitQuery(ctx, req("low flow issue"))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ResponseID)
	assert.Equal(t, model.OutcomeAnswered, resp.Outcome)
	assert.Equal(t, "Check the impeller for wear.", resp.Answer)
	assert.Equal(t, []string{"pump_0"}, resp.CitedSpans)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, model.Source{Document: "pump.md", Content: "Low flow: check impeller wear."}, resp.Sources[0])
	assert.Equal(t, "gpt-test", resp.ModelVersion)
	assert.Equal(t, "v1", resp.PromptVersion)
	assert.Equal(t, 1, client.Calls())

	logged, err := audit.ListResponses(ctx)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, resp.ResponseID, logged[0].ResponseID)
	assert.Equal(t, "CASE-1", logged[0].CaseID)
}

func TestSubmitQueryPartialAddsDisclaimer(t *testing.T) {
	client := &scriptedLLM{replies: []string{goodReply}}
	// Only three chunks clear the threshold, so k=4 is a partial pass.
	svc := newQueryService(t, seededIndex(t), client, newAudit(t), 4)

	resp, err := svc.SubmitQuery(context.Background(), req("low flow issue"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePartial, resp.Outcome)
	assert.Contains(t, resp.Disclaimers, DisclaimerLimitedEvidence)
}

func TestSubmitQueryBelowThresholdFallsBack(t *testing.T) {
	ctx := context.Background()
	audit := newAudit(t)
	client := &scriptedLLM{replies: []string{goodReply}}
	svc := newQueryService(t, seededIndex(t), client, audit, 4)

	resp, err := svc.SubmitQuery(ctx, req("something random"))
	require.NoError(t, err)
	assert.Equal(t, 0, client.Calls())
	assert.Equal(t, model.OutcomeFallback, resp.Outcome)
	assert.Equal(t, model.ReasonBelowThreshold, resp.FallbackReason)
	assert.Zero(t, resp.Confidence)
	assert.Empty(t, resp.CitedSpans)
	assert.Empty(t, resp.Sources)
	assert.Contains(t, resp.Answer, `"something random"`)
	assert.Contains(t, resp.Disclaimers, DisclaimerNoEvidence)
	assert.NotEmpty(t, resp.Steps)

	logged, err := audit.ListResponses(ctx)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, model.ReasonBelowThreshold, logged[0].FallbackReason)
}

func TestSubmitQueryIndexDownLooksLikeNoEvidence(t *testing.T) {
	client := &scriptedLLM{replies: []string{goodReply}}
	down, err := newQueryService(t, failingIndex{}, client, newAudit(t), 4).SubmitQuery(context.Background(), req("low flow issue"))
	require.NoError(t, err)
	empty, err := newQueryService(t, vector.NewMemoryIndex(3), client, newAudit(t), 4).SubmitQuery(context.Background(), req("low flow issue"))
	require.NoError(t, err)

	assert.Equal(t, 0, client.Calls())
	assert.Equal(t, empty.ToDTO().Response, down.ToDTO().Response)
	assert.Equal(t, empty.Disclaimers, down.Disclaimers)
	assert.Equal(t, model.ReasonIndexUnavailable, down.FallbackReason)
	assert.Equal(t, model.ReasonNoEvidence, empty.FallbackReason)
}

func TestSubmitQueryGenerationFailuresFallBack(t *testing.T) {
	cases := map[string]struct {
		client *scriptedLLM
		reason model.FallbackReason
		calls  int
	}{
		"schema violation": {&scriptedLLM{replies: []string{`{"answer":""}`}}, model.ReasonSchemaViolation, 1},
		"transport":        {&scriptedLLM{errs: []error{errors.New("503"), errors.New("503")}, replies: []string{goodReply}}, model.ReasonGenerationFailed, 2},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := newQueryService(t, seededIndex(t), tc.client, newAudit(t), 3).SubmitQuery(context.Background(), req("low flow issue"))
			require.NoError(t, err)
			assert.Equal(t, model.OutcomeFallback, resp.Outcome)
			assert.Equal(t, tc.reason, resp.FallbackReason)
			assert.Zero(t, resp.Confidence)
			assert.Empty(t, resp.CitedSpans)
			assert.Equal(t, tc.calls, tc.client.Calls())
		})
	}
}

func TestSubmitQueryInvalidInput(t *testing.T) {
	client := &scriptedLLM{replies: []string{goodReply}}
	audit := newAudit(t)
	svc := newQueryService(t, seededIndex(t), client, audit, 3)

	_, err := svc.SubmitQuery(context.Background(), model.QueryRequest{Query: "low flow issue", CaseID: "C"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Equal(t, 0, client.Calls())

	logged, err := audit.ListResponses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logged)
}

func TestSubmitQueryAuditFailureIsReported(t *testing.T) {
	svc := newQueryService(t, seededIndex(t), &scriptedLLM{replies: []string{goodReply}}, failingAudit{}, 3)
	_, err := svc.SubmitQuery(context.Background(), req("low flow issue"))
	assert.ErrorIs(t, err, model.ErrAuditWrite)
}

func TestSubmitQueryCancelledWritesNothing(t *testing.T) {
	audit := newAudit(t)
	svc := newQueryService(t, seededIndex(t), &scriptedLLM{replies: []string{goodReply}}, audit, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.SubmitQuery(ctx, req("low flow issue"))
	assert.ErrorIs(t, err, context.Canceled)

	logged, err := audit.ListResponses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logged)
}

func TestExcerpt(t *testing.T) {
	long := strings.Repeat("ä", 250)
	got := excerpt(long, 200)
	assert.Equal(t, 203, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "short", excerpt("short", 200))
}
