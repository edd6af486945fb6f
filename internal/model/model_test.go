package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidDocumentIsInvalidInput(t *testing.T) {
	assert.True(t, errors.Is(ErrInvalidDocument, ErrInvalidInput))
}

func TestQueryRequestValidate(t *testing.T) {
	require.NoError(t, QueryRequest{Query: "pump leaks", CaseID: "C1", AgentID: "A1"}.Validate())

	err := QueryRequest{Query: "  ", CaseID: "C1"}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"query", "agent_id"}, fe.Fields)
}

func TestFeedbackRequestValidate(t *testing.T) {
	ok := FeedbackRequest{ResponseID: "r1", CaseID: "C1", AgentID: "A1", FeedbackType: FeedbackLike}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.FeedbackType = "meh"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)

	missing := ok
	missing.ResponseID = ""
	assert.ErrorIs(t, missing.Validate(), ErrInvalidInput)
}

func TestResponseToDTOUsesEmptySlices(t *testing.T) {
	r := &Response{ResponseID: "r1", Answer: "a"}
	dto := r.ToDTO()
	assert.NotNil(t, dto.Steps)
	assert.NotNil(t, dto.Sources)
	assert.NotNil(t, dto.Disclaimers)
	assert.Equal(t, "a", dto.Response)
}

func TestDocumentUploadRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  DocumentUploadRequest
		ok   bool
	}{
		{"valid", DocumentUploadRequest{DocumentID: "hydromax-pump_v2.1", Content: "# Pump"}, true},
		{"blank content", DocumentUploadRequest{DocumentID: "pump", Content: "  "}, false},
		{"missing id", DocumentUploadRequest{Content: "# Pump"}, false},
		{"path traversal", DocumentUploadRequest{DocumentID: "../etc", Content: "x"}, false},
		{"slash", DocumentUploadRequest{DocumentID: "a/b", Content: "x"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
