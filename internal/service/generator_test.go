package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/pkg/retry"
)

var evidence = []model.EvidenceItem{
	{ChunkID: "pump_0", SourceDocument: "pump.md", Text: "Low flow: check impeller wear.", Score: 0.9},
	{ChunkID: "pump_1", SourceDocument: "pump.md", Text: "Inspect the inlet strainer.", Score: 0.8},
}

func TestParseAnswerValid(t *testing.T) {
	raw := "```json\n" + `{"answer":"Check the impeller.","steps":["Stop pump","Inspect impeller"],` +
		`"cited_spans":["pump_0","[pump_1]","pump_0"],"confidence":0.72,"disclaimers":[]}` + "\n```"
	res := ParseAnswer(raw, evidence)
	require.True(t, res.OK(), "%v", res.Violation)
	assert.Equal(t, "Check the impeller.", res.Answer.Answer)
	assert.Equal(t, []string{"pump_0", "pump_1"}, res.Answer.CitedSpans)
	assert.InDelta(t, 0.72, res.Answer.Confidence, 1e-9)
	assert.Empty(t, res.Answer.Disclaimers)
}

func TestParseAnswerDropsUnknownCitations(t *testing.T) {
	raw := `{"answer":"a","steps":[],"cited_spans":["pump_0","manual_9"],"confidence":0.5,"disclaimers":["Wear gloves."]}`
	res := ParseAnswer(raw, evidence)
	require.True(t, res.OK())
	assert.Equal(t, []string{"pump_0"}, res.Answer.CitedSpans)
	assert.Equal(t, []string{"Wear gloves.", DisclaimerCitationMismatch}, res.Answer.Disclaimers)
}

func TestParseAnswerClampsConfidence(t *testing.T) {
	for raw, want := range map[string]float64{"1.7": 1, "-0.2": 0, "0": 0, "1": 1} {
		res := ParseAnswer(fmt.Sprintf(`{"answer":"a","steps":[],"cited_spans":[],"confidence":%s,"disclaimers":[]}`, raw), evidence)
		require.True(t, res.OK())
		assert.Equal(t, want, res.Answer.Confidence, raw)
	}
}

func TestParseAnswerAllowsTrailingWhitespace(t *testing.T) {
	raw := `{"answer":"a","steps":[],"cited_spans":[],"confidence":0.5,"disclaimers":[]}` + "\n\n  "
	assert.True(t, ParseAnswer(raw, evidence).OK())
}

func TestParseAnswerViolations(t *testing.T) {
	cases := map[string]string{
		"not json":             `Sure! The pump is broken.`,
		"array":                `["a"]`,
		"missing answer":       `{"steps":[],"cited_spans":[],"confidence":0.5,"disclaimers":[]}`,
		"empty answer":         `{"answer":"  ","steps":[],"cited_spans":[],"confidence":0.5,"disclaimers":[]}`,
		"answer wrong type":    `{"answer":42,"steps":[],"cited_spans":[],"confidence":0.5,"disclaimers":[]}`,
		"steps not array":      `{"answer":"a","steps":"do it","cited_spans":[],"confidence":0.5,"disclaimers":[]}`,
		"steps null":           `{"answer":"a","steps":null,"cited_spans":[],"confidence":0.5,"disclaimers":[]}`,
		"steps of numbers":     `{"answer":"a","steps":[1,2],"cited_spans":[],"confidence":0.5,"disclaimers":[]}`,
		"missing disclaimers":  `{"answer":"a","steps":[],"cited_spans":[],"confidence":0.5}`,
		"confidence string":    `{"answer":"a","steps":[],"cited_spans":[],"confidence":"high","disclaimers":[]}`,
		"confidence numeric s": `{"answer":"a","steps":[],"cited_spans":[],"confidence":"0.5","disclaimers":[]}`,
		"missing confidence":   `{"answer":"a","steps":[],"cited_spans":[],"disclaimers":[]}`,
		"trailing prose":       `{"answer":"a","steps":[],"cited_spans":[],"confidence":0.5,"disclaimers":[]} Hope this helps!`,
		"second object":        `{"answer":"a","steps":[],"cited_spans":[],"confidence":0.5,"disclaimers":[]}{"answer":"b"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			res := ParseAnswer(raw, evidence)
			assert.False(t, res.OK())
			assert.ErrorIs(t, res.Violation, model.ErrSchemaViolation)
		})
	}
}

func TestGeneratorPromptCarriesEvidence(t *testing.T) {
	client := &scriptedLLM{replies: []string{`{"answer":"a","steps":[],"cited_spans":["pump_0"],"confidence":0.9,"disclaimers":[]}`}}
	g := NewAnswerGenerator(client, NewPromptBuilder("", "", ""), nil, retry.Policy{Attempts: 2})

	a, err := g.Generate(context.Background(), "low flow issue", evidence)
	require.NoError(t, err)
	assert.Equal(t, []string{"pump_0"}, a.CitedSpans)

	require.Len(t, client.messages, 1)
	msgs := client.messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, `"cited_spans"`)
	user := msgs[1].Content
	assert.Contains(t, user, "Question: low flow issue")
	assert.Contains(t, user, "[pump_0] (pump.md) Low flow: check impeller wear.")
	assert.Less(t, strings.Index(user, "<<REF>>"), strings.Index(user, "[pump_0]"))
	assert.Less(t, strings.Index(user, "[pump_1]"), strings.Index(user, "<<END>>"))
}

func TestGeneratorRetriesTransportOnly(t *testing.T) {
	ctx := context.Background()
	ok := `{"answer":"a","steps":[],"cited_spans":[],"confidence":0.9,"disclaimers":[]}`
	policy := retry.Policy{Attempts: 2, Backoff: time.Millisecond}

	flaky := &scriptedLLM{errs: []error{errors.New("503")}, replies: []string{ok}}
	_, err := NewAnswerGenerator(flaky, NewPromptBuilder("", "", ""), nil, policy).Generate(ctx, "q", evidence)
	require.NoError(t, err)
	assert.Equal(t, 2, flaky.Calls())

	down := &scriptedLLM{errs: []error{errors.New("503"), errors.New("503"), errors.New("503")}, replies: []string{ok}}
	_, err = NewAnswerGenerator(down, NewPromptBuilder("", "", ""), nil, policy).Generate(ctx, "q", evidence)
	assert.ErrorIs(t, err, model.ErrGenerativeService)
	assert.Equal(t, 2, down.Calls())

	malformed := &scriptedLLM{replies: []string{"not json"}}
	_, err = NewAnswerGenerator(malformed, NewPromptBuilder("", "", ""), nil, policy).Generate(ctx, "q", evidence)
	assert.ErrorIs(t, err, model.ErrSchemaViolation)
	assert.Equal(t, 1, malformed.Calls())
}
