package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/pkg/llm"
	"advisor-gpt-go/pkg/log"
	"advisor-gpt-go/pkg/retry"
)

// DisclaimerCitationMismatch is appended when the model cited passages it was not given.
const DisclaimerCitationMismatch = "Some citations did not match the retrieved documentation and were removed."

// Answer is a validated generation.
type Answer struct {
	Answer      string
	Steps       []string
	CitedSpans  []string
	Confidence  float64
	Disclaimers []string
}

// ParseResult is either a valid Answer or a schema violation.
type ParseResult struct {
	Answer    Answer
	Violation error
}

// OK reports whether the reply passed validation.
func (p ParseResult) OK() bool { return p.Violation == nil }

// AnswerGenerator turns a query and its evidence into an Answer.
type AnswerGenerator interface {
	Generate(ctx context.Context, query string, evidence []model.EvidenceItem) (*Answer, error)
}

type answerGenerator struct {
	client llm.Client
	prompt PromptBuilder
	params *llm.GenerationParams
	policy retry.Policy
}

// NewAnswerGenerator creates an AnswerGenerator calling client with policy.
func NewAnswerGenerator(client llm.Client, prompt PromptBuilder, params *llm.GenerationParams, policy retry.Policy) AnswerGenerator {
	return &answerGenerator{client: client, prompt: prompt, params: params, policy: policy}
}

// Generate makes one chat call, retrying only transport failures. Errors
// wrap model.ErrGenerativeService or model.ErrSchemaViolation.
func (g *answerGenerator) Generate(ctx context.Context, query string, evidence []model.EvidenceItem) (*Answer, error) {
	messages := g.prompt.Build(query, evidence)

	var raw string
	err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
		var err error
		raw, err = g.client.Complete(ctx, messages, g.params)
		return err
	})
	if err != nil {
		log.Errorf("[Generator] completion failed: %v", err)
		return nil, fmt.Errorf("complete: %v: %w", err, model.ErrGenerativeService)
	}

	res := ParseAnswer(raw, evidence)
	if !res.OK() {
		log.Warnf("[Generator] %v", res.Violation)
		return nil, res.Violation
	}
	return &res.Answer, nil
}

// ParseAnswer validates a raw model reply against the answer schema and the
// evidence it was given. Unknown citations are dropped with a disclaimer;
// confidence is clamped to [0, 1].
func ParseAnswer(raw string, evidence []model.EvidenceItem) ParseResult {
	fields := map[string]json.RawMessage{}
	dec := json.NewDecoder(strings.NewReader(stripFence(raw)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return violation("reply is not a JSON object: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return violation("reply has content after the JSON object")
	}

	var a Answer
	if err := decodeField(fields, "answer", &a.Answer); err != nil {
		return violation("%v", err)
	}
	if strings.TrimSpace(a.Answer) == "" {
		return violation("field answer is empty")
	}
	lists := []struct {
		name string
		dst  *[]string
	}{
		{"steps", &a.Steps},
		{"cited_spans", &a.CitedSpans},
		{"disclaimers", &a.Disclaimers},
	}
	for _, l := range lists {
		if err := decodeField(fields, l.name, l.dst); err != nil {
			return violation("%v", err)
		}
		if *l.dst == nil {
			return violation("field %s must be an array of strings", l.name)
		}
	}
	var conf any
	if err := decodeField(fields, "confidence", &conf); err != nil {
		return violation("%v", err)
	}
	num, ok := conf.(json.Number)
	if !ok {
		return violation("field confidence must be a number, got %T", conf)
	}
	c, err := num.Float64()
	if err != nil {
		return violation("field confidence is not a number: %v", err)
	}
	a.Confidence = clamp01(c)

	known := make(map[string]bool, len(evidence))
	for _, ev := range evidence {
		known[ev.ChunkID] = true
	}
	cited := make([]string, 0, len(a.CitedSpans))
	seen := map[string]bool{}
	mismatch := false
	for _, span := range a.CitedSpans {
		id := strings.Trim(strings.TrimSpace(span), "[]")
		if !known[id] {
			mismatch = true
			continue
		}
		if !seen[id] {
			seen[id] = true
			cited = append(cited, id)
		}
	}
	a.CitedSpans = cited
	if mismatch {
		a.Disclaimers = append(a.Disclaimers, DisclaimerCitationMismatch)
	}
	return ParseResult{Answer: a}
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return fmt.Errorf("missing field %s", name)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("field %s has the wrong type: %v", name, err)
	}
	return nil
}

// stripFence removes a surrounding Markdown code fence such as ```json ... ```.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func violation(format string, args ...any) ParseResult {
	return ParseResult{Violation: fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), model.ErrSchemaViolation)}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// IsSchemaViolation reports whether err came from an invalid model reply.
func IsSchemaViolation(err error) bool {
	return errors.Is(err, model.ErrSchemaViolation)
}
