package service

import (
	"fmt"
	"strings"

	"advisor-gpt-go/internal/model"
	"advisor-gpt-go/pkg/llm"
)

const defaultRules = `You help customer support agents of a B2B manufacturing company troubleshoot equipment and answer warranty questions.
Answer only from the reference passages between the markers. If they do not cover the question, say so and set confidence low.
Never invent part numbers, torque values or procedures that are not in the passages.`

const answerSchema = `Respond with a single JSON object and nothing else:
{
  "answer": string, a concise answer for the agent,
  "steps": array of strings, ordered troubleshooting steps (may be empty),
  "cited_spans": array of strings, the [id] of every passage you used, without brackets,
  "confidence": number between 0 and 1,
  "disclaimers": array of strings, safety or escalation notes (may be empty)
}`

// PromptBuilder renders the chat messages for one query.
type PromptBuilder struct {
	Rules    string
	RefStart string
	RefEnd   string
}

// NewPromptBuilder fills empty arguments with the built-in rules and markers.
func NewPromptBuilder(rules, refStart, refEnd string) PromptBuilder {
	if strings.TrimSpace(rules) == "" {
		rules = defaultRules
	}
	if refStart == "" {
		refStart = "<<REF>>"
	}
	if refEnd == "" {
		refEnd = "<<END>>"
	}
	return PromptBuilder{Rules: rules, RefStart: refStart, RefEnd: refEnd}
}

// Build returns a system message with the rules and schema and a user
// message with the question and each passage as "[chunk_id] (source) text".
func (b PromptBuilder) Build(query string, evidence []model.EvidenceItem) []llm.Message {
	var sys strings.Builder
	sys.WriteString(b.Rules)
	sys.WriteString("\n\n")
	sys.WriteString(answerSchema)

	var user strings.Builder
	fmt.Fprintf(&user, "Question: %s\n\n", query)
	user.WriteString(b.RefStart)
	user.WriteString("\n")
	for _, ev := range evidence {
		fmt.Fprintf(&user, "[%s] (%s) %s\n", ev.ChunkID, ev.SourceDocument, strings.TrimSpace(ev.Text))
	}
	user.WriteString(b.RefEnd)

	return []llm.Message{
		{Role: "system", Content: sys.String()},
		{Role: "user", Content: user.String()},
	}
}
