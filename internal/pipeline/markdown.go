package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"advisor-gpt-go/internal/model"
)

var (
	severityPattern  = regexp.MustCompile(`\*\*Severity:\*\*\s*(\w+)`)
	sectionIDPattern = regexp.MustCompile(`\*\*Section ID:\*\*\s*(\w+)`)
	nonSlugChars     = regexp.MustCompile(`[^a-z0-9]+`)
)

// ParseMarkdown reads a troubleshooting document: optional YAML frontmatter
// between "---" fences, then a body split into sections at "## " headings.
// Frontmatter scalars become document metadata (lists are joined with ", ").
// Text before the first heading becomes an "introduction" section.
func ParseMarkdown(documentID, raw string) (model.Document, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	meta, body, err := splitFrontmatter(raw)
	if err != nil {
		return model.Document{}, fmt.Errorf("document %s: %v: %w", documentID, err, model.ErrInvalidDocument)
	}
	return model.Document{
		ID:       documentID,
		Text:     body,
		Metadata: meta,
		Sections: parseSections(body),
	}, nil
}

func splitFrontmatter(raw string) (map[string]string, string, error) {
	meta := map[string]string{}
	if !strings.HasPrefix(raw, "---\n") {
		return meta, raw, nil
	}
	rest := raw[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return meta, raw, nil
	}
	header := rest[:end]
	body := strings.TrimLeft(rest[end+len("\n---"):], "\n")

	var fm map[string]interface{}
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	for k, v := range fm {
		meta[k] = flattenValue(v)
	}
	return meta, body, nil
}

func flattenValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, flattenValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+flattenValue(t[k]))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

type heading struct {
	title string
	byte  int
}

func parseSections(body string) []model.Section {
	var headings []heading
	offset := 0
	for _, line := range strings.SplitAfter(body, "\n") {
		if strings.HasPrefix(line, "## ") {
			headings = append(headings, heading{title: strings.TrimSpace(line[3:]), byte: offset})
		}
		offset += len(line)
	}

	var sections []model.Section
	add := func(id, title string, from, to int) {
		text := body[from:to]
		s := model.Section{
			ID:    id,
			Title: title,
			Start: utf8.RuneCountInString(body[:from]),
			End:   utf8.RuneCountInString(body[:to]),
		}
		if m := sectionIDPattern.FindStringSubmatch(text); m != nil {
			s.ID = m[1]
		}
		if m := severityPattern.FindStringSubmatch(text); m != nil {
			s.Severity = strings.ToLower(m[1])
		}
		sections = append(sections, s)
	}

	first := len(body)
	if len(headings) > 0 {
		first = headings[0].byte
	}
	if strings.TrimSpace(body[:first]) != "" {
		add("introduction", "Introduction", 0, first)
	}
	for i, h := range headings {
		end := len(body)
		if i+1 < len(headings) {
			end = headings[i+1].byte
		}
		add(slug(h.title), h.title, h.byte, end)
	}
	return sections
}

func slug(title string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(title), "_")
	return strings.Trim(s, "_")
}
