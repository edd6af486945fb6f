package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor-gpt-go/internal/model"
)

const hydromaxDoc = `---
product: HydroMax 3000
product_category: pumps
doc_type: troubleshooting
applicable_models:
  - HM-3000
  - HM-3100
source_file: hydromax_3000.md
---
HydroMax pumps are used in industrial coolant loops.

## Low Discharge Pressure
**Section ID:** HM_PRESS_01
**Severity:** High

1. Check the inlet strainer for blockage.
2. Inspect the impeller for wear.

## Abnormal Noise
**Severity:** Medium

Cavitation usually causes a gravel-like sound.
`

func TestParseMarkdownFrontmatterAndSections(t *testing.T) {
	doc, err := ParseMarkdown("hydromax", hydromaxDoc)
	require.NoError(t, err)

	assert.Equal(t, "hydromax", doc.ID)
	assert.Equal(t, "HydroMax 3000", doc.Metadata["product"])
	assert.Equal(t, "pumps", doc.Metadata["product_category"])
	assert.Equal(t, "HM-3000, HM-3100", doc.Metadata["applicable_models"])
	assert.Equal(t, "hydromax_3000.md", doc.Metadata["source_file"])
	assert.False(t, strings.HasPrefix(doc.Text, "---"))
	assert.True(t, strings.HasPrefix(doc.Text, "HydroMax pumps"))

	require.Len(t, doc.Sections, 3)
	intro, press, noise := doc.Sections[0], doc.Sections[1], doc.Sections[2]

	assert.Equal(t, "introduction", intro.ID)
	assert.Equal(t, 0, intro.Start)

	assert.Equal(t, "HM_PRESS_01", press.ID)
	assert.Equal(t, "Low Discharge Pressure", press.Title)
	assert.Equal(t, "high", press.Severity)

	assert.Equal(t, "abnormal_noise", noise.ID)
	assert.Equal(t, "medium", noise.Severity)

	// Sections tile the body.
	assert.Equal(t, intro.End, press.Start)
	assert.Equal(t, press.End, noise.Start)
	assert.Equal(t, len([]rune(doc.Text)), noise.End)
	assert.True(t, strings.HasPrefix(string([]rune(doc.Text)[press.Start:]), "## Low Discharge Pressure"))
}

func TestParseMarkdownWithoutFrontmatter(t *testing.T) {
	doc, err := ParseMarkdown("plain", "Just some notes.\nNo headings here.")
	require.NoError(t, err)
	assert.Empty(t, doc.Metadata)
	assert.Equal(t, "Just some notes.\nNo headings here.", doc.Text)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "introduction", doc.Sections[0].ID)
}

func TestParseMarkdownRejectsBadFrontmatter(t *testing.T) {
	_, err := ParseMarkdown("bad", "---\nproduct: [unclosed\n---\nbody")
	assert.ErrorIs(t, err, model.ErrInvalidDocument)
}

func TestParsedSectionsFlowIntoChunks(t *testing.T) {
	doc, err := ParseMarkdown("hydromax", hydromaxDoc)
	require.NoError(t, err)
	c, err := NewChunker(80, 10)
	require.NoError(t, err)

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "introduction", chunks[0].Metadata[model.MetaSectionID])
	assert.Equal(t, "hydromax_3000.md", chunks[0].Metadata[model.MetaSourceDocument])

	var sawHigh bool
	for _, ch := range chunks {
		if ch.Metadata[model.MetaSeverity] == "high" {
			sawHigh = true
		}
	}
	assert.True(t, sawHigh)
}
