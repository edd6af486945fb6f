package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor-gpt-go/internal/model"
)

func TestNewChunkerValidatesParameters(t *testing.T) {
	_, err := NewChunker(0, 0)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = NewChunker(10, 10)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = NewChunker(10, -1)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestChunkEightThree(t *testing.T) {
	c, err := NewChunker(8, 3)
	require.NoError(t, err)

	chunks, err := c.Chunk(model.Document{ID: "D1", Text: "ABCDEFGHIJKLMNOPQRST"})
	require.NoError(t, err)

	want := []struct {
		text       string
		start, end int
	}{
		{"ABCDEFGH", 0, 8},
		{"FGHIJKLM", 5, 13},
		{"KLMNOPQR", 10, 18},
		{"PQRST", 15, 20},
	}
	require.Len(t, chunks, len(want))
	for i, w := range want {
		assert.Equal(t, w.text, chunks[i].Text, "chunk %d", i)
		assert.Equal(t, w.start, chunks[i].StartOffset)
		assert.Equal(t, w.end, chunks[i].EndOffset)
		assert.Equal(t, i, chunks[i].Seq)
		assert.Equal(t, "D1", chunks[i].DocumentID)
	}
	assert.Equal(t, "D1_0", chunks[0].ID)
	assert.Equal(t, "D1_3", chunks[3].ID)
}

func TestChunkReconstructsText(t *testing.T) {
	texts := []string{
		"short",
		strings.Repeat("pump seal ", 97),
		"Überdruckventil prüfen — 압력 확인 🚨 " + strings.Repeat("ü", 41),
	}
	params := [][2]int{{8, 3}, {10, 0}, {16, 15}, {800, 120}}

	for _, text := range texts {
		for _, p := range params {
			c, err := NewChunker(p[0], p[1])
			require.NoError(t, err)
			chunks, err := c.Chunk(model.Document{ID: "d", Text: text})
			require.NoError(t, err)

			runes := []rune(text)
			var rebuilt []rune
			for i, ch := range chunks {
				r := []rune(ch.Text)
				assert.LessOrEqual(t, len(r), p[0])
				assert.Equal(t, string(runes[ch.StartOffset:ch.EndOffset]), ch.Text)
				if i == 0 {
					rebuilt = append(rebuilt, r...)
					continue
				}
				assert.Equal(t, chunks[i-1].EndOffset-p[1], ch.StartOffset, "overlap between %d and %d", i-1, i)
				rebuilt = append(rebuilt, r[p[1]:]...)
			}
			assert.Equal(t, text, string(rebuilt), "size=%d overlap=%d", p[0], p[1])
			assert.Equal(t, len(runes), chunks[len(chunks)-1].EndOffset)
		}
	}
}

func TestChunkIsDeterministic(t *testing.T) {
	c, err := NewChunker(5, 2)
	require.NoError(t, err)
	doc := model.Document{ID: "doc", Text: "the quick brown fox"}
	a, err := c.Chunk(doc)
	require.NoError(t, err)
	b, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestChunkRejectsEmptyDocuments(t *testing.T) {
	c, err := NewChunker(8, 3)
	require.NoError(t, err)

	_, err = c.Chunk(model.Document{ID: "d", Text: ""})
	assert.ErrorIs(t, err, model.ErrInvalidDocument)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = c.Chunk(model.Document{ID: "d", Text: " \n\t "})
	assert.ErrorIs(t, err, model.ErrInvalidDocument)

	_, err = c.Chunk(model.Document{Text: "text"})
	assert.ErrorIs(t, err, model.ErrInvalidDocument)
}

func TestChunkMetadata(t *testing.T) {
	c, err := NewChunker(10, 2)
	require.NoError(t, err)

	doc := model.Document{
		ID:       "hydromax",
		Text:     "0123456789abcdefghij",
		Metadata: map[string]string{"product": "HydroMax", "source_file": "hydromax.md"},
		Sections: []model.Section{
			{ID: "introduction", Title: "Introduction", Start: 0, End: 8},
			{ID: "HM01", Title: "Pressure Loss", Severity: "high", Start: 8, End: 20},
		},
	}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "HydroMax", chunks[0].Metadata["product"])
	assert.Equal(t, "hydromax.md", chunks[0].Metadata[model.MetaSourceDocument])
	assert.Equal(t, "10", chunks[0].Metadata[model.MetaChunkSize])
	assert.Equal(t, "2", chunks[0].Metadata[model.MetaChunkOverlap])
	assert.Equal(t, "introduction", chunks[0].Metadata[model.MetaSectionID])
	assert.Empty(t, chunks[0].Metadata[model.MetaSeverity])

	assert.Equal(t, "HM01", chunks[1].Metadata[model.MetaSectionID])
	assert.Equal(t, "high", chunks[1].Metadata[model.MetaSeverity])

	// The document's own metadata map is not mutated.
	_, touched := doc.Metadata[model.MetaChunkSize]
	assert.False(t, touched)
}
