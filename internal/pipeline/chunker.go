// Package pipeline turns source documents into indexed chunks.
package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"advisor-gpt-go/internal/model"
)

// Chunker splits text into fixed-size rune windows that overlap by a fixed
// number of runes.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker requires size > 0 and 0 <= overlap < size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, model.ErrInvalidInput)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d: %w", size, overlap, model.ErrInvalidInput)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size is the window length in runes.
func (c *Chunker) Size() int    { return c.size }
// Overlap is the number of runes shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk walks doc.Text in windows of c.size runes advancing by
// c.size-c.overlap. The last window ends at the end of the text. Chunk ids
// are "<document_id>_<seq>" so re-chunking the same document yields the same ids.
func (c *Chunker) Chunk(doc model.Document) ([]model.Chunk, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return nil, fmt.Errorf("document id is empty: %w", model.ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("document %s has no text: %w", doc.ID, model.ErrInvalidDocument)
	}

	runes := []rune(doc.Text)
	step := c.size - c.overlap
	base := c.baseMetadata(doc)

	var chunks []model.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		seq := len(chunks)
		chunks = append(chunks, model.Chunk{
			ID:          doc.ID + "_" + strconv.Itoa(seq),
			DocumentID:  doc.ID,
			Seq:         seq,
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
			Metadata:    withSection(base, doc.Sections, start),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

func (c *Chunker) baseMetadata(doc model.Document) map[string]string {
	meta := make(map[string]string, len(doc.Metadata)+3)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	if meta[model.MetaSourceDocument] == "" {
		if src := doc.Metadata["source_file"]; src != "" {
			meta[model.MetaSourceDocument] = src
		} else {
			meta[model.MetaSourceDocument] = doc.ID
		}
	}
	meta[model.MetaChunkSize] = strconv.Itoa(c.size)
	meta[model.MetaChunkOverlap] = strconv.Itoa(c.overlap)
	return meta
}

// withSection copies base and adds the section containing offset, if any.
func withSection(base map[string]string, sections []model.Section, offset int) map[string]string {
	meta := make(map[string]string, len(base)+3)
	for k, v := range base {
		meta[k] = v
	}
	for _, s := range sections {
		if offset >= s.Start && offset < s.End {
			meta[model.MetaSectionID] = s.ID
			meta[model.MetaSectionTitle] = s.Title
			if s.Severity != "" {
				meta[model.MetaSeverity] = s.Severity
			}
			break
		}
	}
	return meta
}
