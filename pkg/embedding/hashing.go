package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingClient is a local bag-of-words embedder: each lowercased token is
// hashed into one of Dimensions buckets and the vector is L2-normalised.
// Texts sharing vocabulary score high under cosine similarity, which is
// enough for offline development and tests.
type HashingClient struct {
	Dimensions int
}

// NewHashingClient returns a HashingClient; dimensions <= 0 means 256.
func NewHashingClient(dimensions int) *HashingClient {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &HashingClient{Dimensions: dimensions}
}

func (h *HashingClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := make([]float32, h.Dimensions)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		v[int(f.Sum32()%uint32(h.Dimensions))]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	if sum > 0 {
		norm := float32(1 / math.Sqrt(sum))
		for i := range v {
			v[i] *= norm
		}
	}
	return v, nil
}

func (h *HashingClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.CreateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
