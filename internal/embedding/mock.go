package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// MockEmbedder is a deterministic embedder for tests: the same text always
// maps to the same unit vector. It records every EmbedDocuments batch size.
type MockEmbedder struct {
	dimensions int

	mu      sync.Mutex
	batches []int
}

func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 16
	}
	return &MockEmbedder{dimensions: dimensions}
}

func (e *MockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batches = append(e.batches, len(texts))
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *MockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

// Batches returns the sizes of all EmbedDocuments calls so far.
func (e *MockEmbedder) Batches() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.batches...)
}

func (e *MockEmbedder) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := float64(h.Sum64()%100000) + 1

	emb := make([]float32, e.dimensions)
	var sum float64
	for i := range emb {
		v := math.Sin(seed*float64(i+1))*0.5 + 0.01
		emb[i] = float32(v)
		sum += v * v
	}
	norm := 1 / math.Sqrt(sum)
	for i := range emb {
		emb[i] = float32(float64(emb[i]) * norm)
	}
	return emb
}
