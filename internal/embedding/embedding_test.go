package embedding

import (
	"context"
	"math"
	"reflect"
	"testing"

	"pdf-rag/internal/config"
)

func TestMockEmbedder_deterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	ctx := context.Background()
	docs, err := e.EmbedDocuments(ctx, []string{"alpha", "beta"})
	if err != nil {
		t.Fatal(err)
	}
	q, _ := e.EmbedQuery(ctx, "alpha")
	if !reflect.DeepEqual(docs[0], q) {
		t.Error("query and document embeddings of the same text must match")
	}
	if reflect.DeepEqual(docs[0], docs[1]) {
		t.Error("different texts should embed differently")
	}
	var norm float64
	for _, v := range q {
		norm += float64(v * v)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("expected unit vector, norm^2=%f", norm)
	}
	if got := e.Batches(); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("batches=%v", got)
	}
}

func TestNewEmbedder_unknownProvider(t *testing.T) {
	if _, err := NewEmbedder(&config.LLMConfig{Provider: "cohere"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewEmbedder_openAI(t *testing.T) {
	e, err := NewEmbedder(&config.LLMConfig{
		Provider: config.ProviderOpenAI,
		BaseURL:  "http://127.0.0.1:1/v1",
		Model:    "text-embedding-3-small",
		APIKey:   "Bearer test",
	})
	if err != nil {
		t.Fatal(err)
	}
	if e == nil {
		t.Fatal("expected embedder")
	}
}
