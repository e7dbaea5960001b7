package models

import "context"

// Extractor turns a local document into paged markdown text.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// Generator completes a system/user prompt pair.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Tokenizer counts tokens for budgeting and metadata.
type Tokenizer interface {
	Count(text string) int
}

// VectorStore is a named, durable collection of vector records.
// Query returns matches ordered by ascending distance.
type VectorStore interface {
	Name() string
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]RetrievedMatch, error)
	DeleteByFilename(ctx context.Context, filename string) error
	Count(ctx context.Context) (int, error)
	Close() error
}
