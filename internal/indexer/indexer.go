// Package indexer embeds chunks in batches and upserts them into a vector collection.
package indexer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/chunkstore"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

const DefaultBatchSize = 64

// Indexer writes chunk vectors into one collection. Indexing is additive:
// every call creates fresh ids, so re-indexing a file duplicates its records
// unless the caller deletes them first.
type Indexer struct {
	store     models.VectorStore
	embedder  embeddings.Embedder
	tokenizer models.Tokenizer
	batchSize int
	newID     func() (string, error)
}

// New returns an Indexer. tokenizer may be nil, in which case records carry
// no token_count; batchSize <= 0 selects DefaultBatchSize.
func New(store models.VectorStore, embedder embeddings.Embedder, tokenizer models.Tokenizer, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Indexer{
		store:     store,
		embedder:  embedder,
		tokenizer: tokenizer,
		batchSize: batchSize,
		newID:     helper.GenerateUUID,
	}
}

// Index embeds and stores chunks batch by batch. A failing batch aborts the
// call; batches stored before it stay visible.
func (ix *Indexer) Index(ctx context.Context, chunks []models.Chunk) (*models.IndexResult, error) {
	result := &models.IndexResult{NChunks: len(chunks), CollectionName: ix.store.Name()}
	if len(chunks) == 0 {
		log.Warn().Str("collection", result.CollectionName).Msg("No chunks found, nothing to embed")
		return result, nil
	}

	for start := 0; start < len(chunks); start += ix.batchSize {
		end := min(start+ix.batchSize, len(chunks))
		n, err := ix.indexBatch(ctx, chunks[start:end])
		if err != nil {
			return nil, err
		}
		result.NVectors += n
	}

	log.Info().Int("n_vectors", result.NVectors).Str("collection", result.CollectionName).
		Msg("Stored vectors in collection")
	return result, nil
}

// IndexFile loads a chunk file written by chunkstore.Save and indexes it.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (*models.IndexResult, error) {
	log.Info().Str("path", path).Msg("Loading chunk list")
	chunks, err := chunkstore.Load(path)
	if err != nil {
		return nil, err
	}
	return ix.Index(ctx, chunks)
}

func (ix *Indexer) indexBatch(ctx context.Context, batch []models.Chunk) (int, error) {
	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Text
	}

	log.Debug().Int("size", len(batch)).Msg("Embedding batch of chunks")
	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, apperr.UpstreamErr("embed", err)
	}
	if len(vectors) != len(texts) {
		return 0, apperr.UpstreamErr("embed", fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts)))
	}

	records := make([]models.VectorRecord, len(batch))
	for i, ch := range batch {
		id, err := ix.newID()
		if err != nil {
			return 0, err
		}
		meta := models.ChunkMetadata{
			Filename:   ch.Filename,
			PageIndex:  ch.PageIndex,
			ChunkIndex: ch.ChunkIndex,
		}
		if ix.tokenizer != nil {
			n := ix.tokenizer.Count(ch.Text)
			meta.TokenCount = &n
		}
		records[i] = models.VectorRecord{ID: id, Embedding: vectors[i], Text: ch.Text, Metadata: meta}
	}

	if err := ix.store.Upsert(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
