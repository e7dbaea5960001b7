package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/indexer"
	"pdf-rag/internal/ingest"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
	"pdf-rag/internal/ocr"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/rag"
	"pdf-rag/internal/tokenizer"
)

// dropper is implemented by both vector store backends.
type dropper interface {
	Drop(ctx context.Context) error
}

// components are the long-lived pieces built from one config.
type components struct {
	cfg      *config.Config
	store    models.VectorStore
	embedder embeddings.Embedder
}

func newComponents(cfg *config.Config) (*components, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.NewEmbedder(&cfg.Embedder)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &components{cfg: cfg, store: store, embedder: embedder}, nil
}

func (c *components) Close() {
	if err := c.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing vector store")
	}
}

func newStore(cfg *config.Config) (models.VectorStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendPgvector:
		sqldb := db.ConnectDB(&cfg.Storage.Postgres)
		return db.NewStore(db.NewDB(sqldb, cfg.Storage.Postgres.Debug), cfg.Storage.CollectionName), nil
	case config.BackendChromem:
		return chromemdb.NewVectorDBManager(cfg.Storage.PersistDir, cfg.Storage.CollectionName, cfg.Storage.Compress)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// chromemStore returns the chromem manager behind c, for chromem-only operations.
func (c *components) chromemStore() (*chromemdb.VectorDBManager, error) {
	m, ok := c.store.(*chromemdb.VectorDBManager)
	if !ok {
		return nil, errors.New("export and import need storage.backend: chromem")
	}
	return m, nil
}

func newExtractor(cfg *config.OCRConfig) models.Extractor {
	if cfg.Provider == config.ProviderLocal {
		return parser.NewLocalPDFExtractor()
	}
	return ocr.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model)
}

// newIndexer leaves token_count out of the metadata when the BPE tokenizer cannot be loaded.
func (c *components) newIndexer() *indexer.Indexer {
	var tok models.Tokenizer
	if t, err := tokenizer.New(c.cfg.RAG.TokenizerEncoding); err == nil {
		tok = t
	} else {
		log.Warn().Err(err).Msg("Tokenizer unavailable, token_count will be omitted")
	}
	return indexer.New(c.store, c.embedder, tok, c.cfg.RAG.BatchSize)
}

func (c *components) newPipeline() (*ingest.Pipeline, error) {
	chunker, err := parser.NewChunker(c.cfg.RAG.ChunkSize, c.cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return ingest.NewPipeline(newExtractor(&c.cfg.OCR), chunker, c.newIndexer(), c.store, ingest.Options{
		UploadDir:     c.cfg.Storage.UploadDir,
		ChunkDir:      c.cfg.Storage.ChunkDir,
		ReindexPolicy: c.cfg.RAG.ReindexPolicy,
		Workers:       c.cfg.RAG.Workers,
	}), nil
}

func (c *components) newRetriever() (*rag.RAG, error) {
	generator, err := llmservice.NewGenerator(&c.cfg.Generator)
	if err != nil {
		return nil, err
	}
	return rag.NewRAG(
		c.store,
		c.embedder,
		generator,
		tokenizer.NewOrFallback(c.cfg.RAG.TokenizerEncoding),
		c.cfg.RAG.TopK,
		c.cfg.RAG.MaxTokensContext,
	), nil
}
