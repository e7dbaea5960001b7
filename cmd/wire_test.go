package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/ocr"
	"pdf-rag/internal/parser"
)

func TestNewExtractor(t *testing.T) {
	if _, ok := newExtractor(&config.OCRConfig{Provider: config.ProviderLocal}).(*parser.LocalPDFExtractor); !ok {
		t.Error("local provider should use the local PDF extractor")
	}
	if _, ok := newExtractor(&config.OCRConfig{Provider: config.ProviderMistral, APIKey: "k"}).(*ocr.Client); !ok {
		t.Error("mistral provider should use the OCR client")
	}
}

func TestNewStore_chromem(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.PersistDir = filepath.Join(t.TempDir(), "chroma")
	cfg.Storage.CollectionName = "manuals"
	cfg.RAG.TokenizerEncoding = "no-such-encoding"

	store, err := newStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, ok := store.(*chromemdb.VectorDBManager); !ok || store.Name() != "manuals" {
		t.Errorf("store: got %T %s", store, store.Name())
	}
	if _, ok := store.(dropper); !ok {
		t.Error("chromem store should support drop")
	}

	comp := &components{cfg: cfg, store: store}
	if _, err := comp.chromemStore(); err != nil {
		t.Errorf("chromemStore: %v", err)
	}
	if _, err := comp.newIndexer().IndexFile(context.Background(), filepath.Join(t.TempDir(), "none.chunks.json")); err == nil {
		t.Error("expected an error for a missing chunk file")
	}
}

func TestNewStore_unknown(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "faiss"
	if _, err := newStore(cfg); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	setupLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	defer setupLogger(&buf, config.LogConfig{Level: "info"})

	log.Info().Msg("hidden")
	log.Warn().Str("filename", "manual.pdf").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"filename":"manual.pdf"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}
