package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pdf-rag/internal/apperr"
)

func TestLocalPDFExtractor_missingFile(t *testing.T) {
	_, err := NewLocalPDFExtractor().Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	if !apperr.Is(err, apperr.Input) {
		t.Errorf("expected input error, got %v", err)
	}
}

func TestLocalPDFExtractor_notAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	if err := os.WriteFile(path, []byte("plain text, no xref"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewLocalPDFExtractor().Extract(context.Background(), path)
	if !apperr.Is(err, apperr.Input) {
		t.Errorf("expected input error, got %v", err)
	}
}
