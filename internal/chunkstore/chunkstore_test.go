package chunkstore

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/models"
)

func sampleChunks() []models.Chunk {
	return []models.Chunk{
		{PageIndex: 1, ChunkIndex: 0, Text: "# Title\n\nIntro & <overview>", Filename: "a.pdf"},
		{PageIndex: 1, ChunkIndex: 1, Text: "Ünïcode text — preserved", Filename: "a.pdf"},
		{PageIndex: 3, ChunkIndex: 0, Text: "last page", Filename: "a.pdf"},
	}
}

func TestSaveLoad_roundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "a.chunks.json")
	want := sampleChunks()
	if err := Save(want, path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSave_humanReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.chunks.json")
	if err := Save(sampleChunks(), path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"page_index": 1`, `"chunk_index": 0`, `Intro & <overview>`, `Ünïcode`} {
		if !strings.Contains(s, want) {
			t.Errorf("chunk file should contain %q:\n%s", want, s)
		}
	}
}

func TestSave_existingDirAndOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.chunks.json")
	if err := Save(sampleChunks(), path); err != nil {
		t.Fatal(err)
	}
	if err := Save(sampleChunks()[:1], path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected overwritten file with 1 chunk, got %d", len(got))
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestLoad_notFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.chunks.json"))
	if !apperr.Is(err, apperr.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestLoad_corrupt(t *testing.T) {
	tests := map[string]string{
		"truncated":     `[{"page_index": 1,`,
		"not a list":    `{"page_index": 1}`,
		"null":          `null`,
		"bad page":      `[{"page_index": 0, "chunk_index": 0, "text": "x", "filename": "a.pdf"}]`,
		"empty text":    `[{"page_index": 1, "chunk_index": 0, "text": "", "filename": "a.pdf"}]`,
		"unknown field": `[{"page_index": 1, "chunk_index": 0, "text": "x", "filename": "a.pdf", "extra": 1}]`,
		"wrong type":    `[{"page_index": "one", "chunk_index": 0, "text": "x", "filename": "a.pdf"}]`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.chunks.json")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if !apperr.Is(err, apperr.DataCorruption) {
				t.Errorf("expected data corruption, got %v", err)
			}
		})
	}
}

func TestPathFor(t *testing.T) {
	if got := PathFor("data/chunks", "Report.v2.pdf"); got != filepath.Join("data/chunks", "Report.v2.chunks.json") {
		t.Errorf("PathFor=%q", got)
	}
}
