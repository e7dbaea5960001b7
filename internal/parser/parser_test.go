package parser

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/models"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%02d", i)
	}
	return strings.Join(w, " ")
}

func mustChunker(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	c, err := NewChunker(size, overlap)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewChunker_invalid(t *testing.T) {
	tests := []struct{ size, overlap int }{
		{0, 0},
		{-5, 0},
		{100, 101},
		{100, -1},
	}
	for _, tt := range tests {
		if _, err := NewChunker(tt.size, tt.overlap); !apperr.Is(err, apperr.Input) {
			t.Errorf("NewChunker(%d, %d): expected input error, got %v", tt.size, tt.overlap, err)
		}
	}
}

func TestChunker_threeParagraphs(t *testing.T) {
	para := strings.Repeat("a", 600)
	text := strings.Join([]string{para, para, para}, "\n\n")
	c := mustChunker(t, DefaultChunkSize, DefaultChunkOverlap)
	chunks, err := c.Chunk([]models.Page{{Index: 0, Markdown: text}}, "manual.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.PageIndex != 1 || ch.ChunkIndex != i || ch.Filename != "manual.pdf" || ch.Text != para {
			t.Errorf("chunk %d: %+v", i, ch)
		}
	}
}

func TestChunker_orderingAndSizeBound(t *testing.T) {
	pages := []models.Page{
		{Index: 2, Markdown: "# Third\n\n" + words(80)},
		{Index: 0, Markdown: "# First\n\n" + words(60)},
		{Index: 1, Markdown: "   \n\t"},
	}
	c := mustChunker(t, 50, 20)
	chunks, err := c.Chunk(pages, "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	prevPage, next := 0, 0
	for _, ch := range chunks {
		if ch.PageIndex == 2 {
			t.Fatal("empty page should be skipped")
		}
		if ch.PageIndex < prevPage {
			t.Fatalf("page index decreased: %d after %d", ch.PageIndex, prevPage)
		}
		if ch.PageIndex != prevPage {
			prevPage, next = ch.PageIndex, 0
		}
		if ch.ChunkIndex != next {
			t.Errorf("page %d: chunk index %d, want %d", ch.PageIndex, ch.ChunkIndex, next)
		}
		next++
		if n := utf8.RuneCountInString(ch.Text); n > 50 || n == 0 {
			t.Errorf("chunk length %d out of bounds: %q", n, ch.Text)
		}
	}
	if chunks[0].PageIndex != 1 || chunks[len(chunks)-1].PageIndex != 3 {
		t.Errorf("unexpected page range %d..%d", chunks[0].PageIndex, chunks[len(chunks)-1].PageIndex)
	}
}

func TestChunker_overlap(t *testing.T) {
	c := mustChunker(t, 50, 20)
	chunks, err := c.Chunk([]models.Page{{Index: 0, Markdown: words(60)}}, "doc.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		first := strings.Fields(chunks[i].Text)[0]
		if !strings.Contains(chunks[i-1].Text, first) {
			t.Errorf("chunk %d should start inside the tail of chunk %d: %q / %q", i, i-1, chunks[i-1].Text, chunks[i].Text)
		}
	}
}

func TestChunker_keepsHeadingMarkers(t *testing.T) {
	page := "# Title\n\nIntro.\n## Safety\n\nDo not open the case while powered on.\n## Warranty\n\nTwo years parts and labour."
	c := mustChunker(t, 60, 10)
	chunks, err := c.Chunk([]models.Page{{Index: 0, Markdown: page}}, "manual.pdf")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"# Title\n\nIntro.",
		"## Safety\n\nDo not open the case while powered on.",
		"## Warranty\n\nTwo years parts and labour.",
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, ch := range chunks {
		if ch.Text != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, ch.Text, want[i])
		}
	}
}

func TestChunker_keepsCodeFence(t *testing.T) {
	page := "Wiring steps.\n```\nL1 -> brown\nN -> blue\n```\nThen close the cover and restore power to the unit."
	c := mustChunker(t, 60, 0)
	chunks, err := c.Chunk([]models.Page{{Index: 0, Markdown: page}}, "manual.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if !strings.Contains(chunks[0].Text, "```\nL1 -> brown") {
		t.Errorf("opening fence lost: %q", chunks[0].Text)
	}
	if !strings.HasPrefix(chunks[1].Text, "```\nThen close") {
		t.Errorf("closing fence lost: %q", chunks[1].Text)
	}
}

func TestChunker_hardCut(t *testing.T) {
	c := mustChunker(t, 100, 10)
	chunks, err := c.Chunk([]models.Page{{Index: 0, Markdown: strings.Repeat("x", 450)}}, "scan.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 5 {
		t.Fatalf("expected at least 5 chunks, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if len(ch.Text) > 100 {
			t.Errorf("chunk of %d chars exceeds bound", len(ch.Text))
		}
	}
}

func TestChunker_deterministic(t *testing.T) {
	pages := []models.Page{
		{Index: 0, Markdown: "# Intro\n\n" + words(90) + "\n\n## Details\n\n" + words(40)},
		{Index: 1, Markdown: words(70)},
	}
	c := mustChunker(t, 120, 30)
	a, err := c.Chunk(pages, "d.pdf")
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Chunk(pages, "d.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("chunking must be deterministic")
	}
}

func TestChunker_noPages(t *testing.T) {
	c := mustChunker(t, 100, 10)
	chunks, err := c.Chunk(nil, "empty.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}
