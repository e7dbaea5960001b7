package parser

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/models"
)

const (
	DefaultChunkSize    = 1000 // characters
	DefaultChunkOverlap = 200  // characters
)

// Boundaries tried in order: headings, fences and rules, paragraphs, lines,
// words, and finally single characters.
var markdownSeparators = []string{
	"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
	"```\n",
	"\n***\n", "\n---\n", "\n___\n",
	"\n\n", "\n", " ", "",
}

// Chunker splits page markdown into overlapping, size-bounded chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	splitter     textsplitter.TextSplitter
}

// NewChunker returns a Chunker; overlap must lie in [0, chunkSize].
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, apperr.Inputf("chunker", "chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap > chunkSize {
		return nil, apperr.Inputf("chunker", "chunk overlap %d must be within [0, %d]", chunkOverlap, chunkSize)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(markdownSeparators),
			textsplitter.WithKeepSeparator(true),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Chunk splits every non-empty page. Pages are processed in index order,
// PageIndex is the 1-based page number and ChunkIndex restarts at 0 per page.
func (c *Chunker) Chunk(pages []models.Page, filename string) ([]models.Chunk, error) {
	ordered := make([]models.Page, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var chunks []models.Chunk
	for _, page := range ordered {
		if strings.TrimSpace(page.Markdown) == "" {
			continue
		}
		pieces, err := c.splitter.SplitText(page.Markdown)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d of %s: %w", page.Index+1, filename, err)
		}
		chunkIndex := 0
		for _, piece := range pieces {
			text := strings.TrimSpace(piece)
			if text == "" {
				continue
			}
			if n := utf8.RuneCountInString(text); n > c.chunkSize {
				log.Warn().Str("filename", filename).Int("page_index", page.Index+1).
					Int("chunk_index", chunkIndex).Int("length", n).Int("chunk_size", c.chunkSize).
					Msg("Chunk exceeds chunk size")
			}
			chunks = append(chunks, models.Chunk{
				PageIndex:  page.Index + 1,
				ChunkIndex: chunkIndex,
				Text:       text,
				Filename:   filename,
			})
			chunkIndex++
		}
	}
	return chunks, nil
}
