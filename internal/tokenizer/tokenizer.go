// Package tokenizer counts tokens for context budgeting and chunk metadata.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
)

// Tiktoken counts BPE tokens of a fixed encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// New loads the named BPE encoding (e.g. "cl100k_base"). Loading may need
// network access or TIKTOKEN_CACHE_DIR; callers decide what to do on error.
func New(encoding string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Whitespace counts whitespace-separated words.
type Whitespace struct{}

func (Whitespace) Count(text string) int {
	return len(strings.Fields(text))
}

// NewOrFallback returns the BPE tokenizer, or Whitespace when it cannot be loaded.
func NewOrFallback(encoding string) models.Tokenizer {
	t, err := New(encoding)
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to whitespace token counting")
		return Whitespace{}
	}
	return t
}
