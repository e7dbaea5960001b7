package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/models"
)

const (
	DefaultTopK             = 4
	DefaultMaxTokensContext = 10000
)

// RAG answers questions from one vector collection. The embedder must be the
// same model that indexed the collection; distances are meaningless otherwise.
type RAG struct {
	store     models.VectorStore
	embedder  embeddings.Embedder
	generator models.Generator
	tokenizer models.Tokenizer
	topK      int
	maxTokens int
}

func NewRAG(store models.VectorStore, embedder embeddings.Embedder, generator models.Generator, tokenizer models.Tokenizer, topK, maxTokens int) *RAG {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokensContext
	}
	return &RAG{
		store:     store,
		embedder:  embedder,
		generator: generator,
		tokenizer: tokenizer,
		topK:      topK,
		maxTokens: maxTokens,
	}
}

// Retrieve embeds question and returns up to k nearest chunks, lowest distance first.
func (r *RAG) Retrieve(ctx context.Context, question string, k int) ([]models.RetrievedMatch, error) {
	queryEmbedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, apperr.UpstreamErr("embed", fmt.Errorf("failed to embed question: %w", err))
	}
	matches, err := r.store.Query(ctx, queryEmbedding, k)
	if err != nil {
		return nil, err
	}
	sortByScore(matches)
	return matches, nil
}

// BuildContext joins match texts, nearest first, until the next one would
// push the token count past maxTokens. Chunks are never truncated, so an
// oversized nearest match yields an empty window.
func BuildContext(matches []models.RetrievedMatch, maxTokens int, tok models.Tokenizer) models.ContextWindow {
	ordered := append([]models.RetrievedMatch(nil), matches...)
	sortByScore(ordered)

	var (
		window models.ContextWindow
		texts  []string
	)
	for _, m := range ordered {
		n := tok.Count(m.Text)
		if window.Tokens+n > maxTokens {
			break
		}
		window.Tokens += n
		texts = append(texts, m.Text)
		window.Used = append(window.Used, m)
	}
	window.Text = strings.Join(texts, models.ContextSeparator)
	return window
}

// Answer runs retrieval, context assembly and generation for one question.
func (r *RAG) Answer(ctx context.Context, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.Inputf("question", "question must not be empty")
	}

	matches, err := r.Retrieve(ctx, question, r.topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		log.Info().Str("collection", r.store.Name()).Msg("No matches retrieved, returning fallback answer")
		return &models.Answer{Answer: models.FallbackAnswer, Sources: []models.RetrievedMatch{}}, nil
	}

	window := BuildContext(matches, r.maxTokens, r.tokenizer)
	log.Debug().Int("tokens", window.Tokens).Int("chunks", len(window.Used)).Int("matches", len(matches)).
		Msg("Assembled context window")

	prompt := fmt.Sprintf(models.QuestionPromptTemplate, question, window.Text)
	answer, err := r.generator.Complete(ctx, models.AnswerInstruction, prompt)
	if err != nil {
		return nil, err
	}
	return &models.Answer{Answer: answer, Sources: matches}, nil
}

func sortByScore(matches []models.RetrievedMatch) {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score < matches[j].Score })
}
