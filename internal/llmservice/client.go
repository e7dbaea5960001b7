package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/config"
)

// Generator answers a system/user prompt pair with a chat model.
type Generator struct {
	llm   llms.Model
	model string
}

// NewGenerator connects to an OpenAI-compatible chat endpoint (OpenAI, a router, ...).
func NewGenerator(cfg *config.LLMConfig) (*Generator, error) {
	log.Debug().Interface("llmConfig", map[string]string{
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Creating generator")

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	return NewGeneratorWithModel(llm, cfg.Model), nil
}

// NewGeneratorWithModel wraps an existing langchaingo model.
func NewGeneratorWithModel(llm llms.Model, model string) *Generator {
	return &Generator{llm: llm, model: model}
}

// Complete sends one system and one user message and returns the first choice.
func (g *Generator) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	res, err := g.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", apperr.UpstreamErr("generate", err)
	}
	if res == nil || len(res.Choices) == 0 {
		return "", apperr.UpstreamErr("generate", errors.New("no response choices found"))
	}
	log.Debug().Str("model", g.model).Str("stop_reason", res.Choices[0].StopReason).Msg("Generated answer")
	return res.Choices[0].Content, nil
}
