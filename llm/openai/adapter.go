// Package openai adapts an OpenAI-compatible chat completions endpoint to
// the model.LanguageModel collaborator interface, used by the built-in
// local skill handlers (get_clause_context, semantic_search,
// validate_strategy, generate_diffs)
// when the embedding_service/remote_skill_service config names no remote
// provider.
package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Client wraps a go-openai client bound to one model name, implementing
// model.LanguageModel.
type Client struct {
	api   *openai.Client
	model string
}

// Config carries the connection details for an OpenAI-compatible endpoint.
// BaseURL empty means the real OpenAI API; anything else (including a
// mock-llm fixture server) is treated as OpenAI-compatible.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// New builds a Client from Config.
func New(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{api: openai.NewClientWithConfig(clientCfg), model: cfg.Model}
}

// Complete implements model.LanguageModel.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed implements model.EmbeddingModel, letting the same endpoint back
// both the LanguageModel and EmbeddingModel collaborators.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: create embeddings returned no data")
	}
	return resp.Data[0].Embedding, nil
}
