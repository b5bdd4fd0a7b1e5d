package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hakim/vulnpipe/internal/models"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider runs the analysis through the OpenAI chat API, or any
// compatible endpoint when a base URL is set.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(model, apiKey, baseURL string) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return &OpenAIProvider{}
	}
	if model == "" {
		model = defaultOpenAIModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Validate only checks for credentials; a live API call would spend
// quota on every run.
func (p *OpenAIProvider) Validate(ctx context.Context) error {
	if p.client == nil {
		return ErrNotConfigured
	}
	return nil
}

func (p *OpenAIProvider) Analyze(ctx context.Context, sc *models.ScanContext, prompt string) (string, error) {
	if p.client == nil {
		return "", ErrNotConfigured
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildSummary(sc)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
