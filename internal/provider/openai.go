// Package provider talks to an OpenAI-compatible completion and embedding service.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"clinisum/internal/domain"
)

const (
	DefaultCompletionModel = "gpt-3.5-turbo"
	DefaultEmbeddingModel  = "text-embedding-3-small"
)

// Config selects the endpoint and models of the client.
type Config struct {
	APIKey string
	// BaseURL points the client at an OpenAI-compatible endpoint; empty means api.openai.com.
	BaseURL         string
	CompletionModel string
	EmbeddingModel  string
}

// OpenAI is created once per process and shared by all requests.
type OpenAI struct {
	client          openai.Client
	completionModel string
	embeddingModel  string
}

// NewOpenAI builds a client with retries disabled.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Failures surface to the caller as they are.
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	completionModel := strings.TrimSpace(cfg.CompletionModel)
	if completionModel == "" {
		completionModel = DefaultCompletionModel
	}

	embeddingModel := strings.TrimSpace(cfg.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	return &OpenAI{
		client:          openai.NewClient(opts...),
		completionModel: completionModel,
		embeddingModel:  embeddingModel,
	}, nil
}

// Complete runs a single chat completion.
func (p *OpenAI) Complete(
	ctx context.Context,
	req domain.CompletionRequest,
) (domain.Completion, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.completionModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemInstruction),
			openai.UserMessage(req.UserPrompt),
		},
		Temperature: openai.Float(req.Temperature),
		MaxTokens:   openai.Int(int64(req.MaxOutputTokens)),
	})
	if err != nil {
		return domain.Completion{}, completionError(fmt.Errorf("do request: %w", err))
	}

	if len(resp.Choices) == 0 {
		return domain.Completion{}, completionError(
			fmt.Errorf("response has no choices (model = %s)", resp.Model),
		)
	}

	return domain.Completion{
		Text:        resp.Choices[0].Message.Content,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}

// Embed embeds texts in one request. Vectors are placed by the index the
// service reports, so the output order always equals the input order.
func (p *OpenAI) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, embeddingError(fmt.Errorf("do request: %w", err))
	}

	vectors := make([][]float64, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(texts) {
			return nil, embeddingError(fmt.Errorf("index out of range (index = %d, inputs = %d)", idx, len(texts)))
		}
		if vectors[idx] != nil {
			return nil, embeddingError(fmt.Errorf("duplicate index (index = %d)", idx))
		}
		vectors[idx] = item.Embedding
	}

	for i, v := range vectors {
		if v == nil {
			return nil, embeddingError(fmt.Errorf("missing embedding (index = %d, inputs = %d)", i, len(texts)))
		}
	}

	return vectors, nil
}

// Ping checks that the service is reachable and knows the completion model.
// It does not consume tokens.
func (p *OpenAI) Ping(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.completionModel); err != nil {
		return fmt.Errorf("get model (model = %s): %w", p.completionModel, err)
	}
	return nil
}

func (p *OpenAI) CompletionModel() string {
	return p.completionModel
}

func completionError(err error) error {
	return &domain.ServiceError{Service: domain.ServiceCompletion, Err: err}
}

func embeddingError(err error) error {
	return &domain.ServiceError{Service: domain.ServiceEmbedding, Err: err}
}
