// Package embedding turns extracted text into vectors through an
// OpenAI-compatible /v1/embeddings endpoint (OpenAI, Ollama, llama.cpp and
// similar servers).
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"glimpse/internal/services"
	"glimpse/internal/textutil"
)

// Config holds connection settings.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Dimensions    int
	Timeout       time.Duration
	MaxInputChars int
	MaxRetries    int
}

// Client requests embeddings for single text blocks.
type Client struct {
	api      openai.Client
	model    string
	dims     int
	maxChars int
	timeout  time.Duration
}

// New constructs a client. Model is required; BaseURL defaults to the OpenAI API.
func New(cfg Config) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "embedding", "new", "model required", nil)
	}
	opts := []option.RequestOption{option.WithMaxRetries(max(cfg.MaxRetries, 0))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")+"/"))
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	return &Client{
		api:      openai.NewClient(opts...),
		model:    model,
		dims:     cfg.Dimensions,
		maxChars: cfg.MaxInputChars,
		timeout:  cfg.Timeout,
	}, nil
}

// Embed returns the vector for text. Text longer than the configured limit is
// truncated before sending.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, "embedding", "embed", "empty text", nil)
	}
	text = textutil.Truncate(text, c.maxChars)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:          openai.EmbeddingModel(c.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if c.dims > 0 {
		params.Dimensions = openai.Int(int64(c.dims))
	}

	resp, err := c.api.Embeddings.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "embedding", c.model, fmt.Sprintf("no response within %s", c.timeout), err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "embedding", c.model, "request failed", err)
	}
	if resp == nil || len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "embedding", c.model, "empty response", nil)
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	if c.dims > 0 && len(vec) != c.dims {
		return nil, services.Wrap(services.ErrValidation, "embedding", c.model,
			fmt.Sprintf("got %d dimensions, want %d", len(vec), c.dims), nil)
	}
	return vec, nil
}
