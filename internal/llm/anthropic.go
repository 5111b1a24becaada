package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend generates text replies with the Anthropic Messages API.
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicBackend creates a text-only backend. baseURL may point at a
// compatible proxy; empty uses the public API.
func NewAnthropicBackend(apiKey, model, baseURL string, maxTokens int) (*AnthropicBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: anthropic api key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = "claude-3-5-haiku-20241022"
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	// Retries are owned by the Dispatcher.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicBackend{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

func (b *AnthropicBackend) Name() string        { return "anthropic" }
func (b *AnthropicBackend) SupportsMedia() bool { return false }

// Generate sends the system instructions and user content as a single turn.
func (b *AnthropicBackend) Generate(ctx context.Context, req Request) (string, error) {
	if req.Media != nil {
		return "", unsupportedMedia(b.Name())
	}
	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &Error{
			Kind:       classifyStatus(apiErr.StatusCode),
			Backend:    "anthropic",
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}
	return &Error{Kind: KindTransient, Backend: "anthropic", Err: err}
}
