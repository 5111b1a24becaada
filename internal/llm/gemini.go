package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiBackend generates replies with Gemini. It accepts audio attachments.
type GeminiBackend struct {
	client    *genai.Client
	modelID   string
	maxTokens int32
}

// NewGeminiBackend creates a multimodal backend.
func NewGeminiBackend(ctx context.Context, apiKey, modelID string, maxTokens int) (*GeminiBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create gemini client: %w", err)
	}
	return &GeminiBackend{client: client, modelID: modelID, maxTokens: int32(maxTokens)}, nil
}

func (b *GeminiBackend) Name() string        { return "gemini" }
func (b *GeminiBackend) SupportsMedia() bool { return true }

func (b *GeminiBackend) Generate(ctx context.Context, req Request) (string, error) {
	model := b.client.GenerativeModel(b.modelID)
	if b.maxTokens > 0 {
		model.SetMaxOutputTokens(b.maxTokens)
	}
	if strings.TrimSpace(req.System) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}

	parts := []genai.Part{genai.Text(req.User)}
	if req.Media != nil {
		parts = append(parts, genai.Blob{MIMEType: baseMimeType(req.Media.MimeType), Data: req.Media.Data})
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}

// Close releases the underlying client.
func (b *GeminiBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// baseMimeType drops parameters such as "; codecs=opus".
func baseMimeType(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.TrimSpace(base)
	if base == "" {
		return "audio/ogg"
	}
	return base
}

func classifyGeminiError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code != 0 {
		return &Error{Kind: classifyStatus(gErr.Code), Backend: "gemini", StatusCode: gErr.Code, Err: err}
	}
	if st, ok := status.FromError(err); ok {
		kind := KindTransient
		switch st.Code() {
		case codes.ResourceExhausted:
			kind = KindRateLimited
		case codes.InvalidArgument, codes.FailedPrecondition, codes.PermissionDenied, codes.Unauthenticated, codes.NotFound:
			kind = KindBadRequest
		}
		return &Error{Kind: kind, Backend: "gemini", Err: err}
	}
	return &Error{Kind: KindTransient, Backend: "gemini", Err: err}
}
