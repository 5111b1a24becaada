package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockBackend generates text replies through the Bedrock Converse API.
type BedrockBackend struct {
	api       bedrockConverseAPI
	modelID   string
	maxTokens int32
}

// NewBedrockBackend wraps a Converse client.
func NewBedrockBackend(api bedrockConverseAPI, modelID string, maxTokens int) (*BedrockBackend, error) {
	if api == nil {
		return nil, errors.New("llm: bedrock client is required")
	}
	if strings.TrimSpace(modelID) == "" {
		return nil, errors.New("llm: bedrock model id is required")
	}
	return &BedrockBackend{api: api, modelID: modelID, maxTokens: int32(maxTokens)}, nil
}

func (b *BedrockBackend) Name() string        { return "bedrock" }
func (b *BedrockBackend) SupportsMedia() bool { return false }

func (b *BedrockBackend) Generate(ctx context.Context, req Request) (string, error) {
	if req.Media != nil {
		return "", unsupportedMedia(b.Name())
	}
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		Messages: []brtypes.Message{{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: req.User}},
		}},
	}
	if strings.TrimSpace(req.System) != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: req.System}}
	}
	if b.maxTokens > 0 {
		input.InferenceConfig = &brtypes.InferenceConfiguration{MaxTokens: aws.Int32(b.maxTokens)}
	}

	out, err := b.api.Converse(ctx, input)
	if err != nil {
		return "", classifyBedrockError(err)
	}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", nil
	}
	var text strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}
	return text.String(), nil
}

func classifyBedrockError(err error) error {
	var (
		throttled  *brtypes.ThrottlingException
		quota      *brtypes.ServiceQuotaExceededException
		validation *brtypes.ValidationException
		denied     *brtypes.AccessDeniedException
		notFound   *brtypes.ResourceNotFoundException
	)
	kind := KindTransient
	switch {
	case errors.As(err, &throttled), errors.As(err, &quota):
		kind = KindRateLimited
	case errors.As(err, &validation), errors.As(err, &denied), errors.As(err, &notFound):
		kind = KindBadRequest
	}
	return &Error{Kind: kind, Backend: "bedrock", Err: err}
}
