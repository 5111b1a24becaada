package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/replyflow/internal/config"
	"github.com/wolfman30/replyflow/internal/llm"
	"github.com/wolfman30/replyflow/pkg/logging"
)

// BuildBackend returns the single generation backend named by GENERATION_BACKEND.
func BuildBackend(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config) (llm.Backend, error) {
	switch cfg.GenerationBackend {
	case appconfig.BackendAnthropic:
		return llm.NewAnthropicBackend(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL, cfg.GenerationMaxTokens)
	case appconfig.BackendOpenAI:
		return llm.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.GenerationMaxTokens)
	case appconfig.BackendGemini:
		return llm.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GenerationMaxTokens)
	case appconfig.BackendBedrock:
		return llm.NewBedrockBackend(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID, cfg.GenerationMaxTokens)
	default:
		return nil, fmt.Errorf("bootstrap: unknown generation backend %q", cfg.GenerationBackend)
	}
}

// BuildDispatcher wraps backend with the configured fallbacks and backoffs.
func BuildDispatcher(cfg *appconfig.Config, backend llm.Backend, recorder llm.Recorder, logger *logging.Logger) *llm.Dispatcher {
	opts := []llm.DispatcherOption{
		llm.WithFallbacks(llm.Fallbacks{
			Busy:     cfg.FallbackBusyReply,
			Retry:    cfg.FallbackRetryReply,
			Voice:    cfg.FallbackVoiceReply,
			SlowDown: cfg.FallbackSlowDownReply,
		}),
		llm.WithBackoff(cfg.RateLimitBackoff, cfg.TransientRetryBackoff),
		llm.WithCallTimeout(cfg.GenerationTimeout),
	}
	if recorder != nil {
		opts = append(opts, llm.WithRecorder(recorder))
	}
	return llm.NewDispatcher(backend, logger, opts...)
}
