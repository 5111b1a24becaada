package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Webhook variants. A deployment serves exactly one.
const (
	VariantCloud = "cloud"
	VariantWati  = "wati"
)

// Generation backends. A deployment runs exactly one.
const (
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
	BackendBedrock   = "bedrock"
)

// Config holds application configuration. It is built once at startup and
// passed to the components that need it.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Inbound webhook
	WebhookVariant         string
	WhatsAppVerifyToken    string
	MetaAppSecret          string
	WebhookSignatureHeader string
	WebhookRateLimit       int
	SenderRatePerMinute    float64
	SenderBurst            int
	DedupeTTL              time.Duration

	// Outbound transport
	WhatsAppAccessToken     string
	WhatsAppGraphAPIBase    string
	WhatsAppGraphAPIVersion string
	WatiAPIEndpoint         string
	WatiAPIKey              string
	PublishTimeout          time.Duration
	MediaTimeout            time.Duration
	MediaArchiveBucket      string

	// Tenancy and storage
	DefaultTenantID   int64
	DefaultTenantName string
	TenantRoutesJSON  string
	DatabaseURL       string
	SQLitePath        string
	HistoryLimit      int

	// Generation
	GenerationBackend     string
	AnthropicAPIKey       string
	AnthropicModel        string
	AnthropicBaseURL      string
	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIBaseURL         string
	GeminiAPIKey          string
	GeminiModel           string
	BedrockModelID        string
	GenerationMaxTokens   int
	GenerationTimeout     time.Duration
	RateLimitBackoff      time.Duration
	TransientRetryBackoff time.Duration

	// Persona
	RestaurantName  string
	RestaurantCity  string
	BotBrand        string
	BotHours        string
	BotNoEmoji      bool
	CatalogCurrency string

	// Fallback replies
	FallbackBusyReply     string
	FallbackRetryReply    string
	FallbackVoiceReply    string
	FallbackSlowDownReply string

	// Async processing
	UseMemoryQueue       bool
	WorkerCount          int
	ConversationQueueURL string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AdminJWTSecret string

	// Operator alerts
	AlertEmailTo      string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		WebhookVariant:         strings.ToLower(strings.TrimSpace(getEnv("WEBHOOK_VARIANT", VariantCloud))),
		WhatsAppVerifyToken:    getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		MetaAppSecret:          getEnv("META_APP_SECRET", ""),
		WebhookSignatureHeader: getEnv("WEBHOOK_SIGNATURE_HEADER", "X-Hub-Signature-256"),
		WebhookRateLimit:       getEnvAsInt("WEBHOOK_RATE_LIMIT", 120),
		SenderRatePerMinute:    getEnvAsFloat("SENDER_RATE_PER_MINUTE", 0),
		SenderBurst:            getEnvAsInt("SENDER_BURST", 5),
		DedupeTTL:              getEnvAsDuration("DEDUPE_TTL", 24*time.Hour),

		WhatsAppAccessToken:     getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppGraphAPIBase:    strings.TrimRight(getEnv("WHATSAPP_GRAPH_API_BASE", "https://graph.facebook.com"), "/"),
		WhatsAppGraphAPIVersion: getEnv("WHATSAPP_GRAPH_API_VERSION", "v21.0"),
		WatiAPIEndpoint:         strings.TrimRight(getEnv("WATI_API_ENDPOINT", ""), "/"),
		WatiAPIKey:              getEnv("WATI_API_KEY", ""),
		PublishTimeout:          getEnvAsDuration("PUBLISH_TIMEOUT", 10*time.Second),
		MediaTimeout:            getEnvAsDuration("MEDIA_TIMEOUT", 15*time.Second),
		MediaArchiveBucket:      getEnv("MEDIA_ARCHIVE_BUCKET", ""),

		DefaultTenantID:   getEnvAsInt64("DEFAULT_TENANT_ID", 1),
		DefaultTenantName: getEnv("DEFAULT_TENANT_NAME", "Moon Kitchen"),
		TenantRoutesJSON:  getEnv("TENANT_ROUTES_JSON", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SQLitePath:        getEnv("SQLITE_PATH", "replyflow.db"),
		HistoryLimit:      getEnvAsInt("HISTORY_LIMIT", 20),

		GenerationBackend:     strings.ToLower(strings.TrimSpace(getEnv("GENERATION_BACKEND", BackendAnthropic))),
		AnthropicAPIKey:       getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:        getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		AnthropicBaseURL:      getEnv("ANTHROPIC_BASE_URL", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		BedrockModelID:        getEnv("BEDROCK_MODEL_ID", ""),
		GenerationMaxTokens:   getEnvAsInt("GENERATION_MAX_TOKENS", 512),
		GenerationTimeout:     getEnvAsDuration("GENERATION_TIMEOUT", 60*time.Second),
		RateLimitBackoff:      getEnvAsDuration("GENERATION_RATE_LIMIT_BACKOFF", 20*time.Second),
		TransientRetryBackoff: getEnvAsDuration("GENERATION_TRANSIENT_BACKOFF", 2*time.Second),

		RestaurantName:  getEnv("RESTAURANT_NAME", "Moon Kitchen"),
		RestaurantCity:  getEnv("RESTAURANT_CITY", "Karachi, Pakistan"),
		BotBrand:        getEnv("BOT_BRAND", "ReplyFlow by MadeReal"),
		BotHours:        getEnv("BOT_HOURS", ""),
		BotNoEmoji:      getEnvAsBool("BOT_NO_EMOJI", true),
		CatalogCurrency: getEnv("CATALOG_CURRENCY", "Rs"),

		FallbackBusyReply:     getEnv("FALLBACK_BUSY_REPLY", "Abhi response nahi aa raha, thori der baad try karo."),
		FallbackRetryReply:    getEnv("FALLBACK_RETRY_REPLY", "Sorry, try again."),
		FallbackVoiceReply:    getEnv("FALLBACK_VOICE_REPLY", "Abhi voice support nahi hai, apna message likh ke bhejo bilkul jaldi reply karunga."),
		FallbackSlowDownReply: getEnv("FALLBACK_SLOWDOWN_REPLY", "Aap ke messages bohat tezi se aa rahe hain. Ek minute ruk ke dobara likho, main yahin hoon."),

		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		AlertEmailTo:      getEnv("ALERT_EMAIL_TO", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "ReplyFlow"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
	}
}

// Validate reports configuration that would leave the relay unable to start.
func (c *Config) Validate() error {
	var errs []error
	switch c.WebhookVariant {
	case VariantCloud, VariantWati:
	default:
		errs = append(errs, fmt.Errorf("config: unknown WEBHOOK_VARIANT %q", c.WebhookVariant))
	}
	switch c.GenerationBackend {
	case BackendAnthropic, BackendOpenAI, BackendGemini, BackendBedrock:
	default:
		errs = append(errs, fmt.Errorf("config: unknown GENERATION_BACKEND %q", c.GenerationBackend))
	}
	if !c.UseMemoryQueue && c.ConversationQueueURL == "" {
		errs = append(errs, errors.New("config: CONVERSATION_QUEUE_URL is required when USE_MEMORY_QUEUE=false"))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("config: HISTORY_LIMIT must be positive, got %d", c.HistoryLimit))
	}
	if _, err := c.TenantRoutes(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TenantRoutes decodes TENANT_ROUTES_JSON, a map of transport channel id to tenant id.
func (c *Config) TenantRoutes() (map[string]int64, error) {
	routes := map[string]int64{}
	raw := strings.TrimSpace(c.TenantRoutesJSON)
	if raw == "" {
		return routes, nil
	}
	if err := json.Unmarshal([]byte(raw), &routes); err != nil {
		return nil, fmt.Errorf("config: parse TENANT_ROUTES_JSON: %w", err)
	}
	return routes, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
