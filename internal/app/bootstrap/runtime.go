package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/replyflow/internal/api/router"
	appconfig "github.com/wolfman30/replyflow/internal/config"
	"github.com/wolfman30/replyflow/internal/conversation"
	"github.com/wolfman30/replyflow/internal/http/handlers"
	"github.com/wolfman30/replyflow/internal/inbound"
	"github.com/wolfman30/replyflow/internal/llm"
	"github.com/wolfman30/replyflow/internal/media"
	"github.com/wolfman30/replyflow/internal/messaging"
	"github.com/wolfman30/replyflow/internal/observability/metrics"
	"github.com/wolfman30/replyflow/pkg/logging"
)

// Runtime holds the wired relay components shared by the binaries.
type Runtime struct {
	Config   *appconfig.Config
	Logger   *logging.Logger
	Store    Store
	Queue    conversation.Queue
	Relay    *conversation.Relay
	Backend  llm.Backend
	Webhook  *messaging.WebhookHandler
	Tenants  *messaging.TenantResolver
	Metrics  *metrics.RelayMetrics
	Registry *prometheus.Registry
	Redis    *redis.Client
}

// Options override pieces of the runtime. Tests use them to avoid network
// dependencies.
type Options struct {
	// AWS is required for the bedrock backend, SQS, SES and S3.
	AWS *aws.Config
	// Store replaces the configured database.
	Store Store
	// Queue replaces the configured queue.
	Queue conversation.Queue
	// Sender replaces the configured outbound transport.
	Sender messaging.Sender
	// Backend replaces the configured generation backend.
	Backend llm.Backend
}

// BuildRuntime wires every component named by cfg.
func BuildRuntime(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	routes, err := cfg.TenantRoutes()
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:   cfg,
		Logger:   logger,
		Tenants:  messaging.NewTenantResolver(cfg.DefaultTenantID, routes),
		Registry: prometheus.NewRegistry(),
	}
	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.Metrics = metrics.NewRelayMetrics(rt.Registry)

	awsCfg := aws.Config{}
	if opts.AWS != nil {
		awsCfg = *opts.AWS
	}

	rt.Store = opts.Store
	if rt.Store == nil {
		if rt.Store, err = BuildStore(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}
	if err := EnsureTenants(ctx, rt.Store, cfg, rt.Tenants.Tenants()); err != nil {
		rt.Close()
		return nil, err
	}

	rt.Queue = opts.Queue
	if rt.Queue == nil {
		if rt.Queue, err = BuildQueue(cfg, opts.AWS); err != nil {
			rt.Close()
			return nil, err
		}
	}

	rt.Backend = opts.Backend
	if rt.Backend == nil {
		if rt.Backend, err = BuildBackend(ctx, cfg, awsCfg); err != nil {
			rt.Close()
			return nil, err
		}
	}
	dispatcher := BuildDispatcher(cfg, rt.Backend, rt.Metrics, logger.Component("llm"))

	sender := opts.Sender
	if sender == nil {
		if sender, err = BuildSender(cfg); err != nil {
			rt.Close()
			return nil, err
		}
	}
	publisher := BuildReplyPublisher(cfg, sender, BuildAlertMailer(cfg, opts.AWS, logger), rt.Metrics, logger.Component("publisher"))

	relayOpts := []conversation.RelayOption{
		conversation.WithHistoryLimit(cfg.HistoryLimit),
		conversation.WithRelayRecorder(rt.Metrics),
	}
	if cfg.WebhookVariant == appconfig.VariantCloud && cfg.WhatsAppAccessToken != "" {
		relayOpts = append(relayOpts, conversation.WithMediaFetcher(
			media.NewGraphFetcher(cfg.WhatsAppGraphAPIBase, cfg.WhatsAppGraphAPIVersion, cfg.WhatsAppAccessToken, cfg.MediaTimeout)))
	}
	if opts.AWS != nil {
		if archive := media.NewS3Archive(s3.NewFromConfig(awsCfg), cfg.MediaArchiveBucket, logger); archive != nil {
			relayOpts = append(relayOpts, conversation.WithMediaArchive(archive))
		}
	}
	rt.Relay = conversation.NewRelay(
		rt.Store,
		conversation.NewPromptAssembler(conversation.Persona{
			RestaurantName: cfg.RestaurantName,
			City:           cfg.RestaurantCity,
			Brand:          cfg.BotBrand,
			Hours:          cfg.BotHours,
			NoEmoji:        cfg.BotNoEmoji,
			Currency:       cfg.CatalogCurrency,
		}),
		dispatcher,
		publisher,
		logger.Component("relay"),
		relayOpts...,
	)

	rt.Redis = BuildRedisClient(ctx, cfg, logger, true)
	handlerOpts := []messaging.HandlerOption{
		messaging.WithSenderThrottle(messaging.NewSenderThrottle(cfg.SenderRatePerMinute, cfg.SenderBurst)),
		messaging.WithInboundRecorder(rt.Metrics),
	}
	if deduper := messaging.NewRedisDeduper(rt.Redis, cfg.DedupeTTL); deduper != nil {
		handlerOpts = append(handlerOpts, messaging.WithDeduper(deduper))
	}
	rt.Webhook = messaging.NewWebhookHandler(
		messaging.WebhookConfig{
			Variant:         cfg.WebhookVariant,
			VerifyToken:     cfg.WhatsAppVerifyToken,
			SignatureHeader: cfg.WebhookSignatureHeader,
		},
		inbound.NewVerifier(cfg.MetaAppSecret),
		inbound.NewNormalizer(logger.Component("normalizer")),
		rt.Tenants,
		conversation.NewPublisher(rt.Queue, logger),
		logger.Component("webhook"),
		handlerOpts...,
	)

	logger.Info("runtime ready",
		"variant", cfg.WebhookVariant,
		"backend", rt.Backend.Name(),
		"transport", sender.Transport(),
		"memory_queue", cfg.UseMemoryQueue,
		"dedupe", rt.Redis != nil,
	)
	return rt, nil
}

// BuildQueue returns the in-process queue or the SQS queue at CONVERSATION_QUEUE_URL.
func BuildQueue(cfg *appconfig.Config, awsCfg *aws.Config) (conversation.Queue, error) {
	if cfg.UseMemoryQueue {
		return conversation.NewMemoryQueue(cfg.WorkerCount * 64), nil
	}
	if awsCfg == nil {
		return nil, errors.New("bootstrap: aws config is required for the SQS queue")
	}
	return conversation.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.ConversationQueueURL)
}

// NewWorker builds a worker pool draining the runtime queue into the relay.
func (rt *Runtime) NewWorker() *conversation.Worker {
	return conversation.NewWorker(rt.Relay, rt.Queue, rt.Logger.Component("worker"),
		conversation.WithWorkerCount(rt.Config.WorkerCount),
		conversation.WithJobTimeout(rt.Config.GenerationTimeout*3),
	)
}

// Router returns the HTTP surface for the runtime.
func (rt *Runtime) Router() http.Handler {
	return router.New(&router.Config{
		Logger:           rt.Logger,
		Variant:          rt.Config.WebhookVariant,
		Webhook:          rt.Webhook,
		Health:           handlers.NewHealthHandler(rt.Store, rt.Logger),
		AdminCatalog:     handlers.NewAdminCatalogHandler(rt.Store, rt.Logger),
		AdminTranscripts: handlers.NewAdminTranscriptsHandler(rt.Store, rt.Logger),
		AdminAuthSecret:  rt.Config.AdminJWTSecret,
		MetricsHandler:   promhttp.HandlerFor(rt.Registry, promhttp.HandlerOpts{}),
		WebhookRateLimit: rt.Config.WebhookRateLimit,
	})
}

// Close releases the generation backend, Redis and the store.
func (rt *Runtime) Close() {
	if closer, ok := rt.Backend.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			rt.Logger.Warn("failed to close generation backend", "error", err)
		}
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.Store != nil {
		_ = rt.Store.Close()
	}
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available; delivery dedupe disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
