package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/replyflow/internal/inbound"
	"github.com/wolfman30/replyflow/internal/observability/metrics"
	"github.com/wolfman30/replyflow/pkg/logging"
)

var webhookTracer = otel.Tracer("replyflow.internal.messaging.webhook")

const (
	maxWebhookBody      = 1 << 20
	defaultEnqueueLimit = 3 * time.Second
)

type inboundEnqueuer interface {
	EnqueueInbound(ctx context.Context, tenantID int64, msg inbound.InboundMessage) (string, error)
}

type deliveryDeduper interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type inboundRecorder interface {
	ObserveInbound(variant, outcome string)
}

// WebhookConfig holds the per-deployment webhook settings.
type WebhookConfig struct {
	// Variant is "cloud" or "wati"; it only labels logs and metrics.
	Variant         string
	VerifyToken     string
	SignatureHeader string
}

// WebhookHandler accepts platform deliveries, queues each extracted message
// and acknowledges immediately. Relaying happens on the queue workers.
type WebhookHandler struct {
	cfg        WebhookConfig
	verifier   *inbound.Verifier
	normalizer *inbound.Normalizer
	tenants    *TenantResolver
	queue      inboundEnqueuer
	dedupe     deliveryDeduper
	throttle   *SenderThrottle
	recorder   inboundRecorder
	logger     *logging.Logger
}

// HandlerOption customizes a WebhookHandler.
type HandlerOption func(*WebhookHandler)

// WithDeduper drops redelivered provider message ids.
func WithDeduper(d deliveryDeduper) HandlerOption {
	return func(h *WebhookHandler) { h.dedupe = d }
}

// WithSenderThrottle marks messages from addresses over their rate so the
// relay answers them with the slow-down reply instead of calling the backend.
func WithSenderThrottle(t *SenderThrottle) HandlerOption {
	return func(h *WebhookHandler) { h.throttle = t }
}

func WithInboundRecorder(r inboundRecorder) HandlerOption {
	return func(h *WebhookHandler) { h.recorder = r }
}

// NewWebhookHandler wires the delivery pipeline up to the queue.
func NewWebhookHandler(cfg WebhookConfig, verifier *inbound.Verifier, normalizer *inbound.Normalizer, tenants *TenantResolver, queue inboundEnqueuer, logger *logging.Logger, opts ...HandlerOption) *WebhookHandler {
	if normalizer == nil {
		panic("messaging: normalizer cannot be nil")
	}
	if tenants == nil {
		panic("messaging: tenant resolver cannot be nil")
	}
	if queue == nil {
		panic("messaging: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = "X-Hub-Signature-256"
	}
	h := &WebhookHandler{
		cfg:        cfg,
		verifier:   verifier,
		normalizer: normalizer,
		tenants:    tenants,
		queue:      queue,
		logger:     logger.With("variant", cfg.Variant),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Verify answers the Cloud API subscription handshake on GET.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && h.cfg.VerifyToken != "" && token == h.cfg.VerifyToken {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, challenge)
		return
	}
	h.logger.Warn("webhook verification handshake rejected", "event", "webhook.rejected", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// Ping answers GET probes on the WATI endpoint.
func (h *WebhookHandler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Receive handles POST deliveries.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "messaging.webhook.receive")
	defer span.End()
	span.SetAttributes(attribute.String("replyflow.variant", h.cfg.Variant))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if h.verifier.Enabled() {
		if err := h.verifier.Verify(body, r.Header.Get(h.cfg.SignatureHeader)); err != nil {
			h.logger.Warn("webhook signature rejected", "event", "webhook.rejected", "error", err)
			h.observe(1, metrics.InboundRejected)
			span.RecordError(err)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	messages := h.normalizer.Normalize(body)
	span.SetAttributes(attribute.Int("replyflow.messages", len(messages)))
	if len(messages) == 0 {
		h.logger.Warn("webhook payload carried no messages", "event", "webhook.ignored", "bytes", len(body))
		h.observe(1, metrics.InboundIgnored)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}

	accepted := 0
	for i, msg := range messages {
		if !h.claim(ctx, msg) {
			continue
		}
		if !h.throttle.Allow(msg.SenderAddress) {
			h.logger.Warn("sender over rate, relaying with slow-down reply", "event", "webhook.throttled", "provider_message_id", msg.ProviderMessageID)
			h.observe(1, metrics.InboundThrottled)
			msg.Throttled = true
		}

		tenantID := h.tenants.Resolve(msg.TransportChannelID)
		enqueueCtx, cancel := context.WithTimeout(ctx, defaultEnqueueLimit)
		jobID, err := h.queue.EnqueueInbound(enqueueCtx, tenantID, msg)
		cancel()
		if err != nil {
			h.logger.Error("failed to enqueue inbound message", "error", err, "tenant_id", tenantID, "provider_message_id", msg.ProviderMessageID)
			h.observe(len(messages)-i, metrics.InboundFailed)
			span.RecordError(err)
			h.release(ctx, msg)
			http.Error(w, "Failed to schedule reply", http.StatusInternalServerError)
			return
		}
		accepted++
		h.observe(1, metrics.InboundAccepted)
		h.logger.Debug("inbound message queued", "job_id", jobID, "tenant_id", tenantID, "shape", msg.Shape, "media", msg.HasMedia())
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "accepted": accepted})
}

// claim reports whether msg should be processed. Messages without a provider
// id, or any message when Redis is unavailable, are processed.
func (h *WebhookHandler) claim(ctx context.Context, msg inbound.InboundMessage) bool {
	if h.dedupe == nil || msg.ProviderMessageID == "" {
		return true
	}
	first, err := h.dedupe.Claim(ctx, msg.ProviderMessageID)
	if err != nil {
		h.logger.Warn("dedupe unavailable, processing message", "error", err)
		return true
	}
	if !first {
		h.logger.Info("duplicate delivery dropped", "event", "webhook.duplicate", "provider_message_id", msg.ProviderMessageID)
		h.observe(1, metrics.InboundDuplicate)
	}
	return first
}

// release forgets the claim on a message that could not be queued so the
// platform's redelivery is relayed. Later messages were never claimed.
func (h *WebhookHandler) release(ctx context.Context, msg inbound.InboundMessage) {
	if h.dedupe == nil || msg.ProviderMessageID == "" {
		return
	}
	if err := h.dedupe.Release(context.WithoutCancel(ctx), msg.ProviderMessageID); err != nil {
		h.logger.Warn("failed to release dedupe key", "error", err, "provider_message_id", msg.ProviderMessageID)
	}
}

func (h *WebhookHandler) observe(n int, outcome string) {
	if h.recorder == nil {
		return
	}
	for i := 0; i < n; i++ {
		h.recorder.ObserveInbound(h.cfg.Variant, outcome)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
