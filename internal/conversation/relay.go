package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/replyflow/internal/catalog"
	"github.com/wolfman30/replyflow/internal/inbound"
	"github.com/wolfman30/replyflow/internal/llm"
	"github.com/wolfman30/replyflow/pkg/logging"
)

var errNoMediaFetcher = errors.New("conversation: no media fetcher configured")

// Result summarizes one relayed message.
type Result struct {
	ConversationID int64
	CustomerTurn   string
	Outcome        llm.Outcome
	Persisted      bool
	Delivered      bool
}

// Relay runs one inbound message through resolve, assemble, generate,
// persist and publish. Every step after normalization degrades instead of
// aborting, so a reply is always attempted.
//
// Messages from the same address are not serialized: two concurrent
// deliveries may read the same history and interleave their turns.
type Relay struct {
	store        Store
	prompts      *PromptAssembler
	dispatcher   *llm.Dispatcher
	publisher    ReplyPublisher
	media        MediaFetcher
	archive      MediaArchiver
	recorder     RelayRecorder
	historyLimit int
	tracer       trace.Tracer
	logger       *logging.Logger
}

// RelayOption customizes a Relay.
type RelayOption func(*Relay)

// WithMediaFetcher enables voice notes.
func WithMediaFetcher(f MediaFetcher) RelayOption {
	return func(r *Relay) { r.media = f }
}

// WithMediaArchive keeps a copy of every fetched voice note.
func WithMediaArchive(a MediaArchiver) RelayOption {
	return func(r *Relay) { r.archive = a }
}

// WithHistoryLimit bounds the transcript sent to the backend.
func WithHistoryLimit(limit int) RelayOption {
	return func(r *Relay) {
		if limit > 0 {
			r.historyLimit = limit
		}
	}
}

// WithRelayRecorder attaches metrics.
func WithRelayRecorder(rec RelayRecorder) RelayOption {
	return func(r *Relay) { r.recorder = rec }
}

// NewRelay wires the pipeline.
func NewRelay(store Store, prompts *PromptAssembler, dispatcher *llm.Dispatcher, publisher ReplyPublisher, logger *logging.Logger, opts ...RelayOption) *Relay {
	if store == nil {
		panic("conversation: store cannot be nil")
	}
	if prompts == nil {
		panic("conversation: prompt assembler cannot be nil")
	}
	if dispatcher == nil {
		panic("conversation: dispatcher cannot be nil")
	}
	if publisher == nil {
		panic("conversation: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Relay{
		store:        store,
		prompts:      prompts,
		dispatcher:   dispatcher,
		publisher:    publisher,
		historyLimit: DefaultHistoryLimit,
		tracer:       defaultTracer(),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle relays msg for tenantID.
func (r *Relay) Handle(ctx context.Context, tenantID int64, msg inbound.InboundMessage) Result {
	start := time.Now()
	ctx, span := startSpan(ctx, r.tracer, "conversation.relay",
		attribute.Int64("tenant.id", tenantID),
		attribute.String("inbound.shape", string(msg.Shape)),
		attribute.Bool("inbound.media", msg.HasMedia()))
	defer span.End()

	log := r.logger.With("tenant_id", tenantID, "provider_message_id", msg.ProviderMessageID)
	var res Result

	conversationID, err := r.store.GetOrCreateConversation(ctx, tenantID, msg.SenderAddress)
	if err != nil {
		span.RecordError(err)
		log.Error("failed to resolve conversation, replying without transcript", "error", err)
	}
	res.ConversationID = conversationID
	log = log.With("conversation_id", conversationID)

	var history []Turn
	if conversationID != 0 {
		history, err = r.store.RecentHistory(ctx, conversationID, r.historyLimit)
		if err != nil {
			span.RecordError(err)
			log.Error("failed to load history, continuing without it", "error", err)
			history = nil
		}
	}

	catalogText, err := r.store.CatalogText(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
		log.Error("failed to load catalog, continuing with empty catalog", "error", err)
		catalogText = catalog.EmptyText
	}

	switch {
	case msg.Throttled:
		res.Outcome = r.dispatcher.SenderThrottled()
		res.CustomerTurn = msg.Body
		if msg.HasMedia() {
			res.CustomerTurn = VoicePlaceholder
		}
	case msg.HasMedia():
		res.Outcome, res.CustomerTurn = r.generateVoice(ctx, tenantID, msg, catalogText, history)
	default:
		system, user := r.prompts.Assemble(catalogText, history, msg.Body)
		res.Outcome = r.dispatcher.Dispatch(ctx, llm.Request{System: system, User: user})
		res.CustomerTurn = msg.Body
	}
	span.SetAttributes(
		attribute.String("generation.backend", res.Outcome.Backend),
		attribute.Int("generation.attempts", res.Outcome.Attempts),
		attribute.Bool("generation.degraded", res.Outcome.Degraded))

	if conversationID != 0 {
		res.Persisted = r.persist(ctx, log, conversationID, res.CustomerTurn, res.Outcome.Reply)
	}

	res.Delivered = r.publisher.Publish(ctx, OutboundReply{
		TenantID:       tenantID,
		ConversationID: conversationID,
		ChannelID:      msg.TransportChannelID,
		To:             msg.SenderAddress,
		Body:           res.Outcome.Reply,
		Degraded:       res.Outcome.Degraded,
	})
	span.SetAttributes(attribute.Bool("reply.delivered", res.Delivered))

	elapsed := time.Since(start)
	if r.recorder != nil {
		r.recorder.ObserveRelay(tenantID, res.Delivered, res.Outcome.Degraded, elapsed.Seconds())
	}
	log.Info("message relayed",
		"backend", res.Outcome.Backend,
		"attempts", res.Outcome.Attempts,
		"degraded", res.Outcome.Degraded,
		"persisted", res.Persisted,
		"delivered", res.Delivered,
		"duration_ms", elapsed.Milliseconds(),
	)
	return res
}

func (r *Relay) generateVoice(ctx context.Context, tenantID int64, msg inbound.InboundMessage, catalogText string, history []Turn) (llm.Outcome, string) {
	if !r.dispatcher.SupportsMedia() {
		return r.dispatcher.Dispatch(ctx, llm.Request{Media: &llm.Media{MimeType: msg.Media.MimeType}}), VoicePlaceholder
	}
	if r.media == nil {
		return r.dispatcher.MediaUnavailable(errNoMediaFetcher), VoicePlaceholder
	}

	data, mimeType, err := r.media.Fetch(ctx, msg.Media.ID)
	if err != nil {
		return r.dispatcher.MediaUnavailable(err), VoicePlaceholder
	}
	if mimeType == "" {
		mimeType = msg.Media.MimeType
	}
	if r.archive != nil {
		key := fmt.Sprintf("voice/%d/%s/%s", tenantID, msg.SenderAddress, msg.Media.ID)
		if err := r.archive.Archive(ctx, key, data, mimeType); err != nil {
			r.logger.Warn("failed to archive voice note", "key", key, "error", err)
		}
	}

	system, user := r.prompts.AssembleVoice(catalogText, history)
	out := r.dispatcher.Dispatch(ctx, llm.Request{
		System: system,
		User:   user,
		Media:  &llm.Media{Data: data, MimeType: mimeType},
	})
	if out.TranscriptionSplit && out.Transcription != "" {
		return out, out.Transcription
	}
	return out, VoicePlaceholder
}

// persist appends the customer turn then the bot turn.
func (r *Relay) persist(ctx context.Context, log *logging.Logger, conversationID int64, customer, reply string) bool {
	if err := r.store.AppendTurn(ctx, conversationID, RoleCustomer, customer); err != nil {
		log.Error("failed to store customer turn", "error", err)
		return false
	}
	if err := r.store.AppendTurn(ctx, conversationID, RoleBot, reply); err != nil {
		log.Error("failed to store bot turn", "error", err)
		return false
	}
	return true
}
