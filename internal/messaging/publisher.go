package messaging

import (
	"context"
	"time"

	"github.com/wolfman30/replyflow/internal/conversation"
	"github.com/wolfman30/replyflow/internal/notify"
	"github.com/wolfman30/replyflow/pkg/logging"
)

type publishRecorder interface {
	ObservePublish(transport string, delivered bool)
}

type publishAlerter interface {
	PublishFailed(ctx context.Context, f notify.PublishFailure) bool
}

// ReplyPublisher hands generated replies to a Sender. It never retries; a
// failed send is logged, counted and optionally e-mailed to operators.
type ReplyPublisher struct {
	sender   Sender
	timeout  time.Duration
	recorder publishRecorder
	alerter  publishAlerter
	logger   *logging.Logger
}

// PublisherOption customizes a ReplyPublisher.
type PublisherOption func(*ReplyPublisher)

func WithPublishRecorder(r publishRecorder) PublisherOption {
	return func(p *ReplyPublisher) { p.recorder = r }
}

func WithPublishAlerter(a publishAlerter) PublisherOption {
	return func(p *ReplyPublisher) { p.alerter = a }
}

// NewReplyPublisher wraps sender with a per-send timeout.
func NewReplyPublisher(sender Sender, timeout time.Duration, logger *logging.Logger, opts ...PublisherOption) *ReplyPublisher {
	if sender == nil {
		panic("messaging: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p := &ReplyPublisher{sender: sender, timeout: timeout, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ conversation.ReplyPublisher = (*ReplyPublisher)(nil)

// Publish implements conversation.ReplyPublisher.
func (p *ReplyPublisher) Publish(ctx context.Context, reply conversation.OutboundReply) bool {
	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.sender.Send(sendCtx, reply.ChannelID, reply.To, reply.Body)
	cancel()

	delivered := err == nil
	if p.recorder != nil {
		p.recorder.ObservePublish(p.sender.Transport(), delivered)
	}
	if delivered {
		p.logger.Debug("reply sent", "transport", p.sender.Transport(), "tenant_id", reply.TenantID, "to", reply.To)
		return true
	}

	p.logger.Error("failed to send reply",
		"event", "publish.failed",
		"transport", p.sender.Transport(),
		"tenant_id", reply.TenantID,
		"conversation_id", reply.ConversationID,
		"to", reply.To,
		"error", err,
	)
	if p.alerter != nil {
		p.alerter.PublishFailed(context.WithoutCancel(ctx), notify.PublishFailure{
			TenantID:       reply.TenantID,
			ConversationID: reply.ConversationID,
			Transport:      p.sender.Transport(),
			To:             reply.To,
			Body:           reply.Body,
			Err:            err,
		})
	}
	return false
}
