package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/replyflow/internal/inbound"
	"github.com/wolfman30/replyflow/pkg/logging"
)

// Publisher enqueues inbound messages for the relay workers.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// EnqueueInbound queues msg for tenantID and returns the job id.
func (p *Publisher) EnqueueInbound(ctx context.Context, tenantID int64, msg inbound.InboundMessage) (string, error) {
	job, body, err := encodeJob(RelayJob{TenantID: tenantID, Message: msg})
	if err != nil {
		return "", err
	}
	if err := p.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}
	p.logger.Debug("relay job enqueued", "job_id", job.ID, "tenant_id", tenantID)
	return job.ID, nil
}
