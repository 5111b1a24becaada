package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/replyflow/internal/inbound"
)

// Queue carries encoded RelayJobs between the webhook and the workers.
// MemoryQueue serves single-process deployments and SQSQueue the rest.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueMessage is one received job body plus the handle used to delete it.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// RelayJob is one inbound message queued for relaying.
type RelayJob struct {
	ID         string                 `json:"id"`
	TenantID   int64                  `json:"tenant_id"`
	Message    inbound.InboundMessage `json:"message"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}

func encodeJob(job RelayJob) (RelayJob, string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return RelayJob{}, "", fmt.Errorf("conversation: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (RelayJob, error) {
	var job RelayJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return RelayJob{}, fmt.Errorf("conversation: failed to decode job: %w", err)
	}
	if job.Message.SenderAddress == "" {
		return RelayJob{}, fmt.Errorf("conversation: job %s has no sender address", job.ID)
	}
	return job, nil
}
