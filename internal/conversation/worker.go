package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/replyflow/internal/inbound"
	"github.com/wolfman30/replyflow/pkg/logging"
)

type jobHandler interface {
	Handle(ctx context.Context, tenantID int64, msg inbound.InboundMessage) Result
}

// Worker consumes relay jobs from a queue.
type Worker struct {
	handler jobHandler
	queue   Queue
	logger  *logging.Logger
	cfg     workerConfig
	wg      sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	jobTimeout       time.Duration
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	defaultJobTimeout    = 3 * time.Minute
	deleteTimeoutSeconds = 5
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		switch {
		case seconds < 0:
			cfg.receiveWaitSecs = 0
		case seconds > maxWaitSeconds:
			cfg.receiveWaitSecs = maxWaitSeconds
		default:
			cfg.receiveWaitSecs = seconds
		}
	}
}

// WithReceiveBatchSize sets how many jobs one receive call may return.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		switch {
		case size <= 0:
			cfg.receiveBatchSize = 1
		case size > maxReceiveBatchSize:
			cfg.receiveBatchSize = maxReceiveBatchSize
		default:
			cfg.receiveBatchSize = size
		}
	}
}

// WithJobTimeout bounds one relay, including the retry backoff.
func WithJobTimeout(timeout time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if timeout > 0 {
			cfg.jobTimeout = timeout
		}
	}
}

// NewWorker creates a worker pool that feeds jobs to handler.
func NewWorker(handler jobHandler, queue Queue, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if handler == nil {
		panic("conversation: job handler cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		jobTimeout:       defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{handler: handler, queue: queue, logger: logger, cfg: cfg}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("relay worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("relay worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive relay jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg QueueMessage) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable relay job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(ctx, msg.ReceiptHandle)
		return
	}

	// A job that has started finishes even if shutdown begins.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.jobTimeout)
	res := w.handler.Handle(jobCtx, job.TenantID, job.Message)
	cancel()

	w.logger.Debug("relay job processed",
		"job_id", job.ID,
		"conversation_id", res.ConversationID,
		"delivered", res.Delivered,
		"queue_latency_ms", time.Since(job.EnqueuedAt).Milliseconds(),
	)
	w.deleteMessage(ctx, msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete relay job", "error", err)
	}
}
