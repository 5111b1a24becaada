package llm

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/replyflow/pkg/logging"
)

const (
	maxAttempts             = 2
	defaultRateLimitBackoff = 20 * time.Second
	defaultTransientBackoff = 2 * time.Second
	defaultCallTimeout      = 60 * time.Second
)

// Fallbacks are the fixed replies used when generation cannot complete.
type Fallbacks struct {
	// Busy replaces the reply after exhausted retries or a rejected request.
	Busy string
	// Retry replaces an empty reply.
	Retry string
	// Voice is sent when a voice note cannot be handled.
	Voice string
	// SlowDown answers a sender who is over their message rate.
	SlowDown string
}

// DefaultFallbacks returns the stock fallback texts.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		Busy:     "Abhi response nahi aa raha, thori der baad try karo.",
		Retry:    "Sorry, try again.",
		Voice:    "Abhi voice support nahi hai, apna message likh ke bhejo bilkul jaldi reply karunga.",
		SlowDown: "Aap ke messages bohat tezi se aa rahe hain. Ek minute ruk ke dobara likho, main yahin hoon.",
	}
}

func (f Fallbacks) withDefaults() Fallbacks {
	def := DefaultFallbacks()
	if strings.TrimSpace(f.Busy) == "" {
		f.Busy = def.Busy
	}
	if strings.TrimSpace(f.Retry) == "" {
		f.Retry = def.Retry
	}
	if strings.TrimSpace(f.Voice) == "" {
		f.Voice = def.Voice
	}
	if strings.TrimSpace(f.SlowDown) == "" {
		f.SlowDown = def.SlowDown
	}
	return f
}

// Outcome is the result of one dispatch. Reply is never empty.
type Outcome struct {
	Reply string
	// Transcription is set for voice requests; see SplitTranscription.
	Transcription      string
	TranscriptionSplit bool
	Backend            string
	Attempts           int
	Degraded           bool
	Failure            FailureKind
}

// Recorder receives one observation per dispatch.
type Recorder interface {
	ObserveGeneration(backend string, failure FailureKind, attempts int, elapsed time.Duration)
}

// Dispatcher calls the active backend with bounded retry and converts every
// failure into a fallback reply.
type Dispatcher struct {
	backend          Backend
	fallbacks        Fallbacks
	rateLimitBackoff time.Duration
	transientBackoff time.Duration
	callTimeout      time.Duration
	sleep            func(context.Context, time.Duration) error
	recorder         Recorder
	logger           *logging.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithFallbacks overrides the fallback texts. Blank fields keep their defaults.
func WithFallbacks(f Fallbacks) DispatcherOption {
	return func(d *Dispatcher) { d.fallbacks = f.withDefaults() }
}

// WithBackoff sets the waits before the single retry.
func WithBackoff(rateLimited, transient time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if rateLimited >= 0 {
			d.rateLimitBackoff = rateLimited
		}
		if transient >= 0 {
			d.transientBackoff = transient
		}
	}
}

// WithCallTimeout bounds each backend call.
func WithCallTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.callTimeout = timeout
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithSleep replaces the backoff wait. Tests use it to avoid real delays.
func WithSleep(sleep func(context.Context, time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// NewDispatcher wraps backend.
func NewDispatcher(backend Backend, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if backend == nil {
		panic("llm: backend cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		backend:          backend,
		fallbacks:        DefaultFallbacks(),
		rateLimitBackoff: defaultRateLimitBackoff,
		transientBackoff: defaultTransientBackoff,
		callTimeout:      defaultCallTimeout,
		sleep:            sleepContext,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Backend returns the active backend name.
func (d *Dispatcher) Backend() string {
	return d.backend.Name()
}

// SupportsMedia reports whether voice notes can be sent to the active backend.
func (d *Dispatcher) SupportsMedia() bool {
	return d.backend.SupportsMedia()
}

// Fallbacks returns the configured fallback texts.
func (d *Dispatcher) Fallbacks() Fallbacks {
	return d.fallbacks
}

// Dispatch obtains a reply. It never returns an error: failures degrade to a
// fallback reply and are logged with the event generation.degraded.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Outcome {
	start := time.Now()
	out := d.dispatch(ctx, req)
	if d.recorder != nil {
		d.recorder.ObserveGeneration(out.Backend, out.Failure, out.Attempts, time.Since(start))
	}
	return out
}

// MediaUnavailable returns the voice fallback for a voice note whose bytes
// could not be fetched. The backend is not called.
func (d *Dispatcher) MediaUnavailable(err error) Outcome {
	out := d.degrade(d.backend.Name(), 0, KindMediaUnavailable, d.fallbacks.Voice, err)
	if d.recorder != nil {
		d.recorder.ObserveGeneration(out.Backend, out.Failure, 0, 0)
	}
	return out
}

// SenderThrottled returns the slow-down reply for a sender over their rate.
// The backend is not called.
func (d *Dispatcher) SenderThrottled() Outcome {
	out := d.degrade(d.backend.Name(), 0, KindSenderThrottled, d.fallbacks.SlowDown, nil)
	if d.recorder != nil {
		d.recorder.ObserveGeneration(out.Backend, out.Failure, 0, 0)
	}
	return out
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Outcome {
	name := d.backend.Name()
	if req.Media != nil && !d.backend.SupportsMedia() {
		return d.degrade(name, 0, KindUnsupported, d.fallbacks.Voice, nil)
	}

	for attempt := 1; ; attempt++ {
		text, err := d.call(ctx, req)
		if err == nil {
			return d.success(name, attempt, req, text)
		}

		kind := KindOf(err)
		switch kind {
		case KindBadRequest:
			return d.degrade(name, attempt, kind, d.fallbacks.Busy, err)
		case KindUnsupported:
			return d.degrade(name, attempt, kind, d.fallbacks.Voice, err)
		}

		if attempt >= maxAttempts {
			return d.degrade(name, attempt, kind, d.fallbacks.Busy, err)
		}
		wait := d.transientBackoff
		if kind == KindRateLimited {
			wait = d.rateLimitBackoff
		}
		d.logger.Warn("generation failed, retrying once",
			"backend", name,
			"failure", kind,
			"attempt", attempt,
			"backoff", wait.String(),
			"error", err,
		)
		if err := d.sleep(ctx, wait); err != nil {
			return d.degrade(name, attempt, kind, d.fallbacks.Busy, err)
		}
	}
}

func (d *Dispatcher) call(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	return d.backend.Generate(callCtx, req)
}

func (d *Dispatcher) success(name string, attempts int, req Request, text string) Outcome {
	out := Outcome{Backend: name, Attempts: attempts}
	reply := strings.TrimSpace(text)
	if req.Media != nil {
		out.Transcription, reply, out.TranscriptionSplit = SplitTranscription(text)
	}
	if reply == "" {
		degraded := d.degrade(name, attempts, KindEmptyReply, d.fallbacks.Retry, nil)
		degraded.Transcription = out.Transcription
		degraded.TranscriptionSplit = out.TranscriptionSplit
		return degraded
	}
	out.Reply = reply
	return out
}

func (d *Dispatcher) degrade(name string, attempts int, kind FailureKind, reply string, err error) Outcome {
	args := []any{
		"event", "generation.degraded",
		"backend", name,
		"failure", kind,
		"attempts", attempts,
	}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if kind == KindBadRequest {
		d.logger.Error("generation rejected by backend, using fallback reply", args...)
	} else {
		d.logger.Warn("generation degraded to fallback reply", args...)
	}
	return Outcome{
		Reply:    reply,
		Backend:  name,
		Attempts: attempts,
		Degraded: true,
		Failure:  kind,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
