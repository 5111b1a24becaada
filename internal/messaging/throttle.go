package messaging

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const throttleIdleTTL = 10 * time.Minute

// SenderThrottle limits how many messages one customer address may trigger.
type SenderThrottle struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	limiters  map[string]*senderLimiter
	lastSweep time.Time
}

type senderLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSenderThrottle allows perMinute messages per address with the given burst.
// A non-positive rate disables throttling.
func NewSenderThrottle(perMinute float64, burst int) *SenderThrottle {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &SenderThrottle{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		limiters: make(map[string]*senderLimiter),
	}
}

// Allow reports whether address may send now.
func (t *SenderThrottle) Allow(address string) bool {
	return t.allowAt(address, time.Now())
}

func (t *SenderThrottle) allowAt(address string, now time.Time) bool {
	if t == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweep(now)
	entry, ok := t.limiters[address]
	if !ok {
		entry = &senderLimiter{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[address] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep evicts idle addresses. Callers hold mu.
func (t *SenderThrottle) sweep(now time.Time) {
	if now.Sub(t.lastSweep) < time.Minute {
		return
	}
	t.lastSweep = now
	cutoff := now.Add(-throttleIdleTTL)
	for addr, entry := range t.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(t.limiters, addr)
		}
	}
}

func (t *SenderThrottle) tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.limiters)
}
