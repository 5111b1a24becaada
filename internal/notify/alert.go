package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/replyflow/pkg/logging"
)

const defaultAlertCooldown = 15 * time.Minute

// PublishFailure describes a reply that was generated and stored but not sent.
type PublishFailure struct {
	TenantID       int64
	ConversationID int64
	Transport      string
	To             string
	Body           string
	Err            error
}

// Alerter e-mails operators about undelivered replies so they can resend by
// hand. Alerts for the same tenant are collapsed within the cooldown window.
type Alerter struct {
	mailer   Mailer
	to       string
	cooldown time.Duration
	now      func() time.Time
	logger   *logging.Logger

	mu   sync.Mutex
	last map[int64]time.Time
}

// NewAlerter returns nil when mailer or recipient is missing, which disables alerts.
func NewAlerter(mailer Mailer, to string, logger *logging.Logger) *Alerter {
	if mailer == nil || strings.TrimSpace(to) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Alerter{
		mailer:   mailer,
		to:       strings.TrimSpace(to),
		cooldown: defaultAlertCooldown,
		now:      time.Now,
		logger:   logger,
		last:     make(map[int64]time.Time),
	}
}

// PublishFailed sends one alert unless the tenant was alerted recently.
// It reports whether an e-mail was sent.
func (a *Alerter) PublishFailed(ctx context.Context, f PublishFailure) bool {
	if a == nil {
		return false
	}
	if !a.claim(f.TenantID) {
		a.logger.Debug("publish alert suppressed by cooldown", "tenant_id", f.TenantID)
		return false
	}

	mail := AlertMail{
		To:       a.to,
		Subject:  fmt.Sprintf("[ReplyFlow] reply not delivered (tenant %d)", f.TenantID),
		Text:     formatPublishFailure(f),
		TenantID: f.TenantID,
		Kind:     KindPublishFailed,
	}
	if err := a.mailer.Deliver(ctx, mail); err != nil {
		a.logger.Error("failed to send publish alert", "error", err, "tenant_id", f.TenantID)
		a.release(f.TenantID)
		return false
	}
	return true
}

func (a *Alerter) claim(tenantID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if last, ok := a.last[tenantID]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.last[tenantID] = now
	return true
}

func (a *Alerter) release(tenantID int64) {
	a.mu.Lock()
	delete(a.last, tenantID)
	a.mu.Unlock()
}

func formatPublishFailure(f PublishFailure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A reply was stored but the %s transport did not accept it.\n\n", f.Transport)
	fmt.Fprintf(&b, "Tenant: %d\n", f.TenantID)
	fmt.Fprintf(&b, "Conversation: %d\n", f.ConversationID)
	fmt.Fprintf(&b, "Customer: %s\n", f.To)
	if f.Err != nil {
		fmt.Fprintf(&b, "Error: %v\n", f.Err)
	}
	fmt.Fprintf(&b, "\nReply text:\n%s\n", truncate(f.Body, 1000))
	return b.String()
}

// truncate cuts s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
