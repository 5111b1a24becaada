package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/replyflow/pkg/logging"
)

const (
	defaultFromName     = "ReplyFlow alerts"
	defaultSendGridHost = "https://api.sendgrid.com"
	sendGridMailPath    = "/v3/mail/send"

	// KindPublishFailed tags alerts about replies the transport did not accept.
	KindPublishFailed = "publish_failed"
)

// AlertMail is one plain-text operator alert.
type AlertMail struct {
	To       string
	Subject  string
	Text     string
	TenantID int64
	Kind     string
}

// Mailer delivers operator alerts.
type Mailer interface {
	Deliver(ctx context.Context, m AlertMail) error
}

// SendGridConfig configures SendGridMailer. Host is only overridden in tests.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Host      string
}

// SendGridMailer sends alerts through the SendGrid v3 mail API, tagged with
// the alert kind as a category.
type SendGridMailer struct {
	apiKey string
	host   string
	from   *mail.Email
	logger *logging.Logger
}

// NewSendGridMailer returns nil without an API key or sender address.
func NewSendGridMailer(cfg SendGridConfig, logger *logging.Logger) *SendGridMailer {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.FromEmail) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	if cfg.Host == "" {
		cfg.Host = defaultSendGridHost
	}
	return &SendGridMailer{
		apiKey: cfg.APIKey,
		host:   strings.TrimRight(cfg.Host, "/"),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

func (s *SendGridMailer) Deliver(ctx context.Context, m AlertMail) error {
	req := sendgrid.GetRequest(s.apiKey, sendGridMailPath, s.host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(s.message(m))

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("notify: sendgrid deliver: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected alert", "status", resp.StatusCode, "body", resp.Body, "tenant_id", m.TenantID)
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}
	s.logger.Info("alert sent via sendgrid", "kind", m.Kind, "tenant_id", m.TenantID, "status", resp.StatusCode)
	return nil
}

func (s *SendGridMailer) message(m AlertMail) *mail.SGMailV3 {
	msg := mail.NewV3Mail()
	msg.SetFrom(s.from)
	msg.Subject = m.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", m.To))
	msg.AddPersonalizations(p)
	msg.AddContent(mail.NewContent("text/plain", m.Text))

	msg.AddCategories("replyflow")
	if m.Kind != "" {
		msg.AddCategories(m.Kind)
	}
	if m.TenantID != 0 {
		msg.SetCustomArg("tenant_id", strconv.FormatInt(m.TenantID, 10))
	}
	return msg
}

var _ Mailer = (*SendGridMailer)(nil)
