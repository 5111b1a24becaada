package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/replyflow/internal/config"
	"github.com/wolfman30/replyflow/internal/messaging"
	"github.com/wolfman30/replyflow/internal/notify"
	"github.com/wolfman30/replyflow/internal/observability/metrics"
	"github.com/wolfman30/replyflow/pkg/logging"
)

// BuildSender returns the outbound transport for the configured variant.
func BuildSender(cfg *appconfig.Config) (messaging.Sender, error) {
	switch cfg.WebhookVariant {
	case appconfig.VariantCloud:
		return messaging.NewCloudSender(cfg.WhatsAppGraphAPIBase, cfg.WhatsAppGraphAPIVersion, cfg.WhatsAppAccessToken, cfg.PublishTimeout), nil
	case appconfig.VariantWati:
		return messaging.NewWatiSender(cfg.WatiAPIEndpoint, cfg.WatiAPIKey, cfg.PublishTimeout), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown webhook variant %q", cfg.WebhookVariant)
	}
}

// BuildAlertMailer prefers SendGrid and falls back to SES. It returns nil
// when neither is configured.
func BuildAlertMailer(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.Mailer {
	if sg := notify.NewSendGridMailer(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		return sg
	}
	if awsCfg == nil || cfg.SESFromEmail == "" {
		return nil
	}
	if ses := notify.NewSESMailer(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
		FromEmail: cfg.SESFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); ses != nil {
		return ses
	}
	return nil
}

// BuildReplyPublisher wires the sender with metrics and operator alerts.
func BuildReplyPublisher(cfg *appconfig.Config, sender messaging.Sender, mailer notify.Mailer, m *metrics.RelayMetrics, logger *logging.Logger) *messaging.ReplyPublisher {
	opts := []messaging.PublisherOption{}
	if m != nil {
		opts = append(opts, messaging.WithPublishRecorder(m))
	}
	if alerter := notify.NewAlerter(mailer, cfg.AlertEmailTo, logger); alerter != nil {
		opts = append(opts, messaging.WithPublishAlerter(alerter))
		logger.Info("publish failure alerts enabled", "to", cfg.AlertEmailTo)
	}
	return messaging.NewReplyPublisher(sender, cfg.PublishTimeout, logger, opts...)
}
