package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/replyflow/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig configures SESMailer.
type SESConfig struct {
	FromEmail string
	FromName  string
}

// SESMailer sends alerts through SES v2. The alert kind and tenant travel
// as message tags so bounces and complaints can be traced back.
type SESMailer struct {
	client sesAPI
	from   string
	logger *logging.Logger
}

// NewSESMailer returns nil without a client or sender address.
func NewSESMailer(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESMailer {
	if client == nil || cfg.FromEmail == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SESMailer{
		client: client,
		from:   fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

func (s *SESMailer) Deliver(ctx context.Context, m AlertMail) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{m.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(m.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(m.Text), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: sesTags(m),
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("notify: ses deliver: %w", err)
	}
	s.logger.Info("alert sent via ses", "kind", m.Kind, "tenant_id", m.TenantID, "message_id", aws.ToString(out.MessageId))
	return nil
}

func sesTags(m AlertMail) []types.MessageTag {
	var tags []types.MessageTag
	if m.Kind != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("alert_kind"), Value: aws.String(m.Kind)})
	}
	if m.TenantID != 0 {
		tags = append(tags, types.MessageTag{Name: aws.String("tenant_id"), Value: aws.String(strconv.FormatInt(m.TenantID, 10))})
	}
	return tags
}

var _ Mailer = (*SESMailer)(nil)
