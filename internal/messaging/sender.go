package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var sendTracer = otel.Tracer("replyflow.internal.messaging.send")

// ErrSenderNotConfigured is returned when a sender lacks credentials or an endpoint.
var ErrSenderNotConfigured = errors.New("messaging: sender not configured")

// Sender performs one outbound HTTP call per reply.
type Sender interface {
	// Transport names the sink for logs and metrics.
	Transport() string
	Send(ctx context.Context, channelID, to, text string) error
}

// CloudSender posts text messages through the WhatsApp Cloud API.
type CloudSender struct {
	baseURL    string
	version    string
	token      string
	httpClient *http.Client
}

// NewCloudSender builds a Cloud API sender.
func NewCloudSender(baseURL, version, token string, timeout time.Duration) *CloudSender {
	return &CloudSender{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    strings.Trim(version, "/"),
		token:      token,
		httpClient: newHTTPClient(timeout),
	}
}

func (s *CloudSender) Transport() string { return "cloud" }

type cloudTextPayload struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Send posts to /{version}/{phone_number_id}/messages.
func (s *CloudSender) Send(ctx context.Context, channelID, to, text string) error {
	if s.token == "" || s.baseURL == "" {
		return ErrSenderNotConfigured
	}
	if channelID == "" {
		return errors.New("messaging: phone number id required")
	}
	if err := requireMessage(to, text); err != nil {
		return err
	}

	payload := cloudTextPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	payload.Text.Body = text

	endpoint := fmt.Sprintf("%s/%s/%s/messages", s.baseURL, s.version, url.PathEscape(channelID))
	return postJSON(ctx, s.httpClient, s.Transport(), endpoint, s.token, payload)
}

// WatiSender posts session messages through a WATI account endpoint.
type WatiSender struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewWatiSender builds a WATI sender. apiKey may carry or omit the "Bearer " prefix.
func NewWatiSender(endpoint, apiKey string, timeout time.Duration) *WatiSender {
	return &WatiSender{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(apiKey), "Bearer ")),
		httpClient: newHTTPClient(timeout),
	}
}

func (s *WatiSender) Transport() string { return "wati" }

// Send posts {"message": text} to /api/v1/sendSessionMessage/{phone}. WATI
// routes by account, so channelID is ignored.
func (s *WatiSender) Send(ctx context.Context, _ string, to, text string) error {
	if s.apiKey == "" || s.endpoint == "" {
		return ErrSenderNotConfigured
	}
	if err := requireMessage(to, text); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/api/v1/sendSessionMessage/%s", s.endpoint, url.PathEscape(to))
	return postJSON(ctx, s.httpClient, s.Transport(), endpoint, s.apiKey, map[string]string{"message": text})
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func requireMessage(to, text string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("messaging: destination required")
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("messaging: body required")
	}
	return nil
}

func postJSON(ctx context.Context, client *http.Client, transport, endpoint, token string, payload any) error {
	ctx, span := sendTracer.Start(ctx, "messaging.send")
	defer span.End()
	span.SetAttributes(attribute.String("replyflow.transport", transport))

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("messaging: failed to marshal %s payload: %w", transport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messaging: build %s request: %w", transport, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("messaging: %s send: %w", transport, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("messaging: %s send failed: status %d: %s", transport, resp.StatusCode, strings.TrimSpace(string(respBody)))
		span.RecordError(err)
		return err
	}
	return nil
}
