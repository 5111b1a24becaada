// Package inbound turns messaging-platform webhook bodies into canonical
// InboundMessage values and checks their authenticity.
package inbound

import (
	"strings"
	"time"
)

// Shape identifies the wire format a message was extracted from.
type Shape string

const (
	// ShapeCloud is the Meta WhatsApp Cloud API envelope: entry[].changes[].value.
	ShapeCloud Shape = "cloud"
	// ShapeEvent is the single-event wrapper used by WATI-style integrations.
	ShapeEvent Shape = "event"
)

// DefaultAudioMimeType is assumed when an audio message omits its mime type.
const DefaultAudioMimeType = "audio/ogg"

// MediaRef points at a platform-hosted media object.
type MediaRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
}

// InboundMessage is one customer message extracted from a webhook delivery.
// Exactly one of Body and Media is set.
type InboundMessage struct {
	Shape              Shape     `json:"shape"`
	SenderAddress      string    `json:"sender_address"`
	Body               string    `json:"body,omitempty"`
	Media              *MediaRef `json:"media,omitempty"`
	TransportChannelID string    `json:"transport_channel_id,omitempty"`
	ProviderMessageID  string    `json:"provider_message_id,omitempty"`
	SentAt             time.Time `json:"sent_at,omitempty"`
	// Throttled is set when the sender exceeded its message rate. The
	// message is still relayed, answered with a fixed slow-down reply.
	Throttled bool `json:"throttled,omitempty"`
}

// HasMedia reports whether the message carries a media reference instead of text.
func (m InboundMessage) HasMedia() bool {
	return m.Media != nil && m.Media.ID != ""
}

// NormalizeAddress strips everything but digits, so "+92 300-1234567" and
// "923001234567" name the same customer.
func NormalizeAddress(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
