package conversation

import "context"

// OutboundReply is a generated reply ready for the transport.
type OutboundReply struct {
	TenantID       int64  `json:"tenant_id"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	ChannelID      string `json:"channel_id,omitempty"`
	To             string `json:"to"`
	Body           string `json:"body"`
	Degraded       bool   `json:"degraded,omitempty"`
}

// ReplyPublisher hands replies to the outbound transport. It reports whether
// the transport accepted the message and never retries.
type ReplyPublisher interface {
	Publish(ctx context.Context, reply OutboundReply) bool
}

// MediaFetcher downloads platform-hosted media by id.
type MediaFetcher interface {
	Fetch(ctx context.Context, mediaID string) (data []byte, mimeType string, err error)
}

// MediaArchiver stores a copy of fetched media.
type MediaArchiver interface {
	Archive(ctx context.Context, key string, data []byte, mimeType string) error
}

// RelayRecorder receives one observation per handled message.
type RelayRecorder interface {
	ObserveRelay(tenantID int64, delivered, degraded bool, seconds float64)
}
