package inbound

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/replyflow/pkg/logging"
)

// candidate is the strict intermediate form every shape parser produces.
// Optional fields are explicit; validation into InboundMessage happens once.
type candidate struct {
	from       string
	text       string
	media      *MediaRef
	channelID  string
	providerID string
	timestamp  string
}

// shapeParser extracts candidates from one wire format.
type shapeParser interface {
	shape() Shape
	matches(root fields) bool
	parse(root fields) []candidate
}

// Normalizer converts raw webhook bodies into InboundMessage values. It never
// fails: malformed input yields an empty result.
type Normalizer struct {
	parsers []shapeParser
	logger  *logging.Logger
}

// NewNormalizer creates a Normalizer that recognizes the Cloud API envelope
// and the single-event wrapper, in that order.
func NewNormalizer(logger *logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Normalizer{
		parsers: []shapeParser{cloudShape{}, eventShape{}},
		logger:  logger,
	}
}

// Normalize decodes raw JSON and extracts messages.
func (n *Normalizer) Normalize(raw []byte) []InboundMessage {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		n.logger.Debug("webhook body is not json", "error", err)
		return nil
	}
	return n.NormalizeValue(root)
}

// NormalizeValue extracts messages from an already decoded JSON value.
func (n *Normalizer) NormalizeValue(root any) []InboundMessage {
	obj := asFields(root)
	if obj == nil {
		return nil
	}
	for _, p := range n.parsers {
		if !p.matches(obj) {
			continue
		}
		return n.validate(p.shape(), p.parse(obj))
	}
	return nil
}

// Shape reports which parser would handle the payload, or "" when none does.
func (n *Normalizer) Shape(root any) Shape {
	obj := asFields(root)
	for _, p := range n.parsers {
		if obj != nil && p.matches(obj) {
			return p.shape()
		}
	}
	return ""
}

func (n *Normalizer) validate(shape Shape, candidates []candidate) []InboundMessage {
	out := make([]InboundMessage, 0, len(candidates))
	for _, c := range candidates {
		address := NormalizeAddress(c.from)
		if address == "" {
			n.logger.Warn("dropping inbound message without sender address", "shape", shape, "provider_message_id", c.providerID)
			continue
		}
		msg := InboundMessage{
			Shape:              shape,
			SenderAddress:      address,
			TransportChannelID: c.channelID,
			ProviderMessageID:  c.providerID,
			SentAt:             parseUnix(c.timestamp),
		}
		switch {
		case c.media != nil && c.media.ID != "":
			media := *c.media
			if media.MimeType == "" {
				media.MimeType = DefaultAudioMimeType
			}
			msg.Media = &media
		case strings.TrimSpace(c.text) != "":
			msg.Body = strings.TrimSpace(c.text)
		default:
			continue
		}
		out = append(out, msg)
	}
	return out
}

func parseUnix(raw string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
