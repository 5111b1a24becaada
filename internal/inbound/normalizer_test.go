package inbound

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCloudText(t *testing.T) {
	body := []byte(`{
	  "object": "whatsapp_business_account",
	  "entry": [{
	    "id": "WABA",
	    "changes": [{
	      "field": "messages",
	      "value": {
	        "messaging_product": "whatsapp",
	        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "1098765"},
	        "messages": [{"from": "+92 300 1234567", "id": "wamid.A", "timestamp": "1717000000", "type": "text", "text": {"body": "  2 biryani "}}]
	      }
	    }]
	  }]
	}`)

	msgs := NewNormalizer(nil).Normalize(body)
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, ShapeCloud, msg.Shape)
	assert.Equal(t, "923001234567", msg.SenderAddress)
	assert.Equal(t, "2 biryani", msg.Body)
	assert.Equal(t, "1098765", msg.TransportChannelID)
	assert.Equal(t, "wamid.A", msg.ProviderMessageID)
	assert.Equal(t, time.Unix(1717000000, 0).UTC(), msg.SentAt)
	assert.False(t, msg.HasMedia())
}

func TestNormalizeCloudAudio(t *testing.T) {
	body := []byte(`{"entry":[{"changes":[{"value":{"metadata":{"phone_number_id":123},"messages":[
	  {"from":"923001234567","id":"m1","type":"audio","audio":{"id":"media-1","mime_type":"audio/ogg; codecs=opus"}},
	  {"from":"923001234567","id":"m2","type":"voice","voice":{"id":"media-2"}},
	  {"from":"923001234567","id":"m3","type":"image","image":{"id":"media-3"}}
	]}}]}]}`)

	msgs := NewNormalizer(nil).Normalize(body)
	require.Len(t, msgs, 2)
	assert.Equal(t, "123", msgs[0].TransportChannelID)
	require.True(t, msgs[0].HasMedia())
	assert.Equal(t, "media-1", msgs[0].Media.ID)
	assert.Equal(t, "audio/ogg; codecs=opus", msgs[0].Media.MimeType)
	assert.Equal(t, "media-2", msgs[1].Media.ID)
	assert.Equal(t, DefaultAudioMimeType, msgs[1].Media.MimeType)
	assert.Empty(t, msgs[1].Body)
}

func TestNormalizeEventShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		from string
		text string
	}{
		{"nested value messages with text body", `{"value":{"messages":[{"from":"923001112222","text":{"body":"menu?"}}]}}`, "923001112222", "menu?"},
		{"top-level messages bare text", `{"messages":[{"wa_id":"+92-300-1112222","text":"hi"}]}`, "923001112222", "hi"},
		{"sender key and body field", `{"messages":[{"sender":"923001112222","body":"salam"}]}`, "923001112222", "salam"},
		{"contact object wa_id", `{"messages":[{"contact":{"wa_id":"923001112222"},"text":"yo"}]}`, "923001112222", "yo"},
		{"numeric sender", `{"messages":[{"from":923001112222,"text":"num"}]}`, "923001112222", "num"},
		{"flat wati event", `{"waId":"923001112222","text":"flat","type":"text"}`, "923001112222", "flat"},
		{"customer phone with message body", `{"customer":{"phone":"0300 1112222"},"message":{"body":"deep"}}`, "03001112222", "deep"},
		{"customerPhone and message string", `{"customerPhone":"923001112222","message":"plain"}`, "923001112222", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := NewNormalizer(nil).Normalize([]byte(tt.body))
			require.Len(t, msgs, 1)
			assert.Equal(t, ShapeEvent, msgs[0].Shape)
			assert.Equal(t, tt.from, msgs[0].SenderAddress)
			assert.Equal(t, tt.text, msgs[0].Body)
			assert.Empty(t, msgs[0].TransportChannelID)
		})
	}
}

func TestNormalizeToleratesMalformedPayloads(t *testing.T) {
	payloads := []string{
		``,
		`not json`,
		`[]`,
		`"string"`,
		`{}`,
		`{"event":"ping"}`,
		`{"messages":[]}`,
		`{"messages":"oops"}`,
		`{"messages":[{"text":"no sender"}]}`,
		`{"messages":[{"from":"923001112222"}]}`,
		`{"messages":[{"from":"abc","text":"letters only"}]}`,
		`{"messages":[null, 5, "x"]}`,
		`{"value":{"messages":[{"from":"923001112222","text":{"body":"   "}}]}}`,
		`{"entry":"nope"}`,
		`{"entry":[{"changes":[{"value":{"messages":[{"from":"1","type":"text","text":{"body":"no channel"}}]}}]}]}`,
		`{"entry":[{"changes":[{"value":{"metadata":{"phone_number_id":"1"},"statuses":[{"id":"wamid","status":"read"}]}}]}]}`,
		`{"entry":[{"changes":[{"value":{"metadata":{"phone_number_id":"1"},"messages":[{"type":"text"}]}}]}]}`,
		`{"entry":[{"changes":[{"value":{"metadata":{"phone_number_id":"1"},"messages":[{"from":"1","type":"audio"}]}}]}]}`,
	}
	n := NewNormalizer(nil)
	for _, p := range payloads {
		assert.NotPanics(t, func() {
			msgs := n.Normalize([]byte(p))
			assert.Empty(t, msgs, "payload %q", p)
		})
	}
}

func TestNormalizeKeepsValidMessagesAmongInvalid(t *testing.T) {
	body := []byte(`{"messages":[{"text":"no sender"},{"from":"923001112222","text":"ok"}]}`)
	msgs := NewNormalizer(nil).Normalize(body)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ok", msgs[0].Body)
}

func TestShapeDetection(t *testing.T) {
	n := NewNormalizer(nil)
	assert.Equal(t, ShapeCloud, n.Shape(map[string]any{"entry": []any{}}))
	assert.Equal(t, ShapeEvent, n.Shape(map[string]any{"messages": []any{}}))
	assert.Equal(t, Shape(""), n.Shape(map[string]any{"hello": "world"}))
	assert.Equal(t, Shape(""), n.Shape("scalar"))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "923001234567", NormalizeAddress("+92 (300) 123-4567"))
	assert.Equal(t, "", NormalizeAddress("whatsapp:"))
}
