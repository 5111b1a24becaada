package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wolfman30/replyflow/pkg/logging"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindTransient, KindOf(errors.New("boom")))
	assert.Equal(t, KindTransient, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindUnsupported, KindOf(ErrMediaUnsupported))
	wrapped := fmt.Errorf("outer: %w", &Error{Kind: KindRateLimited})
	assert.Equal(t, KindRateLimited, KindOf(wrapped))
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, KindRateLimited, classifyStatus(429))
	assert.Equal(t, KindBadRequest, classifyStatus(400))
	assert.Equal(t, KindBadRequest, classifyStatus(401))
	assert.Equal(t, KindTransient, classifyStatus(408))
	assert.Equal(t, KindTransient, classifyStatus(500))
	assert.Equal(t, KindTransient, classifyStatus(529))
}

func TestClassifyAnthropicError(t *testing.T) {
	assert.Equal(t, KindRateLimited, KindOf(classifyAnthropicError(&anthropic.Error{StatusCode: 429})))
	assert.Equal(t, KindBadRequest, KindOf(classifyAnthropicError(&anthropic.Error{StatusCode: 400})))
	assert.Equal(t, KindTransient, KindOf(classifyAnthropicError(errors.New("dial tcp: refused"))))

	var apiErr *anthropic.Error
	require.ErrorAs(t, classifyAnthropicError(&anthropic.Error{StatusCode: 400}), &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
}

func TestAnthropicBadRequestKeepsProviderDetail(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 250000 tokens > 200000 maximum"}}`)
	}))
	defer srv.Close()

	backend, err := NewAnthropicBackend("sk-ant-test", "", srv.URL, 64)
	require.NoError(t, err)

	var logs bytes.Buffer
	d := NewDispatcher(backend, logging.NewWithWriter("info", &logs),
		WithSleep(func(context.Context, time.Duration) error { return nil }))
	out := d.Dispatch(context.Background(), Request{System: "s", User: "u"})

	assert.Equal(t, 1, calls)
	assert.True(t, out.Degraded)
	assert.Equal(t, KindBadRequest, out.Failure)
	assert.Equal(t, DefaultFallbacks().Busy, out.Reply)
	assert.Contains(t, logs.String(), "generation.degraded")
	assert.Contains(t, logs.String(), "prompt is too long")
}

func TestClassifyGeminiError(t *testing.T) {
	assert.Equal(t, KindRateLimited, KindOf(classifyGeminiError(status.Error(codes.ResourceExhausted, "quota"))))
	assert.Equal(t, KindBadRequest, KindOf(classifyGeminiError(status.Error(codes.InvalidArgument, "bad"))))
	assert.Equal(t, KindTransient, KindOf(classifyGeminiError(status.Error(codes.Unavailable, "down"))))
	assert.Equal(t, KindRateLimited, KindOf(classifyGeminiError(&googleapi.Error{Code: 429})))
	assert.Equal(t, KindBadRequest, KindOf(classifyGeminiError(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 400}))))
}

func TestBaseMimeType(t *testing.T) {
	assert.Equal(t, "audio/ogg", baseMimeType("audio/ogg; codecs=opus"))
	assert.Equal(t, "audio/mpeg", baseMimeType("audio/mpeg"))
	assert.Equal(t, "audio/ogg", baseMimeType(""))
}

func TestOpenAIBackend(t *testing.T) {
	var gotBody map[string]any
	code := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if code != http.StatusOK {
			fmt.Fprintf(w, `{"error":{"message":"nope","type":"x"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Ji zaroor"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	backend, err := NewOpenAIBackend("sk-test", "gpt-4o-mini", srv.URL+"/v1", 256)
	require.NoError(t, err)
	assert.False(t, backend.SupportsMedia())

	reply, err := backend.Generate(context.Background(), Request{System: "persona", User: "menu?"})
	require.NoError(t, err)
	assert.Equal(t, "Ji zaroor", reply)
	messages, _ := gotBody["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])

	code = http.StatusTooManyRequests
	_, err = backend.Generate(context.Background(), Request{User: "again"})
	assert.Equal(t, KindRateLimited, KindOf(err))

	code = http.StatusBadRequest
	_, err = backend.Generate(context.Background(), Request{User: "again"})
	assert.Equal(t, KindBadRequest, KindOf(err))

	_, err = backend.Generate(context.Background(), Request{Media: &Media{}})
	assert.Equal(t, KindUnsupported, KindOf(err))
}

func TestTextBackendsRequireKeys(t *testing.T) {
	_, err := NewOpenAIBackend("", "", "", 0)
	assert.Error(t, err)
	_, err = NewAnthropicBackend(" ", "", "", 0)
	assert.Error(t, err)
	_, err = NewGeminiBackend(context.Background(), "", "", 0)
	assert.Error(t, err)
}

type fakeConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (f *fakeConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestBedrockBackend(t *testing.T) {
	api := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "Haan ji"}},
		}},
	}}
	backend, err := NewBedrockBackend(api, "anthropic.claude-3-haiku", 300)
	require.NoError(t, err)

	reply, err := backend.Generate(context.Background(), Request{System: "persona", User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Haan ji", reply)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	require.Len(t, api.input.System, 1)
	assert.Equal(t, int32(300), aws.ToInt32(api.input.InferenceConfig.MaxTokens))

	api.err = &brtypes.ThrottlingException{Message: aws.String("slow")}
	_, err = backend.Generate(context.Background(), Request{User: "hi"})
	assert.Equal(t, KindRateLimited, KindOf(err))

	api.err = &brtypes.ValidationException{Message: aws.String("bad")}
	_, err = backend.Generate(context.Background(), Request{User: "hi"})
	assert.Equal(t, KindBadRequest, KindOf(err))

	api.err = errors.New("network")
	_, err = backend.Generate(context.Background(), Request{User: "hi"})
	assert.Equal(t, KindTransient, KindOf(err))

	_, err = NewBedrockBackend(api, "", 0)
	assert.Error(t, err)
}
