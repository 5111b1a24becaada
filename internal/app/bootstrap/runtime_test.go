package bootstrap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/replyflow/internal/catalog"
	appconfig "github.com/wolfman30/replyflow/internal/config"
	"github.com/wolfman30/replyflow/internal/conversation"
	"github.com/wolfman30/replyflow/internal/llm"
	"github.com/wolfman30/replyflow/pkg/logging"
)

type sentMessage struct {
	channelID string
	to        string
	text      string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (s *recordingSender) Transport() string { return "test" }

func (s *recordingSender) Send(_ context.Context, channelID, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{channelID: channelID, to: to, text: text})
	return nil
}

func (s *recordingSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func newOpenAIServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":"`+reply+`"},"finish_reason":"stop"}]}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, llmURL string) *appconfig.Config {
	t.Helper()
	return &appconfig.Config{
		WebhookVariant:      appconfig.VariantCloud,
		WhatsAppVerifyToken: "verify-me",
		DedupeTTL:           time.Hour,
		PublishTimeout:      time.Second,

		DefaultTenantID:   1,
		DefaultTenantName: "Moon Kitchen",
		TenantRoutesJSON:  `{"PNID-2":2}`,
		SQLitePath:        filepath.Join(t.TempDir(), "runtime.db"),
		HistoryLimit:      20,

		GenerationBackend:     appconfig.BackendOpenAI,
		OpenAIAPIKey:          "sk-test",
		OpenAIBaseURL:         llmURL + "/v1",
		GenerationTimeout:     5 * time.Second,
		RateLimitBackoff:      0,
		TransientRetryBackoff: 0,

		RestaurantName:  "Moon Kitchen",
		RestaurantCity:  "Karachi",
		CatalogCurrency: "Rs",

		UseMemoryQueue: true,
		WorkerCount:    1,
	}
}

func TestBuildRuntime_EndToEnd(t *testing.T) {
	ctx := context.Background()
	llmServer := newOpenAIServer(t, "2 biryani = Rs 700. Confirm karein?")
	cfg := testConfig(t, llmServer.URL)
	sender := &recordingSender{}

	rt, err := BuildRuntime(ctx, cfg, logging.New("error"), Options{Sender: sender})
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	require.NoError(t, rt.Store.ReplaceCatalog(ctx, 1, []catalog.Item{{Name: "Biryani", Price: 350}}))

	workerCtx, cancel := context.WithCancel(ctx)
	worker := rt.NewWorker()
	worker.Start(workerCtx)
	t.Cleanup(func() {
		cancel()
		worker.Wait()
	})

	body := `{"entry":[{"changes":[{"value":{"metadata":{"phone_number_id":"PNID-1"},` +
		`"messages":[{"from":"923001234567","id":"wamid.1","type":"text","text":{"body":"2 biryani"}}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rr := httptest.NewRecorder()
	rt.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.Eventually(t, func() bool { return len(sender.messages()) == 1 }, 5*time.Second, 10*time.Millisecond)
	sent := sender.messages()[0]
	assert.Equal(t, "PNID-1", sent.channelID)
	assert.Equal(t, "923001234567", sent.to)
	assert.Equal(t, "2 biryani = Rs 700. Confirm karein?", sent.text)

	require.Eventually(t, func() bool {
		id, err := rt.Store.LookupConversation(ctx, 1, "923001234567")
		if err != nil {
			return false
		}
		turns, err := rt.Store.RecentHistory(ctx, id, 10)
		return err == nil && len(turns) == 2
	}, 5*time.Second, 10*time.Millisecond)

	metricsRec := httptest.NewRecorder()
	rt.Router().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRec.Body.String(), "replyflow_webhook_inbound_messages_total")
}

func TestBuildRuntime_EnsuresRoutedTenants(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, newOpenAIServer(t, "ok").URL)

	rt, err := BuildRuntime(ctx, cfg, logging.New("error"), Options{Sender: &recordingSender{}})
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	// Catalog rows reference tenants, so a replace succeeds only for known ids.
	require.NoError(t, rt.Store.ReplaceCatalog(ctx, 2, []catalog.Item{{Name: "Naan", Price: 40}}))
	_, err = rt.Store.GetOrCreateConversation(ctx, 2, "923001234567")
	require.NoError(t, err)
}

func TestBuildRuntime_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.GenerationBackend = "mystery"
	_, err := BuildRuntime(context.Background(), cfg, nil, Options{})
	require.Error(t, err)

	_, err = BuildRuntime(context.Background(), nil, nil, Options{})
	require.Error(t, err)
}

func TestBuildRuntime_MissingAPIKey(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.OpenAIAPIKey = ""
	_, err := BuildRuntime(context.Background(), cfg, logging.New("error"), Options{Sender: &recordingSender{}})
	require.Error(t, err)
}

type closingBackend struct {
	closed int
}

func (b *closingBackend) Name() string        { return "closing" }
func (b *closingBackend) SupportsMedia() bool { return false }

func (b *closingBackend) Generate(context.Context, llm.Request) (string, error) {
	return "ok", nil
}

func (b *closingBackend) Close() error {
	b.closed++
	return nil
}

func TestRuntimeCloseReleasesBackend(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	backend := &closingBackend{}

	rt, err := BuildRuntime(context.Background(), cfg, logging.New("error"), Options{Sender: &recordingSender{}, Backend: backend})
	require.NoError(t, err)
	assert.Same(t, backend, rt.Backend)

	rt.Close()
	assert.Equal(t, 1, backend.closed)
}

func TestBuildSender(t *testing.T) {
	cfg := &appconfig.Config{WebhookVariant: appconfig.VariantCloud}
	sender, err := BuildSender(cfg)
	require.NoError(t, err)
	assert.Equal(t, "cloud", sender.Transport())

	cfg.WebhookVariant = appconfig.VariantWati
	sender, err = BuildSender(cfg)
	require.NoError(t, err)
	assert.Equal(t, "wati", sender.Transport())

	cfg.WebhookVariant = "sms"
	_, err = BuildSender(cfg)
	require.Error(t, err)
}

func TestBuildQueue(t *testing.T) {
	queue, err := BuildQueue(&appconfig.Config{UseMemoryQueue: true, WorkerCount: 2}, nil)
	require.NoError(t, err)
	_, ok := queue.(*conversation.MemoryQueue)
	assert.True(t, ok)

	_, err = BuildQueue(&appconfig.Config{ConversationQueueURL: "http://localhost:4566/000000000000/jobs"}, nil)
	require.Error(t, err)
}

func TestBuildAlertMailer(t *testing.T) {
	assert.Nil(t, BuildAlertMailer(&appconfig.Config{}, nil, nil))
	assert.NotNil(t, BuildAlertMailer(&appconfig.Config{SendGridAPIKey: "SG.key", SendGridFromEmail: "bot@example.com"}, nil, nil))
}

func TestBuildRedisClient(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, true)
	require.NotNil(t, client)
	_ = client.Close()

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logging.New("error"), true))
}
