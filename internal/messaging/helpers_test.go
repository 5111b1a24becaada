package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wolfman30/replyflow/internal/inbound"
)

type enqueuedJob struct {
	tenantID int64
	msg      inbound.InboundMessage
}

type stubEnqueuer struct {
	mu     sync.Mutex
	jobs   []enqueuedJob
	failAt int // 1-based call that fails; 0 never fails
	calls  int
}

func (s *stubEnqueuer) EnqueueInbound(_ context.Context, tenantID int64, msg inbound.InboundMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAt != 0 && s.calls >= s.failAt {
		return "", errors.New("queue unavailable")
	}
	s.jobs = append(s.jobs, enqueuedJob{tenantID: tenantID, msg: msg})
	return fmt.Sprintf("job-%d", s.calls), nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) ObserveInbound(_ string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[outcome]++
}

func cloudTextBody(phoneNumberID string, messages ...[2]string) string {
	items := ""
	for i, m := range messages {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"from":"%s","id":"wamid.%d","timestamp":"1718000000","type":"text","text":{"body":"%s"}}`, m[0], i+1, m[1])
	}
	return fmt.Sprintf(`{"object":"whatsapp_business_account","entry":[{"id":"WABA","changes":[{"field":"messages","value":{"messaging_product":"whatsapp","metadata":{"display_phone_number":"15550001111","phone_number_id":"%s"},"messages":[%s]}}]}]}`, phoneNumberID, items)
}
