package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/replyflow/internal/conversation"
	"github.com/wolfman30/replyflow/internal/notify"
	"github.com/wolfman30/replyflow/pkg/logging"
)

type fakeSender struct {
	err   error
	calls []string
}

func (f *fakeSender) Transport() string { return "fake" }

func (f *fakeSender) Send(_ context.Context, channelID, to, text string) error {
	f.calls = append(f.calls, channelID+"|"+to+"|"+text)
	return f.err
}

type fakePublishRecorder struct {
	delivered, failed int
}

func (r *fakePublishRecorder) ObservePublish(_ string, delivered bool) {
	if delivered {
		r.delivered++
	} else {
		r.failed++
	}
}

type fakeAlerter struct {
	failures []notify.PublishFailure
}

func (a *fakeAlerter) PublishFailed(_ context.Context, f notify.PublishFailure) bool {
	a.failures = append(a.failures, f)
	return true
}

func TestReplyPublisher_Delivered(t *testing.T) {
	sender := &fakeSender{}
	recorder := &fakePublishRecorder{}
	alerter := &fakeAlerter{}
	p := NewReplyPublisher(sender, 0, logging.Default(), WithPublishRecorder(recorder), WithPublishAlerter(alerter))

	ok := p.Publish(context.Background(), conversation.OutboundReply{
		TenantID: 1, ChannelID: "PNID", To: "923001234567", Body: "Ji",
	})

	assert.True(t, ok)
	assert.Equal(t, []string{"PNID|923001234567|Ji"}, sender.calls)
	assert.Equal(t, 1, recorder.delivered)
	assert.Empty(t, alerter.failures)
}

func TestReplyPublisher_FailureIsReportedNotRetried(t *testing.T) {
	sender := &fakeSender{err: errors.New("status 500")}
	recorder := &fakePublishRecorder{}
	alerter := &fakeAlerter{}
	p := NewReplyPublisher(sender, 0, logging.Default(), WithPublishRecorder(recorder), WithPublishAlerter(alerter))

	ok := p.Publish(context.Background(), conversation.OutboundReply{
		TenantID: 3, ConversationID: 8, ChannelID: "PNID", To: "923001234567", Body: "Ji",
	})

	assert.False(t, ok)
	assert.Len(t, sender.calls, 1)
	assert.Equal(t, 1, recorder.failed)
	if assert.Len(t, alerter.failures, 1) {
		assert.Equal(t, int64(3), alerter.failures[0].TenantID)
		assert.Equal(t, int64(8), alerter.failures[0].ConversationID)
		assert.Equal(t, "fake", alerter.failures[0].Transport)
		assert.EqualError(t, alerter.failures[0].Err, "status 500")
	}
}
