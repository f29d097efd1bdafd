package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3nomad/Rabby/internal/event"
)

type published struct {
	topic, key, typ string
	payload         []byte
}

type fakeProducer struct {
	msgs []published
	err  error
}

func (f *fakeProducer) Publish(_ context.Context, topic, key, eventType string, payload []byte) error {
	f.msgs = append(f.msgs, published{topic, key, eventType, payload})
	return f.err
}

func (f *fakeProducer) Close() error { return nil }

func TestSecurityCheckFailedPublishes(t *testing.T) {
	p := &fakeProducer{}
	r := New(p, "review_events")
	r.now = func() time.Time { return time.Unix(100, 0).UTC() }

	ctx := WithSessionID(context.Background(), "s-1")
	r.SecurityCheckFailed(ctx, "0xabc", errors.New("timeout"))

	require.Len(t, p.msgs, 1)
	assert.Equal(t, "review_events", p.msgs[0].topic)
	assert.Equal(t, "0xabc", p.msgs[0].key)
	assert.Equal(t, event.TypeSecurityCheckFailed, p.msgs[0].typ)

	var ev event.SecurityCheckFailedEvent
	require.NoError(t, json.Unmarshal(p.msgs[0].payload, &ev))
	assert.Equal(t, "s-1", ev.SessionID)
	assert.Equal(t, "timeout", ev.Error)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker down")}
	r := New(p, "review_events")

	assert.NotPanics(t, func() {
		r.BestEffortFailure(context.Background(), "block", 1, errors.New("rpc"))
		r.Submitted(context.Background(), event.SubmittedEvent{SessionID: "s", From: "0xabc"})
	})
	assert.Len(t, p.msgs, 2)
	assert.Equal(t, "0xabc", p.msgs[1].key)
}

func TestNilProducer(t *testing.T) {
	r := New(nil, "")
	assert.NotPanics(t, func() {
		r.SecurityCheckFailed(context.Background(), "0xabc", errors.New("x"))
	})
	assert.Empty(t, SessionID(context.Background()))
}
