// Package reporter is the observability sink for best-effort failures and submissions.
// Everything is logged and counted; events are also published when a producer is set.
package reporter

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/internal/event"
	"github.com/web3nomad/Rabby/internal/service/mq"
	"github.com/web3nomad/Rabby/pkg/logger"
	"github.com/web3nomad/Rabby/pkg/monitor"
)

const publishTimeout = 2 * time.Second

type Reporter struct {
	producer mq.Producer
	topic    string
	log      *zap.Logger
	now      func() time.Time
}

// New returns a reporter; producer may be nil.
func New(producer mq.Producer, topic string) *Reporter {
	return &Reporter{
		producer: producer,
		topic:    topic,
		log:      logger.Named("reporter"),
		now:      time.Now,
	}
}

func (r *Reporter) SecurityCheckFailed(ctx context.Context, address string, err error) {
	r.publish(ctx, address, event.TypeSecurityCheckFailed, event.SecurityCheckFailedEvent{
		SessionID: SessionID(ctx),
		Address:   address,
		Error:     err.Error(),
		At:        r.now(),
	})
}

// BestEffortFailure records a failed read that was replaced by a fallback value.
func (r *Reporter) BestEffortFailure(ctx context.Context, stage string, chainID int64, err error) {
	monitor.BestEffortFailure(stage)
	r.log.Warn("best effort read failed", zap.String("stage", stage), zap.Int64("chain_id", chainID), zap.Error(err))
	r.publish(ctx, stage, event.TypeBestEffortFailure, event.BestEffortFailureEvent{
		SessionID: SessionID(ctx),
		Stage:     stage,
		ChainID:   chainID,
		Error:     err.Error(),
		At:        r.now(),
	})
}

func (r *Reporter) Submitted(ctx context.Context, ev event.SubmittedEvent) {
	if ev.At.IsZero() {
		ev.At = r.now()
	}
	r.log.Info("review submitted", zap.String("session_id", ev.SessionID), zap.Int64("chain_id", ev.ChainID), zap.String("nonce", ev.Nonce))
	r.publish(ctx, ev.From, event.TypeSubmitted, ev)
}

func (r *Reporter) publish(ctx context.Context, key, eventType string, payload interface{}) {
	if r.producer == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		r.log.Error("marshal event failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	// 请求结束后事件仍需发出
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.producer.Publish(ctx, r.topic, key, eventType, body); err != nil {
		r.log.Warn("publish event failed", zap.String("type", eventType), zap.Error(err))
	}
}

type sessionKey struct{}

// WithSessionID tags ctx so reported events carry the review session.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
