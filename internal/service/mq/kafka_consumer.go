package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/pkg/logger"
)

// KafkaConsumer reads a topic as part of a consumer group.
type KafkaConsumer struct {
	brokers []string
	groupID string
	reader  *kafka.Reader
	log     *zap.Logger
}

func NewKafkaConsumer(brokers []string, groupID string) *KafkaConsumer {
	return &KafkaConsumer{
		brokers: brokers,
		groupID: groupID,
		log:     logger.Named("mq.kafka"),
	}
}

// Subscribe blocks until ctx is done. Offsets are committed only after handler succeeds.
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		GroupID:     c.groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	defer c.reader.Close()

	c.log.Info("subscribed", zap.String("topic", topic), zap.String("group", c.groupID))

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("fetch message failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		msg := &Message{
			ID:      fmt.Sprintf("%d-%d", m.Partition, m.Offset),
			Topic:   topic,
			Key:     string(m.Key),
			Type:    headerValue(m.Headers, "type"),
			Payload: m.Value,
		}
		if err := handler(msg); err != nil {
			// Kafka 没有单条 Nack, 不提交 offset, 重启后重新消费
			c.log.Warn("handle message failed", zap.String("id", msg.ID), zap.Error(err))
			continue
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.log.Warn("commit offset failed", zap.Error(err))
		}
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaConsumer) Close() error {
	return nil
}
