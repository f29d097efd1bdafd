package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaProducer writes events to one topic.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer 创建 Kafka 生产者, topic 由 writer 固定
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // 按 Key 哈希，同一地址的事件有序
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &KafkaProducer{writer: writer}
}

// Publish ignores topic; the writer was created for one.
func (p *KafkaProducer) Publish(ctx context.Context, _ string, key, eventType string, payload []byte) error {
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: "type", Value: []byte(eventType)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write error: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
