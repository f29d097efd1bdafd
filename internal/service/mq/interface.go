package mq

import "context"

// Message 是一条通用的评审事件消息
type Message struct {
	ID      string // Redis Stream ID 或 Kafka offset
	Topic   string
	Key     string // 分区键, 评审事件使用 from 地址
	Type    string // 事件类型, 见 internal/event
	Payload []byte // JSON
}

// Producer publishes review events.
type Producer interface {
	// Publish 发送消息. key 决定 Kafka 分区, 同一地址的事件保持有序
	Publish(ctx context.Context, topic, key, eventType string, payload []byte) error
	Close() error
}

// Consumer follows a topic until ctx is done.
type Consumer interface {
	// Subscribe 阻塞读取, handler 返回 error 时消息不会被确认
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error
	Close() error
}
