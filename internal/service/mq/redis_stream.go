package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/pkg/logger"
)

// RedisProducer writes events to a Redis Stream.
type RedisProducer struct {
	client *redis.Client
	maxLen int64
}

// NewRedisProducer 创建 Redis 生产者, maxLen > 0 时近似裁剪 stream 长度
func NewRedisProducer(client *redis.Client, maxLen int64) *RedisProducer {
	return &RedisProducer{client: client, maxLen: maxLen}
}

func (p *RedisProducer) Publish(ctx context.Context, topic, key, eventType string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"key":     key,
			"type":    eventType,
			"payload": payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd error: %w", err)
	}
	return nil
}

// Close is a no-op; the client is shared and closed by its owner.
func (p *RedisProducer) Close() error {
	return nil
}

// RedisConsumer reads a stream through a consumer group.
type RedisConsumer struct {
	client *redis.Client
	group  string
	name   string
	log    *zap.Logger
}

func NewRedisConsumer(client *redis.Client, group, name string) *RedisConsumer {
	return &RedisConsumer{
		client: client,
		group:  group,
		name:   name,
		log:    logger.Named("mq.redis"),
	}
}

func (c *RedisConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	// XGROUP CREATE <stream> <group> $ MKSTREAM
	err := c.client.XGroupCreateMkStream(ctx, topic, c.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	c.log.Info("subscribed", zap.String("topic", topic), zap.String("group", c.group))

	for {
		if ctx.Err() != nil {
			return nil
		}
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{topic, ">"},
			Count:    10,
			Block:    2 * time.Second,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue // 超时无消息
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("read stream failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, x := range stream.Messages {
				payload, ok := x.Values["payload"].(string)
				if !ok {
					c.log.Warn("message without payload", zap.String("id", x.ID))
					c.ack(ctx, topic, x.ID)
					continue
				}
				key, _ := x.Values["key"].(string)
				typ, _ := x.Values["type"].(string)

				msg := &Message{ID: x.ID, Topic: topic, Key: key, Type: typ, Payload: []byte(payload)}
				if err := handler(msg); err != nil {
					c.log.Warn("handle message failed", zap.String("id", x.ID), zap.Error(err))
					continue
				}
				c.ack(ctx, topic, x.ID)
			}
		}
	}
}

func (c *RedisConsumer) ack(ctx context.Context, topic, id string) {
	c.client.XAck(ctx, topic, c.group, id)
}

func (c *RedisConsumer) Close() error {
	return nil
}
