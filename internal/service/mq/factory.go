package mq

import (
	"github.com/redis/go-redis/v9"

	"github.com/web3nomad/Rabby/pkg/config"
)

const streamMaxLen = 100000

// NewProducer picks the backend by redis.mq_type.
func NewProducer(cfg config.Config, rdb *redis.Client) Producer {
	if cfg.Redis.MQType == "kafka" {
		return NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	return NewRedisProducer(rdb, streamMaxLen)
}

func NewConsumer(cfg config.Config, rdb *redis.Client, group, name string) Consumer {
	if cfg.Redis.MQType == "kafka" {
		return NewKafkaConsumer(cfg.Kafka.Brokers, group)
	}
	return NewRedisConsumer(rdb, group, name)
}
