// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sender

import (
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Config holds the parameters used to construct a [Sender]'s underlying
// producer.
//
// Properties are forwarded opaquely to confluent-kafka-go: bootstrap
// servers, serializers, acks, max.block.ms, linger.ms, compression,
// batch.size, max.in.flight.requests.per.connection, and anything else
// librdkafka understands. This package never inspects or validates
// them.
type Config struct {
	properties   map[string]any
	closeTimeout time.Duration
}

// Option configures a Config.
type Option func(*Config)

// NewConfig builds a Config from the given bootstrap servers and
// options, defaulting CloseTimeout to 30s.
func NewConfig(bootstrapServers string, opts ...Option) Config {
	cfg := Config{
		properties:   map[string]any{"bootstrap.servers": bootstrapServers},
		closeTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Property sets a single librdkafka producer property, e.g.
// Property("acks", "all") or Property("linger.ms", 5).
func Property(key string, value any) Option {
	return func(c *Config) {
		c.properties[key] = value
	}
}

// CloseTimeout bounds how long [Sender.Close] waits for in-flight sends
// to drain before force-closing the producer.
func CloseTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.closeTimeout = d
	}
}

func (c Config) toConfigMap() *kafka.ConfigMap {
	cm := kafka.ConfigMap{}
	for k, v := range c.properties {
		_ = cm.SetKey(k, v)
	}
	return &cm
}
