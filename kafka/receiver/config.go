// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/zjpjohn/reactor-kafka/internal/scheduler"
	"github.com/zjpjohn/reactor-kafka/kafka"
)

// AckMode selects how a MessageStream's terminal builder method
// reconciles processing with offset commits. See AutoAck, AtmostOnce,
// ManualAck, and ManualCommit on Builder.
type AckMode int

const (
	// AutoAckMode commits offsets automatically on a timer/size batch,
	// independent of whether the application has finished handling the
	// record yet.
	AutoAckMode AckMode = iota
	// AtmostOnceMode commits the offset before the record is handed to
	// the application, so a crash mid-processing never redelivers it.
	AtmostOnceMode
	// ManualAckMode hands the application an OffsetHandle and commits
	// once Acknowledge is called on it, batched the same way AutoAck is.
	ManualAckMode
	// ManualCommitMode hands the application an OffsetHandle and commits
	// only when the application calls Commit explicitly; no implicit
	// batching or timer-driven commit ever happens.
	ManualCommitMode
)

// Subscription selects which topics/partitions a Receiver consumes.
// Exactly one of Topics, Pattern, or Partitions should be set.
type Subscription struct {
	// Topics subscribes to a fixed topic list via group-coordinated
	// assignment.
	Topics []string
	// Pattern subscribes to every topic whose name matches a regular
	// expression, also via group-coordinated assignment. Must be
	// prefixed with "^" per confluent-kafka-go/librdkafka convention.
	Pattern string
	// Partitions assigns specific partitions directly, bypassing group
	// coordination entirely (no rebalance callbacks fire).
	Partitions []kafka.TopicPartition
}

// Config holds the parameters used to construct a Receiver's
// underlying consumer and event loop.
type Config struct {
	properties map[string]any

	pollTimeout           time.Duration
	commitBatchSize       int
	commitInterval        time.Duration
	closeTimeout          time.Duration
	maxAutoCommitAttempts int
	partitionBuffer       int

	sched scheduler.Scheduler
}

// Option configures a Config.
type Option func(*Config)

// NewConfig builds a Config for the given consumer group and bootstrap
// servers, applying reactor-kafka's defaults (100ms poll timeout, a
// 100-message/1s commit batch, 30s close timeout, 3 commit attempts,
// 64-message per-partition buffer, a size-1 Pooled scheduler) before
// opts run.
func NewConfig(groupID, bootstrapServers string, opts ...Option) Config {
	cfg := Config{
		properties: map[string]any{
			"bootstrap.servers": bootstrapServers,
			"group.id":          groupID,
			"enable.auto.commit": false,
		},
		pollTimeout:           100 * time.Millisecond,
		commitBatchSize:       100,
		commitInterval:        time.Second,
		closeTimeout:          30 * time.Second,
		maxAutoCommitAttempts: 3,
		partitionBuffer:       64,
		sched:                 scheduler.NewPooled(1),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithScheduler overrides the scheduler a Receiver delivers its
// ConsumerMessage values through. Pass scheduler.Immediate to deliver
// synchronously on the per-partition worker goroutine that produced
// the message; the default, a Pooled scheduler of size 1, runs the
// MessageStream send on its own goroutine. Either way the partition
// worker waits for the send to complete, so a slow reader of the
// stream still holds back the partition it is reading from.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(c *Config) { c.sched = s }
}

// Property sets a single librdkafka consumer property.
func Property(key string, value any) Option {
	return func(c *Config) {
		c.properties[key] = value
	}
}

// PollTimeout bounds each call the event loop makes to Consumer.Poll.
// Shorter values make the loop more responsive to seek/commit/close
// requests at the cost of busier polling.
func PollTimeout(d time.Duration) Option {
	return func(c *Config) { c.pollTimeout = d }
}

// CommitBatchSize sets how many acknowledged-but-uncommitted records
// accumulate (per AutoAckMode/ManualAckMode) before OffsetManager
// commits, whichever of size or CommitInterval is reached first.
func CommitBatchSize(n int) Option {
	return func(c *Config) { c.commitBatchSize = n }
}

// CommitInterval sets how long AutoAckMode/ManualAckMode wait before
// committing a partial batch.
func CommitInterval(d time.Duration) Option {
	return func(c *Config) { c.commitInterval = d }
}

// CloseTimeout bounds how long Receiver.Close waits for the event loop
// to shut down (partition workers finishing, the final commit, closing
// the consumer), and bounds each best-effort commit made when
// partitions are revoked or the loop shuts down.
func CloseTimeout(d time.Duration) Option {
	return func(c *Config) { c.closeTimeout = d }
}

// MaxAutoCommitAttempts bounds how many times a commit is attempted: a
// retriable failure is retried (with exponential backoff) until that
// many attempts have failed, and is then surfaced as a terminal
// CommitError.
func MaxAutoCommitAttempts(n int) Option {
	return func(c *Config) { c.maxAutoCommitAttempts = n }
}

// PartitionBufferSize sets the capacity of the per-partition channel
// the event loop delivers records into. Once full, the loop pauses
// fetching from that partition (via Consumer.Pause) rather than
// blocking Poll.
func PartitionBufferSize(n int) Option {
	return func(c *Config) { c.partitionBuffer = n }
}

func (c Config) toConfigMap() *ckafka.ConfigMap {
	cm := ckafka.ConfigMap{}
	for k, v := range c.properties {
		_ = cm.SetKey(k, v)
	}
	return &cm
}
