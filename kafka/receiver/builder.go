// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"context"

	"github.com/zjpjohn/reactor-kafka/internal/scheduler"
	"github.com/zjpjohn/reactor-kafka/kafka"
)

// Builder accumulates the assignment-time callbacks for a subscription
// before one of its terminal methods (AutoAck, AtmostOnce, ManualAck,
// ManualCommit) picks the ack mode and starts the underlying
// ConsumerEventLoop. A Builder is single-use: each terminal method
// constructs its own consumer and event loop.
type Builder struct {
	cfg        Config
	sub        Subscription
	onAssigned AssignedCallback
	onRevoked  RevokedCallback
}

// ListenOn builds a Builder subscribed to the given topic list via
// normal consumer-group rebalancing.
func ListenOn(cfg Config, topics ...string) *Builder {
	return &Builder{cfg: cfg, sub: Subscription{Topics: topics}}
}

// ListenOnPattern builds a Builder subscribed to every topic matching
// pattern (a regular expression, per librdkafka's "^" prefix
// convention), also via consumer-group rebalancing.
func ListenOnPattern(cfg Config, pattern string) *Builder {
	return &Builder{cfg: cfg, sub: Subscription{Pattern: pattern}}
}

// Assign builds a Builder bound to an explicit set of partitions,
// bypassing group coordination entirely: no rebalance callbacks ever
// fire, and DoOnPartitionsAssigned runs exactly once, synchronously,
// during the terminal method call.
func Assign(cfg Config, partitions ...kafka.TopicPartition) *Builder {
	return &Builder{cfg: cfg, sub: Subscription{Partitions: partitions}}
}

// DoOnPartitionsAssigned registers fn to run, synchronously on the
// event-loop goroutine, once per rebalance (or once, for an explicit
// Assign) before fetching resumes for the newly assigned partitions.
func (b *Builder) DoOnPartitionsAssigned(fn AssignedCallback) *Builder {
	b.onAssigned = fn
	return b
}

// DoOnPartitionsRevoked registers fn to run, synchronously on the
// event-loop goroutine, once per rebalance after acknowledged offsets
// for the revoked partitions have been committed best-effort.
func (b *Builder) DoOnPartitionsRevoked(fn RevokedCallback) *Builder {
	b.onRevoked = fn
	return b
}

// AutoAck starts the subscription in AutoAckMode: every record is
// acknowledged on delivery and committed on the Config's batch/interval
// schedule.
func (b *Builder) AutoAck(ctx context.Context) (*Receiver, error) {
	return b.start(ctx, AutoAckMode)
}

// AtmostOnce starts the subscription in AtmostOnceMode: each offset is
// committed before its record is handed to the application.
func (b *Builder) AtmostOnce(ctx context.Context) (*Receiver, error) {
	return b.start(ctx, AtmostOnceMode)
}

// ManualAck starts the subscription in ManualAckMode: every
// ConsumerMessage carries an OffsetHandle the application must call
// Acknowledge on; acknowledged offsets are still committed on the
// Config's batch/interval schedule.
func (b *Builder) ManualAck(ctx context.Context) (*Receiver, error) {
	return b.start(ctx, ManualAckMode)
}

// ManualCommit starts the subscription in ManualCommitMode: every
// ConsumerMessage carries an OffsetHandle the application must call
// Commit on explicitly. No automatic commit ever happens, including on
// Close.
func (b *Builder) ManualCommit(ctx context.Context) (*Receiver, error) {
	return b.start(ctx, ManualCommitMode)
}

func (b *Builder) start(ctx context.Context, mode AckMode) (*Receiver, error) {
	loop, err := newConsumerEventLoop(ctx, b.cfg, b.sub, mode, b.onAssigned, b.onRevoked)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = loop.Run()
	}()

	return &Receiver{loop: loop}, nil
}

// Receiver is a running subscription: its MessageStream delivers
// ConsumerMessage values until Close is called or the event loop
// terminates with a fatal poll error.
type Receiver struct {
	loop *ConsumerEventLoop
}

// Stream returns the MessageStream this Receiver delivers on.
func (r *Receiver) Stream() *MessageStream {
	return r.loop.Stream()
}

// Scheduler returns the scheduler this Receiver delivers its
// MessageStream records through.
func (r *Receiver) Scheduler() scheduler.Scheduler {
	return r.loop.cfg.sched
}

// Close commits acknowledged offsets per the subscription's ack mode
// (a no-op in ManualCommitMode) and closes the underlying consumer,
// bounded by ctx's deadline and the Config's CloseTimeout, whichever
// is shorter. It is safe to call more than once.
func (r *Receiver) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.loop.cfg.closeTimeout)
	defer cancel()
	err := r.loop.Close(ctx, r.loop.runCancel)
	if pooled, ok := r.loop.cfg.sched.(*scheduler.Pooled); ok {
		pooled.Close()
	}
	return err
}
