// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sender

import (
	"context"
	"fmt"
	"time"

	"github.com/zjpjohn/reactor-kafka/internal/scheduler"
	"github.com/zjpjohn/reactor-kafka/kafka"
)

// Sender is the entry point for producing records. A single Sender
// owns one underlying producer, constructed lazily on the first send,
// and shared by every SendPipeline built from it.
type Sender[T any] struct {
	producer *producerHandle
	sched    scheduler.Scheduler
	metrics  *metricsRecorder

	defaultMaxInflight int
	defaultDelayError  bool
}

// Option configures a Sender[T] at construction time.
type Option[T any] func(*Sender[T])

// WithScheduler overrides the response scheduler used to publish
// Results. Pass scheduler.Immediate to run response callbacks inline
// on the producer's delivery-report goroutine.
func WithScheduler[T any](s scheduler.Scheduler) Option[T] {
	return func(snd *Sender[T]) {
		snd.sched = s
	}
}

// WithMaxInflight overrides the default bound on outstanding sends
// per SendPipeline.
func WithMaxInflight[T any](n int) Option[T] {
	return func(snd *Sender[T]) {
		snd.defaultMaxInflight = n
	}
}

// WithDelayError makes every SendPipeline built from this Sender wait
// for all in-flight sends to complete before surfacing a failure,
// rather than failing fast on the first error.
func WithDelayError[T any](delay bool) Option[T] {
	return func(snd *Sender[T]) {
		snd.defaultDelayError = delay
	}
}

// New constructs a Sender. The underlying producer is not created
// until the first record is sent (or PartitionsFor is called);
// building a Sender that is never used never opens a connection.
//
// The default response scheduler is a Pooled scheduler of size 1, so
// downstream code observing Results never runs on the producer's own
// delivery-report goroutines. Pass WithScheduler to change this.
func New[T any](cfg Config, opts ...Option[T]) *Sender[T] {
	s := &Sender[T]{
		producer:           newProducerHandle(cfg),
		sched:              scheduler.NewPooled(1),
		defaultMaxInflight: 256,
	}
	if metrics, err := newMetricsRecorder(); err == nil {
		s.metrics = metrics
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pipeline starts a new SendPipeline using the Sender's configured
// scheduler, max-inflight bound, and delay-error setting.
func (s *Sender[T]) Pipeline() *SendPipeline[T] {
	return newSendPipeline[T](s.producer, s.sched, s.metrics, s.defaultMaxInflight, s.defaultDelayError, false)
}

// Send sends a single record and returns its Result once the broker
// has acknowledged (or rejected) it. It is a convenience wrapper
// around Pipeline for the common one-shot case.
func (s *Sender[T]) Send(ctx context.Context, msg Message, correlator T) Result[T] {
	p := s.Pipeline()
	p.Send(ctx, msg, correlator)
	p.Complete()
	select {
	case r := <-p.Results():
		return r
	case <-ctx.Done():
		return Result[T]{Correlator: correlator, Err: ctx.Err()}
	}
}

// Item pairs a Message with the correlator that should accompany its
// Result.
type Item[T any] struct {
	Message    Message
	Correlator T
}

// SendAll sends every (Message, correlator) pair in items and blocks
// until all have been acknowledged, returning the Results in
// delivery order (not necessarily submission order). Without
// WithDelayError, once a failed send has been recorded the pipeline
// stops accepting records and the remaining items are not sent.
func (s *Sender[T]) SendAll(ctx context.Context, items []Item[T]) []Result[T] {
	p := s.Pipeline()
	for _, it := range items {
		if !p.Send(ctx, it.Message, it.Correlator) {
			break
		}
	}
	p.Complete()

	results := make([]Result[T], 0, len(items))
	for r := range p.Results() {
		results = append(results, r)
	}
	return results
}

// PartitionsFor returns the partitions backing topic, as reported by
// the broker's metadata. It forces construction of the underlying
// producer if one does not already exist.
func (s *Sender[T]) PartitionsFor(ctx context.Context, topic string) ([]kafka.PartitionInfo, error) {
	producer, err := s.producer.get()
	if err != nil {
		return nil, err
	}

	timeoutMs := 10000
	if dl, ok := ctx.Deadline(); ok {
		if ms := int(time.Until(dl).Milliseconds()); ms > 0 {
			timeoutMs = ms
		}
	}

	md, err := producer.GetMetadata(&topic, false, timeoutMs)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to fetch metadata for %s: %w", topic, err)
	}

	t, ok := md.Topics[topic]
	if !ok {
		return nil, fmt.Errorf("kafka: topic %s not found in metadata", topic)
	}

	out := make([]kafka.PartitionInfo, 0, len(t.Partitions))
	for _, p := range t.Partitions {
		out = append(out, kafka.PartitionInfo{
			Topic:     topic,
			Partition: p.ID,
			Leader:    p.Leader,
		})
	}
	return out, nil
}

// Scheduler returns the response scheduler this Sender publishes
// Results on.
func (s *Sender[T]) Scheduler() scheduler.Scheduler {
	return s.sched
}

// Close flushes and releases the underlying producer, per Config's
// CloseTimeout. It is safe to call more than once.
func (s *Sender[T]) Close() error {
	if pooled, ok := s.sched.(*scheduler.Pooled); ok {
		defer pooled.Close()
	}
	return s.producer.close()
}
