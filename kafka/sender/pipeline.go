// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sender

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjpjohn/reactor-kafka/internal/scheduler"
	"github.com/zjpjohn/reactor-kafka/kafka"
)

// pipelineState is the lifecycle of a SendPipeline.
type pipelineState int32

const (
	pipelineInit pipelineState = iota
	pipelineActive
	pipelineOutboundDone
	pipelineComplete
	pipelineFailed
)

// Message is a single record to be sent: topic, key, value, and any
// headers. Partition and timestamp are left to the broker unless a
// caller constructs its own *ckafka.Message via the explicit send form
// (not currently exposed; partition-pinned sends are a non-goal).
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers []kafka.Header
}

// Result is delivered once per Send call, in delivery-report order
// (which is not necessarily submission order across partitions, but
// is per-partition FIFO, matching librdkafka's own guarantee).
type Result[T any] struct {
	Correlator T
	Metadata   kafka.Metadata
	Err        error
}

// ErrPipelineDone is recorded as a strict-mode SendPipeline's error
// (see Err), unless an earlier error was already recorded, when a
// record is submitted after the pipeline has moved past ACTIVE. Send
// itself reports the drop by returning false.
var ErrPipelineDone = errors.New("kafka: send pipeline is no longer accepting records")

// SendPipeline drives one bounded, ordered-result stream of record
// sends against a shared producer. It implements the state machine
// INIT -> ACTIVE -> OUTBOUND_DONE -> {COMPLETE|FAILED}: INIT until the
// first Send, ACTIVE while accepting records, OUTBOUND_DONE once the
// caller signals no more records are coming (Complete), and a terminal
// state once every in-flight delivery report has been observed.
//
// SendPipeline's state is the one place in this module genuinely
// touched from two physical threads — the caller's goroutine and the
// producer's internal delivery-report goroutine — so state transitions
// are driven by atomic.Int32 compare-and-swap rather than confined to
// a single owning goroutine.
type SendPipeline[T any] struct {
	producer   *producerHandle
	sched      scheduler.Scheduler
	metrics    *metricsRecorder
	delayError bool
	strict     bool

	state    atomic.Int32
	inflight atomic.Int32

	slots chan struct{}

	out       chan Result[T]
	closeOnce sync.Once

	mu       sync.Mutex
	firstErr error
}

// newSendPipeline constructs a SendPipeline bound to producer, with
// results scheduled via sched and at most maxInflight records
// outstanding at once.
func newSendPipeline[T any](producer *producerHandle, sched scheduler.Scheduler, metrics *metricsRecorder, maxInflight int, delayError, strict bool) *SendPipeline[T] {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	return &SendPipeline[T]{
		producer:   producer,
		sched:      sched,
		metrics:    metrics,
		delayError: delayError,
		strict:     strict,
		slots:      make(chan struct{}, maxInflight),
		out:        make(chan Result[T], maxInflight),
	}
}

// Results returns the channel Send results are published on. It is
// closed once the pipeline reaches COMPLETE or FAILED.
func (p *SendPipeline[T]) Results() <-chan Result[T] {
	return p.out
}

// Send enqueues one record for production, associating correlator
// with whatever Result eventually comes back for it. It blocks only
// long enough to acquire an in-flight slot (bounded by maxInflight) or
// for ctx to be done.
//
// Send returns false, without enqueueing anything, once the pipeline
// has moved past ACTIVE. The dropped record is logged at warn level
// and, when strict mode is enabled, ErrPipelineDone becomes the
// pipeline's error (reported by Err) if no earlier error was recorded.
func (p *SendPipeline[T]) Send(ctx context.Context, msg Message, correlator T) bool {
	if !p.transitionToActive() {
		p.dropNext(msg, correlator)
		return false
	}

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	p.inflight.Add(1)

	_, span := tracer().Start(ctx, "send "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(msg.Topic),
		),
	)

	record := &ckafka.Message{
		TopicPartition: ckafka.TopicPartition{Topic: &msg.Topic, Partition: ckafka.PartitionAny},
		Key:            msg.Key,
		Value:          msg.Value,
		Headers:        toHeaders(msg.Headers),
	}

	producer, err := p.producer.get()
	if err != nil {
		p.deliver(span, msg.Topic, Result[T]{Correlator: correlator, Err: err})
		return true
	}

	deliveryCh := make(chan ckafka.Event, 1)
	if err := producer.Produce(record, deliveryCh); err != nil {
		p.deliver(span, msg.Topic, Result[T]{Correlator: correlator, Err: &kafka.SendError{Topic: msg.Topic, Err: err}})
		return true
	}

	go p.awaitDelivery(ctx, span, deliveryCh, correlator, msg.Topic)
	return true
}

func (p *SendPipeline[T]) awaitDelivery(ctx context.Context, span trace.Span, ch chan ckafka.Event, correlator T, topic string) {
	var ev ckafka.Event
	select {
	case ev = <-ch:
	case <-ctx.Done():
		p.deliver(span, topic, Result[T]{Correlator: correlator, Err: ctx.Err()})
		return
	}

	m, ok := ev.(*ckafka.Message)
	if !ok {
		p.deliver(span, topic, Result[T]{Correlator: correlator, Err: &kafka.SendError{Topic: topic, Err: errors.New("unexpected delivery event")}})
		return
	}
	if m.TopicPartition.Error != nil {
		p.deliver(span, topic, Result[T]{Correlator: correlator, Err: &kafka.SendError{
			Topic:     topic,
			Partition: m.TopicPartition.Partition,
			Err:       m.TopicPartition.Error,
		}})
		return
	}

	span.SetAttributes(semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(m.TopicPartition.Partition), 10)))
	p.deliver(span, topic, Result[T]{
		Correlator: correlator,
		Metadata: kafka.Metadata{
			Topic:     topic,
			Partition: m.TopicPartition.Partition,
			Offset:    int64(m.TopicPartition.Offset),
			Timestamp: m.Timestamp,
		},
	})
}

func (p *SendPipeline[T]) deliver(span trace.Span, topic string, r Result[T]) {
	<-p.slots
	if r.Err != nil {
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, r.Err.Error())
		p.recordError(r.Err)
		if p.metrics != nil {
			p.metrics.recordFailure(context.Background(), topic, r.Err)
		}
	} else if p.metrics != nil {
		p.metrics.recordSent(context.Background(), r.Metadata.Topic, r.Metadata.Partition)
	}
	span.End()

	// The in-flight count drops only after the Result has been handed
	// to out, so maybeFinalize can never close out ahead of a Result
	// still waiting on an asynchronous scheduler.
	p.sched.Schedule(func() {
		p.out <- r
		if p.inflight.Add(-1) == 0 {
			p.maybeFinalize()
		}
	})
}

func (p *SendPipeline[T]) recordError(err error) {
	p.mu.Lock()
	if p.firstErr == nil {
		p.firstErr = err
	}
	p.mu.Unlock()

	if !p.delayError {
		p.state.CompareAndSwap(int32(pipelineActive), int32(pipelineOutboundDone))
	}
}

func (p *SendPipeline[T]) transitionToActive() bool {
	switch pipelineState(p.state.Load()) {
	case pipelineInit:
		return p.state.CompareAndSwap(int32(pipelineInit), int32(pipelineActive))
	case pipelineActive:
		return true
	default:
		return false
	}
}

// dropNext is the onNextDropped hook for records submitted after the
// pipeline has left ACTIVE. It always logs; in strict mode it also
// records the drop as the pipeline's terminal error.
func (p *SendPipeline[T]) dropNext(msg Message, correlator T) {
	logger().Warn("dropping record submitted to a completed send pipeline",
		kafka.TopicAttr(msg.Topic), kafka.CorrelationAttr(correlator))
	if p.strict {
		p.recordError(ErrPipelineDone)
	}
}

// Complete signals that no further Send calls will be made. Once
// every in-flight delivery report has been observed the pipeline
// transitions to COMPLETE (or FAILED, if any error was recorded) and
// closes the Results channel.
func (p *SendPipeline[T]) Complete() {
	p.state.CompareAndSwap(int32(pipelineInit), int32(pipelineOutboundDone))
	p.state.CompareAndSwap(int32(pipelineActive), int32(pipelineOutboundDone))
	if p.inflight.Load() == 0 {
		p.maybeFinalize()
	}
}

func (p *SendPipeline[T]) maybeFinalize() {
	if pipelineState(p.state.Load()) != pipelineOutboundDone {
		return
	}

	p.mu.Lock()
	failed := p.firstErr != nil
	p.mu.Unlock()

	final := pipelineComplete
	if failed {
		final = pipelineFailed
	}
	if !p.state.CompareAndSwap(int32(pipelineOutboundDone), int32(final)) {
		return
	}

	p.closeOnce.Do(func() {
		close(p.out)
	})
}

// Err returns the first error recorded by the pipeline, or nil if
// none has occurred (yet, if the pipeline is still ACTIVE).
func (p *SendPipeline[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

func toHeaders(hdrs []kafka.Header) []ckafka.Header {
	if len(hdrs) == 0 {
		return nil
	}
	out := make([]ckafka.Header, len(hdrs))
	for i, h := range hdrs {
		out[i] = ckafka.Header{Key: h.Key, Value: h.Value}
	}
	return out
}
