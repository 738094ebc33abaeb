// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/zjpjohn/reactor-kafka/internal/ptr"
	"github.com/zjpjohn/reactor-kafka/internal/try"
	"github.com/zjpjohn/reactor-kafka/kafka"
)

// AssignedCallback is invoked synchronously, once per rebalance, with
// one SeekablePartition per newly assigned partition. Fetches for
// these partitions do not resume until the callback returns.
type AssignedCallback func([]*SeekablePartition) error

// RevokedCallback is invoked synchronously with the coordinates of
// every partition the consumer is about to give up. Acknowledged
// offsets for these partitions are committed, best-effort, before
// this callback runs.
type RevokedCallback func([]kafka.TopicPartition) error

// ConsumerEventLoop owns the single underlying *kafka.Consumer: every
// call into it — Poll, Pause, Resume, Seek, Assign, Commit, Close —
// happens on this loop's own goroutine (Run), apart from the explicit
// partition assignment newConsumerEventLoop performs before Run starts.
// OffsetHandle crosses from caller goroutines into the loop through
// request channels; SeekablePartition only records seeks during the
// assignment callback, which runs synchronously before fetching starts.
//
// Grounded on the teacher's channel-driven eventLoop (event_loop.go):
// the same tick-until-shutdown shape, generalized from franz-go's
// separate fetch/assigned/lost/revoked channels to confluent-kafka-go's
// single Poll() event union, and from per-partition
// queue.Runtime.ProcessQueue orchestrators to per-partition ack-mode
// delivery workers.
type ConsumerEventLoop struct {
	consumer *ckafka.Consumer
	cfg      Config
	mode     AckMode
	offsets  *OffsetManager
	deliver  deliveryFunc

	stream *MessageStream

	partitionChannels map[kafka.TopicPartition]chan kafka.Record
	pending           map[kafka.TopicPartition][]kafka.Record
	paused            map[kafka.TopicPartition]bool

	pendingSeeks []seekRequest

	pool *pool.ContextPool

	onAssigned AssignedCallback
	onRevoked  RevokedCallback

	runCtx    context.Context
	runCancel context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	runErr    error
}

func newConsumerEventLoop(ctx context.Context, cfg Config, sub Subscription, mode AckMode, onAssigned AssignedCallback, onRevoked RevokedCallback) (*ConsumerEventLoop, error) {
	consumer, err := ckafka.NewConsumer(cfg.toConfigMap())
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create consumer: %w", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	loop := &ConsumerEventLoop{
		consumer:          consumer,
		cfg:               cfg,
		mode:              mode,
		partitionChannels: make(map[kafka.TopicPartition]chan kafka.Record),
		pending:           make(map[kafka.TopicPartition][]kafka.Record),
		paused:            make(map[kafka.TopicPartition]bool),
		pool:              pool.New().WithContext(runCtx).WithCancelOnError(),
		onAssigned:        onAssigned,
		onRevoked:         onRevoked,
		runCtx:            runCtx,
		runCancel:         runCancel,
		done:              make(chan struct{}),
	}
	loop.offsets = newOffsetManager(consumer, cfg, nil)
	loop.deliver = deliveryFuncFor(mode, loop.offsets)
	loop.stream = newMessageStream(cfg.partitionBuffer, loop.done)

	switch {
	case len(sub.Partitions) > 0:
		if err := loop.assignExplicit(sub.Partitions); err != nil {
			_ = consumer.Close()
			return nil, err
		}
	case sub.Pattern != "":
		err = consumer.SubscribeTopics([]string{sub.Pattern}, loop.rebalanceCb)
	default:
		err = consumer.SubscribeTopics(sub.Topics, loop.rebalanceCb)
	}
	if err != nil {
		_ = consumer.Close()
		return nil, err
	}

	return loop, nil
}

// assignExplicit handles Subscription.Partitions: there is no
// consumer-group rebalance to hang a callback off of, so the
// assignment (and the application's onAssigned callback) happens once,
// synchronously, at construction time.
func (loop *ConsumerEventLoop) assignExplicit(partitions []kafka.TopicPartition) error {
	handles := make([]*SeekablePartition, 0, len(partitions))
	for _, tp := range partitions {
		loop.offsets.onAssigned(tp)
		loop.partitionChannels[tp] = make(chan kafka.Record, loop.cfg.partitionBuffer)
		handles = append(handles, newSeekablePartition(tp, loop))
	}
	defer func() {
		for _, h := range handles {
			h.invalidate()
		}
	}()

	if loop.onAssigned != nil {
		if err := loop.onAssigned(handles); err != nil {
			return &kafka.AssignmentCallbackError{Err: err}
		}
	}

	assignment := make([]ckafka.TopicPartition, len(partitions))
	for i, tp := range partitions {
		assignment[i] = ckafka.TopicPartition{Topic: &partitions[i].Topic, Partition: tp.Partition}
	}
	if err := loop.consumer.Assign(assignment); err != nil {
		return err
	}

	for _, req := range loop.pendingSeeks {
		if err := applySeek(loop.consumer, req); err != nil {
			logger().Warn("seek failed", kafka.TopicAttr(req.tp.Topic), kafka.PartitionAttr(req.tp.Partition), slog.Any("error", err))
		}
	}
	loop.pendingSeeks = loop.pendingSeeks[:0]

	for _, tp := range partitions {
		tp := tp
		loop.pool.Go(func(ctx context.Context) error {
			return loop.runPartitionWorker(ctx, tp)
		})
	}
	return nil
}

// rebalanceCb is registered with Consumer.SubscribeTopics and invoked
// synchronously, on this loop's own goroutine, from inside Poll.
func (loop *ConsumerEventLoop) rebalanceCb(c *ckafka.Consumer, event ckafka.Event) error {
	switch ev := event.(type) {
	case ckafka.AssignedPartitions:
		return loop.handleAssigned(c, ev.Partitions)
	case ckafka.RevokedPartitions:
		return loop.handleRevoked(c, ev.Partitions)
	}
	return nil
}

func (loop *ConsumerEventLoop) handleAssigned(c *ckafka.Consumer, assigned []ckafka.TopicPartition) error {
	handles := make([]*SeekablePartition, 0, len(assigned))
	tps := make([]kafka.TopicPartition, 0, len(assigned))
	for _, p := range assigned {
		tp := kafka.TopicPartition{Topic: *p.Topic, Partition: p.Partition}
		tps = append(tps, tp)
		loop.offsets.onAssigned(tp)
		loop.partitionChannels[tp] = make(chan kafka.Record, loop.cfg.partitionBuffer)
		handles = append(handles, newSeekablePartition(tp, loop))
	}

	var cbErr error
	if loop.onAssigned != nil {
		cbErr = loop.onAssigned(handles)
	}
	for _, h := range handles {
		h.invalidate()
	}
	if cbErr != nil {
		return &kafka.AssignmentCallbackError{Err: cbErr}
	}

	if err := c.Assign(assigned); err != nil {
		return err
	}

	for _, req := range loop.pendingSeeks {
		if err := applySeek(c, req); err != nil {
			logger().Warn("seek failed", kafka.TopicAttr(req.tp.Topic), kafka.PartitionAttr(req.tp.Partition), slog.Any("error", err))
		}
	}
	loop.pendingSeeks = loop.pendingSeeks[:0]

	for _, tp := range tps {
		tp := tp
		loop.pool.Go(func(ctx context.Context) error {
			return loop.runPartitionWorker(ctx, tp)
		})
	}
	return nil
}

func (loop *ConsumerEventLoop) handleRevoked(c *ckafka.Consumer, revoked []ckafka.TopicPartition) error {
	tps := make([]kafka.TopicPartition, 0, len(revoked))
	for _, p := range revoked {
		tps = append(tps, kafka.TopicPartition{Topic: *p.Topic, Partition: p.Partition})
	}

	ctx, cancel := context.WithTimeout(context.Background(), loop.cfg.closeTimeout)
	defer cancel()
	for _, tp := range tps {
		if st, ok := loop.offsets.partitions[tp]; ok && st.pending > 0 {
			if err := loop.offsets.commitOffset(ctx, tp, st.highestAcknowledged); err != nil {
				logger().Warn("best-effort commit on revoke failed",
					kafka.TopicAttr(tp.Topic), kafka.PartitionAttr(tp.Partition), slog.Any("error", err))
			}
		}
	}

	var cbErr error
	if loop.onRevoked != nil {
		cbErr = loop.onRevoked(tps)
	}

	for _, tp := range tps {
		if ch, ok := loop.partitionChannels[tp]; ok {
			close(ch)
			delete(loop.partitionChannels, tp)
		}
		loop.offsets.onRevoked(tp)
		delete(loop.pending, tp)
		delete(loop.paused, tp)
	}

	if cbErr != nil {
		return &kafka.AssignmentCallbackError{Err: cbErr}
	}
	return c.Unassign()
}

// Run drives the poll loop until Close is called or a fatal consumer
// error occurs. It returns once every partition worker has drained
// and the consumer has been closed.
func (loop *ConsumerEventLoop) Run() error {
	defer close(loop.done)
	loop.runErr = loop.run(loop.runCtx)
	return loop.runErr
}

func (loop *ConsumerEventLoop) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return loop.shutdown()
		default:
		}

		loop.flushPending()
		loop.drainRequests(ctx)
		if err := loop.offsets.commitBatchIfDue(ctx); err != nil {
			shutdownErr := loop.shutdown()
			return errors.Join(err, shutdownErr)
		}

		ev := loop.consumer.Poll(int(loop.cfg.pollTimeout.Milliseconds()))
		switch e := ev.(type) {
		case *ckafka.Message:
			loop.handleMessage(e)
		case ckafka.Error:
			if e.IsFatal() {
				shutdownErr := loop.shutdown()
				return errors.Join(&kafka.PollError{Err: e}, shutdownErr)
			}
			logger().Warn("non-fatal consumer error", slog.Any("error", e))
		}
	}
}

func (loop *ConsumerEventLoop) handleMessage(m *ckafka.Message) {
	tp := kafka.TopicPartition{Topic: *m.TopicPartition.Topic, Partition: m.TopicPartition.Partition}
	ch, ok := loop.partitionChannels[tp]
	if !ok {
		logger().Warn("message delivered for unassigned partition", kafka.TopicAttr(tp.Topic), kafka.PartitionAttr(tp.Partition))
		return
	}

	rec := kafka.Record{
		Topic:     tp.Topic,
		Partition: tp.Partition,
		Offset:    int64(m.TopicPartition.Offset),
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Timestamp,
	}
	if len(m.Headers) > 0 {
		rec.Headers = make([]kafka.Header, len(m.Headers))
		for i, h := range m.Headers {
			rec.Headers[i] = kafka.Header{Key: h.Key, Value: h.Value}
		}
	}

	// A partition already holding a backlog must never race a direct
	// channel send past it: librdkafka's Pause does not retroactively
	// drain messages already prefetched into the client's internal
	// queue, so Poll can keep returning records for a partition this
	// loop believes is paused. Every such record joins the back of the
	// FIFO so flushPending alone decides delivery order.
	if queue, ok := loop.pending[tp]; ok && len(queue) > 0 {
		loop.pending[tp] = append(queue, rec)
		return
	}

	select {
	case ch <- rec:
	default:
		loop.pending[tp] = append(loop.pending[tp], rec)
		if !loop.paused[tp] {
			_ = loop.consumer.Pause([]ckafka.TopicPartition{m.TopicPartition})
			loop.paused[tp] = true
		}
	}
}

// flushPending retries delivering the records held back by
// backpressure, strictly oldest-first per partition, and resumes
// fetching once a partition's backlog has fully drained. Pausing
// partition fetch, rather than blocking Poll, keeps the consumer group
// heartbeat (carried by Poll itself) alive while a slow downstream
// catches up.
func (loop *ConsumerEventLoop) flushPending() {
	for tp, queue := range loop.pending {
		ch, ok := loop.partitionChannels[tp]
		if !ok {
			delete(loop.pending, tp)
			continue
		}

		n := 0
	drain:
		for n < len(queue) {
			select {
			case ch <- queue[n]:
				n++
			default:
				break drain
			}
		}

		switch {
		case n == len(queue):
			delete(loop.pending, tp)
			if loop.paused[tp] {
				_ = loop.consumer.Resume([]ckafka.TopicPartition{{Topic: ptr.Ref(tp.Topic), Partition: tp.Partition}})
				delete(loop.paused, tp)
			}
		case n > 0:
			loop.pending[tp] = queue[n:]
		}
	}
}

func (loop *ConsumerEventLoop) drainRequests(ctx context.Context) {
	for {
		select {
		case req := <-loop.offsets.acknowledgeRequests:
			loop.offsets.handleAcknowledge(req)
		case req := <-loop.offsets.commitRequests:
			loop.offsets.handleCommit(ctx, req)
		default:
			return
		}
	}
}

func (loop *ConsumerEventLoop) runPartitionWorker(ctx context.Context, tp kafka.TopicPartition) error {
	ch := loop.partitionChannels[tp]
	for rec := range ch {
		spanCtx, span := tracer().Start(ctx, "process "+tp.Topic,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				semconv.MessagingSystemKafka,
				semconv.MessagingOperationTypeProcess,
				semconv.MessagingDestinationName(tp.Topic),
				semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(tp.Partition), 10)),
				semconv.MessagingKafkaOffset(int(rec.Offset)),
			),
		)

		msg, err := loop.deliver(spanCtx, loop.offsets, rec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			logger().Error("ack-mode delivery failed",
				kafka.TopicAttr(tp.Topic), kafka.PartitionAttr(tp.Partition), slog.Any("error", err))
			continue
		}
		span.End()
		if loop.offsets.metrics != nil {
			loop.offsets.metrics.recordProcessed(ctx, tp)
		}

		// Routed through the configured scheduler (WithScheduler) so
		// applications can move MessageStream delivery off the
		// partition worker goroutine; the worker still waits for the
		// send to land so a slow consumer backs up this partition's
		// channel, and from there the pause/resume machinery, exactly
		// as it would running inline.
		done := make(chan struct{})
		loop.cfg.sched.Schedule(func() {
			defer close(done)
			select {
			case loop.stream.records <- msg:
			case <-ctx.Done():
			}
		})
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// shutdown drains every partition channel, waits for workers to
// finish, performs a best-effort final commit (skipped entirely in
// ManualCommitMode, which never commits implicitly), and closes the
// underlying consumer.
func (loop *ConsumerEventLoop) shutdown() (err error) {
	for tp, ch := range loop.partitionChannels {
		close(ch)
		delete(loop.partitionChannels, tp)
	}
	if poolErr := loop.pool.Wait(); poolErr != nil {
		err = poolErr
	}
	close(loop.stream.records)

	if loop.mode != ManualCommitMode {
		ctx, cancel := context.WithTimeout(context.Background(), loop.cfg.closeTimeout)
		defer cancel()
		for tp, st := range loop.offsets.partitions {
			if st.pending == 0 {
				continue
			}
			if cerr := loop.offsets.commitOffset(ctx, tp, st.highestAcknowledged); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
	}

	try.Close(&err, loop.consumer)
	return err
}

// Close requests the loop stop and waits for it to finish, up to
// ctx's deadline. It is safe to call more than once.
func (loop *ConsumerEventLoop) Close(ctx context.Context, cancel context.CancelFunc) error {
	loop.closeOnce.Do(cancel)
	select {
	case <-loop.done:
		return loop.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stream returns the MessageStream records are delivered on.
func (loop *ConsumerEventLoop) Stream() *MessageStream {
	return loop.stream
}
