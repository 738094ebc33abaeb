// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/zjpjohn/reactor-kafka/internal/ptr"
	"github.com/zjpjohn/reactor-kafka/kafka"
)

// RetriablePredicate classifies a commit error as retriable or not.
// The default, used when none is supplied to newOffsetManager,
// defers to confluent-kafka-go's own kafka.Error.IsRetriable.
type RetriablePredicate func(error) bool

func defaultRetriablePredicate(err error) bool {
	var kerr ckafka.Error
	if ok := asKafkaError(err, &kerr); ok {
		return kerr.IsRetriable()
	}
	return false
}

func asKafkaError(err error, target *ckafka.Error) bool {
	kerr, ok := err.(ckafka.Error)
	if !ok {
		return false
	}
	*target = kerr
	return true
}

// partitionState tracks the highest acknowledged offset and the last
// committed offset for one assigned partition. It is owned by the
// event-loop goroutine: every field is read and written only from
// there.
type partitionState struct {
	tp                  kafka.TopicPartition
	highestAcknowledged int64
	lastCommitted       int64
	pending             int
}

// ackRequest funnels an OffsetHandle.Acknowledge call into the event
// loop goroutine, matching the offset manager's "serialized via the
// request queue" requirement for any mutation not already confined to
// that goroutine.
type ackRequest struct {
	tp     kafka.TopicPartition
	offset int64
	done   chan error
}

// commitRequest funnels an explicit ManualCommitMode commit into the
// event loop goroutine.
type commitRequest struct {
	tp     kafka.TopicPartition
	offset int64
	done   chan error
}

// offsetCommitter is the one *ckafka.Consumer method OffsetManager
// needs. Narrowing to an interface keeps the retry/backoff logic in
// commitOffset exercisable in tests against a fake, without standing
// up a real broker connection just to observe retry-exhaustion
// behavior.
type offsetCommitter interface {
	CommitOffsets([]ckafka.TopicPartition) ([]ckafka.TopicPartition, error)
}

// OffsetManager tracks per-partition acknowledgement and commit state
// for one Receiver subscription and drives both batched auto-commit
// (AutoAckMode/ManualAckMode) and explicit commit (ManualCommitMode).
//
// All mutating methods other than Acknowledge/Commit are called only
// from the owning ConsumerEventLoop goroutine.
type OffsetManager struct {
	consumer    offsetCommitter
	retriable   RetriablePredicate
	maxAttempts int
	metrics     *metricsRecorder

	partitions map[kafka.TopicPartition]*partitionState

	acknowledgeRequests chan ackRequest
	commitRequests      chan commitRequest

	lastBatchCommit time.Time
	batchSize       int
	batchInterval   time.Duration
}

func newOffsetManager(consumer offsetCommitter, cfg Config, retriable RetriablePredicate) *OffsetManager {
	if retriable == nil {
		retriable = defaultRetriablePredicate
	}
	metrics, _ := newMetricsRecorder()
	return &OffsetManager{
		consumer:            consumer,
		retriable:           retriable,
		maxAttempts:         cfg.maxAutoCommitAttempts,
		metrics:             metrics,
		partitions:          make(map[kafka.TopicPartition]*partitionState),
		acknowledgeRequests: make(chan ackRequest, cfg.partitionBuffer),
		commitRequests:      make(chan commitRequest, cfg.partitionBuffer),
		batchSize:           cfg.commitBatchSize,
		batchInterval:       cfg.commitInterval,
	}
}

// onAssigned registers fresh state for a newly assigned partition.
func (m *OffsetManager) onAssigned(tp kafka.TopicPartition) {
	m.partitions[tp] = &partitionState{tp: tp, highestAcknowledged: -1, lastCommitted: -1}
}

// onRevoked drops tracked state for a partition the consumer no
// longer owns. Any outstanding acknowledge/commit requests referring
// to it will simply find nothing to update.
func (m *OffsetManager) onRevoked(tp kafka.TopicPartition) {
	delete(m.partitions, tp)
}

// handleAcknowledge applies one ackRequest to the tracked state and
// replies on req.done. Called only from the event loop goroutine.
func (m *OffsetManager) handleAcknowledge(req ackRequest) {
	st, ok := m.partitions[req.tp]
	if !ok {
		req.done <- kafka.ErrClosed
		return
	}
	if req.offset > st.highestAcknowledged {
		st.highestAcknowledged = req.offset
		st.pending++
	}
	req.done <- nil
}

// handleCommit commits req.tp up to req.offset immediately, retrying
// retriable failures with exponential backoff up to maxAttempts.
func (m *OffsetManager) handleCommit(ctx context.Context, req commitRequest) {
	err := m.commitOffset(ctx, req.tp, req.offset)
	req.done <- err
}

// commitBatchIfDue commits every partition with pending acknowledged
// offsets once commitBatchSize or commitInterval has been reached.
// Called once per event-loop tick between Poll calls.
//
// commitOffset already retries a retriable failure internally, with
// backoff, up to maxAttempts before ever returning an error, so any
// non-nil return here already represents exhaustion (retriable or
// not) of that partition's commit. That is fatal for the whole
// subscription in AUTO_ACK/MANUAL_ACK modes, the only modes that ever
// accumulate pending>0 partitions here: it is returned immediately,
// leaving any other partitions still due this round uncommitted for
// the caller to decide whether to terminate.
func (m *OffsetManager) commitBatchIfDue(ctx context.Context) error {
	due := time.Since(m.lastBatchCommit) >= m.batchInterval
	if !due {
		for _, st := range m.partitions {
			if st.pending >= m.batchSize {
				due = true
				break
			}
		}
	}
	if !due {
		return nil
	}

	for tp, st := range m.partitions {
		if st.pending == 0 {
			continue
		}
		if err := m.commitOffset(ctx, tp, st.highestAcknowledged); err != nil {
			logger().Error("batched commit failed, exhausted retries",
				kafka.TopicAttr(tp.Topic), kafka.PartitionAttr(tp.Partition),
				slog.Any("error", err))
			return err
		}
		st.pending = 0
	}
	m.lastBatchCommit = time.Now()
	return nil
}

// commitOffset commits tp up to offset+1 (librdkafka commits the next
// offset to be read, not the last one read), retrying retriable
// errors with exponential backoff: 50ms, 100ms, 200ms, ... capped at
// 2s, up to maxAttempts.
func (m *OffsetManager) commitOffset(ctx context.Context, tp kafka.TopicPartition, offset int64) error {
	st, ok := m.partitions[tp]
	if !ok {
		return nil
	}
	if offset <= st.lastCommitted {
		return nil
	}

	target := []ckafka.TopicPartition{{
		Topic:     ptr.Ref(tp.Topic),
		Partition: tp.Partition,
		Offset:    ckafka.Offset(offset + 1),
	}}

	backoff := 50 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		_, err := m.consumer.CommitOffsets(target)
		if err == nil {
			st.lastCommitted = offset
			if m.metrics != nil {
				m.metrics.recordCommitted(ctx, tp)
			}
			return nil
		}
		lastErr = err
		if !m.retriable(err) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
	}

	retriable := lastErr != nil && m.retriable(lastErr)
	commitErr := &kafka.CommitError{Retriable: retriable, Err: lastErr}
	if m.metrics != nil {
		m.metrics.recordCommitFailure(ctx, tp, commitErr)
	}
	return commitErr
}

// OffsetHandle lets a Receiver's application code acknowledge or
// commit the offset of a single delivered record, depending on the
// stream's ack mode. It holds a reference to the owning
// OffsetManager, never the reverse, so ConsumerMessage values never
// keep more state alive than their own fields.
type OffsetHandle struct {
	tp      kafka.TopicPartition
	offset  int64
	manager *OffsetManager
	valid   atomic.Bool
}

func newOffsetHandle(tp kafka.TopicPartition, offset int64, manager *OffsetManager) *OffsetHandle {
	h := &OffsetHandle{tp: tp, offset: offset, manager: manager}
	h.valid.Store(true)
	return h
}

// TopicPartition returns the coordinates this handle's offset belongs
// to.
func (h *OffsetHandle) TopicPartition() kafka.TopicPartition {
	return h.tp
}

// Offset returns the offset of the record this handle was issued for.
func (h *OffsetHandle) Offset() int64 {
	return h.offset
}

// Acknowledge marks this record's offset as safe to commit. The
// actual commit happens on the owning event loop's normal batching
// schedule (ManualAckMode); it does not synchronously hit the broker.
func (h *OffsetHandle) Acknowledge(ctx context.Context) error {
	if !h.valid.Load() {
		return kafka.ErrClosed
	}
	done := make(chan error, 1)
	req := ackRequest{tp: h.tp, offset: h.offset, done: done}
	select {
	case h.manager.acknowledgeRequests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Commit synchronously commits this record's offset to the broker.
// Used in ManualCommitMode, where no implicit batching ever happens.
func (h *OffsetHandle) Commit(ctx context.Context) error {
	if !h.valid.Load() {
		return kafka.ErrClosed
	}
	done := make(chan error, 1)
	req := commitRequest{tp: h.tp, offset: h.offset, done: done}
	select {
	case h.manager.commitRequests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// invalidate is called by the event loop on close so that handles
// issued before shutdown deterministically return ErrClosed instead
// of blocking forever on a channel nothing drains anymore.
func (h *OffsetHandle) invalidate() {
	h.valid.Store(false)
}
