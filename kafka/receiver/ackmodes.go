// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"context"

	"github.com/zjpjohn/reactor-kafka/kafka"
)

// deliveryFunc turns one raw record into the ConsumerMessage handed
// to application code, performing whatever commit-side effect its ack
// mode requires along the way. It runs on a per-partition worker
// goroutine, never on the event loop goroutine itself, so any
// interaction with the OffsetManager goes through its request
// channels — the same ones OffsetHandle.Acknowledge/Commit use.
type deliveryFunc func(ctx context.Context, manager *OffsetManager, rec kafka.Record) (ConsumerMessage, error)

// autoAckDelivery forwards the record immediately and acknowledges
// its offset in the same step, so commits proceed on the manager's
// normal batching schedule without the application doing anything.
func autoAckDelivery(ctx context.Context, manager *OffsetManager, rec kafka.Record) (ConsumerMessage, error) {
	done := make(chan error, 1)
	req := ackRequest{tp: rec.TopicPartition(), offset: rec.Offset, done: done}
	select {
	case manager.acknowledgeRequests <- req:
	case <-ctx.Done():
		return ConsumerMessage{}, ctx.Err()
	}
	select {
	case err := <-done:
		if err != nil {
			return ConsumerMessage{}, err
		}
	case <-ctx.Done():
		return ConsumerMessage{}, ctx.Err()
	}
	return ConsumerMessage{Record: rec}, nil
}

// atmostOnceDelivery commits the offset synchronously before the
// record is ever handed to the application, so a crash mid-processing
// can never cause redelivery — at the cost of a lost record if
// processing itself fails after the commit has already gone through.
func atmostOnceDelivery(ctx context.Context, manager *OffsetManager, rec kafka.Record) (ConsumerMessage, error) {
	done := make(chan error, 1)
	req := commitRequest{tp: rec.TopicPartition(), offset: rec.Offset, done: done}
	select {
	case manager.commitRequests <- req:
	case <-ctx.Done():
		return ConsumerMessage{}, ctx.Err()
	}
	select {
	case err := <-done:
		if err != nil {
			return ConsumerMessage{}, err
		}
	case <-ctx.Done():
		return ConsumerMessage{}, ctx.Err()
	}
	return ConsumerMessage{Record: rec}, nil
}

// manualAckDelivery attaches an OffsetHandle and forwards the record
// without touching the manager; the application decides when (and
// whether) to call Handle.Acknowledge.
func manualAckDelivery(manager *OffsetManager) deliveryFunc {
	return func(_ context.Context, _ *OffsetManager, rec kafka.Record) (ConsumerMessage, error) {
		handle := newOffsetHandle(rec.TopicPartition(), rec.Offset, manager)
		return ConsumerMessage{Record: rec, Handle: handle}, nil
	}
}

// manualCommitDelivery is identical to manualAckDelivery in shape —
// the difference is entirely in which OffsetHandle method the
// application is expected to call, and in the absence of any implicit
// batching on the manager's side for this mode (see OffsetHandle.Commit).
func manualCommitDelivery(manager *OffsetManager) deliveryFunc {
	return func(_ context.Context, _ *OffsetManager, rec kafka.Record) (ConsumerMessage, error) {
		handle := newOffsetHandle(rec.TopicPartition(), rec.Offset, manager)
		return ConsumerMessage{Record: rec, Handle: handle}, nil
	}
}

func deliveryFuncFor(mode AckMode, manager *OffsetManager) deliveryFunc {
	switch mode {
	case AtmostOnceMode:
		return atmostOnceDelivery
	case ManualAckMode:
		return manualAckDelivery(manager)
	case ManualCommitMode:
		return manualCommitDelivery(manager)
	default:
		return autoAckDelivery
	}
}
