// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by any operation attempted on a handle
// (ProducerHandle, OffsetHandle, SeekablePartition) after its owner has
// closed. It is deterministic: once returned for a handle, it is
// returned for every subsequent call on that handle.
var ErrClosed = errors.New("kafka: operation attempted on closed resource")

// ProducerInitError wraps a failure to construct the underlying Kafka
// producer. It is fatal: every waiter on the ProducerHandle observes
// the same wrapped error, and the sender is unusable afterwards.
type ProducerInitError struct {
	Err error
}

func (e *ProducerInitError) Error() string {
	return fmt.Sprintf("kafka: failed to initialize producer: %s", e.Err)
}

func (e *ProducerInitError) Unwrap() error { return e.Err }

// SendError wraps a per-record send failure reported by the producer's
// delivery callback.
type SendError struct {
	Topic     string
	Partition int32
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("kafka: failed to send record to %s[%d]: %s", e.Topic, e.Partition, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// PollError wraps a failure surfaced from the consumer's poll loop. It
// is terminal for the subscription that observed it.
type PollError struct {
	Err error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("kafka: poll failed: %s", e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// CommitError wraps a failure to commit offsets to the broker.
// Retriable is the classification applied by the OffsetManager's
// retriable-error predicate at the time the error was produced.
type CommitError struct {
	Retriable bool
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("kafka: commit failed (retriable=%t): %s", e.Retriable, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// AssignmentCallbackError wraps an error returned by a
// doOnPartitionsAssigned or doOnPartitionsRevoked callback. For an
// explicit partition assignment it is returned from the terminal
// builder method and no subscription starts. For a group-coordinated
// subscription it is returned from the consumer's rebalance callback;
// the event loop keeps running and the error is not delivered on the
// MessageStream.
type AssignmentCallbackError struct {
	Err error
}

func (e *AssignmentCallbackError) Error() string {
	return fmt.Sprintf("kafka: partition assignment callback failed: %s", e.Err)
}

func (e *AssignmentCallbackError) Unwrap() error { return e.Err }
