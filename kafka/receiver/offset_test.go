// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"context"
	"errors"
	"testing"
	"time"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjpjohn/reactor-kafka/kafka"
)

func TestOffsetManager_HandleAcknowledge_IsMonotonic(t *testing.T) {
	manager := newTestOffsetManager(4)
	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	manager.onAssigned(tp)

	for _, offset := range []int64{2, 5, 3} {
		done := make(chan error, 1)
		manager.handleAcknowledge(ackRequest{tp: tp, offset: offset, done: done})
		require.NoError(t, <-done)
	}

	assert.Equal(t, int64(5), manager.partitions[tp].highestAcknowledged)
}

func TestOffsetManager_HandleAcknowledge_UnknownPartition(t *testing.T) {
	manager := newTestOffsetManager(1)
	done := make(chan error, 1)
	manager.handleAcknowledge(ackRequest{
		tp:     kafka.TopicPartition{Topic: "orders", Partition: 9},
		offset: 1,
		done:   done,
	})
	assert.ErrorIs(t, <-done, kafka.ErrClosed)
}

func TestOffsetManager_OnRevoked_DropsState(t *testing.T) {
	manager := newTestOffsetManager(1)
	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	manager.onAssigned(tp)
	require.Contains(t, manager.partitions, tp)

	manager.onRevoked(tp)
	assert.NotContains(t, manager.partitions, tp)
}

func TestOffsetHandle_Acknowledge_ReturnsErrClosedAfterInvalidate(t *testing.T) {
	manager := newTestOffsetManager(1)
	handle := newOffsetHandle(kafka.TopicPartition{Topic: "orders", Partition: 0}, 3, manager)

	handle.invalidate()

	err := handle.Acknowledge(context.Background())
	assert.ErrorIs(t, err, kafka.ErrClosed)
}

func TestOffsetHandle_Commit_PropagatesManagerError(t *testing.T) {
	manager := newTestOffsetManager(1)
	handle := newOffsetHandle(kafka.TopicPartition{Topic: "orders", Partition: 0}, 3, manager)

	commitErr := errors.New("broker rejected commit")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		req := <-manager.commitRequests
		req.done <- commitErr
	}()

	err := handle.Commit(ctx)
	assert.ErrorIs(t, err, commitErr)
}

func TestOffsetHandle_Acknowledge_ReturnsCtxErrIfManagerNeverDrains(t *testing.T) {
	manager := newTestOffsetManager(0)
	handle := newOffsetHandle(kafka.TopicPartition{Topic: "orders", Partition: 0}, 3, manager)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := handle.Acknowledge(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// failingCommitter always rejects CommitOffsets, counting attempts so
// tests can assert on maxAttempts being honored.
type failingCommitter struct {
	attempts int
	err      error
}

func (f *failingCommitter) CommitOffsets(offsets []ckafka.TopicPartition) ([]ckafka.TopicPartition, error) {
	f.attempts++
	return nil, f.err
}

func TestCommitOffset_NonRetriable_FailsAfterOneAttempt(t *testing.T) {
	committer := &failingCommitter{err: errors.New("not authorized")}
	manager := newTestOffsetManager(1)
	manager.consumer = committer
	manager.maxAttempts = 3
	manager.retriable = func(error) bool { return false }

	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	manager.onAssigned(tp)

	err := manager.commitOffset(context.Background(), tp, 5)

	var commitErr *kafka.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.False(t, commitErr.Retriable)
	assert.Equal(t, 1, committer.attempts)
}

func TestCommitBatchIfDue_TerminatesOnExhaustedRetries(t *testing.T) {
	committer := &failingCommitter{err: errors.New("not leader for partition")}
	manager := newTestOffsetManager(1)
	manager.consumer = committer
	manager.maxAttempts = 2
	manager.retriable = func(error) bool { return true }
	manager.batchSize = 1
	manager.batchInterval = time.Hour

	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	manager.onAssigned(tp)
	manager.partitions[tp].highestAcknowledged = 9
	manager.partitions[tp].pending = 1

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := manager.commitBatchIfDue(ctx)

	var commitErr *kafka.CommitError
	require.ErrorAs(t, err, &commitErr)
	assert.Equal(t, 2, committer.attempts)
	assert.Equal(t, 1, manager.partitions[tp].pending, "a failed batch commit must not clear pending, so the next round (if any) still sees it as due")
}
