// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjpjohn/reactor-kafka/kafka"
)

func newTestOffsetManager(bufSize int) *OffsetManager {
	return &OffsetManager{
		partitions:           make(map[kafka.TopicPartition]*partitionState),
		acknowledgeRequests: make(chan ackRequest, bufSize),
		commitRequests:      make(chan commitRequest, bufSize),
		retriable:           defaultRetriablePredicate,
	}
}

func TestAutoAckDelivery_AcknowledgesAndForwards(t *testing.T) {
	manager := newTestOffsetManager(1)
	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	manager.onAssigned(tp)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		select {
		case req := <-manager.acknowledgeRequests:
			manager.handleAcknowledge(req)
		case <-ctx.Done():
		}
	}()

	rec := kafka.Record{Topic: "orders", Partition: 0, Offset: 7}
	msg, err := autoAckDelivery(ctx, manager, rec)
	require.NoError(t, err)
	assert.Equal(t, rec, msg.Record)
	assert.Nil(t, msg.Handle)
	assert.Equal(t, int64(7), manager.partitions[tp].highestAcknowledged)
	assert.Equal(t, 1, manager.partitions[tp].pending)
}

func TestAtmostOnceDelivery_CommitsBeforeForwarding(t *testing.T) {
	manager := newTestOffsetManager(1)
	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	manager.onAssigned(tp)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var committed bool
	go func() {
		select {
		case req := <-manager.commitRequests:
			committed = true
			req.done <- nil
		case <-ctx.Done():
		}
	}()

	rec := kafka.Record{Topic: "orders", Partition: 0, Offset: 4}
	msg, err := atmostOnceDelivery(ctx, manager, rec)
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, rec, msg.Record)
}

func TestManualAckDelivery_AttachesHandle(t *testing.T) {
	manager := newTestOffsetManager(1)
	deliver := manualAckDelivery(manager)

	rec := kafka.Record{Topic: "orders", Partition: 0, Offset: 9}
	msg, err := deliver(context.Background(), manager, rec)
	require.NoError(t, err)
	require.NotNil(t, msg.Handle)
	assert.Equal(t, int64(9), msg.Handle.Offset())
}

func TestManualCommitDelivery_AttachesHandle(t *testing.T) {
	manager := newTestOffsetManager(1)
	deliver := manualCommitDelivery(manager)

	rec := kafka.Record{Topic: "orders", Partition: 0, Offset: 9}
	msg, err := deliver(context.Background(), manager, rec)
	require.NoError(t, err)
	require.NotNil(t, msg.Handle)
}

func TestDeliveryFuncFor(t *testing.T) {
	manager := newTestOffsetManager(1)

	assert.NotNil(t, deliveryFuncFor(AutoAckMode, manager))
	assert.NotNil(t, deliveryFuncFor(AtmostOnceMode, manager))
	assert.NotNil(t, deliveryFuncFor(ManualAckMode, manager))
	assert.NotNil(t, deliveryFuncFor(ManualCommitMode, manager))
}
