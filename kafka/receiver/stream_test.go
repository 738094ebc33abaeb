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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjpjohn/reactor-kafka/kafka"
)

func TestMessageStream_ForEach_ProcessesInOrderUntilClosed(t *testing.T) {
	done := make(chan struct{})
	s := newMessageStream(4, done)

	for i := int64(0); i < 3; i++ {
		s.records <- ConsumerMessage{Record: kafka.Record{Topic: "orders", Partition: 0, Offset: i}}
	}
	close(s.records)

	var seen []int64
	err := s.ForEach(context.Background(), func(_ context.Context, msg ConsumerMessage) error {
		seen = append(seen, msg.Offset)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, seen)
}

func TestMessageStream_ForEach_PropagatesHandlerError(t *testing.T) {
	done := make(chan struct{})
	s := newMessageStream(1, done)
	s.records <- ConsumerMessage{Record: kafka.Record{Topic: "orders", Partition: 0, Offset: 0}}

	handlerErr := errors.New("processing failed")
	err := s.ForEach(context.Background(), func(_ context.Context, _ ConsumerMessage) error {
		return handlerErr
	})
	assert.ErrorIs(t, err, handlerErr)
}

func TestMessageStream_ByPartition_PreservesPerPartitionOrder(t *testing.T) {
	done := make(chan struct{})
	s := newMessageStream(8, done)

	tp0 := kafka.TopicPartition{Topic: "orders", Partition: 0}
	tp1 := kafka.TopicPartition{Topic: "orders", Partition: 1}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	channels := s.ByPartition(ctx, []kafka.TopicPartition{tp0, tp1})

	go func() {
		s.records <- ConsumerMessage{Record: kafka.Record{Topic: "orders", Partition: 0, Offset: 0}}
		s.records <- ConsumerMessage{Record: kafka.Record{Topic: "orders", Partition: 1, Offset: 0}}
		s.records <- ConsumerMessage{Record: kafka.Record{Topic: "orders", Partition: 0, Offset: 1}}
		close(s.records)
	}()

	var p0Offsets []int64
	for msg := range channels[tp0] {
		p0Offsets = append(p0Offsets, msg.Offset)
	}
	assert.Equal(t, []int64{0, 1}, p0Offsets)

	var p1Offsets []int64
	for msg := range channels[tp1] {
		p1Offsets = append(p1Offsets, msg.Offset)
	}
	assert.Equal(t, []int64{0}, p1Offsets)
}
