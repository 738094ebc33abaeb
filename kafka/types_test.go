// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTopicPartition_String(t *testing.T) {
	tp := TopicPartition{Topic: "orders", Partition: 3}
	assert.Equal(t, "orders[3]", tp.String())
}

func TestRecord_TopicPartition(t *testing.T) {
	rec := Record{
		Topic:     "orders",
		Partition: 2,
		Offset:    42,
		Value:     []byte("payload"),
		Timestamp: time.Now(),
	}

	tp := rec.TopicPartition()
	assert.Equal(t, "orders", tp.Topic)
	assert.Equal(t, int32(2), tp.Partition)
}
