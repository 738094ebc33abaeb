// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjpjohn/reactor-kafka/internal/scheduler"
)

func TestNew_Defaults(t *testing.T) {
	s := New[int](NewConfig("localhost:9092"))

	assert.Equal(t, 256, s.defaultMaxInflight)
	assert.False(t, s.defaultDelayError)
	_, ok := s.Scheduler().(*scheduler.Pooled)
	assert.True(t, ok)
}

func TestNew_Options(t *testing.T) {
	s := New[int](NewConfig("localhost:9092"),
		WithScheduler[int](scheduler.Immediate),
		WithMaxInflight[int](8),
		WithDelayError[int](true),
	)

	assert.Equal(t, scheduler.Immediate, s.Scheduler())
	assert.Equal(t, 8, s.defaultMaxInflight)
	assert.True(t, s.defaultDelayError)
}

func TestSender_Close_NeverUsed_DoesNotConstructProducer(t *testing.T) {
	s := New[int](NewConfig("localhost:9092"))

	require.False(t, s.producer.hasProducer())
	assert.NoError(t, s.Close())
}

func TestSender_Pipeline_UsesSenderDefaults(t *testing.T) {
	s := New[int](NewConfig("localhost:9092"), WithMaxInflight[int](3), WithDelayError[int](true))
	p := s.Pipeline()

	assert.Equal(t, 3, cap(p.slots))
	assert.True(t, p.delayError)
}
