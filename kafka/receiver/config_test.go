// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjpjohn/reactor-kafka/internal/scheduler"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig("my-group", "localhost:9092")

	assert.Equal(t, 100*time.Millisecond, cfg.pollTimeout)
	assert.Equal(t, 100, cfg.commitBatchSize)
	assert.Equal(t, time.Second, cfg.commitInterval)
	assert.Equal(t, 30*time.Second, cfg.closeTimeout)
	assert.Equal(t, 3, cfg.maxAutoCommitAttempts)
	assert.Equal(t, 64, cfg.partitionBuffer)
	assert.Equal(t, "my-group", cfg.properties["group.id"])
	assert.Equal(t, "localhost:9092", cfg.properties["bootstrap.servers"])
	assert.Equal(t, false, cfg.properties["enable.auto.commit"])
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig("my-group", "localhost:9092",
		PollTimeout(250*time.Millisecond),
		CommitBatchSize(10),
		CommitInterval(5*time.Second),
		CloseTimeout(2*time.Second),
		MaxAutoCommitAttempts(5),
		PartitionBufferSize(8),
		Property("auto.offset.reset", "earliest"),
	)

	assert.Equal(t, 250*time.Millisecond, cfg.pollTimeout)
	assert.Equal(t, 10, cfg.commitBatchSize)
	assert.Equal(t, 5*time.Second, cfg.commitInterval)
	assert.Equal(t, 2*time.Second, cfg.closeTimeout)
	assert.Equal(t, 5, cfg.maxAutoCommitAttempts)
	assert.Equal(t, 8, cfg.partitionBuffer)
	assert.Equal(t, "earliest", cfg.properties["auto.offset.reset"])
}

func TestConfig_ToConfigMap(t *testing.T) {
	cfg := NewConfig("my-group", "localhost:9092")
	cm := cfg.toConfigMap()

	v, err := cm.Get("group.id", nil)
	require.NoError(t, err)
	assert.Equal(t, "my-group", v)
}

func TestNewConfig_DefaultSchedulerIsPooled(t *testing.T) {
	cfg := NewConfig("my-group", "localhost:9092")

	_, ok := cfg.sched.(*scheduler.Pooled)
	assert.True(t, ok, "default scheduler should be a *scheduler.Pooled")
}

func TestWithScheduler_Overrides(t *testing.T) {
	cfg := NewConfig("my-group", "localhost:9092", WithScheduler(scheduler.Immediate))

	assert.Equal(t, scheduler.Immediate, cfg.sched)
}
