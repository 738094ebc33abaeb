// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImmediate_RunsSynchronously(t *testing.T) {
	var ran bool
	Immediate.Schedule(func() { ran = true })
	assert.True(t, ran)
}

func TestPooled_RunsScheduledWork(t *testing.T) {
	s := NewPooled(1)
	defer s.Close()

	callerGoroutine := make(chan struct{})
	done := make(chan struct{})

	go func() {
		close(callerGoroutine)
	}()
	<-callerGoroutine

	s.Schedule(func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled work never ran")
	}
}

func TestPooled_Close_WaitsForOutstandingWork(t *testing.T) {
	s := NewPooled(2)

	var mu sync.Mutex
	var count int

	for i := 0; i < 10; i++ {
		s.Schedule(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	s.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 10, count)
}
