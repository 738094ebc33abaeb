// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sender

import (
	"fmt"
	"sync"
	"sync/atomic"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/zjpjohn/reactor-kafka/kafka"
)

type producerState int32

const (
	producerInit producerState = iota
	producerReady
	producerFailed
	producerClosed
)

// producerHandle lazily constructs the underlying confluent-kafka-go
// producer on first use and shares it across every SendPipeline built
// from the same Sender. Construction happens at most once: a failure
// is cached and replayed to every caller, matching spec's "every
// waiter observes the same wrapped error" requirement.
type producerHandle struct {
	cfg Config

	once     sync.Once
	initErr  error
	producer *ckafka.Producer

	state    atomic.Int32
	closeMu  sync.Mutex
	closeErr error
}

func newProducerHandle(cfg Config) *producerHandle {
	return &producerHandle{cfg: cfg}
}

// get returns the shared producer, constructing it on the first call.
func (h *producerHandle) get() (*ckafka.Producer, error) {
	if producerState(h.state.Load()) == producerClosed {
		return nil, kafka.ErrClosed
	}
	h.once.Do(func() {
		p, err := ckafka.NewProducer(h.cfg.toConfigMap())
		if err != nil {
			h.initErr = &kafka.ProducerInitError{Err: err}
			h.state.Store(int32(producerFailed))
			return
		}
		h.producer = p
		h.state.Store(int32(producerReady))
	})
	if h.initErr != nil {
		return nil, h.initErr
	}
	if producerState(h.state.Load()) == producerClosed {
		return nil, kafka.ErrClosed
	}
	return h.producer, nil
}

// hasProducer reports whether the underlying producer has been
// constructed yet, without triggering construction. Used by tests
// asserting that a Sender built but never sent through never opens a
// connection.
func (h *producerHandle) hasProducer() bool {
	return producerState(h.state.Load()) == producerReady
}

// close flushes outstanding deliveries for up to the handle's
// configured CloseTimeout, then releases the underlying producer. It
// is idempotent: calling it more than once returns the result of the
// first call.
func (h *producerHandle) close() error {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()

	prev := producerState(h.state.Swap(int32(producerClosed)))
	if prev == producerClosed {
		return h.closeErr
	}
	if prev != producerReady {
		// never successfully constructed; nothing to flush or close
		return nil
	}

	remaining := h.producer.Flush(int(h.cfg.closeTimeout.Milliseconds()))
	h.producer.Close()
	if remaining > 0 {
		h.closeErr = fmt.Errorf("kafka: %d messages still in flight after close timeout", remaining)
	}
	return h.closeErr
}
