// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"sync/atomic"

	ckafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/zjpjohn/reactor-kafka/kafka"
)

type seekKind int

const (
	seekToOffset seekKind = iota
	seekToBeginning
	seekToEnd
)

type seekRequest struct {
	tp     kafka.TopicPartition
	kind   seekKind
	offset int64
}

// SeekablePartition is handed to a Builder's doOnPartitionsAssigned
// callback for each newly assigned partition. It is valid only for
// the duration of that callback: confluent-kafka-go invokes
// RebalanceCb synchronously on the event loop's own goroutine, so
// seek* calls made here are recorded directly onto the loop's pending
// list rather than sent through a request channel, and are flushed
// against the real consumer immediately after the callback returns
// and before the loop polls again. Calling SeekToBeginning, SeekToEnd
// or Seek once the callback has returned — or after the owning loop
// has closed — returns kafka.ErrClosed.
type SeekablePartition struct {
	tp    kafka.TopicPartition
	loop  *ConsumerEventLoop
	valid atomic.Bool
}

func newSeekablePartition(tp kafka.TopicPartition, loop *ConsumerEventLoop) *SeekablePartition {
	p := &SeekablePartition{tp: tp, loop: loop}
	p.valid.Store(true)
	return p
}

// TopicPartition returns the coordinates of the partition this handle
// controls.
func (p *SeekablePartition) TopicPartition() kafka.TopicPartition {
	return p.tp
}

// SeekToBeginning requests that, before the next poll, the consumer's
// position for this partition be reset to the earliest available
// offset.
func (p *SeekablePartition) SeekToBeginning() error {
	return p.enqueue(seekRequest{tp: p.tp, kind: seekToBeginning})
}

// SeekToEnd requests a reset to the latest offset.
func (p *SeekablePartition) SeekToEnd() error {
	return p.enqueue(seekRequest{tp: p.tp, kind: seekToEnd})
}

// Seek requests a reset to a specific offset.
func (p *SeekablePartition) Seek(offset int64) error {
	return p.enqueue(seekRequest{tp: p.tp, kind: seekToOffset, offset: offset})
}

// Position returns the consumer's last known committed position for
// this partition, or -1 if none has been committed yet.
func (p *SeekablePartition) Position() int64 {
	st, ok := p.loop.offsets.partitions[p.tp]
	if !ok {
		return -1
	}
	return st.lastCommitted
}

func (p *SeekablePartition) enqueue(req seekRequest) error {
	if !p.valid.Load() {
		return kafka.ErrClosed
	}
	p.loop.pendingSeeks = append(p.loop.pendingSeeks, req)
	return nil
}

func (p *SeekablePartition) invalidate() {
	p.valid.Store(false)
}

// applySeek translates one queued seekRequest into the corresponding
// confluent-kafka-go Consumer.Seek call. Called only from the event
// loop goroutine, between the assignment callback returning and the
// next Poll.
func applySeek(consumer *ckafka.Consumer, req seekRequest) error {
	var offset ckafka.Offset
	switch req.kind {
	case seekToBeginning:
		offset = ckafka.OffsetBeginning
	case seekToEnd:
		offset = ckafka.OffsetEnd
	default:
		offset = ckafka.Offset(req.offset)
	}

	return consumer.Seek(ckafka.TopicPartition{
		Topic:     &req.tp.Topic,
		Partition: req.tp.Partition,
		Offset:    offset,
	}, 0)
}
