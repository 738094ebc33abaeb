// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"context"

	"github.com/zjpjohn/reactor-kafka/kafka"
)

// MessageStream is the push-based view of a subscription: a bounded
// channel of ConsumerMessage that the event loop populates and pauses
// fetching into when the application falls behind, rather than
// blocking the event loop's own Poll calls.
type MessageStream struct {
	records chan ConsumerMessage
	done    <-chan struct{}
}

func newMessageStream(buffer int, done <-chan struct{}) *MessageStream {
	return &MessageStream{
		records: make(chan ConsumerMessage, buffer),
		done:    done,
	}
}

// Records returns the underlying channel of delivered messages. It is
// closed once the owning Receiver is closed.
func (s *MessageStream) Records() <-chan ConsumerMessage {
	return s.records
}

// ForEach calls fn for every delivered message in order of arrival
// until ctx is done, fn returns an error, or the stream closes. The
// first non-nil error from fn (or ctx.Err()) is returned.
func (s *MessageStream) ForEach(ctx context.Context, fn func(context.Context, ConsumerMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-s.records:
			if !ok {
				return nil
			}
			if err := fn(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// ByPartition fans the stream out into one channel per topic
// partition, each preserving that partition's delivery order. The
// returned map is a snapshot: partitions assigned after ByPartition is
// called are not included. Callers that need dynamic partition
// discovery should use Records or ForEach directly instead.
func (s *MessageStream) ByPartition(ctx context.Context, partitions []kafka.TopicPartition) map[kafka.TopicPartition]<-chan ConsumerMessage {
	out := make(map[kafka.TopicPartition]chan ConsumerMessage, len(partitions))
	result := make(map[kafka.TopicPartition]<-chan ConsumerMessage, len(partitions))
	for _, tp := range partitions {
		ch := make(chan ConsumerMessage, 1)
		out[tp] = ch
		result[tp] = ch
	}

	go func() {
		defer func() {
			for _, ch := range out {
				close(ch)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-s.records:
				if !ok {
					return
				}
				ch, tracked := out[msg.TopicPartition()]
				if !tracked {
					continue
				}
				select {
				case ch <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return result
}
