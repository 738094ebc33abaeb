// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"log/slog"
	"strconv"

	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// GroupIDAttr returns a slog attribute for the Kafka consumer group ID.
func GroupIDAttr(groupID string) slog.Attr {
	return slog.String("messaging.consumer.group.name", groupID)
}

// TopicAttr returns a slog attribute for the Kafka topic.
func TopicAttr(topic string) slog.Attr {
	kv := semconv.MessagingDestinationName(topic)
	return slog.String(string(kv.Key), kv.Value.AsString())
}

// PartitionAttr returns a slog attribute for the Kafka partition.
func PartitionAttr(partition int32) slog.Attr {
	kv := semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(partition), 10))
	return slog.String(string(kv.Key), kv.Value.AsString())
}

// OffsetAttr returns a slog attribute for a Kafka offset.
func OffsetAttr(offset int64) slog.Attr {
	kv := semconv.MessagingKafkaOffset(int(offset))
	return slog.Int64(string(kv.Key), kv.Value.AsInt64())
}

// CorrelationAttr returns a slog attribute for a caller-supplied
// correlator value, the generic Sender[T]/SendPipeline[T] type
// parameter threaded from Send through to its Result. There is no
// semantic-conventions key for an application correlator, so this
// uses a plain messaging.* key the way GroupIDAttr does.
func CorrelationAttr(correlation any) slog.Attr {
	return slog.Any("messaging.message.correlation_id", correlation)
}
