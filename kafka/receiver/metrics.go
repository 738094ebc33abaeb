// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/zjpjohn/reactor-kafka/kafka"
)

// metricsRecorder holds the OTel instruments an OffsetManager records
// to; newOffsetManager builds one for each ConsumerEventLoop.
type metricsRecorder struct {
	messagesProcessed metric.Int64Counter
	messagesCommitted metric.Int64Counter
	commitFailures    metric.Int64Counter
}

func newMetricsRecorder() (*metricsRecorder, error) {
	m := meter()

	messagesProcessed, err := m.Int64Counter(
		"kafka.consumer.messages.processed",
		metric.WithDescription("Total number of Kafka messages delivered downstream"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	messagesCommitted, err := m.Int64Counter(
		"kafka.consumer.messages.committed",
		metric.WithDescription("Total number of Kafka offsets successfully committed"),
		metric.WithUnit("{offset}"),
	)
	if err != nil {
		return nil, err
	}

	commitFailures, err := m.Int64Counter(
		"kafka.consumer.commit.failures",
		metric.WithDescription("Total number of Kafka offset commit failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsRecorder{
		messagesProcessed: messagesProcessed,
		messagesCommitted: messagesCommitted,
		commitFailures:    commitFailures,
	}, nil
}

func (m *metricsRecorder) recordProcessed(ctx context.Context, tp kafka.TopicPartition) {
	m.messagesProcessed.Add(ctx, 1,
		metric.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(tp.Topic),
			semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(tp.Partition), 10)),
		),
	)
}

func (m *metricsRecorder) recordCommitted(ctx context.Context, tp kafka.TopicPartition) {
	m.messagesCommitted.Add(ctx, 1,
		metric.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(tp.Topic),
			semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(tp.Partition), 10)),
		),
	)
}

func (m *metricsRecorder) recordCommitFailure(ctx context.Context, tp kafka.TopicPartition, err error) {
	m.commitFailures.Add(ctx, 1,
		metric.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(tp.Topic),
			semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(tp.Partition), 10)),
			attribute.String("error.type", errorType(err)),
		),
	)
}
