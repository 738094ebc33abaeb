// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sender

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// metricsRecorder holds the OTel instruments for tracking sends. One
// recorder is shared by every SendPipeline built from the same Sender.
type metricsRecorder struct {
	messagesSent metric.Int64Counter
	sendFailures metric.Int64Counter
	inflight     metric.Int64UpDownCounter
}

func newMetricsRecorder() (*metricsRecorder, error) {
	m := meter()

	messagesSent, err := m.Int64Counter(
		"kafka.producer.messages.sent",
		metric.WithDescription("Total number of Kafka messages successfully sent"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	sendFailures, err := m.Int64Counter(
		"kafka.producer.send.failures",
		metric.WithDescription("Total number of Kafka send failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	inflight, err := m.Int64UpDownCounter(
		"kafka.producer.messages.inflight",
		metric.WithDescription("Number of records sent but not yet acknowledged"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsRecorder{
		messagesSent: messagesSent,
		sendFailures: sendFailures,
		inflight:     inflight,
	}, nil
}

func (m *metricsRecorder) recordSent(ctx context.Context, topic string, partition int32) {
	m.messagesSent.Add(ctx, 1,
		metric.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(topic),
			semconv.MessagingDestinationPartitionID(strconv.FormatInt(int64(partition), 10)),
		),
	)
}

func (m *metricsRecorder) recordFailure(ctx context.Context, topic string, err error) {
	m.sendFailures.Add(ctx, 1,
		metric.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(topic),
			attribute.String("error.type", errorType(err)),
		),
	)
}

func (m *metricsRecorder) recordInflightDelta(ctx context.Context, delta int64) {
	m.inflight.Add(ctx, delta)
}
