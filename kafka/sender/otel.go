// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sender

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjpjohn/reactor-kafka/kafka"
)

const instrumentationName = "github.com/zjpjohn/reactor-kafka/kafka/sender"

func logger() *slog.Logger {
	return slog.Default().With(slog.String("logger", instrumentationName))
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// errorType returns a safe, non-sensitive classification of an error
// for metric labels: the underlying kafka error kind, or
// "processing_error" for anything else.
func errorType(err error) string {
	if err == nil {
		return ""
	}
	var sendErr *kafka.SendError
	if errors.As(err, &sendErr) {
		return "send_error"
	}
	var initErr *kafka.ProducerInitError
	if errors.As(err, &initErr) {
		return "init_error"
	}
	return "processing_error"
}
