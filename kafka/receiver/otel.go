// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package receiver

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjpjohn/reactor-kafka/kafka"
)

const instrumentationName = "github.com/zjpjohn/reactor-kafka/kafka/receiver"

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
// for metric labels.
func errorType(err error) string {
	if err == nil {
		return ""
	}
	var commitErr *kafka.CommitError
	if errors.As(err, &commitErr) {
		return "commit_error"
	}
	var pollErr *kafka.PollError
	if errors.As(err, &pollErr) {
		return "poll_error"
	}
	var assignErr *kafka.AssignmentCallbackError
	if errors.As(err, &assignErr) {
		return "assignment_callback_error"
	}
	return "processing_error"
}
