// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package receiver provides a reactive-style consumer built on top of
// confluent-kafka-go: a Builder (via ListenOn, ListenOnPattern, or
// Assign) configures a subscription and its assignment-time callbacks,
// then a terminal ack-mode method (AutoAck, AtmostOnce, ManualAck,
// ManualCommit) starts a ConsumerEventLoop that owns the underlying
// *kafka.Consumer exclusively and exposes delivered records as a
// MessageStream.
//
// The event loop is the only goroutine that touches the consumer while
// the subscription runs. Acknowledging or committing an offset crosses
// into it through a request channel; seeks requested from an
// assignment callback are queued and applied after the callback
// returns, before the next poll. Downstream backpressure is absorbed by pausing fetch for a
// partition whose buffer is full rather than blocking Poll, so the
// consumer group heartbeat (carried by Poll itself) never stalls
// behind a slow application.
//
// ManualCommitMode never commits implicitly, including on Close: the
// application owns every commit for that mode.
package receiver
