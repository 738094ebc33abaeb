// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package sender provides a reactive-style producer built on top of
// confluent-kafka-go: a Sender lazily owns one underlying
// *kafka.Producer, and every send goes through a SendPipeline that
// bounds in-flight records and publishes delivery Results on a
// channel instead of blocking the caller for each one individually.
package sender
