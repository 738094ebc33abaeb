// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kafka holds the wire-adjacent types shared by the
// [github.com/zjpjohn/reactor-kafka/kafka/sender] and
// [github.com/zjpjohn/reactor-kafka/kafka/receiver] packages: headers,
// topic-partition coordinates, partition metadata, and the error kinds
// both sides of the client can return.
//
// Neither the Kafka wire protocol nor broker connectivity lives here;
// both packages build on github.com/confluentinc/confluent-kafka-go/v2
// for that, keeping this package free of cgo.
package kafka
