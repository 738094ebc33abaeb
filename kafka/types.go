// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"strconv"
	"time"
)

// Header is a single Kafka record header.
type Header struct {
	Key   string
	Value []byte
}

// TopicPartition identifies a single partition of a topic.
type TopicPartition struct {
	Topic     string
	Partition int32
}

// String implements fmt.Stringer.
func (tp TopicPartition) String() string {
	return tp.Topic + "[" + strconv.FormatInt(int64(tp.Partition), 10) + "]"
}

// PartitionInfo describes a single partition as returned by
// Sender.PartitionsFor, the Go analogue of the Kafka client's
// partitionsFor metadata call.
type PartitionInfo struct {
	Topic     string
	Partition int32
	Leader    int32
}

// Record is the read-only view of a delivered Kafka record: the
// payload plus its broker-assigned coordinates. It is embedded by
// receiver.ConsumerMessage and carries no acknowledgement state of its
// own.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
}

// TopicPartition returns the coordinates of this record.
func (r Record) TopicPartition() TopicPartition {
	return TopicPartition{Topic: r.Topic, Partition: r.Partition}
}

// Metadata is the broker-assigned placement of a record that has been
// successfully sent by a producer.
type Metadata struct {
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
}
