// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package ptr gives a value a home in a local before taking its
// address, for the many confluent-kafka-go struct fields (TopicPartition.Topic
// chief among them) that are declared as pointers but only ever need
// to alias a value this package already owns.
package ptr

// Ref returns a pointer to a copy of t. Useful for filling pointer
// fields of ckafka.TopicPartition literals (Topic is a *string) from a
// value that has no addressable home of its own, e.g. a map key.
func Ref[T any](t T) *T {
	return &t
}
