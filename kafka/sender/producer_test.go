// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package sender

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProducerHandle_Close_NeverConstructed_IsNoop(t *testing.T) {
	h := newProducerHandle(NewConfig("localhost:9092"))

	assert.False(t, h.hasProducer())
	assert.NoError(t, h.close())
	assert.False(t, h.hasProducer())
}

func TestProducerHandle_Close_IsIdempotent(t *testing.T) {
	h := newProducerHandle(NewConfig("localhost:9092"))

	err1 := h.close()
	err2 := h.close()
	assert.Equal(t, err1, err2)
}
