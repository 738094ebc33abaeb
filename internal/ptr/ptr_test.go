// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package ptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRef(t *testing.T) {
	p := Ref(42)
	assert.Equal(t, 42, *p)

	s := Ref("topic")
	assert.Equal(t, "topic", *s)
}
