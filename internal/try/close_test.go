// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package try

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestClose(t *testing.T) {
	t.Run("no prior error, closer succeeds", func(t *testing.T) {
		var err error
		Close(&err, closerFunc(func() error { return nil }))
		assert.NoError(t, err)
	})

	t.Run("no prior error, closer fails", func(t *testing.T) {
		closeErr := errors.New("close failed")
		var err error
		Close(&err, closerFunc(func() error { return closeErr }))
		assert.ErrorIs(t, err, closeErr)
	})

	t.Run("prior error and closer failure are both preserved", func(t *testing.T) {
		priorErr := errors.New("prior")
		closeErr := errors.New("close failed")
		err := priorErr
		Close(&err, closerFunc(func() error { return closeErr }))
		assert.ErrorIs(t, err, priorErr)
		assert.ErrorIs(t, err, closeErr)
	})

	t.Run("prior error, closer succeeds", func(t *testing.T) {
		priorErr := errors.New("prior")
		err := priorErr
		Close(&err, closerFunc(func() error { return nil }))
		assert.Same(t, priorErr, err)
	})
}
