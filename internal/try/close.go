// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package try holds the one defer-friendly idiom this module needed
// more than once: folding a Close error into a function's named
// return without ever discarding whatever error was already there.
package try

import (
	"errors"
	"io"
)

// Close closes c and joins any resulting error into *err, preserving
// whatever error *err already held. Intended for a deferred
// try.Close(&err, consumer) at the end of a shutdown path, so a
// failed Consumer/Producer Close is never silently swallowed behind
// an earlier, more specific error.
func Close(err *error, c io.Closer) {
	cerr := c.Close()
	if cerr == nil {
		return
	}
	if *err == nil {
		*err = cerr
		return
	}
	*err = errors.Join(*err, cerr)
}
