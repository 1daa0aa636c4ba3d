// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hddled

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrInvalidInput reports a control write that is not a decimal integer.
// The hardware is left untouched.
var ErrInvalidInput = errors.New("invalid control value")

// Session is one open control handle to a single LED.
//
// Read produces the current state as a single decimal digit exactly once,
// then reports io.EOF for the rest of the session, so a reading program
// sees one value and a clean end-of-stream instead of an endless repeat.
// Write accepts a decimal integer and applies its low two bits.
type Session struct {
	r      *Registry
	id     LedID
	served bool
}

// NewSession opens a control session for the given LED. The one-shot read
// state belongs to the session; opening a new session resets it.
func NewSession(r *Registry, id LedID) *Session {
	return &Session{r: r, id: id}
}

func (s *Session) Read(p []byte) (int, error) {
	if s.served {
		return 0, io.EOF
	}
	st, err := s.r.Get(s.id)
	if err != nil {
		return 0, err
	}
	d := strconv.Itoa(int(st))
	if len(p) < len(d) {
		return 0, io.ErrShortBuffer
	}
	s.served = true
	return copy(p, d), nil
}

func (s *Session) Write(p []byte) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(string(p)))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInput, string(p))
	}
	if err := s.r.Set(s.id, DecodeState(uint32(v))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close discards the session. It has no hardware effect.
func (s *Session) Close() error {
	return nil
}
