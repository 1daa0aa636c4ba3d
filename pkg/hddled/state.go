// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hddled

// State is the logical state of one bicolor LED. Bit 0 means the green
// color is lit, bit 1 means the red color is lit. The two-bit encoding is
// also the wire value the control endpoints speak.
type State uint8

const (
	Off   State = 0
	Green State = 1
	Red   State = 2
	Both  State = 3
)

// DecodeState interprets the low two bits of v. Higher bits are ignored,
// not rejected, so writing e.g. 7 lights both colors.
func DecodeState(v uint32) State {
	return State(v & 3)
}

func (s State) greenOn() bool {
	return s&Green != 0
}

func (s State) redOn() bool {
	return s&Red != 0
}

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case Green:
		return "green"
	case Red:
		return "red"
	case Both:
		return "both"
	}
	return "invalid"
}
