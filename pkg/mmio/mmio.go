// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmio maps physical hardware registers into the process and
// exposes them as single-bit read-modify-write handles.
//
// A Register deliberately has no full-word write operation. Every mutation
// goes through SetBit/ClearBit so a caller can never clobber unrelated bits
// of the addressable word.
package mmio

// Register is one hardware control word mapped into the process.
type Register interface {
	// Bit reports whether bit n of the word is set.
	Bit(n uint) bool
	// SetBit sets bit n, leaving all other bits untouched.
	SetBit(n uint)
	// ClearBit clears bit n, leaving all other bits untouched.
	ClearBit(n uint)
	// Unmap releases the mapping. Safe to call more than once.
	Unmap() error
}

// Mapper creates Registers from physical addresses.
type Mapper interface {
	Map(addr uint32) (Register, error)
	Close() error
}
