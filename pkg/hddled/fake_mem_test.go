// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hddled

import (
	"errors"

	"github.com/u-root/hddled/pkg/mmio"
)

// fakeMem is a word-backed Mapper. Registers mapped at the same address
// share a word, mappings are counted so tests can assert that rollback and
// teardown release everything exactly once.
type fakeMem struct {
	words        map[uint32]*uint32
	maps         []uint32
	mapped       int
	doubleUnmaps int
	// fail the (failAfter+1)th Map call; -1 never fails
	failAfter int
}

func newFakeMem() *fakeMem {
	return &fakeMem{words: make(map[uint32]*uint32), failAfter: -1}
}

func (m *fakeMem) preset(addr, val uint32) {
	w := val
	m.words[addr] = &w
}

func (m *fakeMem) word(addr uint32) uint32 {
	if w, ok := m.words[addr]; ok {
		return *w
	}
	return 0
}

func (m *fakeMem) Map(addr uint32) (mmio.Register, error) {
	if m.failAfter >= 0 && len(m.maps) >= m.failAfter {
		return nil, errors.New("mmap failed")
	}
	m.maps = append(m.maps, addr)
	w, ok := m.words[addr]
	if !ok {
		w = new(uint32)
		m.words[addr] = w
	}
	m.mapped++
	return &fakeReg{word: w, m: m}, nil
}

func (m *fakeMem) Close() error {
	return nil
}

type fakeReg struct {
	word     *uint32
	m        *fakeMem
	unmapped bool
}

func (r *fakeReg) Bit(n uint) bool {
	return *r.word&(1<<n) != 0
}

func (r *fakeReg) SetBit(n uint) {
	*r.word |= 1 << n
}

func (r *fakeReg) ClearBit(n uint) {
	*r.word &^= 1 << n
}

func (r *fakeReg) Unmap() error {
	if r.unmapped {
		r.m.doubleUnmaps++
		return nil
	}
	r.unmapped = true
	r.m.mapped--
	return nil
}
