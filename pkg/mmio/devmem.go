// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmio

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem is a Mapper backed by /dev/mem. Each Map call mmaps the page
// containing the requested address and keeps it mapped until Unmap.
type DevMem struct {
	f *os.File
}

func OpenDevMem() (*DevMem, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("open /dev/mem: %w", err)
	}
	return &DevMem{f}, nil
}

func (m *DevMem) Map(addr uint32) (Register, error) {
	ps := unix.Getpagesize()
	page := int64(addr) &^ int64(ps-1)
	mem, err := unix.Mmap(int(m.f.Fd()), page, ps,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %#08x: %w", addr, err)
	}
	return &devReg{mem: mem, off: uintptr(int64(addr) - page)}, nil
}

func (m *DevMem) Close() error {
	return m.f.Close()
}

type devReg struct {
	mem []byte
	off uintptr
}

func (r *devReg) word() *uint32 {
	return (*uint32)(unsafe.Pointer(&r.mem[r.off]))
}

func (r *devReg) Bit(n uint) bool {
	return *r.word()&(1<<n) != 0
}

func (r *devReg) SetBit(n uint) {
	w := r.word()
	*w = *w | 1<<n
}

func (r *devReg) ClearBit(n uint) {
	w := r.word()
	*w = *w &^ (1 << n)
}

func (r *devReg) Unmap() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
