// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pci reads PCI configuration space through the legacy
// configuration access mechanism #1 (I/O ports 0xCF8/0xCFC).
package pci

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	cfgCtrlPort = 0xcf8
	cfgDataPort = 0xcfc
	cfgEnable   = 0x80000000
)

// Port is the CPU I/O port space. /dev/port in production, a fake in tests.
type Port interface {
	io.ReaderAt
	io.WriterAt
	Close() error
}

// Config gives serialized access to PCI configuration space.
//
// The configuration ports are stateful: the data read at 0xCFC returns
// whatever register the last write to 0xCF8 selected. Every address-write +
// data-read pair therefore runs under one mutex for the whole process.
type Config struct {
	mu sync.Mutex
	p  Port
}

// OpenConfig opens the I/O port space through /dev/port. Requires
// CAP_SYS_RAWIO, same as any other raw port access.
func OpenConfig() (*Config, error) {
	p, err := os.OpenFile("/dev/port", os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open /dev/port: %w", err)
	}
	return &Config{p: p}, nil
}

// NewConfig wraps an already open port space.
func NewConfig(p Port) *Config {
	return &Config{p: p}
}

func cfgAddress(bus, dev, fn, reg uint8) uint32 {
	return cfgEnable | uint32(bus)<<16 | uint32(dev)<<11 | uint32(fn)<<8 | uint32(reg)
}

// Read32 reads one 32-bit register from the configuration space of
// bus:dev.fn.
func (c *Config) Read32(bus, dev, fn, reg uint8) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], cfgAddress(bus, dev, fn, reg))
	if _, err := c.p.WriteAt(b[:], cfgCtrlPort); err != nil {
		return 0, fmt.Errorf("config address write: %w", err)
	}
	if _, err := c.p.ReadAt(b[:], cfgDataPort); err != nil {
		return 0, fmt.Errorf("config data read: %w", err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (c *Config) Close() error {
	return c.p.Close()
}
