// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hddled drives the bicolor HDD indicator LEDs on Terramaster NAS
// appliances built on the Intel Celeron J33xx.
//
// Each physical LED is wired to two single-bit GPIO registers, one per
// color. The register block lives at a fixed offset from the SoC base
// address announced in PCI configuration space. The layout below was
// recovered from the vendor's led_drv_TMJ33 module and must not change:
// moving any offset breaks real hardware.
package hddled

import (
	"errors"
	"fmt"
	"sync"

	"github.com/u-root/hddled/pkg/logger"
	"github.com/u-root/hddled/pkg/mmio"
	"go.uber.org/multierr"
)

var log = logger.LogContainer.GetSimpleLogger()

const (
	// Leds is the number of physical HDD LEDs on the reference boards
	// (F5-221; the two-bay boards simply leave the upper three dark).
	Leds = 5

	// Green bits sit at base+0xC505B8 in strides of 0x8 (GPIO23..27).
	// The red bit of the same physical LED is 0x28 above its green bit
	// (GPIO28..32).
	greenBase = 0xC505B8
	ledStride = 0x8
	redOffset = 0x28

	// Both colors drive bit 0 of their register word. Green is wired
	// active-low, red active-high.
	ledBit = 0
)

// LedID identifies one physical LED, numbered 1 through Leds to match the
// labels on the chassis.
type LedID int

// ErrBadLed reports a LED id outside [1, Leds].
var ErrBadLed = errors.New("led id out of range")

func greenAddr(base uint32, id LedID) uint32 {
	return base + greenBase + uint32(id-1)*ledStride
}

func redAddr(base uint32, id LedID) uint32 {
	return greenAddr(base, id) + redOffset
}

type led struct {
	mu    sync.Mutex
	green mmio.Register
	red   mmio.Register
}

// Registry owns the mapped registers of all LEDs. Each LedID resolves to
// exactly one register pair and the pairs are never shared, so writing one
// LED cannot disturb another.
type Registry struct {
	leds [Leds]*led
}

// Open maps the register pair of every LED relative to base and forces all
// LEDs off, so the post-init state does not depend on what the hardware
// powered on with.
//
// If any mapping fails, everything mapped so far is released before the
// error is returned.
func Open(base uint32, m mmio.Mapper) (*Registry, error) {
	r := &Registry{}
	for i := range r.leds {
		id := LedID(i + 1)
		g, err := m.Map(greenAddr(base, id))
		if err != nil {
			r.unmapAll()
			return nil, fmt.Errorf("map led %d green: %w", id, err)
		}
		rd, err := m.Map(redAddr(base, id))
		if err != nil {
			g.Unmap()
			r.unmapAll()
			return nil, fmt.Errorf("map led %d red: %w", id, err)
		}
		r.leds[i] = &led{green: g, red: rd}
	}
	for i := range r.leds {
		if err := r.Set(LedID(i+1), Off); err != nil {
			r.unmapAll()
			return nil, err
		}
	}
	log.Infof("Mapped %d LED register pairs at base %#08x", Leds, base)
	return r, nil
}

func (r *Registry) led(id LedID) (*led, error) {
	if id < 1 || id > Leds {
		return nil, fmt.Errorf("%w: %d", ErrBadLed, id)
	}
	return r.leds[id-1], nil
}

// Get reads the current state of one LED from the hardware.
func (r *Registry) Get(id LedID) (State, error) {
	l, err := r.led(id)
	if err != nil {
		return Off, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Off
	if !l.green.Bit(ledBit) {
		s |= Green
	}
	if l.red.Bit(ledBit) {
		s |= Red
	}
	return s, nil
}

// Set drives one LED to the given state. The green and red bits are two
// independent read-modify-write operations; bits other than the LED's own
// are never touched.
func (r *Registry) Set(id LedID, s State) error {
	l, err := r.led(id)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if s.greenOn() {
		l.green.ClearBit(ledBit)
	} else {
		l.green.SetBit(ledBit)
	}
	if s.redOn() {
		l.red.SetBit(ledBit)
	} else {
		l.red.ClearBit(ledBit)
	}
	return nil
}

// Close unmaps every register pair. Calling it again is a no-op.
func (r *Registry) Close() error {
	var err error
	for _, l := range r.leds {
		if l == nil {
			continue
		}
		l.mu.Lock()
		err = multierr.Append(err, l.green.Unmap())
		err = multierr.Append(err, l.red.Unmap())
		l.mu.Unlock()
	}
	return err
}

func (r *Registry) unmapAll() {
	for _, l := range r.leds {
		if l == nil {
			continue
		}
		l.green.Unmap()
		l.red.Unmap()
	}
}
