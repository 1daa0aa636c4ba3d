// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hddled

import (
	"github.com/u-root/hddled/pkg/pci"
)

const (
	// The GPIO controller base is announced in BAR0 of PCI 0:0d.0.
	pciBus  = 0
	pciDev  = 0x0d
	pciFn   = 0
	pciBar0 = 0x10

	// FallbackBase is the controller base on the reference boards, used
	// whenever the probe cannot answer.
	FallbackBase = 0xD0000000

	// BAR values carry flag bits; the register block is 4KB aligned.
	baseMask = 0xFFFFF000

	noDevice = 0xFFFFFFFF
)

// ResolveBase discovers the physical base address of the GPIO controller
// from PCI configuration space. The address shifts between board revisions,
// so the probed value wins whenever the bus answers at all; the all-ones
// "no device" response and plain probe failures both degrade to
// FallbackBase. There is deliberately no error return.
func ResolveBase(c *pci.Config) uint32 {
	v, err := c.Read32(pciBus, pciDev, pciFn, pciBar0)
	if err != nil {
		log.Warnf("PCI probe for GPIO base failed, using fallback %#08x: %v",
			uint32(FallbackBase), err)
		return FallbackBase
	}
	if v == noDevice {
		log.Warnf("PCI %d:%02x.%d reads as no device, using fallback %#08x",
			pciBus, pciDev, pciFn, uint32(FallbackBase))
		return FallbackBase
	}
	return v & baseMask
}
