// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mmio drives an LPC214x two-wire controller through its memory-mapped
// register block.
package mmio

import (
	"fmt"
	"sync/atomic"

	i2cm "github.com/ZaparooProject/go-i2cm"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/pmem"
)

// Physical base addresses of the two controllers.
const (
	I2C0Base uint64 = 0xE001C000
	I2C1Base uint64 = 0xE005C000
)

// registers mirrors the controller register block. Only the low byte or
// half-word of each register is implemented by the hardware.
type registers struct {
	conset uint32 // 0x00 I2CONSET
	stat   uint32 // 0x04 I2STAT
	dat    uint32 // 0x08 I2DAT
	adr    uint32 // 0x0C I2ADR, slave mode only
	sclh   uint32 // 0x10 I2SCLH
	scll   uint32 // 0x14 I2SCLL
	conclr uint32 // 0x18 I2CONCLR
}

// Controller implements i2cm.Controller on a mapped register block.
type Controller struct {
	regs *registers
	base uint64
}

var _ i2cm.Controller = (*Controller)(nil)

// Open maps the register block at base. It needs access to physical memory,
// which usually means running as root.
func Open(base uint64) (*Controller, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	var regs *registers
	if err := pmem.MapAsPOD(base, &regs); err != nil {
		return nil, fmt.Errorf("failed to map controller at 0x%08X: %w", base, err)
	}
	return &Controller{regs: regs, base: base}, nil
}

// ControlSet writes I2CONSET. Bits written as zero are left unchanged.
func (c *Controller) ControlSet(bits uint8) {
	atomic.StoreUint32(&c.regs.conset, uint32(bits))
}

// ControlClear writes I2CONCLR. Bits written as zero are left unchanged.
func (c *Controller) ControlClear(bits uint8) {
	atomic.StoreUint32(&c.regs.conclr, uint32(bits))
}

// Control reads I2CONSET.
func (c *Controller) Control() uint8 {
	return uint8(atomic.LoadUint32(&c.regs.conset))
}

// Status reads I2STAT.
func (c *Controller) Status() uint8 {
	return uint8(atomic.LoadUint32(&c.regs.stat))
}

// Data reads I2DAT.
func (c *Controller) Data() uint8 {
	return uint8(atomic.LoadUint32(&c.regs.dat))
}

// SetData writes I2DAT.
func (c *Controller) SetData(b uint8) {
	atomic.StoreUint32(&c.regs.dat, uint32(b))
}

// SetClockDivisors writes I2SCLH and I2SCLL.
func (c *Controller) SetClockDivisors(high, low uint16) {
	atomic.StoreUint32(&c.regs.sclh, uint32(high))
	atomic.StoreUint32(&c.regs.scll, uint32(low))
}

// String names the register block.
func (c *Controller) String() string {
	return fmt.Sprintf("LPC214x I2C @ 0x%08X", c.base)
}
