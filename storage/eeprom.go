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

package storage

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// EEPROMConfig describes a 24Cxx part. Parts larger than 256 bytes select the
// upper blocks through the low bits of the device address.
type EEPROMConfig struct {
	Size       int
	PageSize   int
	WriteCycle time.Duration
}

// EEPROM24C02 is the 2 kbit part used for settings on the reference board.
var EEPROM24C02 = EEPROMConfig{Size: 256, PageSize: 8, WriteCycle: 5 * time.Millisecond}

// DefaultEEPROMAddress is the 7-bit address of a 24Cxx with A0-A2 tied low.
const DefaultEEPROMAddress = 0x50

const blockSize = 256

var errWriteCycle = errors.New("eeprom did not finish its write cycle")

// EEPROM is a Medium on a 24Cxx serial EEPROM.
type EEPROM struct {
	bus  i2c.Bus
	cfg  EEPROMConfig
	addr uint16
}

var _ Medium = (*EEPROM)(nil)

// NewEEPROM returns an EEPROM at addr on bus.
func NewEEPROM(bus i2c.Bus, addr uint16, cfg EEPROMConfig) (*EEPROM, error) {
	if cfg.Size <= 0 || cfg.PageSize <= 0 || cfg.PageSize&(cfg.PageSize-1) != 0 {
		return nil, fmt.Errorf("invalid EEPROM geometry: size %d, page %d", cfg.Size, cfg.PageSize)
	}
	return &EEPROM{bus: bus, cfg: cfg, addr: addr}, nil
}

func (e *EEPROM) dev(off int) *i2c.Dev {
	return &i2c.Dev{Bus: e.bus, Addr: e.addr + uint16(off/blockSize)}
}

// ReadAt reads with a dummy write of the word address followed by a repeated
// start, one 256-byte block at a time.
func (e *EEPROM) ReadAt(p []byte, off int64) (int, error) {
	pos := int(off)
	n := 0
	for n < len(p) {
		chunk := min(len(p)-n, blockSize-pos%blockSize)
		if err := e.dev(pos).Tx([]byte{byte(pos)}, p[n:n+chunk]); err != nil {
			return n, fmt.Errorf("eeprom read at %d: %w", pos, err)
		}
		n += chunk
		pos += chunk
	}
	return n, nil
}

// WriteAt writes page by page and waits for each internal write cycle.
func (e *EEPROM) WriteAt(p []byte, off int64) (int, error) {
	pos := int(off)
	n := 0
	buf := make([]byte, 1+e.cfg.PageSize)
	for n < len(p) {
		chunk := min(len(p)-n, e.cfg.PageSize-pos%e.cfg.PageSize)
		buf[0] = byte(pos)
		copy(buf[1:], p[n:n+chunk])
		d := e.dev(pos)
		if err := d.Tx(buf[:1+chunk], nil); err != nil {
			return n, fmt.Errorf("eeprom write at %d: %w", pos, err)
		}
		if err := e.waitReady(d); err != nil {
			return n, err
		}
		n += chunk
		pos += chunk
	}
	return n, nil
}

// waitReady polls the part with empty writes; it does not acknowledge its
// address until the write cycle is over.
func (e *EEPROM) waitReady(d *i2c.Dev) error {
	deadline := time.Now().Add(2 * e.cfg.WriteCycle)
	for {
		err := d.Tx(nil, nil)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %w", errWriteCycle, err)
		}
		time.Sleep(e.cfg.WriteCycle / 10)
	}
}

// Size returns the capacity of the part in bytes.
func (e *EEPROM) Size() int {
	return e.cfg.Size
}
