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

package testing

import (
	"fmt"

	"github.com/ZaparooProject/go-i2cm/internal/syncutil"
)

// MemoryDevice is a 256-byte register file peripheral in the style of small
// serial EEPROMs and sensor chips. The first byte of a write transaction sets
// the register pointer, further bytes are stored at the pointer. Reads return
// bytes from the pointer. The pointer increments after every access and wraps.
//
// Protocol mistakes by the master, such as ending a read without NACKing the
// last byte, are recorded as violations instead of failing the transfer.
type MemoryDevice struct {
	mem        [256]byte
	received   []byte
	violations []string
	nackAfter  int
	written    int
	read       int
	mu         syncutil.Mutex
	pointer    uint8
	addressed  bool
	reading    bool
	setPointer bool
	lastAck    bool
}

// NewMemoryDevice creates a device with all registers cleared.
func NewMemoryDevice() *MemoryDevice {
	return &MemoryDevice{}
}

// Load copies data into the register file at offset.
func (d *MemoryDevice) Load(offset uint8, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, b := range data {
		d.mem[offset+uint8(i)] = b
	}
}

// Register returns the value of one register.
func (d *MemoryDevice) Register(offset uint8) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem[offset]
}

// NACKAfter makes the device refuse the n-th data byte of every write
// transaction (1-based). Zero accepts everything.
func (d *MemoryDevice) NACKAfter(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nackAfter = n
}

// Received returns every data byte written to the device, in bus order.
func (d *MemoryDevice) Received() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	received := make([]byte, len(d.received))
	copy(received, d.received)
	return received
}

// Violations returns the protocol violations seen so far.
func (d *MemoryDevice) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	violations := make([]string, len(d.violations))
	copy(violations, d.violations)
	return violations
}

// Start implements Peripheral.
func (d *MemoryDevice) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endTransaction("repeated start")
}

// Stop implements Peripheral.
func (d *MemoryDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.endTransaction("stop")
}

func (d *MemoryDevice) endTransaction(cond string) {
	if d.addressed && d.reading && d.read > 0 && d.lastAck {
		d.violations = append(d.violations, fmt.Sprintf("%s after ACKed read byte", cond))
	}
	d.addressed = false
	d.reading = false
}

// Address implements Peripheral.
func (d *MemoryDevice) Address(read bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addressed = true
	d.reading = read
	d.setPointer = !read
	d.written = 0
	d.read = 0
	return true
}

// WriteByte implements Peripheral.
func (d *MemoryDevice) WriteByte(b byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.addressed || d.reading {
		d.violations = append(d.violations, fmt.Sprintf("write 0x%02X while not addressed for writing", b))
		return false
	}

	d.written++
	d.received = append(d.received, b)
	if d.nackAfter > 0 && d.written >= d.nackAfter {
		return false
	}

	if d.setPointer {
		d.pointer = b
		d.setPointer = false
		return true
	}
	d.mem[d.pointer] = b
	d.pointer++
	return true
}

// ReadByte implements Peripheral.
func (d *MemoryDevice) ReadByte(ack bool) byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.addressed || !d.reading {
		d.violations = append(d.violations, "read while not addressed for reading")
		return 0xFF
	}
	if d.read > 0 && !d.lastAck {
		d.violations = append(d.violations, "read continued after NACK")
	}

	b := d.mem[d.pointer]
	d.pointer++
	d.read++
	d.lastAck = ack
	return b
}
