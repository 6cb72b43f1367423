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

// Package testing provides a register-level simulation of an LPC214x two-wire
// controller and virtual peripherals to attach to it.
//
// VirtualController implements the register interface used by the bus engine.
// It reacts to control register writes the way the hardware does: a start
// request produces a start phase, a byte loaded into the data register is
// clocked out when SI is cleared, receive phases clock a byte in from the
// addressed peripheral, and a stop request releases the bus. Every bus
// condition is appended to an event log for assertions.
package testing

import (
	"fmt"

	"github.com/ZaparooProject/go-i2cm/internal/syncutil"
)

// Master mode status codes.
const (
	statBusError  = 0x00
	statStart     = 0x08
	statRepStart  = 0x10
	statAddrWAck  = 0x18
	statAddrWNack = 0x20
	statDataWAck  = 0x28
	statDataWNack = 0x30
	statArbLost   = 0x38
	statAddrRAck  = 0x40
	statAddrRNack = 0x48
	statDataRAck  = 0x50
	statDataRNack = 0x58
	statIdle      = 0xF8
)

// Control register bits.
const (
	conAA   = 1 << 2
	conSI   = 1 << 3
	conSTO  = 1 << 4
	conSTA  = 1 << 5
	conI2EN = 1 << 6
)

// EventKind identifies a bus condition in the event log.
type EventKind int

const (
	EventEnable EventKind = iota
	EventStart
	EventRepeatedStart
	EventAddress
	EventWrite
	EventRead
	EventStop
	EventArbitrationLost
	EventBusError
)

var eventNames = [...]string{
	EventEnable:          "ENABLE",
	EventStart:           "START",
	EventRepeatedStart:   "RESTART",
	EventAddress:         "ADDR",
	EventWrite:           "WRITE",
	EventRead:            "READ",
	EventStop:            "STOP",
	EventArbitrationLost: "ARBLOST",
	EventBusError:        "BUSERR",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one entry of the bus log. Byte and Ack are only meaningful for
// address, write and read events; for reads Ack is the level of AA while the
// byte was clocked in.
type Event struct {
	Kind EventKind
	Byte byte
	Ack  bool
}

func (e Event) String() string {
	switch e.Kind {
	case EventAddress, EventWrite, EventRead:
		ack := "NACK"
		if e.Ack {
			ack = "ACK"
		}
		return fmt.Sprintf("%s 0x%02X %s", e.Kind, e.Byte, ack)
	default:
		return e.Kind.String()
	}
}

// Peripheral is a target device attached to the simulated bus.
type Peripheral interface {
	// Start is called on every start and repeated start condition.
	Start()
	// Address is called when the peripheral's address is on the bus and
	// returns whether it acknowledges.
	Address(read bool) bool
	// WriteByte receives a byte from the master and returns whether it
	// acknowledges.
	WriteByte(b byte) bool
	// ReadByte returns the next byte for the master. ack is the master's
	// answer to that byte.
	ReadByte(ack bool) byte
	// Stop is called on every stop condition.
	Stop()
}

// VirtualController simulates the register block of a two-wire controller in
// master mode.
type VirtualController struct {
	peripherals  map[uint16]Peripheral
	target       Peripheral
	events       []Event
	enables      int
	siClears     int
	polls        int
	stopRequests int
	latency      int
	siDelay      int
	arbAfter     int
	txBytes      int
	mu           syncutil.Mutex
	sclh         uint16
	scll         uint16
	con          uint8
	stat         uint8
	dat          uint8
	loaded       bool
	owned        bool
	wedged       bool
	busErr       bool
	rxPending    bool
}

// NewVirtualController creates a disabled controller with no peripherals.
func NewVirtualController() *VirtualController {
	return &VirtualController{
		peripherals: make(map[uint16]Peripheral),
		stat:        statIdle,
		arbAfter:    -1,
	}
}

// Attach connects a peripheral at the 7-bit address addr.
func (v *VirtualController) Attach(addr uint16, p Peripheral) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.peripherals[addr] = p
}

// SetLatency makes SI appear only after the given number of Control reads,
// as if the bus were clocked slowly.
func (v *VirtualController) SetLatency(polls int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.latency = polls
}

// SetWedged freezes the controller: SI is never set and STO never clears.
func (v *VirtualController) SetWedged(wedged bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wedged = wedged
}

// LoseArbitration makes the next transmit phase lose arbitration once
// afterBytes data bytes of the current transaction have been sent. Zero loses
// arbitration on the address byte.
func (v *VirtualController) LoseArbitration(afterBytes int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.arbAfter = afterBytes
}

// InjectBusError makes the next bus action report an illegal bus condition.
func (v *VirtualController) InjectBusError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busErr = true
}

// ControlSet implements the I2CONSET write.
func (v *VirtualController) ControlSet(bits uint8) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if bits&conI2EN != 0 && v.con&conI2EN == 0 {
		v.enables++
		v.log(Event{Kind: EventEnable})
	}
	if bits&conSTO != 0 {
		v.stopRequests++
	}
	v.con |= bits
	v.advance()
}

// ControlClear implements the I2CONCLR write.
func (v *VirtualController) ControlClear(bits uint8) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if bits&conSI != 0 && v.con&conSI != 0 {
		v.siClears++
	}
	v.con &^= bits
	if v.con&conI2EN == 0 {
		v.owned = false
		v.target = nil
		v.stat = statIdle
	}
	v.advance()
}

// Control implements the I2CONSET read.
func (v *VirtualController) Control() uint8 {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.polls++
	if v.rxPending && v.con&(conSI|conSTO|conSTA) == 0 {
		v.rxPending = false
		v.receive()
	}
	if v.con&conSI != 0 && v.siDelay > 0 {
		v.siDelay--
		return v.con &^ conSI
	}
	return v.con
}

// Status implements the I2STAT read.
func (v *VirtualController) Status() uint8 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.con&conSI == 0 {
		return statIdle
	}
	return v.stat
}

// Data implements the I2DAT read.
func (v *VirtualController) Data() uint8 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dat
}

// SetData implements the I2DAT write.
func (v *VirtualController) SetData(b uint8) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dat = b
	v.loaded = true
}

// SetClockDivisors implements the I2SCLH and I2SCLL writes.
func (v *VirtualController) SetClockDivisors(high, low uint16) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sclh = high
	v.scll = low
}

// advance performs the bus action selected by the registers. The controller
// only acts while it is enabled and SI is clear.
func (v *VirtualController) advance() {
	if v.con&conI2EN == 0 || v.con&conSI != 0 || v.wedged {
		return
	}

	if v.con&conSTO != 0 {
		v.stop()
		if v.con&conSTA == 0 {
			return
		}
	}

	switch {
	case v.busErr && (v.con&conSTA != 0 || v.loaded || v.receiving()):
		v.busErr = false
		v.rxPending = false
		v.owned = false
		v.target = nil
		v.loaded = false
		v.stat = statBusError
		v.log(Event{Kind: EventBusError})
		v.raiseSI()

	case v.con&conSTA != 0:
		v.start()

	case v.loaded && (v.stat == statStart || v.stat == statRepStart):
		v.address()

	case v.loaded && (v.stat == statAddrWAck || v.stat == statDataWAck):
		v.transmit()

	case v.receiving():
		// The byte is clocked in on the next poll so that a stop or
		// restart requested right after SI is cleared abandons it.
		v.rxPending = true
	}
}

func (v *VirtualController) receiving() bool {
	return v.stat == statAddrRAck || v.stat == statDataRAck
}

func (v *VirtualController) start() {
	kind, stat := EventStart, uint8(statStart)
	if v.owned {
		kind, stat = EventRepeatedStart, statRepStart
	}
	v.owned = true
	v.target = nil
	v.rxPending = false
	v.txBytes = 0
	v.stat = stat
	v.log(Event{Kind: kind})
	for _, p := range v.peripherals {
		p.Start()
	}
	v.raiseSI()
}

func (v *VirtualController) stop() {
	v.con &^= conSTO
	v.rxPending = false
	if v.owned {
		v.log(Event{Kind: EventStop})
		for _, p := range v.peripherals {
			p.Stop()
		}
	}
	v.owned = false
	v.target = nil
	v.loaded = false
	v.stat = statIdle
}

func (v *VirtualController) address() {
	v.loaded = false
	if v.loseArbitration() {
		return
	}

	read := v.dat&0x01 != 0
	p, ok := v.peripherals[uint16(v.dat>>1)]
	acked := ok && p.Address(read)
	v.log(Event{Kind: EventAddress, Byte: v.dat, Ack: acked})

	switch {
	case acked && read:
		v.target = p
		v.stat = statAddrRAck
	case acked:
		v.target = p
		v.stat = statAddrWAck
	case read:
		v.stat = statAddrRNack
	default:
		v.stat = statAddrWNack
	}
	v.raiseSI()
}

func (v *VirtualController) transmit() {
	v.loaded = false
	if v.loseArbitration() {
		return
	}

	acked := v.target != nil && v.target.WriteByte(v.dat)
	v.txBytes++
	v.log(Event{Kind: EventWrite, Byte: v.dat, Ack: acked})
	if acked {
		v.stat = statDataWAck
	} else {
		v.stat = statDataWNack
	}
	v.raiseSI()
}

func (v *VirtualController) receive() {
	ack := v.con&conAA != 0
	var b byte = 0xFF
	if v.target != nil {
		b = v.target.ReadByte(ack)
	}
	v.dat = b
	v.log(Event{Kind: EventRead, Byte: b, Ack: ack})
	if ack {
		v.stat = statDataRAck
	} else {
		v.stat = statDataRNack
	}
	v.raiseSI()
}

// loseArbitration reports and performs an injected arbitration loss.
func (v *VirtualController) loseArbitration() bool {
	if v.arbAfter < 0 || v.txBytes < v.arbAfter {
		return false
	}
	v.arbAfter = -1
	v.owned = false
	v.target = nil
	v.stat = statArbLost
	v.log(Event{Kind: EventArbitrationLost})
	v.raiseSI()
	return true
}

func (v *VirtualController) raiseSI() {
	v.con |= conSI
	v.siDelay = v.latency
}

func (v *VirtualController) log(e Event) {
	v.events = append(v.events, e)
}

// Events returns a copy of the event log.
func (v *VirtualController) Events() []Event {
	v.mu.Lock()
	defer v.mu.Unlock()
	events := make([]Event, len(v.events))
	copy(events, v.events)
	return events
}

// ClearEvents empties the event log and resets the counters.
func (v *VirtualController) ClearEvents() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = nil
	v.siClears = 0
	v.polls = 0
	v.stopRequests = 0
}

// Enables returns how often the controller went from disabled to enabled.
func (v *VirtualController) Enables() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enables
}

// SIClears returns how many completed phases have been acknowledged.
func (v *VirtualController) SIClears() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.siClears
}

// Polls returns how many times the control register was read.
func (v *VirtualController) Polls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.polls
}

// StopRequests returns how many times STO was set.
func (v *VirtualController) StopRequests() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopRequests
}

// Divisors returns the programmed SCL high and low divisors.
func (v *VirtualController) Divisors() (high, low uint16) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sclh, v.scll
}

// BusHeld reports whether the simulated master still owns the bus.
func (v *VirtualController) BusHeld() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.owned
}

// AckAsserted reports whether AA is currently set.
func (v *VirtualController) AckAsserted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.con&conAA != 0
}

// Enabled reports whether I2EN is set.
func (v *VirtualController) Enabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.con&conI2EN != 0
}
