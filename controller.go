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

// Package i2cm implements a blocking I2C bus master on top of an LPC214x style
// two-wire controller.
//
// The Engine drives the controller one bus phase at a time: it issues a start
// condition, places the address byte on the bus, moves data bytes in or out of
// the caller's buffer and finally releases the bus with a stop condition. All
// register access goes through the Controller interface so the same engine runs
// against memory-mapped hardware (see package mmio) or a simulated controller
// in tests.
package i2cm

// Control register bits (I2CONSET / I2CONCLR).
const (
	// ConAA makes the controller acknowledge the next received byte.
	ConAA uint8 = 1 << 2
	// ConSI is set by the hardware when a bus phase has completed. Clearing it
	// lets the controller proceed with the next phase.
	ConSI uint8 = 1 << 3
	// ConSTO requests a stop condition. The hardware clears it once the stop
	// condition has been put on the bus.
	ConSTO uint8 = 1 << 4
	// ConSTA requests a start condition, or a repeated start when the bus is
	// still held by this master.
	ConSTA uint8 = 1 << 5
	// ConI2EN enables the controller.
	ConI2EN uint8 = 1 << 6

	// conAll clears every control flag.
	conAll uint8 = 0xFF
)

// Controller is the register set of a two-wire bus controller.
//
// Implementations must not cache register reads: the engine spins on Control
// until the hardware sets ConSI or clears ConSTO.
type Controller interface {
	// ControlSet sets the given bits in the control register.
	ControlSet(bits uint8)
	// ControlClear clears the given bits in the control register.
	ControlClear(bits uint8)
	// Control returns the current control register.
	Control() uint8
	// Status returns the status code of the current bus phase.
	Status() uint8
	// Data returns the last byte received from the bus.
	Data() uint8
	// SetData loads the next byte to transmit.
	SetData(b uint8)
	// SetClockDivisors programs the SCL high and low period divisors.
	SetClockDivisors(high, low uint16)
}
