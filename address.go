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

package i2cm

import "fmt"

// Direction is the data direction of a transfer, carried in the low bit of the
// address byte.
type Direction uint8

const (
	// Write transmits bytes from the buffer to the target.
	Write Direction = 0
	// Read receives bytes from the target into the buffer.
	Read Direction = 1
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

// MaxAddress is the highest 7-bit target address.
const MaxAddress = 0x7F

// probeAddress is the address byte used for the warm-up transfer. It selects
// the reserved address 0x7F for reading.
const probeAddress byte = 0xFF

// WriteAddress returns the address byte that selects target for writing.
func WriteAddress(target uint16) byte {
	return byte(target&MaxAddress) << 1
}

// ReadAddress returns the address byte that selects target for reading.
func ReadAddress(target uint16) byte {
	return byte(target&MaxAddress)<<1 | byte(Read)
}

// DirectionOf returns the direction encoded in an address byte.
func DirectionOf(addr byte) Direction {
	return Direction(addr & 0x01)
}

// TargetOf returns the 7-bit target address encoded in an address byte.
func TargetOf(addr byte) uint16 {
	return uint16(addr >> 1)
}

func checkAddress(target uint16) error {
	if target > MaxAddress {
		return fmt.Errorf("%w: 0x%X", ErrInvalidAddress, target)
	}
	return nil
}
