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

// Phase is the bus condition reported by the controller after each clocked
// byte. The values are the master mode status codes of the hardware.
type Phase uint8

// Master transmitter and receiver phases.
const (
	PhaseBusError           Phase = 0x00
	PhaseStarted            Phase = 0x08
	PhaseRepeatedStarted    Phase = 0x10
	PhaseAddressWriteAcked  Phase = 0x18
	PhaseAddressWriteNacked Phase = 0x20
	PhaseDataWriteAcked     Phase = 0x28
	PhaseDataWriteNacked    Phase = 0x30
	PhaseArbitrationLost    Phase = 0x38
	PhaseAddressReadAcked   Phase = 0x40
	PhaseAddressReadNacked  Phase = 0x48
	PhaseDataReadAcked      Phase = 0x50
	PhaseDataReadNacked     Phase = 0x58
	PhaseNoInfo             Phase = 0xF8
)

var phaseNames = map[Phase]string{
	PhaseBusError:           "bus error",
	PhaseStarted:            "started",
	PhaseRepeatedStarted:    "repeated start",
	PhaseAddressWriteAcked:  "address+W acked",
	PhaseAddressWriteNacked: "address+W nacked",
	PhaseDataWriteAcked:     "data written, acked",
	PhaseDataWriteNacked:    "data written, nacked",
	PhaseArbitrationLost:    "arbitration lost",
	PhaseAddressReadAcked:   "address+R acked",
	PhaseAddressReadNacked:  "address+R nacked",
	PhaseDataReadAcked:      "data received, acked",
	PhaseDataReadNacked:     "data received, nacked",
	PhaseNoInfo:             "no information",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return fmt.Sprintf("0x%02X (%s)", uint8(p), name)
	}
	return fmt.Sprintf("0x%02X (unknown)", uint8(p))
}

// direction returns the transfer direction a phase belongs to. Start phases and
// failure phases that can occur in both directions report ok == false.
func (p Phase) direction() (Direction, bool) {
	//nolint:exhaustive // Only data-carrying phases have a direction
	switch p {
	case PhaseAddressWriteAcked, PhaseAddressWriteNacked,
		PhaseDataWriteAcked, PhaseDataWriteNacked:
		return Write, true
	case PhaseAddressReadAcked, PhaseAddressReadNacked,
		PhaseDataReadAcked, PhaseDataReadNacked:
		return Read, true
	default:
		return Write, false
	}
}
