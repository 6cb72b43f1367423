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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedController replays a fixed sequence of status codes, one per phase,
// and records what the engine does with the registers.
type scriptedController struct {
	script  []uint8
	written []uint8
	rx      []uint8
	sets    []uint8
	clears  []uint8
	con     uint8
	pos     int
}

func (s *scriptedController) ControlSet(bits uint8) {
	s.sets = append(s.sets, bits)
	s.con |= bits
	if bits&ConSTO != 0 {
		s.con &^= ConSTO
	}
	if bits&ConSTA != 0 {
		s.con |= ConSI
	}
}

func (s *scriptedController) ControlClear(bits uint8) {
	s.clears = append(s.clears, bits)
	if bits&ConSI != 0 && s.con&ConSI != 0 {
		s.pos++
		s.con &^= ConSI
		if s.pos < len(s.script) {
			s.con |= ConSI
		}
		return
	}
	s.con &^= bits
}

func (s *scriptedController) Control() uint8 { return s.con }

func (s *scriptedController) Status() uint8 {
	if s.pos < len(s.script) {
		return s.script[s.pos]
	}
	return uint8(PhaseNoInfo)
}

func (s *scriptedController) Data() uint8 {
	if len(s.rx) == 0 {
		return 0
	}
	b := s.rx[0]
	s.rx = s.rx[1:]
	return b
}

func (s *scriptedController) SetData(b uint8)               { s.written = append(s.written, b) }
func (s *scriptedController) SetClockDivisors(_, _ uint16) {}

func (s *scriptedController) stopped() bool {
	for _, bits := range s.sets {
		if bits&ConSTO != 0 {
			return true
		}
	}
	return false
}

func runScript(t *testing.T, addr byte, buf []byte, stop bool, script ...uint8) (*scriptedController, error) {
	t.Helper()
	ctl := &scriptedController{script: script}
	e := New(ctl, Config{Name: "script"})
	e.initialized = true
	return ctl, e.Transfer(addr, buf, len(buf), stop)
}

func TestStep_WriteSequence(t *testing.T) {
	t.Parallel()

	ctl, err := runScript(t, 0xA0, []byte{0x11, 0x22}, true, 0x08, 0x18, 0x28, 0x28)

	require.NoError(t, err)
	assert.Equal(t, []uint8{0xA0, 0x11, 0x22}, ctl.written)
	assert.True(t, ctl.stopped())
}

func TestStep_RepeatedStartLoadsAddress(t *testing.T) {
	t.Parallel()

	ctl, err := runScript(t, 0xA1, nil, false, 0x10, 0x40)

	require.NoError(t, err)
	assert.Equal(t, []uint8{0xA1}, ctl.written)
	assert.False(t, ctl.stopped())
}

func TestStep_ReadSetsAndClearsAA(t *testing.T) {
	t.Parallel()

	ctl := &scriptedController{
		script: []uint8{0x08, 0x40, 0x50, 0x50, 0x58},
		rx:     []uint8{1, 2, 3},
	}
	e := New(ctl, Config{})
	e.initialized = true
	buf := make([]byte, 3)

	require.NoError(t, e.Transfer(0xA1, buf, 3, true))

	assert.Equal(t, []byte{1, 2, 3}, buf)
	assert.Contains(t, ctl.sets, ConAA)
	assert.Contains(t, ctl.clears, ConAA)
}

func TestStep_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want   error
		name   string
		buf    []byte
		script []uint8
		addr   byte
	}{
		{name: "direction mismatch", addr: 0xA0, buf: []byte{1}, script: []uint8{0x08, 0x40}, want: ErrUnexpectedPhase},
		{name: "read phase on write", addr: 0xA0, buf: []byte{1}, script: []uint8{0x08, 0x18, 0x50}, want: ErrUnexpectedPhase},
		{name: "write phase on read", addr: 0xA1, buf: []byte{1}, script: []uint8{0x08, 0x18}, want: ErrUnexpectedPhase},
		{name: "unknown code", addr: 0xA0, buf: []byte{1}, script: []uint8{0x08, 0xA8}, want: ErrUnexpectedPhase},
		{name: "no info", addr: 0xA0, buf: []byte{1}, script: []uint8{0xF8}, want: ErrUnexpectedPhase},
		{name: "unrequested byte", addr: 0xA1, buf: nil, script: []uint8{0x08, 0x50}, want: ErrUnexpectedPhase},
		{name: "address nack", addr: 0xA0, buf: []byte{1}, script: []uint8{0x08, 0x20}, want: ErrAddressNACK},
		{name: "read address nack", addr: 0xA1, buf: []byte{1}, script: []uint8{0x08, 0x48}, want: ErrAddressNACK},
		{name: "data nack", addr: 0xA0, buf: []byte{1, 2}, script: []uint8{0x08, 0x18, 0x30}, want: ErrDataNACK},
		{name: "arbitration", addr: 0xA0, buf: []byte{1}, script: []uint8{0x08, 0x38}, want: ErrArbitrationLost},
		{name: "bus error", addr: 0xA0, buf: []byte{1}, script: []uint8{0x00}, want: ErrBusFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctl, err := runScript(t, tt.addr, tt.buf, false, tt.script...)

			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, ErrTransferFailed)
			assert.True(t, ctl.stopped(), "failure must force a stop")

			var be *BusError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, Phase(tt.script[len(tt.script)-1]), be.Phase)
		})
	}
}

func TestStep_FailureClearsPendingStart(t *testing.T) {
	t.Parallel()

	ctl, err := runScript(t, 0xA0, []byte{1}, true, 0x00)

	require.ErrorIs(t, err, ErrBusFault)
	require.NotEmpty(t, ctl.clears)
	assert.Equal(t, ConSI|ConSTA, ctl.clears[0])
}

func TestTransfer_DoesNotWriteBeyondLength(t *testing.T) {
	t.Parallel()

	ctl := &scriptedController{script: []uint8{0x08, 0x18, 0x28, 0x28}}
	e := New(ctl, Config{})
	e.initialized = true

	require.NoError(t, e.Transfer(0xA0, []byte{1, 2, 3}, 2, true))
	assert.Equal(t, []uint8{0xA0, 1, 2}, ctl.written)
}
