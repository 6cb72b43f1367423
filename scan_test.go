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

	virt "github.com/ZaparooProject/go-i2cm/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	t.Parallel()

	e, ctl := newTestEngine(t)
	ctl.Attach(0x1D, virt.NewMemoryDevice())
	ctl.Attach(0x68, virt.NewMemoryDevice())
	ctl.Attach(0x03, virt.NewMemoryDevice())

	found, err := e.Scan(ScanFirst, ScanLast)

	require.NoError(t, err)
	assert.Equal(t, []uint16{0x1D, eepromAddr, 0x68}, found)
	assert.False(t, ctl.BusHeld())
	assert.Equal(t, int(ScanLast-ScanFirst+1), ctl.StopRequests(), "every probe ends with a stop")
}

func TestScan_NothingAttached(t *testing.T) {
	t.Parallel()

	ctl := virt.NewVirtualController()
	e := New(ctl, DefaultConfig())
	require.NoError(t, e.Init())

	found, err := e.Scan(ScanFirst, ScanLast)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestScan_StopsOnBusFailure(t *testing.T) {
	t.Parallel()

	e, ctl := newTestEngine(t)
	ctl.InjectBusError()

	found, err := e.Scan(0x40, 0x60)

	require.ErrorIs(t, err, ErrBusFault)
	assert.Empty(t, found)
	assert.Contains(t, err.Error(), "scan stopped at 0x40")
}

func TestScan_InvalidRange(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)

	_, err := e.Scan(0x20, 0x10)
	require.ErrorIs(t, err, ErrInvalidAddress)
	_, err = e.Scan(0x00, 0x80)
	require.ErrorIs(t, err, ErrInvalidAddress)
}
