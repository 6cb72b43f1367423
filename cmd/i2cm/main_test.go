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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"periph.io/x/conn/v3/physic"

	i2cm "github.com/ZaparooProject/go-i2cm"
	virt "github.com/ZaparooProject/go-i2cm/internal/testing"
	"github.com/ZaparooProject/go-i2cm/mmio"
)

// useSimulator routes the tool to a simulated controller and captures its
// output. Tests using it must not run in parallel.
func useSimulator(t *testing.T) (*virt.VirtualController, *virt.MemoryDevice, *bytes.Buffer) {
	t.Helper()
	ctl := virt.NewVirtualController()
	dev := virt.NewMemoryDevice()
	ctl.Attach(0x50, dev)
	var bases []uint64

	origOpen, origOut := openController, stdout
	out := &bytes.Buffer{}
	openController = func(base uint64) (i2cm.Controller, error) {
		bases = append(bases, base)
		return ctl, nil
	}
	stdout = out
	t.Cleanup(func() {
		openController, stdout = origOpen, origOut
		for _, b := range bases {
			assert.Contains(t, []uint64{mmio.I2C0Base, mmio.I2C1Base}, b)
		}
	})
	return ctl, dev, out
}

func run(args ...string) error {
	return newApp().Run(append([]string{"i2cm"}, args...))
}

func TestScanCommand(t *testing.T) {
	ctl, _, out := useSimulator(t)
	ctl.Attach(0x68, virt.NewMemoryDevice())

	require.NoError(t, run("scan"))

	assert.Equal(t, "0x50\n0x68\n2 device(s) on I2C0\n", out.String())
	assert.False(t, ctl.BusHeld())
}

func TestWriteAndReadBack(t *testing.T) {
	_, dev, out := useSimulator(t)

	require.NoError(t, run("write", "0x50", "0x10", "0xAA", "187"))
	assert.Equal(t, "wrote 3 byte(s) to 0x50\n", out.String())
	assert.Equal(t, byte(0xAA), dev.Register(0x10))
	assert.Equal(t, byte(0xBB), dev.Register(0x11))

	out.Reset()
	require.NoError(t, run("wr", "--read", "2", "0x50", "0x10"))
	assert.Equal(t, "AA BB\n", out.String())

	dev.Load(0x12, []byte{0x5A})
	out.Reset()
	require.NoError(t, run("read", "0x50", "1"))
	assert.Equal(t, "5A\n", out.String(), "the register pointer continues after the last read")
	assert.Empty(t, dev.Violations())
}

func TestReadCommand_Errors(t *testing.T) {
	useSimulator(t)

	require.ErrorIs(t, run("read", "0x80", "1"), i2cm.ErrInvalidAddress)
	require.ErrorIs(t, run("read", "0x50"), errUsage)
	require.Error(t, run("read", "0x50", "zero"))

	err := run("read", "0x22", "1")
	require.Error(t, err)
	assert.True(t, i2cm.IsNoDevice(err))
}

func TestWriteCommand_InvalidByte(t *testing.T) {
	useSimulator(t)

	require.Error(t, run("write", "0x50", "0x100"))
	require.ErrorIs(t, run("write", "0x50"), errUsage)
}

func TestDumpCommand_EEPROM(t *testing.T) {
	_, dev, out := useSimulator(t)
	dev.Load(0x00, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	require.NoError(t, run("dump"))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 16)
	assert.True(t, strings.HasPrefix(lines[0], "0x0000: DE AD BE EF 00"))
	assert.True(t, strings.HasPrefix(lines[15], "0x00F0: "))
}

func TestDumpCommand_Image(t *testing.T) {
	ctl, _, out := useSimulator(t)
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))

	require.NoError(t, run("dump", "--image", path))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 16)
	assert.Equal(t, "0x0000: 01 02 03 FF FF FF FF FF FF FF FF FF FF FF FF FF", lines[0])
	assert.Zero(t, ctl.Enables(), "dumping an image does not touch the bus")

	raw, err := os.ReadFile(path) //nolint:gosec // test temp file
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw, "the image is not padded on disk")
}

func TestDumpCommand_MissingImage(t *testing.T) {
	ctl, _, out := useSimulator(t)
	path := filepath.Join(t.TempDir(), "typo.bin")

	require.Error(t, run("dump", "--image", path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "a missing image is not created")
	assert.Empty(t, out.String())
	assert.Zero(t, ctl.Enables())
}

func TestDumpCommand_ImageFromEnvironment(t *testing.T) {
	ctl, _, out := useSimulator(t)
	path := filepath.Join(t.TempDir(), "settings.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xC0, 0xDE}, 0o600))
	t.Setenv("I2CM_EEPROM_IMAGE", path)
	t.Setenv("I2CM_EEPROM_IMAGE_SIZE", "32")

	require.NoError(t, run("dump"))

	assert.Equal(t,
		"0x0000: C0 DE FF FF FF FF FF FF FF FF FF FF FF FF FF FF\n"+
			"0x0010: FF FF FF FF FF FF FF FF FF FF FF FF FF FF FF FF\n",
		out.String())
	assert.Zero(t, ctl.Enables(), "a configured image replaces the bus")
}

func TestBusSelection(t *testing.T) {
	origOpen := openController
	t.Cleanup(func() { openController = origOpen })

	var base uint64
	openController = func(b uint64) (i2cm.Controller, error) {
		base = b
		return virt.NewVirtualController(), nil
	}
	origOut := stdout
	stdout = &bytes.Buffer{}
	t.Cleanup(func() { stdout = origOut })

	require.NoError(t, run("--bus", "1", "scan"))
	assert.Equal(t, mmio.I2C1Base, base)

	require.Error(t, run("--bus", "2", "scan"))
}

// loadFor runs loadConfig inside a throwaway command so that global flags are
// parsed the way real commands see them.
func loadFor(t *testing.T, args ...string) *config {
	t.Helper()
	var cfg *config
	var loadErr error
	app := newApp()
	app.Commands = []cli.Command{{
		Name: "probe",
		Action: func(c *cli.Context) error {
			cfg, loadErr = loadConfig(c)
			return nil
		},
	}}
	require.NoError(t, app.Run(append(append([]string{"i2cm"}, args...), "probe")))
	require.NoError(t, loadErr)
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadFor(t)

	assert.Equal(t, 0, cfg.bus)
	assert.Equal(t, 200, cfg.speedKHz)
	assert.Equal(t, 55296, cfg.pclkKHz)
	assert.Equal(t, 115200, cfg.baud)
	assert.Equal(t, 0x50, cfg.eepromAddr)
	assert.False(t, cfg.debug)
	assert.Nil(t, cfg.retryConfig())

	ec := cfg.engineConfig()
	assert.Equal(t, "I2C0", ec.Name)
	assert.Equal(t, i2cm.DefaultBusClock, ec.BusClock)
	assert.Equal(t, i2cm.DefaultInputClock, ec.InputClock)
	assert.Equal(t, mmio.I2C0Base, cfg.base())
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i2cm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"speed: 100\nbaud: 9600\nspin_limit: 10\neeprom:\n  address: 81\n  image: /tmp/x.bin\n"), 0o600))
	t.Setenv("I2CM_SPIN_LIMIT", "5000")
	t.Setenv("I2CM_EEPROM_IMAGE_SIZE", "512")

	cfg := loadFor(t, "--config", path, "--speed", "400", "--retries", "4")

	assert.Equal(t, 400, cfg.speedKHz, "flags override the file")
	assert.Equal(t, 9600, cfg.baud, "file overrides defaults")
	assert.Equal(t, 5000, cfg.spinLimit, "environment overrides the file")
	assert.Equal(t, 0x51, cfg.eepromAddr)
	assert.Equal(t, "/tmp/x.bin", cfg.image)
	assert.Equal(t, 512, cfg.imageSize)
	assert.Equal(t, 400*physic.KiloHertz, cfg.engineConfig().BusClock)
	require.NotNil(t, cfg.retryConfig())
	assert.Equal(t, 4, cfg.retryConfig().MaxAttempts)
}
