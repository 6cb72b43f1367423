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
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"periph.io/x/conn/v3/i2c"

	i2cm "github.com/ZaparooProject/go-i2cm"
	"github.com/ZaparooProject/go-i2cm/bus"
	"github.com/ZaparooProject/go-i2cm/storage"
)

var errUsage = errors.New("usage")

var commands = []cli.Command{
	{
		Name:   "scan",
		Usage:  "list the addresses that acknowledge",
		Action: withEnv(scanAction),
	},
	{
		Name:      "read",
		Usage:     "read bytes from a target",
		ArgsUsage: "<addr> <count>",
		Action:    withEnv(readAction),
	},
	{
		Name:      "write",
		Usage:     "write bytes to a target",
		ArgsUsage: "<addr> <byte>...",
		Action:    withEnv(writeAction),
	},
	{
		Name:      "wr",
		Usage:     "write bytes, then read with a repeated start",
		ArgsUsage: "<addr> <byte>...",
		Flags: []cli.Flag{
			cli.IntFlag{Name: "read, r", Value: 1, Usage: "number of bytes to read back"},
		},
		Action: withEnv(wrAction),
	},
	{
		Name:  "dump",
		Usage: "hex dump the settings EEPROM, or its file image",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "image", Usage: "dump the file image at `PATH` instead of the part"},
		},
		Action: dumpAction,
	},
}

func scanAction(e *env, _ *cli.Context) error {
	return runScan(e.bus, e.out)
}

func readAction(e *env, c *cli.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return errors.Wrap(errUsage, "read <addr> <count>")
	}
	addr, err := parseAddr(args.Get(0))
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args.Get(1))
	if err != nil || n < 1 {
		return errors.Errorf("invalid count %q", args.Get(1))
	}
	return runRead(e.bus, addr, n, e.out)
}

func writeAction(e *env, c *cli.Context) error {
	addr, data, err := parseAddrBytes(c.Args())
	if err != nil {
		return err
	}
	return runWrite(e.bus, addr, data, e.out)
}

func wrAction(e *env, c *cli.Context) error {
	addr, data, err := parseAddrBytes(c.Args())
	if err != nil {
		return err
	}
	return runWriteRead(e.bus, addr, data, c.Int("read"), e.out)
}

// dumpAction lists the settings EEPROM. With --image, or eeprom.image in the
// configuration, it lists the file image instead and leaves the bus alone.
func dumpAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	path := c.String("image")
	if path == "" {
		path = cfg.image
	}
	if path != "" {
		img, err := storage.OpenFileReadOnly(path, cfg.imageSize)
		if err != nil {
			return errors.WithMessage(err, "dump")
		}
		defer func() { _ = img.Close() }()
		return storage.New(img).Dump(stdout)
	}

	return withEnv(func(e *env, _ *cli.Context) error {
		ee, err := storage.NewEEPROM(e.bus, uint16(e.cfg.eepromAddr), storage.EEPROM24C02)
		if err != nil {
			return err
		}
		return storage.New(ee).Dump(e.out)
	})(c)
}

func runScan(b *bus.Bus, out io.Writer) error {
	found, err := b.Scan()
	for _, addr := range found {
		_, _ = fmt.Fprintf(out, "0x%02X\n", addr)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%d device(s) on %s\n", len(found), b)
	return nil
}

func runRead(b i2c.Bus, addr uint16, n int, out io.Writer) error {
	buf := make([]byte, n)
	if err := b.Tx(addr, nil, buf); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, formatBytes(buf))
	return nil
}

func runWrite(b i2c.Bus, addr uint16, data []byte, out io.Writer) error {
	if err := b.Tx(addr, data, nil); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "wrote %d byte(s) to 0x%02X\n", len(data), addr)
	return nil
}

func runWriteRead(b i2c.Bus, addr uint16, w []byte, n int, out io.Writer) error {
	if n < 1 {
		return errors.Errorf("invalid read count %d", n)
	}
	r := make([]byte, n)
	if err := b.Tx(addr, w, r); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, formatBytes(r))
	return nil
}

func parseAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil || v > i2cm.MaxAddress {
		return 0, errors.Wrapf(i2cm.ErrInvalidAddress, "%q", s)
	}
	return uint16(v), nil
}

func parseAddrBytes(args cli.Args) (uint16, []byte, error) {
	if len(args) < 2 {
		return 0, nil, errors.Wrap(errUsage, "<addr> <byte>...")
	}
	addr, err := parseAddr(args.Get(0))
	if err != nil {
		return 0, nil, err
	}
	data := make([]byte, 0, len(args)-1)
	for _, s := range args[1:] {
		v, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "invalid byte %q", s)
		}
		data = append(data, byte(v))
	}
	return addr, data, nil
}

func formatBytes(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}
