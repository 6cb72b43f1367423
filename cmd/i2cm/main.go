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

// Command i2cm is a bench tool for the two-wire controller: it scans the bus,
// reads and writes targets and dumps the settings EEPROM.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"periph.io/x/conn/v3/i2c/i2creg"

	i2cm "github.com/ZaparooProject/go-i2cm"
	"github.com/ZaparooProject/go-i2cm/bus"
	"github.com/ZaparooProject/go-i2cm/console"
	"github.com/ZaparooProject/go-i2cm/mmio"
	"github.com/ZaparooProject/go-i2cm/ringbuf"
)

// openController maps the controller registers; replaced in tests.
var openController = func(base uint64) (i2cm.Controller, error) {
	ctl, err := mmio.Open(base)
	if err != nil {
		return nil, err
	}
	return ctl, nil
}

// stdout receives command output when no serial console is configured.
var stdout io.Writer = os.Stdout

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// env is what every command runs with.
type env struct {
	cfg *config
	bus *bus.Bus
	out *console.Console
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "i2cm"
	app.Usage = "drive an LPC214x two-wire controller"
	app.Version = "0.1.0"
	app.Flags = globalFlags
	app.Commands = commands
	return app
}

// withEnv loads the configuration, opens the output console and the bus,
// and runs fn.
func withEnv(fn func(e *env, c *cli.Context) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		log.SetFormatter(&log.TextFormatter{DisableColors: true})
		if cfg.debug {
			log.SetLevel(log.DebugLevel)
			i2cm.SetDebugEnabled(true)
		}
		if cfg.logDir != "" {
			if path, err := i2cm.InitSessionLog(cfg.logDir); err != nil {
				log.WithError(err).Warn("session log disabled")
			} else {
				log.WithField("path", path).Debug("session log")
				defer func() { _ = i2cm.CloseSessionLog() }()
			}
		}

		out, err := openConsole(cfg)
		if err != nil {
			return err
		}
		i2cm.SetDebugOutput(out)
		defer func() {
			i2cm.SetDebugOutput(nil)
			if dropped := out.Dropped(); dropped > 0 {
				log.WithField("bytes", dropped).Warn("console output dropped")
			}
			if err := out.Close(); err != nil {
				log.WithError(err).Error("failed to close console")
			}
		}()

		b, err := openBus(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := b.Close(); err != nil {
				log.WithError(err).Error("failed to close bus")
			}
		}()

		return fn(&env{cfg: cfg, bus: b, out: out}, c)
	}
}

func openConsole(cfg *config) (*console.Console, error) {
	if cfg.console == "" {
		return console.New(nopCloser{stdout}, ringbuf.DefaultSize, true), nil
	}
	out, err := console.Open(cfg.console, cfg.baud, true)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// openBus registers the configured controller with the periph registry and
// opens it by name.
func openBus(cfg *config) (*bus.Bus, error) {
	name := fmt.Sprintf("I2CM%d", cfg.bus)
	err := bus.Register(name, -1, func() (*bus.Bus, error) {
		ctl, err := openController(cfg.base())
		if err != nil {
			return nil, err
		}
		return bus.Open(ctl, cfg.engineConfig())
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = bus.Unregister(name) }()

	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", name)
	}
	b, ok := bc.(*bus.Bus)
	if !ok {
		_ = bc.Close()
		return nil, errors.Errorf("%s is not a controller bus", name)
	}
	b.SetRetry(cfg.retryConfig())
	log.WithFields(log.Fields{
		"bus":     b.String(),
		"divisor": b.Engine().ClockDivisor(),
	}).Debug("bus ready")
	return b, nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.WithError(err).Error("i2cm failed")
		if te := i2cm.GetTrace(err); te != nil {
			_, _ = fmt.Fprint(os.Stderr, te.FormatTrace())
		}
		os.Exit(1)
	}
}
