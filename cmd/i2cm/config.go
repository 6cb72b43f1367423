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
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/urfave/cli"
	"periph.io/x/conn/v3/physic"

	i2cm "github.com/ZaparooProject/go-i2cm"
	"github.com/ZaparooProject/go-i2cm/mmio"
)

type config struct {
	console    string
	logDir     string
	image      string
	bus        int
	speedKHz   int
	pclkKHz    int
	spinLimit  int
	retries    int
	baud       int
	imageSize  int
	eepromAddr int
	debug      bool
}

var globalFlags = []cli.Flag{
	cli.StringFlag{Name: "config, c", Usage: "load configuration from `FILE` (yaml, toml or json)"},
	cli.IntFlag{Name: "bus, b", Usage: "controller number (0 or 1)"},
	cli.IntFlag{Name: "speed", Usage: "bus clock in kHz"},
	cli.IntFlag{Name: "pclk", Usage: "peripheral clock in kHz"},
	cli.IntFlag{Name: "spin-limit", Usage: "give up after this many status polls (0 waits forever)"},
	cli.IntFlag{Name: "retries", Usage: "attempts per transaction after arbitration loss or bus errors"},
	cli.StringFlag{Name: "console", Usage: "write output to serial `PORT` instead of stdout"},
	cli.IntFlag{Name: "baud", Usage: "console baud rate"},
	cli.BoolFlag{Name: "debug", Usage: "enable bus debug output"},
	cli.StringFlag{Name: "log-dir", Usage: "write a session log to `DIR`"},
}

// Flag name -> config key, by flag type.
var (
	intFlagKeys    = map[string]string{"bus": "bus", "speed": "speed", "pclk": "pclk", "spin-limit": "spin_limit", "retries": "retries", "baud": "baud"}
	stringFlagKeys = map[string]string{"console": "console", "log-dir": "log_dir"}
	boolFlagKeys   = map[string]string{"debug": "debug"}
)

// loadConfig merges defaults, the config file, I2CM_* environment variables
// and command line flags, in increasing order of precedence.
func loadConfig(c *cli.Context) (*config, error) {
	v := viper.New()
	v.SetDefault("bus", 0)
	v.SetDefault("speed", int(i2cm.DefaultBusClock/physic.KiloHertz))
	v.SetDefault("pclk", int(i2cm.DefaultInputClock/physic.KiloHertz))
	v.SetDefault("spin_limit", 0)
	v.SetDefault("retries", 0)
	v.SetDefault("baud", 115200)
	v.SetDefault("debug", false)
	v.SetDefault("eeprom.address", 0x50)
	v.SetDefault("eeprom.image_size", 256)

	v.SetEnvPrefix("I2CM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := c.GlobalString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	for name, key := range intFlagKeys {
		if c.GlobalIsSet(name) {
			v.Set(key, c.GlobalInt(name))
		}
	}
	for name, key := range stringFlagKeys {
		if c.GlobalIsSet(name) {
			v.Set(key, c.GlobalString(name))
		}
	}
	for name, key := range boolFlagKeys {
		if c.GlobalIsSet(name) {
			v.Set(key, c.GlobalBool(name))
		}
	}

	cfg := &config{
		bus:        v.GetInt("bus"),
		speedKHz:   v.GetInt("speed"),
		pclkKHz:    v.GetInt("pclk"),
		spinLimit:  v.GetInt("spin_limit"),
		retries:    v.GetInt("retries"),
		console:    v.GetString("console"),
		baud:       v.GetInt("baud"),
		debug:      v.GetBool("debug"),
		logDir:     v.GetString("log_dir"),
		image:      v.GetString("eeprom.image"),
		imageSize:  v.GetInt("eeprom.image_size"),
		eepromAddr: v.GetInt("eeprom.address"),
	}
	if cfg.bus != 0 && cfg.bus != 1 {
		return nil, errors.Errorf("invalid bus %d: must be 0 or 1", cfg.bus)
	}
	return cfg, nil
}

func (cfg *config) engineConfig() i2cm.Config {
	return i2cm.Config{
		Name:       fmt.Sprintf("I2C%d", cfg.bus),
		InputClock: physic.Frequency(cfg.pclkKHz) * physic.KiloHertz,
		BusClock:   physic.Frequency(cfg.speedKHz) * physic.KiloHertz,
		SpinLimit:  cfg.spinLimit,
	}
}

func (cfg *config) retryConfig() *i2cm.RetryConfig {
	if cfg.retries <= 1 {
		return nil
	}
	rc := i2cm.DefaultRetryConfig()
	rc.MaxAttempts = cfg.retries
	return rc
}

func (cfg *config) base() uint64 {
	if cfg.bus == 1 {
		return mmio.I2C1Base
	}
	return mmio.I2C0Base
}
