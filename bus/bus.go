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

// Package bus exposes an i2cm Engine as a periph.io I²C bus, so that periph
// device drivers and i2c.Dev can talk to targets behind the controller.
package bus

import (
	"context"
	"errors"
	"fmt"
	"io"

	i2cm "github.com/ZaparooProject/go-i2cm"
	"github.com/ZaparooProject/go-i2cm/internal/syncutil"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus closed")

// Bus implements i2c.BusCloser on top of an Engine. Transactions are
// serialized; the engine itself is not safe for concurrent use.
type Bus struct {
	engine  *i2cm.Engine
	release io.Closer
	retry   *i2cm.RetryConfig
	mu      syncutil.Mutex
	closed  bool
}

var _ i2c.BusCloser = (*Bus)(nil)

// New wraps an engine. The engine is initialized if it was not already.
func New(e *i2cm.Engine) (*Bus, error) {
	if err := e.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s: %w", e, err)
	}
	return &Bus{engine: e}, nil
}

// Open creates an engine for ctl with cfg and wraps it. If ctl implements
// io.Closer it is closed together with the bus.
func Open(ctl i2cm.Controller, cfg i2cm.Config) (*Bus, error) {
	b, err := New(i2cm.New(ctl, cfg))
	if err != nil {
		return nil, err
	}
	if c, ok := ctl.(io.Closer); ok {
		b.release = c
	}
	return b, nil
}

// Engine returns the underlying engine.
func (b *Bus) Engine() *i2cm.Engine {
	return b.engine
}

// SetRetry makes Tx retry transactions that lost arbitration or hit a bus
// error. nil disables retries.
func (b *Bus) SetRetry(cfg *i2cm.RetryConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retry = cfg
}

// Tx implements i2c.Bus. A non-empty w is written with a repeated start before
// r is read; the bus is stopped at the end of the transaction.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	tx := func() error { return b.engine.Tx(addr, w, r) }
	var err error
	if b.retry != nil {
		err = i2cm.RetryWithConfig(context.Background(), b.retry, tx)
	} else {
		err = tx()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", b.engine, err)
	}
	return nil
}

// SetSpeed implements i2c.Bus.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	return b.engine.SetSpeed(f)
}

// Scan probes the non-reserved address range and returns the targets that
// answered.
func (b *Bus) Scan() ([]uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	return b.engine.Scan(i2cm.ScanFirst, i2cm.ScanLast)
}

// String implements i2c.Bus.
func (b *Bus) String() string {
	return b.engine.String()
}

// Halt implements conn.Resource. Transfers are synchronous so there is
// nothing in flight to halt.
func (*Bus) Halt() error {
	return nil
}

// Close implements io.Closer. It is safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.release != nil {
		if err := b.release.Close(); err != nil {
			return fmt.Errorf("failed to release %s: %w", b.engine, err)
		}
	}
	return nil
}

// Opener creates a bus on demand for the registry.
type Opener func() (*Bus, error)

// Register makes a bus available through i2creg.Open under name and number.
// A negative number leaves the bus without a numeric alias.
func Register(name string, number int, open Opener) error {
	opener := func() (i2c.BusCloser, error) {
		b, err := open()
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	if err := i2creg.Register(name, nil, number, opener); err != nil {
		return fmt.Errorf("failed to register %s: %w", name, err)
	}
	return nil
}

// Unregister removes a bus registered with Register.
func Unregister(name string) error {
	return i2creg.Unregister(name)
}
