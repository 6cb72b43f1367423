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

package testing

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrPortClosed is returned by SlowPort writes after Close.
var ErrPortClosed = errors.New("port closed")

// SlowPortConfig configures the behaviour of SlowPort.
type SlowPortConfig struct {
	MaxLatency      time.Duration
	FIFOSize        int
	StallAfterBytes int
	StallDuration   time.Duration
	Seed            uint64
	ShortWrites     bool
}

// DefaultSlowPortConfig models a 16-byte UART FIFO with a little latency.
func DefaultSlowPortConfig() SlowPortConfig {
	return SlowPortConfig{
		MaxLatency:  200 * time.Microsecond,
		FIFOSize:    16,
		ShortWrites: true,
	}
}

// SlowPort is an io.WriteCloser that behaves like a serial port with a small
// transmit FIFO: writes take a random amount of time and may accept only part
// of the buffer. Everything accepted is kept for inspection.
type SlowPort struct {
	rng          *rand.Rand
	out          bytes.Buffer
	config       SlowPortConfig
	mu           sync.Mutex
	writes       int
	shortWrites  int
	bytesAtStall int
	stalled      bool
	closed       bool
}

// NewSlowPort creates a port with the given timing.
func NewSlowPort(config SlowPortConfig) *SlowPort {
	var rng *rand.Rand
	if config.Seed != 0 {
		rng = rand.New(rand.NewPCG(config.Seed, config.Seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
	}
	if config.FIFOSize < 1 {
		config.FIFOSize = 1
	}
	return &SlowPort{config: config, rng: rng}
}

// Write accepts up to FIFOSize bytes, or a random shorter prefix when
// ShortWrites is set. It never accepts zero bytes of a non-empty buffer.
func (p *SlowPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	if len(data) == 0 {
		return 0, nil
	}

	if p.config.MaxLatency > 0 {
		if delay := time.Duration(p.rng.Int64N(int64(p.config.MaxLatency) + 1)); delay > 0 {
			time.Sleep(delay)
		}
	}

	if p.config.StallAfterBytes > 0 && !p.stalled && p.bytesAtStall >= p.config.StallAfterBytes {
		p.stalled = true
		time.Sleep(p.config.StallDuration)
	}

	n := min(len(data), p.config.FIFOSize)
	if p.config.ShortWrites && n > 1 {
		n = 1 + p.rng.IntN(n)
	}
	if n < len(data) {
		p.shortWrites++
	}

	p.out.Write(data[:n])
	p.writes++
	p.bytesAtStall += n
	return n, nil
}

// Close marks the port closed.
func (p *SlowPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Bytes returns a copy of everything written so far.
func (p *SlowPort) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.out.Bytes())
}

// Writes returns the number of Write calls that accepted data and how many of
// them were short.
func (p *SlowPort) Writes() (total, short int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes, p.shortWrites
}

// Closed reports whether Close has been called.
func (p *SlowPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
