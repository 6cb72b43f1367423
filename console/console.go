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

// Package console writes formatted output to a serial line without making the
// caller wait for the UART. Output is queued in a ring buffer and drained by a
// background goroutine.
package console

import (
	"fmt"
	"io"

	"github.com/ZaparooProject/go-i2cm/internal/syncutil"
	"github.com/ZaparooProject/go-i2cm/ringbuf"
	"go.bug.st/serial"
)

// DefaultBaudRate is the rate used by the reference firmware's host tools.
const DefaultBaudRate = 115200

const pumpChunk = 64

// Console queues output for a slow writer.
type Console struct {
	port   io.WriteCloser
	buf    *ringbuf.Buffer
	done   chan struct{}
	err    error
	mu     syncutil.Mutex
	block  bool
	closed bool
}

// Open opens a serial port at baud, 8N1, and attaches a console to it.
func Open(portName string, baud int, block bool) (*Console, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open console port %s: %w", portName, err)
	}
	return New(port, ringbuf.DefaultSize, block), nil
}

// New starts a console on port with a buffer of size bytes. When block is
// false, output that does not fit in the buffer is dropped and counted.
func New(port io.WriteCloser, size int, block bool) *Console {
	c := &Console{
		port:  port,
		buf:   ringbuf.New(size),
		done:  make(chan struct{}),
		block: block,
	}
	go c.pump()
	return c
}

func (c *Console) pump() {
	defer close(c.done)

	chunk := make([]byte, pumpChunk)
	for {
		n, err := c.buf.Read(chunk)
		if n > 0 && c.err == nil {
			if werr := c.writeAll(chunk[:n]); werr != nil {
				// Keep draining so producers are not blocked forever.
				c.err = fmt.Errorf("console write failed: %w", werr)
			}
		}
		if err != nil {
			return
		}
	}
}

// writeAll retries short writes. UART drivers accept as much as fits in the
// transmit FIFO and report the rest as unwritten.
func (c *Console) writeAll(p []byte) error {
	for len(p) > 0 {
		n, err := c.port.Write(p)
		if err != nil {
			return err //nolint:wrapcheck // wrapped by pump
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Write implements io.Writer. In drop mode it always reports len(p) and the
// bytes that did not fit are counted by Dropped.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ringbuf.ErrClosed
	}
	if c.block {
		n, err := c.buf.Write(p)
		if err != nil {
			return n, fmt.Errorf("console: %w", err)
		}
		return n, nil
	}
	for i, b := range p {
		// Close shuts the buffer before it takes mu.
		if !c.buf.Insert(b, false) && c.buf.Closed() {
			return i, ringbuf.ErrClosed
		}
	}
	return len(p), nil
}

// Printf formats a message and writes it on a line of its own.
func (c *Console) Printf(format string, args ...any) (int, error) {
	return c.Write([]byte("\n" + fmt.Sprintf(format, args...) + "\n"))
}

// Dropped returns the number of bytes discarded because the buffer was full.
func (c *Console) Dropped() uint64 {
	return c.buf.Dropped()
}

// Close flushes queued output, stops the pump and closes the port. It returns
// the first write error the pump ran into.
func (c *Console) Close() error {
	_ = c.buf.Close()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	<-c.done
	if err := c.port.Close(); err != nil {
		return fmt.Errorf("failed to close console port: %w", err)
	}
	return c.err
}
