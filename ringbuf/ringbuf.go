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

// Package ringbuf implements a fixed-size byte FIFO shared between a producer
// that formats output and a consumer that drains it to a slow device.
package ringbuf

import (
	"errors"
	"io"
	"sync"

	"github.com/ZaparooProject/go-i2cm/internal/syncutil"
)

// DefaultSize matches the serial transmit buffer of the reference firmware.
const DefaultSize = 1024

// ErrClosed is returned when writing to a closed buffer.
var ErrClosed = errors.New("ring buffer closed")

// Buffer is a bounded FIFO of bytes. It is safe for one or more producers and
// consumers.
type Buffer struct {
	notFull  *sync.Cond
	notEmpty *sync.Cond
	buf      []byte
	head     int
	count    int
	dropped  uint64
	mu       syncutil.Mutex
	closed   bool
}

// New creates a buffer holding up to size bytes. A size below one selects
// DefaultSize.
func New(size int) *Buffer {
	if size < 1 {
		size = DefaultSize
	}
	b := &Buffer{buf: make([]byte, size)}
	b.notFull = sync.NewCond(&b.mu)
	b.notEmpty = sync.NewCond(&b.mu)
	return b
}

// Insert appends c. When the buffer is full, a blocking insert waits for a
// consumer to make room and a non-blocking insert drops c and counts it.
// Insert reports whether c was stored.
func (b *Buffer) Insert(c byte, block bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == len(b.buf) && !b.closed {
		if !block {
			b.dropped++
			return false
		}
		b.notFull.Wait()
	}
	if b.closed {
		return false
	}
	b.put(c)
	return true
}

func (b *Buffer) put(c byte) {
	b.buf[(b.head+b.count)%len(b.buf)] = c
	b.count++
	b.notEmpty.Signal()
}

// Remove takes the oldest byte. ok is false if the buffer is empty.
func (b *Buffer) Remove() (c byte, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return 0, false
	}
	return b.take(), true
}

func (b *Buffer) take() byte {
	c := b.buf[b.head]
	b.head = (b.head + 1) % len(b.buf)
	b.count--
	b.notFull.Signal()
	return c
}

// Count returns the number of buffered bytes.
func (b *Buffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Empty reports whether no bytes are queued.
func (b *Buffer) Empty() bool {
	return b.Count() == 0
}

// Size returns the capacity of the buffer.
func (b *Buffer) Size() int {
	return len(b.buf)
}

// Dropped returns how many bytes non-blocking inserts have discarded.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Write implements io.Writer. It blocks until all of p is buffered or the
// buffer is closed.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, c := range p {
		for b.count == len(b.buf) && !b.closed {
			b.notFull.Wait()
		}
		if b.closed {
			return i, ErrClosed
		}
		b.put(c)
	}
	return len(p), nil
}

// Read implements io.Reader. It blocks until at least one byte is available
// and returns io.EOF once the buffer is closed and drained.
func (b *Buffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 {
		if b.closed {
			return 0, io.EOF
		}
		b.notEmpty.Wait()
	}

	n := 0
	for n < len(p) && b.count > 0 {
		p[n] = b.take()
		n++
	}
	return n, nil
}

// Closed reports whether Close has been called.
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close wakes all waiters. Buffered bytes can still be read.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.notFull.Broadcast()
	b.notEmpty.Broadcast()
	return nil
}
