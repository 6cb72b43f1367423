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

// Package storage provides bounds-checked, byte-addressable persistent storage
// for settings and calibration data. A Store sits on top of a Medium: either a
// file image on the host or a 24Cxx serial EEPROM on the bus.
package storage

import (
	"errors"
	"fmt"
	"io"

	"github.com/ZaparooProject/go-i2cm/internal/syncutil"
)

// ErasedByte is the value of storage that has never been written.
const ErasedByte = 0xFF

// ErrOutOfRange is returned for accesses that do not fit in the medium.
var ErrOutOfRange = errors.New("storage access out of range")

// Medium is the backing store of a Store.
type Medium interface {
	io.ReaderAt
	io.WriterAt
	Size() int
}

// Store serializes access to a Medium and rejects accesses outside it.
type Store struct {
	medium Medium
	mu     syncutil.Mutex
}

// New wraps m in a Store.
func New(m Medium) *Store {
	return &Store{medium: m}
}

// Size returns the size of the medium.
func (s *Store) Size() int {
	return s.medium.Size()
}

func (s *Store) check(offset, n int) error {
	if offset < 0 || n < 0 || offset+n > s.medium.Size() {
		return fmt.Errorf("%w: %d bytes at %d, size %d", ErrOutOfRange, n, offset, s.medium.Size())
	}
	return nil
}

// Read fills dest with the bytes starting at offset.
func (s *Store) Read(dest []byte, offset int) (int, error) {
	if err := s.check(offset, len(dest)); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.medium.ReadAt(dest, int64(offset))
	if err != nil && !(errors.Is(err, io.EOF) && n == len(dest)) {
		return n, fmt.Errorf("storage read at %d: %w", offset, err)
	}
	return n, nil
}

// Write stores src starting at offset.
func (s *Store) Write(offset int, src []byte) (int, error) {
	if err := s.check(offset, len(src)); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.medium.WriteAt(src, int64(offset))
	if err != nil {
		return n, fmt.Errorf("storage write at %d: %w", offset, err)
	}
	return n, nil
}

// Dump writes the whole medium as a hex listing, 16 bytes per line.
func (s *Store) Dump(w io.Writer) error {
	data := make([]byte, s.Size())
	if _, err := s.Read(data, 0); err != nil {
		return err
	}

	for off := 0; off < len(data); off += 16 {
		end := min(off+16, len(data))
		if _, err := fmt.Fprintf(w, "0x%04X:", off); err != nil {
			return fmt.Errorf("storage dump: %w", err)
		}
		for _, b := range data[off:end] {
			if _, err := fmt.Fprintf(w, " %02X", b); err != nil {
				return fmt.Errorf("storage dump: %w", err)
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("storage dump: %w", err)
		}
	}
	return nil
}
