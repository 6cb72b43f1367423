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

package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrReadOnly is returned by writes to an image opened with OpenFileReadOnly.
var ErrReadOnly = errors.New("storage image is read-only")

// FileImage is a Medium backed by a file of fixed size.
type FileImage struct {
	f        *os.File
	size     int
	readOnly bool
}

var _ Medium = (*FileImage)(nil)

// OpenFile opens or creates the image at path. A missing or short image is
// padded with ErasedByte up to size; a longer one is used as is, up to size.
func OpenFile(path string, size int) (*FileImage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid image size %d", size)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat storage image: %w", err)
	}
	if have := int(info.Size()); have < size {
		pad := bytes.Repeat([]byte{ErasedByte}, size-have)
		if _, err := f.WriteAt(pad, int64(have)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to extend storage image: %w", err)
		}
	}

	return &FileImage{f: f, size: size}, nil
}

// OpenFileReadOnly opens an existing image without modifying it. Bytes past
// the end of a short file read as ErasedByte.
func OpenFileReadOnly(path string, size int) (*FileImage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid image size %d", size)
	}

	f, err := os.Open(path) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open storage image: %w", err)
	}
	return &FileImage{f: f, size: size, readOnly: true}, nil
}

// ReadAt implements io.ReaderAt.
func (fi *FileImage) ReadAt(p []byte, off int64) (int, error) {
	n, err := fi.f.ReadAt(p, off)
	if !fi.readOnly || (err != nil && !errors.Is(err, io.EOF)) {
		return n, err //nolint:wrapcheck // Store wraps medium errors
	}
	for n < len(p) && off+int64(n) < int64(fi.size) {
		p[n] = ErasedByte
		n++
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes p and flushes it to disk.
func (fi *FileImage) WriteAt(p []byte, off int64) (int, error) {
	if fi.readOnly {
		return 0, ErrReadOnly
	}
	n, err := fi.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, fi.f.Sync()
}

// Size returns the image size in bytes.
func (fi *FileImage) Size() int {
	return fi.size
}

// Name returns the path of the image.
func (fi *FileImage) Name() string {
	return fi.f.Name()
}

// Close closes the underlying file.
func (fi *FileImage) Close() error {
	return fi.f.Close()
}
