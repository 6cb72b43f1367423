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

package ringbuf

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertRemove(t *testing.T) {
	t.Parallel()

	b := New(4)
	assert.True(t, b.Empty())

	for _, c := range []byte("abc") {
		require.True(t, b.Insert(c, false))
	}
	assert.Equal(t, 3, b.Count())

	c, ok := b.Remove()
	require.True(t, ok)
	assert.Equal(t, byte('a'), c)
	assert.Equal(t, 2, b.Count())
}

func TestRemove_Empty(t *testing.T) {
	t.Parallel()

	b := New(2)
	c, ok := b.Remove()
	assert.False(t, ok)
	assert.Zero(t, c)
}

func TestWrapAround(t *testing.T) {
	t.Parallel()

	b := New(3)
	var got []byte
	for i := 0; i < 10; i++ {
		require.True(t, b.Insert(byte(i), false))
		require.True(t, b.Insert(byte(i+100), false))
		c, ok := b.Remove()
		require.True(t, ok)
		got = append(got, c)
		c, ok = b.Remove()
		require.True(t, ok)
		got = append(got, c)
	}
	assert.Len(t, got, 20)
	assert.Equal(t, []byte{0, 100, 1, 101}, got[:4])
	assert.True(t, b.Empty())
}

func TestInsert_DropsWhenFull(t *testing.T) {
	t.Parallel()

	b := New(2)
	require.True(t, b.Insert('x', false))
	require.True(t, b.Insert('y', false))

	assert.False(t, b.Insert('z', false))
	assert.False(t, b.Insert('z', false))
	assert.Equal(t, uint64(2), b.Dropped())
	assert.Equal(t, 2, b.Count())

	c, _ := b.Remove()
	assert.Equal(t, byte('x'), c, "dropping keeps the oldest data")
}

func TestInsert_BlocksUntilRoom(t *testing.T) {
	t.Parallel()

	b := New(1)
	require.True(t, b.Insert('a', true))

	done := make(chan bool)
	go func() {
		done <- b.Insert('b', true)
	}()

	select {
	case <-done:
		t.Fatal("blocking insert returned while the buffer was full")
	case <-time.After(20 * time.Millisecond):
	}

	c, ok := b.Remove()
	require.True(t, ok)
	assert.Equal(t, byte('a'), c)

	select {
	case stored := <-done:
		assert.True(t, stored)
	case <-time.After(time.Second):
		t.Fatal("blocking insert did not resume")
	}
	assert.Zero(t, b.Dropped())
}

func TestClose_ReleasesBlockedWriters(t *testing.T) {
	t.Parallel()

	b := New(1)
	require.True(t, b.Insert('a', true))

	errc := make(chan error)
	go func() {
		_, err := b.Write([]byte("bc"))
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not release the writer")
	}
	assert.False(t, b.Insert('d', true))
}

func TestReadWrite(t *testing.T) {
	t.Parallel()

	b := New(8)
	msg := []byte("the quick brown fox jumps over the lazy dog")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := b.Write(msg)
		assert.NoError(t, err)
		assert.Equal(t, len(msg), n)
		assert.NoError(t, b.Close())
	}()

	got, err := io.ReadAll(b)
	require.NoError(t, err)
	wg.Wait()

	assert.Equal(t, msg, got)
}

func TestRead_EOFAfterDrain(t *testing.T) {
	t.Parallel()

	b := New(4)
	_, err := b.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	p := make([]byte, 4)
	n, err := b.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(p[:n]))

	_, err = b.Read(p)
	assert.ErrorIs(t, err, io.EOF)
}

func TestNew_DefaultSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultSize, New(0).Size())
	assert.Equal(t, 16, New(16).Size())
}

func TestInsert_AfterClose(t *testing.T) {
	t.Parallel()

	b := New(4)
	assert.False(t, b.Closed())
	require.NoError(t, b.Close())
	assert.True(t, b.Closed())

	assert.False(t, b.Insert('x', false))
	assert.False(t, b.Insert('x', true))
	assert.True(t, b.Empty())
}
