//go:build !deadlock

// Package syncutil provides the mutex types used to serialize bus access.
// Plain sync mutexes are used unless the module is built with -tags=deadlock,
// which swaps in github.com/sasha-s/go-deadlock to catch lock ordering bugs
// between the bus lock and the console and storage locks.
package syncutil

import "sync"

// Mutex is a sync.Mutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Embedding exposes Lock/Unlock and satisfies sync.Locker
type Mutex struct {
	sync.Mutex
}
