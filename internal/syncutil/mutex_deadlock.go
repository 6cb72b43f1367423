//go:build deadlock

// Package syncutil provides the mutex types used to serialize bus access.
// This file is compiled when building with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock.Mutex that reports lock ordering problems and locks
// held for too long.
type Mutex struct {
	deadlock.Mutex
}
