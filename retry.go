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

package i2cm

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// RetryConfig configures retrying of transfers that failed for transient
// reasons, such as another master winning arbitration. The engine itself never
// retries; callers such as bus.Bus apply a RetryConfig around whole transfers.
type RetryConfig struct {
	// MaxAttempts counts the first try. Zero or one means a single try.
	MaxAttempts int
	// InitialBackoff is the wait after the first failure.
	InitialBackoff time.Duration
	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the wait after every failure.
	BackoffMultiplier float64
	// Jitter adds up to this fraction of the wait at random so that
	// competing masters spread out.
	Jitter float64
	// RetryTimeout bounds all attempts together. Zero means no bound.
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns a default retry configuration. A byte takes
// 45µs at the default bus clock, so backoffs start at a few byte times.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    200 * time.Microsecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            0.5,
		RetryTimeout:      100 * time.Millisecond,
	}
}

// IsRetryable returns true if a transfer failed in a way that may not repeat:
// lost arbitration or an illegal bus condition. Missing or refusing targets
// are not retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrArbitrationLost) || errors.Is(err, ErrBusFault)
}

// RetryableFunc performs one attempt.
type RetryableFunc func() error

// RetryWithConfig runs fn until it succeeds, fails with an error IsRetryable
// rejects, or runs out of attempts or time. The last transfer error is
// returned in preference to a context error.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn RetryableFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts <= 1 {
		return fn()
	}

	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	var lastErr error
	wait := config.InitialBackoff
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return fmt.Errorf("retry cancelled: %w", err)
		}

		err := fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		lastErr = err
		Debugf("transient bus failure (attempt %d/%d): %v", attempt, config.MaxAttempts, err)

		if attempt == config.MaxAttempts || !sleepWithContext(ctx, calculateJitteredSleep(wait, config.Jitter)) {
			break
		}
		wait = calculateNextBackoff(wait, config)
	}
	return lastErr
}

// sleepWithContext waits for d and reports false if ctx ended first.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func calculateNextBackoff(wait time.Duration, config *RetryConfig) time.Duration {
	return min(time.Duration(float64(wait)*config.BackoffMultiplier), config.MaxBackoff)
}

// calculateJitteredSleep adds a random [0, factor) share of base.
func calculateJitteredSleep(base time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return base
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return base
	}
	r := float64(binary.LittleEndian.Uint64(b[:])) / float64(1<<64)
	return base + time.Duration(r*float64(base)*factor)
}
