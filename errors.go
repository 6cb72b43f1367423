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
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error categories
var (
	// ErrTransferFailed is reported by every failed transfer. Callers that do not
	// care why the bus refused a transfer only need to check for this error.
	ErrTransferFailed = errors.New("transfer failed")

	// Bus failures - the bus has been stopped when these are returned
	ErrAddressNACK     = errors.New("address not acknowledged")
	ErrDataNACK        = errors.New("data not acknowledged")
	ErrArbitrationLost = errors.New("arbitration lost")
	ErrBusFault        = errors.New("bus error")
	ErrUnexpectedPhase = errors.New("unexpected bus phase")
	ErrBusWedged       = errors.New("controller did not respond")

	// Usage errors - the bus has not been touched when these are returned
	ErrInvalidLength  = errors.New("invalid transfer length")
	ErrInvalidAddress = errors.New("invalid target address")
	ErrInvalidClock   = errors.New("clock divisor out of range")
	ErrNotInitialized = errors.New("engine not initialized")
)

// BusError describes a failed transfer. It matches ErrTransferFailed with
// errors.Is and unwraps to the specific cause.
type BusError struct {
	Err      error     // Specific cause (ErrAddressNACK, ErrDataNACK, ...)
	Op       string    // Operation that failed
	Addr     byte      // Address byte of the transfer
	Phase    Phase     // Phase that ended the transfer
	Sent     int       // Data bytes transmitted before the failure
	Received int       // Data bytes received before the failure
	Dir      Direction // Transfer direction
}

func (e *BusError) Error() string {
	return fmt.Sprintf("%s 0x%02X (%s, target 0x%02X): %v at phase %s [sent %d, received %d]",
		e.Op, e.Addr, e.Dir, TargetOf(e.Addr), e.Err, e.Phase, e.Sent, e.Received)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransferFailed.
func (*BusError) Is(target error) bool {
	return target == ErrTransferFailed
}

// IsNoDevice returns true if no target acknowledged the address.
func IsNoDevice(err error) bool {
	return errors.Is(err, ErrAddressNACK)
}

// IsBusFailure returns true if err reports a failed transfer, as opposed to a
// rejected request that never reached the bus.
func IsBusFailure(err error) bool {
	return errors.Is(err, ErrTransferFailed)
}

// failureCause maps a failure phase to its error.
func failureCause(p Phase) error {
	//nolint:exhaustive // Only failure phases have a cause
	switch p {
	case PhaseAddressWriteNacked, PhaseAddressReadNacked:
		return ErrAddressNACK
	case PhaseDataWriteNacked:
		return ErrDataNACK
	case PhaseArbitrationLost:
		return ErrArbitrationLost
	case PhaseBusError:
		return ErrBusFault
	default:
		return ErrUnexpectedPhase
	}
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds the phase trace of a failed transfer, allowing callers
// to see how far the transfer got.

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates a byte put on the bus by the master
	TraceTX TraceDirection = "TX"
	// TraceRX indicates a byte received from the target
	TraceRX TraceDirection = "RX"
	// TraceCtl indicates a bus condition without data
	TraceCtl TraceDirection = "--"
)

// TraceEntry represents a single bus phase
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
	Phase     Phase
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s %s: %s (%s)", e.Timestamp.Format("15:04:05.000000"),
			e.Direction, e.Phase, formatHexBytes(e.Data), e.Note)
	}
	return fmt.Sprintf("[%s] %s %s: %s", e.Timestamp.Format("15:04:05.000000"),
		e.Direction, e.Phase, formatHexBytes(e.Data))
}

// TraceableError wraps an error with the phase trace of the failed transfer.
//
//	var te *i2cm.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Bus trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err   error
	Bus   string
	Trace []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s] (no trace data)", e.Bus)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s] Bus trace (%d entries):\n", e.Bus, len(e.Trace))

	for _, entry := range e.Trace {
		marker := "="
		switch entry.Direction {
		case TraceTX:
			marker = ">"
		case TraceRX:
			marker = "<"
		case TraceCtl:
		}
		_, _ = fmt.Fprintf(&sb, "  %s %s %s", marker, entry.Phase, formatHexBytes(entry.Data))
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, " (%s)", entry.Note)
		}
		_ = sb.WriteByte('\n')
	}

	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// TraceBuffer collects trace entries during a transfer.
// Once full it evicts the oldest entry.
type TraceBuffer struct {
	bus     string
	entries []TraceEntry
	maxSize int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(bus string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = DefaultTraceDepth
	}
	return &TraceBuffer{
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
		bus:     bus,
	}
}

// RecordTX records a byte put on the bus
func (tb *TraceBuffer) RecordTX(p Phase, b byte, note string) {
	tb.record(TraceTX, p, []byte{b}, note)
}

// RecordRX records a byte received from the bus
func (tb *TraceBuffer) RecordRX(p Phase, b byte, note string) {
	tb.record(TraceRX, p, []byte{b}, note)
}

// RecordPhase records a phase that carried no data
func (tb *TraceBuffer) RecordPhase(p Phase, note string) {
	tb.record(TraceCtl, p, nil, note)
}

func (tb *TraceBuffer) record(dir TraceDirection, p Phase, data []byte, note string) {
	entry := TraceEntry{
		Direction: dir,
		Phase:     p,
		Data:      data,
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// Entries returns a copy of the recorded entries.
func (tb *TraceBuffer) Entries() []TraceEntry {
	entriesCopy := make([]TraceEntry, len(tb.entries))
	copy(entriesCopy, tb.entries)
	return entriesCopy
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:   err,
		Trace: tb.Entries(),
		Bus:   tb.bus,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
