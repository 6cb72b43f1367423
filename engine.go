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
	"fmt"

	"periph.io/x/conn/v3/physic"
)

const (
	// DefaultInputClock is the peripheral clock of the reference board
	// (11.0592 MHz crystal, PLL x5, VPB divider 1).
	DefaultInputClock = 55296 * physic.KiloHertz

	// DefaultBusClock is kept low because the bus only has weak 4k7 pull-ups.
	DefaultBusClock = 200 * physic.KiloHertz

	// DefaultTraceDepth is the number of phases kept for error traces.
	DefaultTraceDepth = 16

	// The controller needs SCLH+SCLL >= 8 and both registers are 16 bits wide.
	minDivisor = 4
	maxDivisor = 0xFFFF
)

// Config is the bus controller configuration. It is fixed for the lifetime of
// an Engine, except for the bus clock which SetSpeed may change.
type Config struct {
	// Name identifies the bus in traces and logs.
	Name string
	// InputClock is the peripheral clock feeding the controller.
	InputClock physic.Frequency
	// BusClock is the target SCL frequency.
	BusClock physic.Frequency
	// SpinLimit bounds every busy-wait on the controller. Zero waits forever,
	// which is what the hardware contract asks for; a positive value turns a
	// wedged controller into ErrBusWedged.
	SpinLimit int
	// TraceDepth is the number of phases attached to transfer errors.
	// Zero selects DefaultTraceDepth, a negative value disables tracing.
	TraceDepth int
}

// DefaultConfig returns the configuration of the reference board.
func DefaultConfig() Config {
	return Config{
		Name:       "I2C0",
		InputClock: DefaultInputClock,
		BusClock:   DefaultBusClock,
	}
}

// Engine performs blocking transfers on one bus controller.
//
// An Engine is not safe for concurrent use: the controller registers are a
// single shared resource and only one transfer may be in flight at a time.
// Wrap it in a bus.Bus to share it between goroutines.
type Engine struct {
	ctl         Controller
	trace       *TraceBuffer
	cfg         Config
	divisor     uint16
	initialized bool
}

// New creates an engine for ctl. Zero clock fields in cfg take the defaults.
// The controller is not touched until Init is called.
func New(ctl Controller, cfg Config) *Engine {
	if cfg.InputClock == 0 {
		cfg.InputClock = DefaultInputClock
	}
	if cfg.BusClock == 0 {
		cfg.BusClock = DefaultBusClock
	}
	if cfg.Name == "" {
		cfg.Name = "I2C"
	}
	e := &Engine{ctl: ctl, cfg: cfg}
	if cfg.TraceDepth >= 0 {
		e.trace = NewTraceBuffer(cfg.Name, cfg.TraceDepth)
	}
	return e
}

// Divisor computes the SCL half-period divisor for the given clocks.
func Divisor(input, bus physic.Frequency) (uint16, error) {
	if input <= 0 || bus <= 0 {
		return 0, fmt.Errorf("%w: input %s, bus %s", ErrInvalidClock, input, bus)
	}
	div := int64(input / bus / 2)
	if div < minDivisor || div > maxDivisor {
		return 0, fmt.Errorf("%w: %d (input %s, bus %s)", ErrInvalidClock, div, input, bus)
	}
	return uint16(div), nil
}

// Init programs the clock divisors, enables the controller and runs one
// zero-length warm-up transfer whose result is discarded.
//
// Init only touches the controller the first time it succeeds. Later calls
// return nil without re-enabling the controller, so they cannot disturb a bus
// that is held between transfers.
func (e *Engine) Init() error {
	if e.initialized {
		return nil
	}

	div, err := Divisor(e.cfg.InputClock, e.cfg.BusClock)
	if err != nil {
		return err
	}

	e.ctl.SetClockDivisors(div, div)
	e.ctl.ControlClear(conAll)
	e.ctl.ControlSet(ConI2EN)
	e.divisor = div
	e.initialized = true
	Debugf("%s: enabled, divisor %d (input %s, bus %s)", e.cfg.Name, div, e.cfg.InputClock, e.cfg.BusClock)

	var dummy [1]byte
	if err := e.Transfer(probeAddress, dummy[:], 0, true); err != nil {
		Debugf("%s: warm-up transfer: %v", e.cfg.Name, err)
	}
	return nil
}

// SetSpeed reprograms the clock divisors for a new bus frequency. It must not
// be called while the bus is held between transfers.
func (e *Engine) SetSpeed(bus physic.Frequency) error {
	div, err := Divisor(e.cfg.InputClock, bus)
	if err != nil {
		return err
	}
	e.ctl.SetClockDivisors(div, div)
	e.cfg.BusClock = bus
	e.divisor = div
	Debugf("%s: divisor %d (bus %s)", e.cfg.Name, div, bus)
	return nil
}

// ClockDivisor returns the programmed half-period divisor, or zero before Init.
func (e *Engine) ClockDivisor() uint16 {
	return e.divisor
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// String returns the bus name.
func (e *Engine) String() string {
	return e.cfg.Name
}

// Transfer performs one transaction with the target selected by the address
// byte addr. The low bit of addr selects the direction: Write transmits
// buf[:length], Read fills buf[:length].
//
// With stop set the bus is released when the transfer completes. Otherwise the
// bus stays held and the next Transfer starts with a repeated start. A failed
// transfer always releases the bus, whatever stop says, and returns an error
// matching ErrTransferFailed; there are no partial successes.
//
// Transfer busy-waits on the controller for every phase and cannot be
// cancelled. Unless Config.SpinLimit is set it never returns if the controller
// stops signalling phase completion.
func (e *Engine) Transfer(addr byte, buf []byte, length int, stop bool) error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if length < 0 || length > len(buf) {
		return fmt.Errorf("%w: %d bytes requested, buffer holds %d", ErrInvalidLength, length, len(buf))
	}

	x := &transfer{
		ctl:       e.ctl,
		spinLimit: e.cfg.SpinLimit,
		addr:      addr,
		dir:       DirectionOf(addr),
		buf:       buf[:length],
		trace:     e.trace,
	}
	if x.trace != nil {
		// Errors carry a copy of the entries, so the buffer can be reused.
		x.trace.Clear()
	}

	err := x.run()
	if err == nil && stop {
		err = x.release()
	}
	if err == nil {
		return nil
	}

	Debugf("%s: %v", e.cfg.Name, err)
	if x.trace != nil {
		return x.trace.WrapError(err)
	}
	return err
}

// Write transmits data to the 7-bit target address.
func (e *Engine) Write(target uint16, data []byte, stop bool) error {
	if err := checkAddress(target); err != nil {
		return err
	}
	return e.Transfer(WriteAddress(target), data, len(data), stop)
}

// Read fills buf from the 7-bit target address.
func (e *Engine) Read(target uint16, buf []byte, stop bool) error {
	if err := checkAddress(target); err != nil {
		return err
	}
	return e.Transfer(ReadAddress(target), buf, len(buf), stop)
}

// Tx writes w and then reads r in one combined transaction, using a repeated
// start between the two halves so the bus is never released in between. An
// empty w skips the write half; empty w and r probe the target.
func (e *Engine) Tx(target uint16, w, r []byte) error {
	if err := checkAddress(target); err != nil {
		return err
	}
	if len(r) == 0 {
		return e.Transfer(WriteAddress(target), w, len(w), true)
	}
	if len(w) > 0 {
		if err := e.Transfer(WriteAddress(target), w, len(w), false); err != nil {
			return err
		}
	}
	return e.Transfer(ReadAddress(target), r, len(r), true)
}
