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

// transfer is the state of one Transfer call. It lives on the caller's stack
// and is discarded when the call returns.
type transfer struct {
	ctl       Controller
	trace     *TraceBuffer
	buf       []byte
	pos       int
	spinLimit int
	phase     Phase
	addr      byte
	dir       Direction
}

// run drives the controller from the start condition to completion or
// failure. On failure the bus has been stopped when run returns.
func (x *transfer) run() error {
	x.ctl.ControlSet(ConSTA)

	for {
		if !x.waitPhase() {
			return x.abort(ErrBusWedged)
		}

		done, err := x.step(Phase(x.ctl.Status()))
		if err != nil {
			// A bus error can arrive with the start request still pending.
			x.ctl.ControlClear(ConSI | ConSTA)
			return x.abort(err)
		}
		x.ctl.ControlClear(ConSI)

		if done {
			return nil
		}
	}
}

// step handles one completed bus phase. It reports done once every requested
// byte has been moved, or the cause of a failure.
func (x *transfer) step(p Phase) (done bool, err error) {
	x.phase = p

	if dir, ok := p.direction(); ok && dir != x.dir {
		x.record(p, "phase does not match "+x.dir.String())
		return false, ErrUnexpectedPhase
	}

	switch p {
	case PhaseStarted, PhaseRepeatedStarted:
		x.ctl.SetData(x.addr)
		x.ctl.ControlClear(ConSTA)
		x.recordTX(p, x.addr, "address")

	case PhaseAddressWriteAcked, PhaseDataWriteAcked:
		if x.pos == len(x.buf) {
			x.record(p, "complete")
			return true, nil
		}
		b := x.buf[x.pos]
		x.ctl.SetData(b)
		x.pos++
		x.recordTX(p, b, "")

	case PhaseAddressReadAcked:
		switch len(x.buf) {
		case 0:
			x.record(p, "complete")
			return true, nil
		case 1:
			x.ctl.ControlClear(ConAA)
		default:
			x.ctl.ControlSet(ConAA)
		}
		x.record(p, "")

	case PhaseDataReadAcked, PhaseDataReadNacked:
		if x.pos == len(x.buf) {
			x.record(p, "no byte was requested")
			return false, ErrUnexpectedPhase
		}
		b := x.ctl.Data()
		x.buf[x.pos] = b
		x.pos++
		x.recordRX(p, b, "")

		switch len(x.buf) - x.pos {
		case 0:
			return true, nil
		case 1:
			// The last byte is answered with NACK.
			x.ctl.ControlClear(ConAA)
		}

	case PhaseAddressWriteNacked, PhaseDataWriteNacked, PhaseAddressReadNacked,
		PhaseArbitrationLost, PhaseBusError, PhaseNoInfo:
		x.record(p, "")
		return false, failureCause(p)

	default:
		x.record(p, "")
		return false, ErrUnexpectedPhase
	}

	return false, nil
}

// waitPhase spins until the controller signals a completed phase.
func (x *transfer) waitPhase() bool {
	for n := 0; x.ctl.Control()&ConSI == 0; n++ {
		if x.spinLimit > 0 && n >= x.spinLimit {
			return false
		}
	}
	return true
}

// release puts a stop condition on the bus and waits until the controller has
// sent it.
func (x *transfer) release() error {
	x.ctl.ControlSet(ConSTO)
	for n := 0; x.ctl.Control()&ConSTO != 0; n++ {
		if x.spinLimit > 0 && n >= x.spinLimit {
			return x.fail(ErrBusWedged)
		}
	}
	x.record(x.phase, "stop")
	return nil
}

// abort releases the bus after a failure and returns the failure.
func (x *transfer) abort(cause error) error {
	err := x.fail(cause)
	if stopErr := x.release(); stopErr != nil {
		Debugf("stop after %v: %v", cause, stopErr)
	}
	return err
}

func (x *transfer) fail(cause error) *BusError {
	be := &BusError{
		Op:    "transfer",
		Err:   cause,
		Addr:  x.addr,
		Phase: x.phase,
		Dir:   x.dir,
	}
	if x.dir == Read {
		be.Received = x.pos
	} else {
		be.Sent = x.pos
	}
	return be
}

func (x *transfer) record(p Phase, note string) {
	if x.trace != nil {
		x.trace.RecordPhase(p, note)
	}
}

func (x *transfer) recordTX(p Phase, b byte, note string) {
	if x.trace != nil {
		x.trace.RecordTX(p, b, note)
	}
}

func (x *transfer) recordRX(p Phase, b byte, note string) {
	if x.trace != nil {
		x.trace.RecordRX(p, b, note)
	}
}
