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

import "fmt"

// Addresses outside this range are reserved by the bus protocol.
const (
	ScanFirst uint16 = 0x08
	ScanLast  uint16 = 0x77
)

// Scan probes every address in [first, last] with a zero-length write and
// returns the addresses that acknowledged. Targets that do not answer are
// skipped; any other bus failure ends the scan and is returned together with
// the addresses found so far.
func (e *Engine) Scan(first, last uint16) ([]uint16, error) {
	if first > last || last > MaxAddress {
		return nil, fmt.Errorf("%w: range [0x%02X, 0x%02X]", ErrInvalidAddress, first, last)
	}

	var found []uint16
	for target := first; target <= last; target++ {
		err := e.Transfer(WriteAddress(target), nil, 0, true)
		switch {
		case err == nil:
			found = append(found, target)
		case IsNoDevice(err):
			continue
		default:
			return found, fmt.Errorf("scan stopped at 0x%02X: %w", target, err)
		}
	}
	return found, nil
}
