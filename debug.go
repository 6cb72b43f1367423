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
	"io"
	"os"
	"sync/atomic"
	"time"
)

// debugEnabled controls whether debug output goes to debugOutput
var debugEnabled atomic.Bool

// debugOutput is guarded by logMu (debug_file.go).
var debugOutput io.Writer = os.Stdout

func init() {
	if os.Getenv("I2CM_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled.Store(true)
	}
}

// Debugf logs a bus event. The message always goes to the session log, if
// one is open, and to stdout when debug output is enabled through I2CM_DEBUG,
// DEBUG or SetDebugEnabled.
func Debugf(format string, args ...any) {
	logDebug(fmt.Sprintf(format, args...))
}

// Debugln is the Sprint form of Debugf.
func Debugln(args ...any) {
	logDebug(fmt.Sprint(args...))
}

func logDebug(message string) {
	logMu.Lock()
	defer logMu.Unlock()

	if sessionLogWriter != nil {
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", time.Now().Format("15:04:05.000"), message)
	}
	if debugEnabled.Load() {
		_, _ = fmt.Fprintf(debugOutput, "DEBUG: %s\n", message)
	}
}

// SetDebugEnabled turns console debug output on or off.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// SetDebugOutput redirects console debug output, for example to a serial
// console. A nil writer restores stdout.
func SetDebugOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logMu.Lock()
	defer logMu.Unlock()
	debugOutput = w
}
