/*
	arduino-provisioner
	Copyright (c) 2024 Arduino LLC.  All right reserved.

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package recovery

import (
	"fmt"

	"github.com/pkg/errors"
)

// Exit codes of the recovery tool.
const (
	ExitSuccess    = 0
	ExitProbeError = 2
	ExitEraseError = 3
	ExitFlashError = 4
	ExitUsageError = 5
)

// UsageError is a bad flag combination or a missing file. It is always
// detected before any device is touched.
type UsageError struct {
	Msg string
	Err error
}

func (e *UsageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *UsageError) Unwrap() error { return e.Err }

// ProbeError is returned when no probe can be selected.
type ProbeError struct{ Err error }

func (e *ProbeError) Error() string { return "probe selection failed: " + e.Err.Error() }

func (e *ProbeError) Unwrap() error { return e.Err }

// EraseError is returned when the erase policy is exhausted.
type EraseError struct {
	Method string
	Err    error
}

func (e *EraseError) Error() string {
	return fmt.Sprintf("%s erase failed: %s", e.Method, e.Err)
}

func (e *EraseError) Unwrap() error { return e.Err }

// FlashError is returned when programming the firmware fails.
type FlashError struct {
	Firmware string
	Err      error
}

func (e *FlashError) Error() string {
	return fmt.Sprintf("flashing %s failed: %s", e.Firmware, e.Err)
}

func (e *FlashError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by Sequencer.Run to the process exit code.
// Unknown errors map to 1.
func ExitCode(err error) int {
	var usageErr *UsageError
	var probeErr *ProbeError
	var eraseErr *EraseError
	var flashErr *FlashError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.As(err, &probeErr):
		return ExitProbeError
	case errors.As(err, &eraseErr):
		return ExitEraseError
	case errors.As(err, &flashErr):
		return ExitFlashError
	}
	return 1
}
