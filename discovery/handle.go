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

// Package discovery resolves the device to provision. Each strategy takes an
// optional user hint and returns exactly one Handle or fails: an explicit hint
// wins over a unique automatic match, and ambiguity is always reported to the
// caller instead of being resolved by ordering.
package discovery

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the capability class of a device.
type Kind string

const (
	Serial      Kind = "serial"
	MassStorage Kind = "volume"
	Probe       Kind = "probe"
)

// Provenance records how a Handle was chosen.
type Provenance string

const (
	Explicit     Provenance = "explicit"
	SerialNumber Provenance = "serial-number"
	HWID         Provenance = "hwid"
	Autodetect   Provenance = "autodetect"
	NewPort      Provenance = "new-port"
	Fallback     Provenance = "fallback"
	MarkerFile   Provenance = "marker-file"
	Label        Provenance = "label"
	Single       Provenance = "single"
	Interactive  Provenance = "interactive"
)

// Handle identifies a resolved device.
type Handle struct {
	Kind       Kind       `json:"kind"`
	Address    string     `json:"address"`
	Provenance Provenance `json:"provenance"`
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s %s (%s)", h.Kind, h.Address, h.Provenance)
}

var (
	// ErrNotFound is wrapped by every "no device" error.
	ErrNotFound = errors.New("device not found")
	// ErrNoNewPort is returned when no serial port appeared while waiting.
	ErrNoNewPort = fmt.Errorf("%w: no new serial port appeared", ErrNotFound)
	// ErrNoProbes is returned when no debug probe is attached.
	ErrNoProbes = fmt.Errorf("%w: no debug probes detected", ErrNotFound)
	// ErrProbeNotFound is returned when the requested probe is not attached.
	ErrProbeNotFound = fmt.Errorf("%w: specified probe not found", ErrNotFound)
)

// AmbiguousError is returned when more than one device could be selected.
type AmbiguousError struct {
	Kind       Kind
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("multiple %s devices found (%s): please specify which one to use",
		e.Kind, strings.Join(e.Candidates, ", "))
}
