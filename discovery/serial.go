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

package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/arduino/arduino-provisioner/board"
	"github.com/arduino/arduino-provisioner/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial/enumerator"
	"golang.org/x/exp/slices"
)

// SerialNumberMarker prefixes a hint selecting a port by USB serial number.
const SerialNumberMarker = "SER="

// Port is a serial port as reported by the OS.
type Port struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// PortLister enumerates the serial ports.
type PortLister interface {
	ListPorts() ([]*Port, error)
}

// EnumeratorLister lists ports through go.bug.st/serial/enumerator.
type EnumeratorLister struct{}

// ListPorts implements PortLister.
func (EnumeratorLister) ListPorts() ([]*Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "listing serial ports")
	}
	res := make([]*Port, 0, len(details))
	for _, d := range details {
		res = append(res, &Port{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
		})
	}
	return res, nil
}

// SerialFinder resolves a serial port.
type SerialFinder struct {
	Lister       PortLister
	Board        *board.Context
	Sleep        utils.Sleeper
	PollInterval time.Duration
	Timeout      time.Duration
}

// NewSerialFinder creates a finder for the given board with the default
// polling of 250ms up to 5s.
func NewSerialFinder(lister PortLister, b *board.Context) *SerialFinder {
	return &SerialFinder{
		Lister:       lister,
		Board:        b,
		Sleep:        utils.Sleep,
		PollInterval: 250 * time.Millisecond,
		Timeout:      5 * time.Second,
	}
}

// Snapshot returns the sorted names of the current ports.
func (f *SerialFinder) Snapshot() ([]string, error) {
	ports, err := f.Lister.ListPorts()
	if err != nil {
		return nil, err
	}
	return portNames(ports), nil
}

func portNames(ports []*Port) []string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	return names
}

// Find resolves the port for hint. An empty hint, or a serial-number hint
// that does not select exactly one port, triggers autodetection: trigger
// (which may be nil) is called between two snapshots and the port that
// appears in between is selected.
func (f *SerialFinder) Find(ctx context.Context, hint string, trigger func(ctx context.Context) error) (*Handle, error) {
	if strings.HasPrefix(hint, SerialNumberMarker) {
		if h, err := f.bySerialNumber(strings.TrimPrefix(hint, SerialNumberMarker)); err != nil {
			return nil, err
		} else if h != nil {
			return h, nil
		}
	} else if hint != "" {
		return &Handle{Kind: Serial, Address: hint, Provenance: Explicit}, nil
	}
	return f.autodetect(ctx, trigger)
}

func (f *SerialFinder) bySerialNumber(serialNumber string) (*Handle, error) {
	ports, err := f.Lister.ListPorts()
	if err != nil {
		return nil, err
	}
	var matches []string
	for _, p := range ports {
		if p.SerialNumber != "" && p.SerialNumber == serialNumber {
			matches = append(matches, p.Name)
		}
	}
	if len(matches) == 1 {
		logrus.Infof("Port %s selected by serial number %s", matches[0], serialNumber)
		return &Handle{Kind: Serial, Address: matches[0], Provenance: SerialNumber}, nil
	}
	logrus.WithField("serial_number", serialNumber).
		Warnf("%d ports match the serial number, falling back to autodetection", len(matches))
	return nil, nil
}

func (f *SerialFinder) autodetect(ctx context.Context, trigger func(ctx context.Context) error) (*Handle, error) {
	ports, err := f.Lister.ListPorts()
	if err != nil {
		return nil, err
	}
	if f.Board != nil && trigger == nil {
		h, err := f.matchHWID(ports)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	before := portNames(ports)
	if trigger != nil {
		if err := trigger(ctx); err != nil {
			return nil, err
		}
	}
	name, err := f.WaitForNewPort(ctx, before)
	if err != nil {
		return nil, err
	}
	return &Handle{Kind: Serial, Address: name, Provenance: Autodetect}, nil
}

// ByHWID returns the only connected port whose vid/pid belongs to the board.
func (f *SerialFinder) ByHWID() (*Handle, error) {
	if f.Board == nil {
		return nil, ErrNotFound
	}
	ports, err := f.Lister.ListPorts()
	if err != nil {
		return nil, err
	}
	return f.matchHWID(ports)
}

func (f *SerialFinder) matchHWID(ports []*Port) (*Handle, error) {
	var matches []string
	for _, p := range ports {
		if f.Board.MatchesHWID(p.VID, p.PID) {
			matches = append(matches, p.Name)
		}
	}
	switch len(matches) {
	case 0:
		return nil, ErrNotFound
	case 1:
		logrus.Infof("Auto-detected port %s", matches[0])
		return &Handle{Kind: Serial, Address: matches[0], Provenance: HWID}, nil
	default:
		slices.Sort(matches)
		return nil, &AmbiguousError{Kind: Serial, Candidates: matches}
	}
}

// WaitForNewPort polls the ports until one appears that is not in before.
// The baseline rolls forward at every poll, and a port counts as new only
// when the number of ports grew: a rename that keeps the count unchanged is
// not a new port.
func (f *SerialFinder) WaitForNewPort(ctx context.Context, before []string) (string, error) {
	baseline := before
	var found string
	done, err := utils.Poll(ctx, f.Sleep, f.PollInterval, f.Timeout, func() (bool, error) {
		now, err := f.Snapshot()
		if err != nil {
			return false, err
		}
		if len(now) > len(baseline) {
			added := difference(now, baseline)
			if len(added) > 1 {
				return false, &AmbiguousError{Kind: Serial, Candidates: added}
			}
			if len(added) == 1 {
				found = added[0]
				return true, nil
			}
		}
		baseline = now
		return false, nil
	})
	if err != nil {
		return "", err
	}
	if !done {
		return "", ErrNoNewPort
	}
	logrus.Infof("New port detected: %s", found)
	return found, nil
}

// WaitForNewPortOrDefault is WaitForNewPort, falling back to original when no
// new port appears and original is still connected.
func (f *SerialFinder) WaitForNewPortOrDefault(ctx context.Context, before []string, original string) (*Handle, error) {
	name, err := f.WaitForNewPort(ctx, before)
	if err == nil {
		return &Handle{Kind: Serial, Address: name, Provenance: NewPort}, nil
	}
	if !errors.Is(err, ErrNoNewPort) || original == "" {
		return nil, err
	}
	now, lerr := f.Snapshot()
	if lerr != nil {
		return nil, lerr
	}
	if !slices.Contains(now, original) {
		return nil, err
	}
	logrus.Warnf("No new port appeared, trying to upload on %s", original)
	return &Handle{Kind: Serial, Address: original, Provenance: Fallback}, nil
}

// difference returns the sorted items of a that are not in b.
func difference(a, b []string) []string {
	var res []string
	for _, item := range a {
		if !slices.Contains(b, item) {
			res = append(res, item)
		}
	}
	slices.Sort(res)
	return res
}
