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

// Package recovery implements the erase and flash sequence used to bring a
// board back to a known state through a debug probe.
package recovery

import (
	"context"
	"fmt"

	"github.com/arduino/arduino-provisioner/discovery"
	"github.com/arduino/arduino-provisioner/firmware"
	"github.com/arduino/arduino-provisioner/programmers"
	"github.com/arduino/arduino-provisioner/programmers/pyocd"
	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"
)

// Mode selects what the sequence does after selecting the probe.
type Mode string

const (
	// Recover only erases the chip.
	Recover Mode = "recover"
	// Factory erases the chip and flashes the factory firmware.
	Factory Mode = "factory"
)

// DefaultTarget is the pyOCD target of the XIAO nRF54L15.
const DefaultTarget = "nrf54l"

// DefaultFrequency is the SWD clock used to flash.
const DefaultFrequency = 4000000

// Outcome is the result of a step. The zero value is Failed.
type Outcome int

const (
	Failed Outcome = iota
	NotFound
	Skipped
	Success
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotFound:
		return "not found"
	case Skipped:
		return "skipped"
	}
	return "failed"
}

// MarshalText renders the outcome by name in JSON output.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Erase methods.
const (
	MassErase     = "mass"
	StandardErase = "standard"
)

// Options are the parameters of a run.
type Options struct {
	Mode  Mode
	Probe string
	// Firmware is a local file or an URL, required in factory mode unless
	// SkipFlash is set.
	Firmware         string
	FirmwareChecksum string
	// CacheDir receives downloaded firmware.
	CacheDir     *paths.Path
	SkipFlash    bool
	ForceMass    bool
	StandardOnly bool
}

// Report is the result of a run.
type Report struct {
	Mode        Mode              `json:"mode"`
	Probe       *discovery.Handle `json:"probe,omitempty"`
	Firmware    *firmware.Image   `json:"firmware,omitempty"`
	EraseMethod string            `json:"erase_method,omitempty"`
	Erase       Outcome           `json:"erase"`
	Flash       Outcome           `json:"flash"`
}

func (r *Report) String() string {
	probe := "none"
	if r.Probe != nil {
		probe = r.Probe.Address
	}
	return fmt.Sprintf("Probe: %s\nErase: %s (%s)\nFlash: %s", probe, r.Erase, r.EraseMethod, r.Flash)
}

// Data implements feedback.Result interface
func (r *Report) Data() interface{} {
	return r
}

// Programmer erases and flashes through a debug probe.
type Programmer interface {
	Erase(ctx context.Context, probeID string, mass bool) error
	Flash(ctx context.Context, probeID, firmware string) error
}

// Sequencer runs the recovery workflow.
type Sequencer struct {
	Programmer Programmer
	Probes     discovery.ProbeLister
	// Prompter is used to choose among several probes, nil to fail instead.
	Prompter discovery.Prompter
	// Frequency is only reported, the Programmer applies it.
	Frequency int
}

// New creates a Sequencer driving pyOCD for target.
func New(runner programmers.Runner, target string, frequency int) *Sequencer {
	p := pyocd.New(runner, target)
	p.Frequency = frequency
	return &Sequencer{Programmer: p, Probes: p, Frequency: frequency}
}

// Run validates opts, selects the probe, erases the chip and, in factory
// mode, flashes the firmware. The report is returned together with the error
// describing the failing step.
func (s *Sequencer) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{Mode: opts.Mode, Erase: Skipped, Flash: Skipped}
	img, err := validate(opts)
	if err != nil {
		return report, err
	}
	report.Firmware = img

	probe, err := discovery.SelectProbe(ctx, s.Probes, discovery.ProbeSelection{Hint: opts.Probe, Prompter: s.Prompter})
	if err != nil {
		report.Erase = NotFound
		return report, &ProbeError{Err: err}
	}
	report.Probe = probe

	method, err := s.erase(ctx, probe.Address, opts)
	report.EraseMethod = method
	if err != nil {
		report.Erase = Failed
		return report, err
	}
	report.Erase = Success

	if opts.Mode != Factory || opts.SkipFlash {
		logrus.Info("Operation completed successfully.")
		return report, nil
	}
	logrus.Infof("Flashing firmware: %s (frequency %d Hz)...", img.Path, s.Frequency)
	if err := s.Programmer.Flash(ctx, probe.Address, img.Path.String()); err != nil {
		report.Flash = Failed
		logrus.Error("Flash failed.")
		return report, &FlashError{Firmware: img.Path.String(), Err: err}
	}
	report.Flash = Success
	logrus.Info("Flash completed successfully.")
	logrus.Info("Operation completed successfully.")
	return report, nil
}

// validate checks opts without touching any device and resolves the
// firmware to flash.
func validate(opts Options) (*firmware.Image, error) {
	if opts.Mode != Recover && opts.Mode != Factory {
		return nil, &UsageError{Msg: fmt.Sprintf("invalid mode %q, must be %s or %s", opts.Mode, Recover, Factory)}
	}
	if opts.StandardOnly && opts.ForceMass {
		return nil, &UsageError{Msg: "cannot specify both --standard-only and --force-mass"}
	}
	if opts.Firmware == "" {
		if opts.Mode == Factory && !opts.SkipFlash {
			return nil, &UsageError{Msg: "firmware path required for factory mode (use --firmware or add --skip-flash)"}
		}
		return nil, nil
	}
	file, err := firmware.Resolve(opts.Firmware, opts.FirmwareChecksum, opts.CacheDir)
	if err != nil {
		return nil, &UsageError{Msg: "invalid firmware", Err: err}
	}
	img, err := firmware.Inspect(file)
	if err != nil {
		return nil, &UsageError{Msg: "invalid firmware", Err: err}
	}
	return img, nil
}

// erase applies the erase policy: a single standard erase when asked so,
// otherwise a mass erase falling back once to a standard erase unless
// ForceMass is set.
func (s *Sequencer) erase(ctx context.Context, probe string, opts Options) (string, error) {
	if opts.StandardOnly {
		logrus.Info("Performing standard chip erase...")
		if err := s.Programmer.Erase(ctx, probe, false); err != nil {
			logrus.Error("Standard erase failed.")
			return StandardErase, &EraseError{Method: StandardErase, Err: err}
		}
		logrus.Info("Standard erase succeeded.")
		return StandardErase, nil
	}

	logrus.Info("Attempting mass erase (will unlock if protected)...")
	err := s.Programmer.Erase(ctx, probe, true)
	if err == nil {
		logrus.Info("Mass erase succeeded.")
		return MassErase, nil
	}
	if opts.ForceMass {
		logrus.Error("Mass erase failed and --force-mass specified; aborting.")
		return MassErase, &EraseError{Method: MassErase, Err: err}
	}
	if ctx.Err() != nil {
		return MassErase, &EraseError{Method: MassErase, Err: ctx.Err()}
	}
	logrus.WithError(err).Warn("Mass erase failed, falling back to standard erase...")
	if err := s.Programmer.Erase(ctx, probe, false); err != nil {
		logrus.Error("Standard erase after mass failure also failed.")
		return StandardErase, &EraseError{Method: StandardErase, Err: err}
	}
	logrus.Info("Standard erase succeeded.")
	return StandardErase, nil
}
