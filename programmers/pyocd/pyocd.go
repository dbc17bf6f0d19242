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

// Package pyocd wraps the pyOCD command line to erase, flash and list the
// debug probes.
package pyocd

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/arduino/arduino-provisioner/discovery"
	"github.com/arduino/arduino-provisioner/programmers"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	semver "go.bug.st/relaxed-semver"
)

// MinimumVersion is the oldest pyOCD known to support the nRF54L targets.
var MinimumVersion = semver.MustParse("0.36.0")

// PyOCD runs pyocd commands against a target.
type PyOCD struct {
	Runner     programmers.Runner
	Executable string
	Target     string
	// Frequency is the SWD clock in Hz used when flashing, 0 for the default.
	Frequency int
	Stdout    io.Writer
	Stderr    io.Writer
}

// New creates a PyOCD for the given target.
func New(runner programmers.Runner, target string) *PyOCD {
	return &PyOCD{Runner: runner, Executable: "pyocd", Target: target}
}

// EraseArgs returns the command line to erase the chip.
func (p *PyOCD) EraseArgs(probeID string, mass bool) []string {
	args := []string{p.Executable, "erase"}
	if mass {
		args = append(args, "--mass")
	}
	args = append(args, "--target", p.Target, "--chip")
	if probeID != "" {
		args = append(args, "--probe", probeID)
	}
	return args
}

// FlashArgs returns the command line to program firmware.
func (p *PyOCD) FlashArgs(probeID, firmware string) []string {
	args := []string{p.Executable, "flash", "--target", p.Target}
	if p.Frequency > 0 {
		args = append(args, "--frequency", strconv.Itoa(p.Frequency))
	}
	args = append(args, firmware)
	if probeID != "" {
		args = append(args, "--probe", probeID)
	}
	return args
}

// Erase erases the whole chip. A mass erase also lifts the access port
// protection.
func (p *PyOCD) Erase(ctx context.Context, probeID string, mass bool) error {
	return p.Runner.Run(ctx, p.EraseArgs(probeID, mass), p.Stdout, p.Stderr)
}

// Flash programs firmware.
func (p *PyOCD) Flash(ctx context.Context, probeID, firmware string) error {
	return p.Runner.Run(ctx, p.FlashArgs(probeID, firmware), p.Stdout, p.Stderr)
}

type probeList struct {
	Status int `json:"status"`
	Boards []struct {
		UniqueID    string `json:"unique_id"`
		Info        string `json:"info"`
		BoardName   string `json:"board_name"`
		Target      string `json:"target"`
		VendorName  string `json:"vendor_name"`
		ProductName string `json:"product_name"`
	} `json:"boards"`
}

// ListProbes implements discovery.ProbeLister.
func (p *PyOCD) ListProbes(ctx context.Context) ([]*discovery.DebugProbe, error) {
	stdout, _, err := p.Runner.Output(ctx, []string{p.Executable, "json", "--probes"})
	if err != nil {
		return nil, err
	}
	var list probeList
	if err := json.Unmarshal(stdout, &list); err != nil {
		return nil, errors.Wrap(err, "decoding pyocd probe list")
	}
	if list.Status != 0 {
		return nil, errors.Errorf("pyocd probe list failed with status %d", list.Status)
	}
	res := make([]*discovery.DebugProbe, 0, len(list.Boards))
	for _, b := range list.Boards {
		desc := b.Info
		if desc == "" {
			desc = strings.TrimSpace(b.VendorName + " " + b.ProductName)
		}
		res = append(res, &discovery.DebugProbe{
			UniqueID:    b.UniqueID,
			Description: desc,
			Vendor:      b.VendorName,
			Target:      b.Target,
		})
	}
	return res, nil
}

// Version returns the installed pyOCD version.
func (p *PyOCD) Version(ctx context.Context) (*semver.Version, error) {
	stdout, _, err := p.Runner.Output(ctx, []string{p.Executable, "--version"})
	if err != nil {
		return nil, err
	}
	v, err := semver.Parse(strings.TrimSpace(string(stdout)))
	if err != nil {
		return nil, errors.Wrap(err, "parsing pyocd version")
	}
	return v, nil
}

// CheckVersion warns when the installed pyOCD is older than MinimumVersion.
// A missing or unparsable version is reported as an error.
func (p *PyOCD) CheckVersion(ctx context.Context) error {
	v, err := p.Version(ctx)
	if err != nil {
		return err
	}
	if v.LessThan(MinimumVersion) {
		logrus.Warnf("pyocd %s is older than %s, erase or flash may fail", v, MinimumVersion)
	} else {
		logrus.Debugf("pyocd version %s", v)
	}
	return nil
}
