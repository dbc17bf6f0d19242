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

// Package picotool wraps the picotool utility for RP2040/RP2350 boards.
package picotool

import (
	"bytes"
	"context"
	"time"

	"github.com/arduino/arduino-provisioner/programmers"
	"github.com/arduino/arduino-provisioner/utils"
	"github.com/sirupsen/logrus"
)

// Picotool runs picotool commands.
type Picotool struct {
	Runner     programmers.Runner
	Executable string
	Sleep      utils.Sleeper
}

// New creates a Picotool using the executable found in the tool dir or PATH.
func New(runner programmers.Runner) *Picotool {
	return &Picotool{Runner: runner, Executable: "picotool", Sleep: utils.Sleep}
}

// Count implements handshake.Counter: it returns the number of devices in
// BOOTSEL mode. picotool exits with an error when none is found, so only
// its output is considered.
func (p *Picotool) Count(ctx context.Context) (int, error) {
	stdout, stderr, err := p.Runner.Output(ctx, []string{p.Executable, "info", "-d"})
	if err != nil {
		logrus.WithError(err).Debug("picotool info")
	}
	out := append(stdout, stderr...)
	return bytes.Count(out, []byte("type:")), nil
}

// Reboot reboots the device in BOOTSEL mode after a short delay, letting
// the previous command release the USB interface.
func (p *Picotool) Reboot(ctx context.Context) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = utils.Sleep
	}
	if err := sleep(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	logrus.Info("Rebooting device")
	return p.Runner.Run(ctx, []string{p.Executable, "reboot"}, nil, nil)
}
