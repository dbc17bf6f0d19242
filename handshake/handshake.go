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

// Package handshake puts a board into its programmable mode.
//
// The stimulus (usually a 1200bps touch of the serial port) is applied and
// the number of devices in bootloader mode is polled until it grows. A
// timeout is not fatal: the upload is attempted anyway.
package handshake

import (
	"context"
	"time"

	"github.com/arduino/arduino-provisioner/utils"
	"github.com/sirupsen/logrus"
)

// Result is the outcome of a handshake.
type Result int

const (
	// Unconfirmed means the stimulus was applied without a way to verify it.
	Unconfirmed Result = iota
	// Confirmed means a new device in bootloader mode appeared.
	Confirmed
	// AlreadyInBootloader means the device was in bootloader mode and
	// nothing was done.
	AlreadyInBootloader
	// TimedOut means no new device in bootloader mode appeared in time.
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Confirmed:
		return "confirmed"
	case AlreadyInBootloader:
		return "already in bootloader"
	case TimedOut:
		return "timed out"
	default:
		return "unconfirmed"
	}
}

// Counter counts the devices currently in bootloader mode.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Stimulus asks the device attached to port to enter bootloader mode.
type Stimulus func(ctx context.Context, port string) error

// Handshaker runs the handshake sequence.
type Handshaker struct {
	// Counter may be nil, in which case the result is Unconfirmed.
	Counter  Counter
	Stimulus Stimulus
	// SkipIfPresent skips the stimulus when a device is already in
	// bootloader mode.
	SkipIfPresent bool
	Sleep         utils.Sleeper
	Settle        time.Duration
	PollInterval  time.Duration
	Timeout       time.Duration
}

// New creates a Handshaker with the default timings: 200ms settle time,
// polling every 250ms for up to 3s.
func New(counter Counter, stimulus Stimulus) *Handshaker {
	return &Handshaker{
		Counter:      counter,
		Stimulus:     stimulus,
		Sleep:        utils.Sleep,
		Settle:       200 * time.Millisecond,
		PollInterval: 250 * time.Millisecond,
		Timeout:      3 * time.Second,
	}
}

func (h *Handshaker) count(ctx context.Context) int {
	n, err := h.Counter.Count(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Could not count devices in bootloader mode")
		return 0
	}
	return n
}

// Run performs the handshake on port. The only error returned is the
// cancellation of ctx: every other failure is logged and reflected in the
// Result.
func (h *Handshaker) Run(ctx context.Context, port string) (Result, error) {
	sleep := h.Sleep
	if sleep == nil {
		sleep = utils.Sleep
	}

	before := 0
	if h.Counter != nil {
		before = h.count(ctx)
		if h.SkipIfPresent && before != 0 {
			logrus.Infof("Already found %d device(s) in bootloader mode, not trying to reset", before)
			return AlreadyInBootloader, nil
		}
	}

	if h.Stimulus != nil {
		logrus.Infof("Forcing reset of %s into bootloader mode", port)
		if err := h.Stimulus(ctx, port); err != nil {
			logrus.WithError(err).Warnf("Could not reset %s", port)
		}
	}
	if err := sleep(ctx, h.Settle); err != nil {
		return Unconfirmed, err
	}
	if h.Counter == nil {
		return Unconfirmed, nil
	}

	after := before
	confirmed, err := utils.Poll(ctx, sleep, h.PollInterval, h.Timeout, func() (bool, error) {
		after = h.count(ctx)
		return after > before, nil
	})
	if err != nil {
		return TimedOut, err
	}
	if !confirmed {
		logrus.Warnf("No device entered bootloader mode within %s (found %d), trying to upload anyway", h.Timeout, after)
		return TimedOut, nil
	}
	logrus.Infof("Found %d device(s) in bootloader mode", after)
	return Confirmed, nil
}
