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

// Package utils holds the timing and serial helpers shared by discovery and
// handshake.
package utils

import (
	"context"
	"time"
)

// Sleeper waits for the given duration or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poll calls check every interval until it reports done, returns an error or
// the total wait reaches timeout. The deadline is counted in intervals, so
// check runs at most timeout/interval times after the first call.
// It returns true if check reported done.
func Poll(ctx context.Context, sleep Sleeper, interval, timeout time.Duration, check func() (bool, error)) (bool, error) {
	if sleep == nil {
		sleep = Sleep
	}
	if interval <= 0 {
		interval = timeout
	}
	for elapsed := time.Duration(0); ; elapsed += interval {
		done, err := check()
		if err != nil || done {
			return done, err
		}
		if elapsed >= timeout {
			return false, nil
		}
		if err := sleep(ctx, interval); err != nil {
			return false, err
		}
	}
}
