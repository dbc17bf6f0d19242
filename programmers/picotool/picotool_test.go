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

package picotool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arduino/arduino-provisioner/programmers/programmerstest"
	"github.com/stretchr/testify/require"
)

const twoDevices = `Device Information
 type:                  RP2040
 flash size:            2048K

Device Information
 type:                  RP2350
 flash size:            4096K
`

func TestCount(t *testing.T) {
	runner := (&programmerstest.Runner{}).On(programmerstest.Response{Stdout: twoDevices}, "info", "-d")
	n, err := New(runner).Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, [][]string{{"picotool", "info", "-d"}}, runner.Calls)
}

func TestCountNoDevice(t *testing.T) {
	runner := (&programmerstest.Runner{}).On(programmerstest.Response{
		Stderr:   "No accessible RP-series devices in BOOTSEL mode were found.",
		ExitCode: 248,
	}, "info")
	n, err := New(runner).Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)

	runner = (&programmerstest.Runner{}).On(programmerstest.Response{Err: errors.New("not found")}, "info")
	n, err = New(runner).Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestReboot(t *testing.T) {
	runner := &programmerstest.Runner{}
	p := New(runner)
	var slept time.Duration
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		require.Empty(t, runner.Calls, "the delay comes before the reboot")
		slept += d
		return nil
	}
	require.NoError(t, p.Reboot(context.Background()))
	require.Equal(t, 500*time.Millisecond, slept)
	require.Equal(t, [][]string{{"picotool", "reboot"}}, runner.Calls)
}
