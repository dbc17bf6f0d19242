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

package layout

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"4MB":  4 * 1024 * 1024,
		"4mb":  4 * 1024 * 1024,
		"2M":   2 * 1024 * 1024,
		"512K": 512 * 1024,
		"64kb": 64 * 1024,
		"100B": 100,
		"4096": 4096,
		"1.5K": 1536,
		".5M":  512 * 1024,
	}
	for expr, expected := range cases {
		t.Run(expr, func(t *testing.T) {
			require.Equal(t, expected, ParseSize(expr))
		})
	}
}

func TestParseSizeInvalidIsZeroWithWarning(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	for _, expr := range []string{"garbage", "", "4GB", "MB", "4 MB", "-1K", "4KM"} {
		hook.Reset()
		require.Zero(t, ParseSize(expr), expr)
		entry := hook.LastEntry()
		require.NotNil(t, entry, "a diagnostic must be emitted for %q", expr)
		require.Equal(t, logrus.WarnLevel, entry.Level)
		require.Equal(t, expr, entry.Data["expression"])
	}
}

func TestParseSizeStrict(t *testing.T) {
	_, err := ParseSizeStrict("garbage")
	require.Error(t, err)
	v, err := ParseSizeStrict("16MB")
	require.NoError(t, err)
	require.EqualValues(t, 16*1024*1024, v)
}

func TestParseSizeTooLarge(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	for _, expr := range []string{"9000000000000M", "9223372036854775808", "99999999999999999999K"} {
		hook.Reset()
		_, err := ParseSizeStrict(expr)
		require.Error(t, err, expr)
		require.Contains(t, err.Error(), "too large")

		require.Zero(t, ParseSize(expr), expr)
		entry := hook.LastEntry()
		require.NotNil(t, entry, expr)
		require.Equal(t, logrus.WarnLevel, entry.Level)
	}

	v, err := ParseSizeStrict("8796093022207M")
	require.NoError(t, err)
	require.EqualValues(t, int64(8796093022207)*1024*1024, v)
}

func TestComputePartitionsCoverFlash(t *testing.T) {
	for _, flash := range []int64{2 * 1024 * 1024, 4 * 1024 * 1024, 16 * 1024 * 1024} {
		for _, fs := range []string{"0", "0MB", "512K", "1MB", "1.5MB"} {
			l := Compute(flash, fs, "0")
			require.Equal(t, flash, l.AppMaxBytes+l.EEPROMReserved+l.FilesystemBytes)
			require.Equal(t, l.FilesystemEnd, l.EEPROMStart)
			require.Equal(t, l.FilesystemStart+l.FilesystemBytes, l.FilesystemEnd)
			require.EqualValues(t, FlashBase+flash, l.EEPROMStart+EEPROMSize)
			require.NoError(t, l.Validate())
		}
	}
}

func TestCompute16MBWith4MBFilesystem(t *testing.T) {
	l := Compute(16*1024*1024, "4MB", "8MB")
	require.EqualValues(t, 16*1024*1024-4096-4*1024*1024, l.AppMaxBytes)
	require.EqualValues(t, 0x10000000+16*1024*1024-4096, l.EEPROMStart)
	require.EqualValues(t, 0x10000000+16*1024*1024-4096-4*1024*1024, l.FilesystemStart)
	require.EqualValues(t, 8*1024*1024, l.PSRAMBytes)

	props := l.Properties()
	require.Equal(t, "0x10bff000", props.Get("build.fs_start"))
	require.Equal(t, "0x10fff000", props.Get("build.fs_end"))
	require.Equal(t, "0x10fff000", props.Get("build.eeprom_start"))
	require.Equal(t, "12578816", props.Get("build.flash_length"))
}

func TestComputeRejectsOversizedFilesystem(t *testing.T) {
	l := Compute(1024*1024, "2MB", "0")
	require.LessOrEqual(t, l.AppMaxBytes, int64(0))
	require.EqualValues(t, 1024*1024-4096-2*1024*1024, l.AppMaxBytes, "must not be clamped")

	err := l.Validate()
	require.Error(t, err)
	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, l.AppMaxBytes, invalid.AppMaxBytes)
}

func TestComputeExactlyFullIsInvalid(t *testing.T) {
	l := Compute(1024*1024, "1020K", "0")
	require.Zero(t, l.AppMaxBytes)
	require.Error(t, l.Validate())
}
