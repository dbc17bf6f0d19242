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

package sizecheck

import (
	"context"
	"testing"

	"github.com/arduino/arduino-provisioner/layout"
	"github.com/arduino/arduino-provisioner/programmers/programmerstest"
	"github.com/arduino/go-paths-helper"
	"github.com/stretchr/testify/require"
)

const sizeOutput = `firmware.elf  :
section              size        addr
.boot2                256   268435456
.text               52000   268435712
.rodata              4000   268487712
.ARM.exidx              8   268491712
.ram_vector_table     192   536870912
.data                2048   536871104
.bss                 6000   536873152
.noinit                 0   536879152
.psram               1024   285212672
.debug_info        123456           0
Total              189000
`

func TestCalculate(t *testing.T) {
	require.EqualValues(t, 52000+4000+8+2048, Calculate(sizeOutput, ProgramPattern))
	require.EqualValues(t, 2048+6000, Calculate(sizeOutput, DataPattern))
	require.EqualValues(t, 1024, Calculate(sizeOutput, PSRAMPattern))
	require.EqualValues(t, -1, Calculate("", ProgramPattern))
}

func TestFormatUsage(t *testing.T) {
	require.Equal(t, "[====      ]  40.0% (used 400 bytes from 1000 bytes)", FormatUsage(400, 1000))
	require.Equal(t, "[          ]   0.0% (used 0 bytes from 1000 bytes)", FormatUsage(0, 1000))
	require.Equal(t, "[==========]  100.0% (used 1000 bytes from 1000 bytes)", FormatUsage(1000, 1000))
	require.Equal(t, "[==========]  150.0% (used 1500 bytes from 1000 bytes)", FormatUsage(1500, 1000))
	// 2.5 blocks round to even
	require.Equal(t, "[==        ]  25.0% (used 250 bytes from 1000 bytes)", FormatUsage(250, 1000))
	require.Equal(t, "[====      ]  35.0% (used 350 bytes from 1000 bytes)", FormatUsage(350, 1000))
}

func TestCheckFits(t *testing.T) {
	l := layout.Compute(2*1024*1024, "0", "0")
	report, err := Check(sizeOutput, l, 256*1024)
	require.NoError(t, err)
	require.EqualValues(t, 58056, report.Program)
	require.Equal(t, l.AppMaxBytes, report.ProgramMax)
	require.Zero(t, report.PSRAMMax)
	require.Contains(t, report.String(), "Flash: [")
	require.Contains(t, report.String(), "RAM:   [")
}

func TestCheckProgramOverflow(t *testing.T) {
	// 64K flash, 4K eeprom, 4K filesystem: 56K budget
	l := layout.Compute(64*1024, "4K", "0")
	report, err := Check(sizeOutput, l, 0)
	var overflow *OverflowError
	require.ErrorAs(t, err, &overflow)
	require.Equal(t, "program", overflow.Section)
	require.EqualValues(t, 58056, overflow.Used)
	require.EqualValues(t, 57344, overflow.Budget)
	require.EqualValues(t, 58056-57344, overflow.Overflow())
	require.Contains(t, err.Error(), "57344")
	require.Contains(t, err.Error(), "712")
	require.NotNil(t, report)
}

func TestCheckDataOverflow(t *testing.T) {
	l := layout.Compute(2*1024*1024, "0", "0")
	_, err := Check(sizeOutput, l, 4096)
	var overflow *OverflowError
	require.ErrorAs(t, err, &overflow)
	require.Equal(t, "data", overflow.Section)
}

func TestCheckPSRAMIsInformational(t *testing.T) {
	l := layout.Compute(2*1024*1024, "0", "512")
	report, err := Check(sizeOutput, l, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1024, report.PSRAM)
	require.EqualValues(t, 512, report.PSRAMMax)
	require.Contains(t, report.String(), "PSRAM: [==========]")
}

func TestCheckInvalidLayout(t *testing.T) {
	l := layout.Compute(1024*1024, "2MB", "0")
	_, err := Check(sizeOutput, l, 0)
	var invalid *layout.InvalidError
	require.ErrorAs(t, err, &invalid)
}

func TestMeasure(t *testing.T) {
	dir := paths.New(t.TempDir())
	elf := dir.Join("firmware.elf")
	header := make([]byte, 64)
	copy(header, []byte{0x7F, 'E', 'L', 'F'})
	require.NoError(t, elf.WriteFile(header))

	runner := (&programmerstest.Runner{}).On(programmerstest.Response{Stdout: sizeOutput}, "-A", "-d")
	out, err := New(runner, "arm-none-eabi-size").Measure(context.Background(), elf)
	require.NoError(t, err)
	require.EqualValues(t, 58056, Calculate(out, ProgramPattern))
	require.Equal(t, [][]string{{"arm-none-eabi-size", "-A", "-d", elf.String()}}, runner.Calls)

	bin := dir.Join("firmware.bin")
	require.NoError(t, bin.WriteFile([]byte{1, 2, 3}))
	_, err = New(runner, "arm-none-eabi-size").Measure(context.Background(), bin)
	require.Error(t, err)
}
