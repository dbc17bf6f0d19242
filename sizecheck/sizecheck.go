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

// Package sizecheck verifies that a built image fits the flash layout.
package sizecheck

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/arduino/arduino-provisioner/firmware"
	"github.com/arduino/arduino-provisioner/layout"
	"github.com/arduino/arduino-provisioner/programmers"
	"github.com/arduino/go-paths-helper"
	"github.com/pkg/errors"
)

// Section patterns applied to the output of `size -A -d`.
var (
	ProgramPattern = regexp.MustCompile(`^(?:\.text|\.data|\.rodata|\.text.align|\.ARM.exidx)\s+(\d+).*`)
	DataPattern    = regexp.MustCompile(`^(?:\.data|\.bss|\.noinit)\s+(\d+).*`)
	PSRAMPattern   = regexp.MustCompile(`^(?:\.psram)\s+(\d+).*`)
)

const usageBlocks = 10

// OverflowError is returned when a section category exceeds its budget.
type OverflowError struct {
	Section string
	Used    int64
	Budget  int64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s size %d bytes exceeds the maximum of %d bytes by %d bytes",
		e.Section, e.Used, e.Budget, e.Overflow())
}

// Overflow is the number of bytes over budget.
func (e *OverflowError) Overflow() int64 {
	return e.Used - e.Budget
}

// Verifier measures images with a size tool.
type Verifier struct {
	Runner   programmers.Runner
	SizeTool string
}

// New creates a Verifier running sizeTool (e.g. arm-none-eabi-size).
func New(runner programmers.Runner, sizeTool string) *Verifier {
	return &Verifier{Runner: runner, SizeTool: sizeTool}
}

// Measure runs the size tool over image and returns its output.
func (v *Verifier) Measure(ctx context.Context, image *paths.Path) (string, error) {
	img, err := firmware.Inspect(image)
	if err != nil {
		return "", err
	}
	if img.Kind != firmware.ELF {
		return "", errors.Errorf("%s is not an ELF file", image)
	}
	stdout, _, err := v.Runner.Output(ctx, []string{v.SizeTool, "-A", "-d", image.String()})
	if err != nil {
		return "", errors.WithMessage(err, "calculating image size")
	}
	return strings.TrimSpace(string(stdout)), nil
}

// Calculate sums the groups captured by pattern on every line of output.
// It returns -1 if there is no output.
func Calculate(output string, pattern *regexp.Regexp) int64 {
	if output == "" || pattern == nil {
		return -1
	}
	var size int64
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		match := pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		for _, group := range match[1:] {
			if v, err := strconv.ParseInt(group, 10, 64); err == nil {
				size += v
			}
		}
	}
	return size
}

// Report is the usage of each section category.
type Report struct {
	Program    int64 `json:"program"`
	ProgramMax int64 `json:"program_max"`
	Data       int64 `json:"data"`
	DataMax    int64 `json:"data_max,omitempty"`
	PSRAM      int64 `json:"psram,omitempty"`
	PSRAMMax   int64 `json:"psram_max,omitempty"`
}

func (r *Report) String() string {
	lines := []string{}
	if r.DataMax > 0 {
		lines = append(lines, "RAM:   "+FormatUsage(r.Data, r.DataMax))
	}
	lines = append(lines, "Flash: "+FormatUsage(r.Program, r.ProgramMax))
	if r.PSRAMMax > 0 {
		lines = append(lines, "PSRAM: "+FormatUsage(r.PSRAM, r.PSRAMMax))
	}
	return strings.Join(lines, "\n")
}

// Data implements feedback.Result interface
func (r *Report) Data() interface{} {
	return r
}

// Check compares the size tool output with the layout budget and, when
// maxRAM is positive, the data sections with the RAM size. PSRAM usage is
// only reported. The report is returned even when the check fails.
func Check(output string, l *layout.Layout, maxRAM int64) (*Report, error) {
	report := &Report{
		Program:    Calculate(output, ProgramPattern),
		ProgramMax: l.AppMaxBytes,
		Data:       Calculate(output, DataPattern),
		DataMax:    maxRAM,
	}
	if l.PSRAMBytes > 0 {
		report.PSRAM = Calculate(output, PSRAMPattern)
		report.PSRAMMax = l.PSRAMBytes
	}
	if err := l.Validate(); err != nil {
		return report, err
	}
	if report.Program < 0 {
		return report, errors.New("could not determine program size")
	}
	if report.Program > l.AppMaxBytes {
		return report, &OverflowError{Section: "program", Used: report.Program, Budget: l.AppMaxBytes}
	}
	if maxRAM > 0 && report.Data > maxRAM {
		return report, &OverflowError{Section: "data", Used: report.Data, Budget: maxRAM}
	}
	return report, nil
}

// FormatUsage renders a usage bar such as
// "[====      ]  40.0% (used 400 bytes from 1000 bytes)".
func FormatUsage(used, total int64) string {
	ratio := 0.0
	if total > 0 {
		ratio = float64(used) / float64(total)
	}
	blocks := int(math.RoundToEven(usageBlocks * ratio))
	if blocks > usageBlocks {
		blocks = usageBlocks
	}
	if blocks < 0 {
		blocks = 0
	}
	return fmt.Sprintf("[%-*s] % 5.1f%% (used %d bytes from %d bytes)",
		usageBlocks, strings.Repeat("=", blocks), ratio*100, used, total)
}
