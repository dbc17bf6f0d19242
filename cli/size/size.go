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

package size

import (
	"fmt"
	"os"
	"strings"

	"github.com/arduino/arduino-provisioner/cli/arguments"
	"github.com/arduino/arduino-provisioner/cli/common"
	"github.com/arduino/arduino-provisioner/cli/feedback"
	"github.com/arduino/arduino-provisioner/sizecheck"
	"github.com/arduino/go-paths-helper"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	commonFlags    arguments.Flags
	image          string
	filesystemSize string
	sizeTool       string
)

// NewCommand created a new `size` command
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:     "size",
		Short:   "Checks that a firmware fits the board memory.",
		Long:    "Measures the sections of an ELF firmware with the size tool and compares them with the application budget and the RAM of the board.",
		Example: "  " + os.Args[0] + " size -b seeed-xiao-rp2040 --image build/firmware.elf",
		Args:    cobra.NoArgs,
		Run:     runSize,
	}
	commonFlags.AddBoardToCommand(command)
	command.Flags().StringVarP(&image, "image", "i", "", "ELF firmware to measure")
	command.Flags().StringVar(&filesystemSize, "filesystem-size", "", "Filesystem size, e.g.: 1MB, 512K, 0")
	command.Flags().StringVar(&sizeTool, "size-tool", "", "Size tool executable, arm-none-eabi-size by default")
	return command
}

type result struct {
	*sizecheck.Report
	err error
}

func (r *result) String() string {
	text := r.Report.String()
	var overflow *sizecheck.OverflowError
	if !errors.As(r.err, &overflow) {
		return text
	}
	label := "Flash:"
	if overflow.Section == "data" {
		label = "RAM:"
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, label) {
			lines[i] = color.RedString(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (r *result) ErrorString() string {
	if r.err != nil {
		return r.err.Error()
	}
	return ""
}

// Data implements feedback.Result interface
func (r *result) Data() interface{} {
	type data struct {
		*sizecheck.Report
		Error string `json:"error,omitempty"`
	}
	res := &data{Report: r.Report}
	if r.err != nil {
		res.Error = r.err.Error()
	}
	return res
}

func runSize(cmd *cobra.Command, args []string) {
	if image == "" {
		feedback.Fatal("Missing firmware image, use --image", feedback.ErrBadArgument)
	}
	b := common.GetBoard(commonFlags.Board)
	if filesystemSize == "" {
		filesystemSize = common.Config().FilesystemSize
	}
	if sizeTool == "" {
		sizeTool = common.Config().SizeTool
	}

	ctx, cancel := common.Context()
	defer cancel()
	verifier := sizecheck.New(common.NewRunner(), sizeTool)
	output, err := verifier.Measure(ctx, paths.New(image))
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Error measuring %s: %s", image, err), feedback.ErrGeneric)
	}

	report, err := sizecheck.Check(output, b.Layout(filesystemSize), b.RAMBytes())
	res := &result{Report: report, err: err}
	if err != nil {
		feedback.FatalResult(res, feedback.ErrGeneric)
	}
	feedback.PrintResult(res)
}
