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
	"os"

	"github.com/arduino/arduino-provisioner/cli/arguments"
	"github.com/arduino/arduino-provisioner/cli/common"
	"github.com/arduino/arduino-provisioner/cli/feedback"
	"github.com/spf13/cobra"
)

var (
	commonFlags    arguments.Flags
	filesystemSize string
)

// NewCommand created a new `layout` command
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "layout",
		Short: "Prints the flash layout of a board.",
		Long:  "Computes how the flash of a board is split between application, filesystem and EEPROM emulation.",
		Example: "" +
			"  " + os.Args[0] + " layout -b seeed-xiao-rp2040\n" +
			"  " + os.Args[0] + " layout -b seeed-xiao-rp2040 --filesystem-size 1MB",
		Args: cobra.NoArgs,
		Run:  runLayout,
	}
	commonFlags.AddBoardToCommand(command)
	command.Flags().StringVar(&filesystemSize, "filesystem-size", "", "Filesystem size, e.g.: 1MB, 512K, 0")
	return command
}

func runLayout(cmd *cobra.Command, args []string) {
	b := common.GetBoard(commonFlags.Board)
	if filesystemSize == "" {
		filesystemSize = common.Config().FilesystemSize
	}
	l := b.Layout(filesystemSize)
	if err := l.Validate(); err != nil {
		feedback.PrintResult(l)
		feedback.FatalError(err, feedback.ErrGeneric)
	}
	feedback.PrintResult(l)
}
