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

// Command reset-tool is the standalone build of the recover command, for
// production lines that only need to unlock boards.
package main

import (
	"os"

	"github.com/arduino/arduino-provisioner/cli/feedback"
	"github.com/arduino/arduino-provisioner/cli/reset"
)

func main() {
	resetTool := reset.NewCommand()
	resetTool.Use = "reset-tool"
	resetTool.Aliases = nil
	resetTool.Example = "" +
		"  " + os.Args[0] + " --mode recover\n" +
		"  " + os.Args[0] + " --mode factory --firmware firmware.hex --probe E6614C311B2C8D2A"
	if err := resetTool.Execute(); err != nil {
		os.Exit(int(feedback.ErrBadArgument))
	}
}
