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

package upload

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/arduino/arduino-provisioner/board"
	"github.com/arduino/arduino-provisioner/firmware"
	"github.com/arduino/arduino-provisioner/layout"
	"github.com/arduino/arduino-provisioner/programmers"
	"github.com/arduino/go-paths-helper"
	"github.com/arduino/go-properties-orderedmap"
	"github.com/pkg/errors"
)

// transfer is the state of a single upload.
type transfer struct {
	req      *Request
	protocol *Protocol
	image    *firmware.Image
	layout   *layout.Layout
	buildDir *paths.Path
	// packageDir replaces $PACKAGE_DIR in OpenOCD arguments.
	packageDir string
	port       string
	probe      string
	handshake  string
	props      *properties.Map
}

func (t *transfer) board() *board.Context {
	return t.req.Board
}

// initProperties sets the values available to command templates.
func (t *transfer) initProperties(tool string) {
	b := t.board()
	props := properties.NewMap()
	if t.layout != nil {
		props.Merge(t.layout.Properties())
	}
	props.Set("cmd", tool)
	props.Set("board.id", b.ID)
	props.Set("board.mcu", b.MCU)
	props.Set("build.path", t.image.Path.String())
	props.Set("build.dir", t.buildDir.String())
	props.Set("upload.port", t.port)
	props.Set("upload.port.file", filepath.Base(t.port))
	props.Set("upload.probe", t.probe)
	props.Set("upload.offset", offsetAddress(b))
	props.Set("upload.verbose", "")
	props.Set("debug.speed", t.req.DebugSpeed)
	props.Set("debug.jlink_device", b.Debug.JLinkDevice)
	props.Set("debug.pyocd_target", b.Debug.PyOCDTarget)
	if t.protocol.jtag {
		props.Set("debug.interface", "jtag")
		props.Set("debug.scan", "jtag")
	} else {
		props.Set("debug.interface", "swd")
		props.Set("debug.scan", "swdp")
	}
	t.props = props
}

// commandLine expands the protocol template into the tool arguments.
func (t *transfer) commandLine() ([]string, error) {
	template := t.protocol.Template
	if t.req.Filesystem {
		template = t.protocol.FilesystemTemplate
	}
	if t.protocol.Family == Custom {
		template = t.req.UploadCommand
		if template == "" {
			return nil, errors.New("upload_command is required by the custom upload protocol")
		}
	}
	if t.protocol.prepare != nil {
		if err := t.protocol.prepare(t); err != nil {
			return nil, err
		}
	}
	return programmers.SplitCommandLine(t.props.ExpandPropsInString(template))
}

func offsetAddress(b *board.Context) string {
	if b.Upload.OffsetAddress == "" {
		return "0x0"
	}
	return b.Upload.OffsetAddress
}

func prepareSamBa(t *transfer) error {
	if t.req.Verbose {
		t.props.Set("upload.verbose", "--info --debug")
	}
	return nil
}

func prepareDFU(t *transfer) error {
	hwids := t.board().HWIDs
	if len(hwids) == 0 {
		hwids = []board.USBID{{"0x0483", "0xDF11"}}
	}
	ids := make([]string, 0, len(hwids))
	for _, id := range hwids {
		ids = append(ids, id[0]+":"+id[1])
	}
	t.props.Set("upload.hwids", strings.Join(ids, ","))
	return nil
}

func prepareBlackMagic(t *transfer) error {
	if t.port == "" {
		return errors.New("blackmagic requires a serial port")
	}
	return nil
}

func preparePyOCD(t *transfer) error {
	if t.board().Debug.PyOCDTarget == "" {
		return errors.Errorf("board %s has no pyocd target", t.board().ID)
	}
	return nil
}

// prepareJLink writes the J-Link commander script in the build dir.
func prepareJLink(t *transfer) error {
	b := t.board()
	if b.Debug.JLinkDevice == "" {
		return errors.Errorf("board %s has no J-Link device", b.ID)
	}
	if t.req.DebugSpeed == "" {
		t.props.Set("debug.speed", "4000")
	}
	address := offsetAddress(b)
	if t.req.Filesystem {
		address = t.props.Get("build.fs_start")
	}
	commands := []string{"h", fmt.Sprintf("loadbin %s, %s", t.image.Path, address)}
	if b.Arch == board.ArchRPi {
		commands = append(commands, "RSetType 2", "ResetX 200")
	} else {
		commands = append(commands, "r")
	}
	commands = append(commands, "q")

	if err := t.buildDir.MkdirAll(); err != nil {
		return errors.Wrap(err, "creating build dir")
	}
	script := t.buildDir.Join("upload.jlink")
	if err := script.WriteFile([]byte(strings.Join(commands, "\n"))); err != nil {
		return errors.Wrap(err, "writing J-Link script")
	}
	t.props.Set("jlink.script", script.String())
	return nil
}

// prepareOpenOCD assembles the OpenOCD arguments from the board debug tool.
func prepareOpenOCD(t *transfer, tool *board.DebugTool) error {
	b := t.board()
	if t.req.Verbose {
		t.props.Set("openocd.debug", "2")
	} else {
		t.props.Set("openocd.debug", "1")
	}

	args := make([]string, 0, len(tool.Server.Arguments))
	for _, arg := range tool.Server.Arguments {
		args = append(args, `"`+strings.ReplaceAll(arg, "$PACKAGE_DIR", t.packageDir)+`"`)
	}
	t.props.Set("openocd.args", strings.Join(args, " "))

	speed := t.req.DebugSpeed
	if speed == "" && b.Arch == board.ArchRPi {
		speed = b.Debug.DefaultSpeed
		if speed == "" {
			speed = "5000"
		}
	}
	if speed != "" {
		t.props.Set("openocd.speed", fmt.Sprintf(`-c "adapter speed %s"`, speed))
	} else {
		t.props.Set("openocd.speed", "")
	}

	address := b.Upload.OffsetAddress
	if t.req.Filesystem {
		address = t.props.Get("build.fs_start")
	}
	if t.image.Kind == firmware.ELF {
		address = ""
	}
	program := fmt.Sprintf("program {%s}", t.image.Path)
	if address != "" {
		program += " " + address
	}
	if b.Arch == board.ArchRPi {
		program += " verify; reset init; resume; shutdown;"
	} else {
		program += " verify reset; shutdown;"
	}
	t.props.Set("openocd.program", program)
	return nil
}
