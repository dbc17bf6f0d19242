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

// Package upload maps an upload protocol to the sequence of steps that
// brings an already built image onto the board.
package upload

import (
	"fmt"

	"github.com/arduino/arduino-provisioner/board"
	"github.com/arduino/arduino-provisioner/discovery"
	"github.com/arduino/arduino-provisioner/firmware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Family groups protocols sharing the same transfer mechanism.
type Family int

const (
	MassStorage Family = iota + 1
	SerialBootloader
	DFU
	DebugAdapter
	Custom
)

func (f Family) String() string {
	switch f {
	case MassStorage:
		return "mass-storage"
	case SerialBootloader:
		return "serial-bootloader"
	case DFU:
		return "dfu"
	case DebugAdapter:
		return "debug-adapter"
	case Custom:
		return "custom"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// Handshake is the way a protocol puts the board in bootloader mode.
type Handshake int

const (
	NoHandshake Handshake = iota
	// Touch opens the upload port at 1200bps.
	Touch
	// TouchBootsel touches the upload port and waits for a device in
	// BOOTSEL mode, unless one is already there.
	TouchBootsel
	// ResetLastPort touches the last enumerated serial port and waits 2s
	// for the mass storage volume to show up.
	ResetLastPort
)

// Protocol is an entry of the protocol table.
type Protocol struct {
	Name   string
	Family Family
	// Discovery is the device the transfer command talks to, empty when
	// the tool finds it by itself.
	Discovery discovery.Kind
	Handshake Handshake
	// Image is the kind of image consumed, empty for any.
	Image firmware.Kind
	// FilesystemImage is the kind of image consumed by filesystem uploads,
	// empty when the protocol cannot upload a filesystem.
	FilesystemImage    firmware.Kind
	Tool               string
	Template           string
	FilesystemTemplate string
	// RebootAfterFilesystem runs `picotool reboot` after a filesystem upload.
	RebootAfterFilesystem bool

	jtag    bool
	prepare func(t *transfer) error
}

var protocols = map[string]Protocol{
	"mbed": {
		Family:    MassStorage,
		Discovery: discovery.MassStorage,
		Handshake: ResetLastPort,
		Image:     firmware.UF2,
	},
	"picotool": {
		Family:                SerialBootloader,
		Handshake:             TouchBootsel,
		Image:                 firmware.ELF,
		FilesystemImage:       firmware.BIN,
		Tool:                  "picotool",
		Template:              `"{cmd}" load -v -x "{build.path}"`,
		FilesystemTemplate:    `"{cmd}" load --verify "{build.path}" --offset {build.fs_start}`,
		RebootAfterFilesystem: true,
	},
	"sam-ba": {
		Family:    SerialBootloader,
		Discovery: discovery.Serial,
		Handshake: Touch,
		Image:     firmware.BIN,
		Tool:      "bossac",
		Template:  `"{cmd}" {upload.verbose} --port "{upload.port.file}" --usb-port --erase --write --reset "{build.path}"`,
		prepare:   prepareSamBa,
	},
	"dfu": {
		Family:   DFU,
		Image:    firmware.BIN,
		Tool:     "dfu-util",
		Template: `"{cmd}" -d {upload.hwids} -a 0 -Q -D "{build.path}"`,
		prepare:  prepareDFU,
	},
	"jlink": {
		Family:             DebugAdapter,
		Image:              firmware.HEX,
		FilesystemImage:    firmware.BIN,
		Tool:               "jlink",
		Template:           jlinkTemplate,
		FilesystemTemplate: jlinkTemplate,
		prepare:            prepareJLink,
	},
	"blackmagic": {
		Family:    DebugAdapter,
		Discovery: discovery.Serial,
		Image:     firmware.ELF,
		Tool:      "gdb",
		Template: `"{cmd}" -nx --batch -ex "target extended-remote {upload.port}" -ex "monitor {debug.scan}_scan" ` +
			`-ex "attach 1" -ex load -ex compare-sections -ex kill "{build.path}"`,
		prepare: prepareBlackMagic,
	},
	"pyocd": {
		Family:    DebugAdapter,
		Discovery: discovery.Probe,
		Image:     firmware.HEX,
		Tool:      "pyocd",
		Template:  `"{cmd}" flash -e sector -a 0x0 -t {debug.pyocd_target} --probe {upload.probe} "{build.path}"`,
		prepare:   preparePyOCD,
	},
	"custom": {
		Family: Custom,
	},
}

const jlinkTemplate = `"{cmd}" -device {debug.jlink_device} -speed {debug.speed} -if {debug.interface} ` +
	`-autoconnect 1 -NoGui 1 -CommanderScript "{jlink.script}"`

const openocdTemplate = `"{cmd}" -d{openocd.debug} {openocd.args} {openocd.speed} -c "{openocd.program}"`

// ErrUnknownProtocol is returned by Lookup for names outside the table.
var ErrUnknownProtocol = errors.New("unknown upload protocol")

// Lookup returns the protocol called name for board b. Besides the fixed
// table, the OpenOCD debug tools declared by the board are protocols too.
func Lookup(name string, b *board.Context) (*Protocol, error) {
	requested := name
	variant := ""
	switch name {
	case "jlink-jtag":
		variant = "jtag"
		name = "jlink"
	case "blackmagic-jtag":
		variant = "jtag"
		name = "blackmagic"
	}
	p, ok := protocols[name]
	if ok {
		p.Name = name + suffix(variant)
		p.jtag = variant == "jtag"
	} else if tool, isTool := b.DebugTool(name); isTool {
		p = openocdProtocol(name, tool, b)
	} else {
		logrus.Warnf("Warning! Unknown upload protocol %s", name)
		return nil, errors.WithMessagef(ErrUnknownProtocol, "protocol %s", name)
	}
	if len(b.Upload.Protocols) > 0 && !slices.Contains(b.Upload.Protocols, requested) && !slices.Contains(b.Upload.Protocols, name) {
		logrus.Warnf("Protocol %s is not listed for board %s", requested, b.ID)
	}
	if b.Arch != board.ArchRPi {
		p.FilesystemImage = ""
	}
	return &p, nil
}

func suffix(variant string) string {
	if variant == "" {
		return ""
	}
	return "-" + variant
}

func openocdProtocol(name string, tool *board.DebugTool, b *board.Context) Protocol {
	p := Protocol{
		Name:               name,
		Family:             DebugAdapter,
		Image:              firmware.ELF,
		FilesystemImage:    firmware.BIN,
		Tool:               "openocd",
		Template:           openocdTemplate,
		FilesystemTemplate: openocdTemplate,
		prepare: func(t *transfer) error {
			return prepareOpenOCD(t, tool)
		},
	}
	if b.Upload.OffsetAddress != "" {
		p.Image = firmware.BIN
	}
	return p
}
