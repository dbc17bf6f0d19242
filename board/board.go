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

package board

import (
	"strconv"
	"strings"

	"github.com/arduino/arduino-provisioner/layout"
	"github.com/pkg/errors"
)

// Architecture is the family of microcontrollers a board belongs to.
type Architecture string

const (
	ArchUnknown     Architecture = ""
	ArchESP         Architecture = "esp"
	ArchRenesas     Architecture = "renesas"
	ArchRPi         Architecture = "rpi"
	ArchNRF         Architecture = "nrf"
	ArchSAMD        Architecture = "samd"
	ArchSiliconLabs Architecture = "siliconlab"
)

// ArchitectureFor derives the architecture from the board id. Rules are
// applied in order and the last matching one wins.
func ArchitectureFor(boardID string) Architecture {
	arch := ArchUnknown
	if strings.Contains(boardID, "esp32") {
		arch = ArchESP
	}
	if boardID == "seeed-xiao-ra4m1" {
		arch = ArchRenesas
	}
	if boardID == "seeed-xiao-rp2040" || boardID == "seeed-xiao-rp2350" {
		arch = ArchRPi
	}
	if strings.Contains(boardID, "nrf") {
		arch = ArchNRF
	}
	if strings.Contains(boardID, "samd") {
		arch = ArchSAMD
	}
	if strings.Contains(boardID, "mg24") {
		arch = ArchSiliconLabs
	}
	return arch
}

// USBID is a vendor/product pair as written in the catalog, e.g. ["0x2E8A", "0x0003"].
type USBID [2]string

// Vendor returns the parsed vendor id.
func (id USBID) Vendor() (uint16, error) { return parseHexID(id[0]) }

// Product returns the parsed product id.
func (id USBID) Product() (uint16, error) { return parseHexID(id[1]) }

// Matches compares the id with hexadecimal vid/pid strings as reported by
// serial enumerators (case and 0x prefix insensitive).
func (id USBID) Matches(vid, pid string) bool {
	v1, err1 := id.Vendor()
	p1, err2 := id.Product()
	v2, err3 := parseHexID(vid)
	p2, err4 := parseHexID(pid)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return false
	}
	return v1 == v2 && p1 == p2
}

func parseHexID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid usb id '%s'", s)
	}
	return uint16(v), nil
}

// UploadOptions are the upload related capabilities of a board.
type UploadOptions struct {
	Protocol          string   `yaml:"protocol"`
	Protocols         []string `yaml:"protocols"`
	Use1200bpsTouch   bool     `yaml:"use_1200bps_touch"`
	WaitForUploadPort bool     `yaml:"wait_for_upload_port"`
	DisableFlushing   bool     `yaml:"disable_flushing"`
	OffsetAddress     string   `yaml:"offset_address"`
}

// BootloaderOptions describe how the board shows up once in bootloader mode.
type BootloaderOptions struct {
	USBIDs        []USBID  `yaml:"usb_ids"`
	VolumeLabels  []string `yaml:"volume_labels"`
	VolumeMarkers []string `yaml:"volume_markers"`
}

// DebugTool is an OpenOCD based debug adapter configuration.
type DebugTool struct {
	Server struct {
		Arguments []string `yaml:"arguments"`
	} `yaml:"server"`
}

// DebugOptions are the debug adapter capabilities of a board.
type DebugOptions struct {
	JLinkDevice  string                `yaml:"jlink_device"`
	PyOCDTarget  string                `yaml:"pyocd_target"`
	DefaultSpeed string                `yaml:"default_speed"`
	Tools        map[string]*DebugTool `yaml:"tools"`
}

// Context carries everything the provisioning steps need to know about the
// target board. It is built once per invocation and passed explicitly.
type Context struct {
	ID             string            `yaml:"-"`
	Arch           Architecture      `yaml:"-"`
	Name           string            `yaml:"name"`
	MCU            string            `yaml:"mcu"`
	FlashSize      string            `yaml:"flash_size"`
	RAMSize        string            `yaml:"ram_size"`
	PSRAMSize      string            `yaml:"psram_size"`
	FilesystemSize string            `yaml:"filesystem_size"`
	HWIDs          []USBID           `yaml:"hwids"`
	Upload         UploadOptions     `yaml:"upload"`
	Bootloader     BootloaderOptions `yaml:"bootloader"`
	Debug          DebugOptions      `yaml:"debug"`

	flashBytes int64
	ramBytes   int64
}

func (c *Context) init(id string) error {
	c.ID = id
	c.Arch = ArchitectureFor(id)
	if c.FlashSize == "" {
		return errors.Errorf("board %s: missing flash_size", id)
	}
	var err error
	if c.flashBytes, err = layout.ParseSizeStrict(c.FlashSize); err != nil {
		return errors.WithMessagef(err, "board %s", id)
	}
	if c.RAMSize != "" {
		if c.ramBytes, err = layout.ParseSizeStrict(c.RAMSize); err != nil {
			return errors.WithMessagef(err, "board %s", id)
		}
	}
	if c.PSRAMSize == "" {
		c.PSRAMSize = "0"
	}
	if c.FilesystemSize == "" {
		c.FilesystemSize = "0"
	}
	return nil
}

// FlashBytes is the total flash of the board.
func (c *Context) FlashBytes() int64 { return c.flashBytes }

// RAMBytes is the RAM of the board, 0 when unknown.
func (c *Context) RAMBytes() int64 { return c.ramBytes }

// Layout computes the flash layout using the requested filesystem size, or
// the board default when fsExpr is empty.
func (c *Context) Layout(fsExpr string) *layout.Layout {
	if fsExpr == "" {
		fsExpr = c.FilesystemSize
	}
	return layout.Compute(c.flashBytes, fsExpr, c.PSRAMSize)
}

// DefaultProtocol returns the configured upload protocol or the board default.
func (c *Context) DefaultProtocol(configured string) string {
	if configured != "" {
		return configured
	}
	return c.Upload.Protocol
}

// DebugTool returns the OpenOCD configuration for the named adapter.
func (c *Context) DebugTool(name string) (*DebugTool, bool) {
	tool, ok := c.Debug.Tools[name]
	return tool, ok && tool != nil
}

// MatchesHWID reports whether a serial port with the given vid/pid belongs to the board.
func (c *Context) MatchesHWID(vid, pid string) bool {
	for _, id := range c.HWIDs {
		if id.Matches(vid, pid) {
			return true
		}
	}
	return false
}
