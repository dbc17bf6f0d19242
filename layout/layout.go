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

// Package layout computes how the flash of a board is split between the
// application, the filesystem and the emulated EEPROM.
package layout

import (
	"fmt"
	"strconv"

	"github.com/arduino/go-properties-orderedmap"
)

const (
	// FlashBase is the address where the XIP flash is mapped.
	FlashBase = 0x10000000
	// EEPROMSize is the space reserved at the top of flash for EEPROM emulation.
	EEPROMSize = 4096
	// FSPage and FSBlock are the LittleFS geometry used for filesystem images.
	FSPage  = 256
	FSBlock = 4096
)

// Layout is the partitioning of the flash for a single build.
type Layout struct {
	FlashTotal      int64 `json:"flash_total"`
	EEPROMReserved  int64 `json:"eeprom_reserved"`
	FilesystemBytes int64 `json:"filesystem_bytes"`
	AppMaxBytes     int64 `json:"app_max_bytes"`
	EEPROMStart     int64 `json:"eeprom_start"`
	FilesystemStart int64 `json:"filesystem_start"`
	FilesystemEnd   int64 `json:"filesystem_end"`
	PSRAMBytes      int64 `json:"psram_bytes"`
}

// InvalidError is returned by Validate when the requested filesystem leaves
// no room for the application.
type InvalidError struct {
	AppMaxBytes int64
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("filesystem too large for given flash: can at max be flash size - %d bytes, "+
		"available sketch size with current config would be %d bytes", EEPROMSize, e.AppMaxBytes)
}

// Compute derives the layout from the total flash size and the filesystem
// and PSRAM size expressions. Unparsable expressions count as 0 bytes.
func Compute(flashTotal int64, filesystemExpr, psramExpr string) *Layout {
	fsSize := ParseSize(filesystemExpr)
	top := FlashBase + flashTotal
	return &Layout{
		FlashTotal:      flashTotal,
		EEPROMReserved:  EEPROMSize,
		FilesystemBytes: fsSize,
		AppMaxBytes:     flashTotal - EEPROMSize - fsSize,
		EEPROMStart:     top - EEPROMSize,
		FilesystemStart: top - EEPROMSize - fsSize,
		FilesystemEnd:   top - EEPROMSize,
		PSRAMBytes:      ParseSize(psramExpr),
	}
}

// Validate reports whether the application budget is positive.
func (l *Layout) Validate() error {
	if l.AppMaxBytes <= 0 {
		return &InvalidError{AppMaxBytes: l.AppMaxBytes}
	}
	return nil
}

// Properties exposes the computed addresses to the image building steps.
func (l *Layout) Properties() *properties.Map {
	props := properties.NewMap()
	props.Set("build.flash_length", strconv.FormatInt(l.AppMaxBytes, 10))
	props.Set("build.eeprom_start", hex(l.EEPROMStart))
	props.Set("build.fs_start", hex(l.FilesystemStart))
	props.Set("build.fs_end", hex(l.FilesystemEnd))
	props.Set("build.fs_page", strconv.Itoa(FSPage))
	props.Set("build.fs_block", strconv.Itoa(FSBlock))
	return props
}

func (l *Layout) String() string {
	return fmt.Sprintf("Flash size: %.2fMB\n"+
		"Sketch size: %.2fMB\n"+
		"Filesystem size: %.2fMB\n"+
		"PSRAM size: %.2fMB\n"+
		"Maximum sketch size: %d EEPROM start: %s Filesystem start: %s Filesystem end: %s",
		mb(l.FlashTotal), mb(l.AppMaxBytes), mb(l.FilesystemBytes), mb(l.PSRAMBytes),
		l.AppMaxBytes, hex(l.EEPROMStart), hex(l.FilesystemStart), hex(l.FilesystemEnd))
}

// Data implements feedback.Result interface
func (l *Layout) Data() interface{} {
	return l
}

func mb(v int64) float64 {
	return float64(v) / 1024.0 / 1024.0
}

func hex(v int64) string {
	return "0x" + strconv.FormatInt(v, 16)
}
