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

package discovery

import (
	"context"
	"fmt"

	"github.com/arduino/arduino-provisioner/board"
	"github.com/google/gousb"
	"github.com/sirupsen/logrus"
)

type usbID struct {
	vid, pid gousb.ID
}

// knownProbes are the debug adapters recognized on the USB bus.
var knownProbes = map[usbID]string{
	{0x2e8a, 0x000c}: "Raspberry Pi Debug Probe (CMSIS-DAP)",
	{0x0d28, 0x0204}: "DAPLink (CMSIS-DAP)",
	{0x2886, 0x8021}: "Seeed XIAO debug mate (CMSIS-DAP)",
	{0x1366, 0x0101}: "SEGGER J-Link",
	{0x1366, 0x0105}: "SEGGER J-Link",
	{0x1366, 0x1015}: "SEGGER J-Link",
	{0x1366, 0x1024}: "SEGGER J-Link",
	{0x1d50, 0x6018}: "Black Magic Probe",
	{0x0483, 0x3748}: "ST-LINK/V2",
	{0x0483, 0x374b}: "ST-LINK/V2-1",
	{0x0483, 0x374f}: "STLINK-V3",
}

// USBProbeLister finds debug probes by their USB vendor and product ids.
type USBProbeLister struct{}

// ListProbes implements ProbeLister.
func (USBProbeLister) ListProbes(ctx context.Context) ([]*DebugProbe, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, ok := knownProbes[usbID{desc.Vendor, desc.Product}]
		return ok
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil {
		// Some devices could not be opened, usually for missing permissions.
		// The ones in devs are still usable.
		logrus.WithError(err).Warn("Some USB devices could not be opened")
	}

	res := make([]*DebugProbe, 0, len(devs))
	for _, d := range devs {
		desc := d.Desc
		id, err := d.SerialNumber()
		if err != nil || id == "" {
			id = fmt.Sprintf("usb-%d-%d", desc.Bus, desc.Address)
		}
		res = append(res, &DebugProbe{
			UniqueID:    id,
			Description: knownProbes[usbID{desc.Vendor, desc.Product}],
			Vendor:      desc.Vendor.String(),
		})
	}
	return res, nil
}

// USBCounter counts the attached devices having one of the given USB ids.
// It is used to detect boards enumerating in bootloader mode.
type USBCounter struct {
	IDs []board.USBID
}

// Count returns the number of matching devices.
func (c *USBCounter) Count(ctx context.Context) (int, error) {
	var ids []usbID
	for _, id := range c.IDs {
		vid, err := id.Vendor()
		if err != nil {
			return 0, err
		}
		pid, err := id.Product()
		if err != nil {
			return 0, err
		}
		ids = append(ids, usbID{gousb.ID(vid), gousb.ID(pid)})
	}

	usb := gousb.NewContext()
	defer usb.Close()
	count := 0
	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		for _, id := range ids {
			if desc.Vendor == id.vid && desc.Product == id.pid {
				count++
			}
		}
		// nothing needs to be opened to be counted
		return false
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
