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

package handshake

import (
	"context"
	"time"

	"github.com/arduino/arduino-cli/arduino/serialutils"
	"github.com/arduino/arduino-provisioner/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var touchSerialPort = serialutils.TouchSerialPortAt1200bps

// Touch1200bps opens port at 1200bps and drops DTR, the conventional request
// to reboot into the bootloader.
func Touch1200bps(ctx context.Context, port string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logrus.Infof("Touching port %s at 1200bps", port)
	return errors.Wrapf(touchSerialPort(port), "touching port %s", port)
}

// FlushSerialBuffer discards pending input on port and pulses DTR/RTS.
func FlushSerialBuffer(ctx context.Context, port string, sleep utils.Sleeper) error {
	if sleep == nil {
		sleep = utils.Sleep
	}
	logrus.Debugf("Flushing serial buffer of %s", port)
	p, err := utils.OpenSerial(port, 9600)
	if err != nil {
		return err
	}
	defer p.Close()
	if err := p.ResetInputBuffer(); err != nil {
		return errors.Wrap(err, "flushing input buffer")
	}
	if err := p.SetDTR(false); err != nil {
		return errors.Wrap(err, "setting DTR off")
	}
	if err := p.SetRTS(false); err != nil {
		return errors.Wrap(err, "setting RTS off")
	}
	if err := sleep(ctx, 100*time.Millisecond); err != nil {
		return err
	}
	if err := p.SetDTR(true); err != nil {
		return errors.Wrap(err, "setting DTR on")
	}
	return errors.Wrap(p.SetRTS(true), "setting RTS on")
}
