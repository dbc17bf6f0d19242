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
	"io"

	"github.com/arduino/go-paths-helper"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// copyUF2 copies the UF2 image in the root of the bootloader volume.
func (o *Orchestrator) copyUF2(t *transfer) error {
	src := t.image.Path
	dst := paths.New(t.port).Join(src.Base())
	logrus.Infof("Copying %s to %s", src, dst)

	in, err := src.Open()
	if err != nil {
		return errors.Wrap(err, "opening firmware")
	}
	defer in.Close()
	out, err := dst.Create()
	if err != nil {
		return errors.Wrap(err, "creating firmware on volume")
	}

	progress := io.Discard
	if o.Stderr != nil {
		progress = progressbar.NewOptions64(t.image.Size,
			progressbar.OptionSetWriter(o.Stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Uploading"),
			progressbar.OptionShowBytes(true),
		)
	}
	if _, err := io.Copy(io.MultiWriter(out, progress), in); err != nil {
		out.Close()
		return errors.Wrap(err, "copying firmware")
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "closing firmware on volume")
	}
	return nil
}
