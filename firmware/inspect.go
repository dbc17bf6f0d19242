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

package firmware

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/arduino/go-paths-helper"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"github.com/unixdj/ihex"
)

// Kind is the format of a firmware image.
type Kind string

const (
	ELF Kind = "elf"
	HEX Kind = "hex"
	UF2 Kind = "uf2"
	BIN Kind = "bin"
)

const (
	uf2MagicStart0 = 0x0A324655
	uf2MagicStart1 = 0x9E5D5157
)

// Image describes a firmware file.
type Image struct {
	Path *paths.Path `json:"path"`
	Kind Kind        `json:"kind"`
	Size int64       `json:"size"`
	// Start and End delimit the programmed area of HEX images.
	Start uint32 `json:"start,omitempty"`
	End   uint32 `json:"end,omitempty"`
}

func (i *Image) String() string {
	if i.Kind == HEX {
		return fmt.Sprintf("%s (%s, %d bytes, 0x%08x-0x%08x)", i.Path, i.Kind, i.Size, i.Start, i.End)
	}
	return fmt.Sprintf("%s (%s, %d bytes)", i.Path, i.Kind, i.Size)
}

// Inspect detects the format of file. HEX images are fully parsed, so a
// corrupted file is reported before anything is flashed.
func Inspect(file *paths.Path) (*Image, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", file)
	}
	if info.IsDir() {
		return nil, errors.Errorf("%s is a directory", file)
	}
	img := &Image{Path: file, Size: info.Size()}

	f, err := file.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", file)
	}
	defer f.Close()
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errors.Wrapf(err, "reading %s", file)
	}
	head = head[:n]

	switch {
	case filetype.Is(head, "elf"):
		img.Kind = ELF
	case len(head) >= 8 &&
		binary.LittleEndian.Uint32(head[0:4]) == uf2MagicStart0 &&
		binary.LittleEndian.Uint32(head[4:8]) == uf2MagicStart1:
		img.Kind = UF2
	case strings.EqualFold(file.Ext(), ".hex") || (n > 0 && head[0] == ':'):
		img.Kind = HEX
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		if err := inspectHex(img, f); err != nil {
			return nil, err
		}
	default:
		img.Kind = BIN
	}
	return img, nil
}

func inspectHex(img *Image, r io.Reader) error {
	var ix ihex.IHex
	if err := ix.ReadFrom(r); err != nil {
		return errors.Wrapf(err, "invalid Intel HEX file %s", img.Path)
	}
	if len(ix.Chunks) == 0 {
		return errors.Errorf("Intel HEX file %s contains no data", img.Path)
	}
	first := ix.Chunks[0]
	last := ix.Chunks[len(ix.Chunks)-1]
	img.Start = first.Addr
	img.End = last.Addr + uint32(len(last.Data))
	return nil
}
