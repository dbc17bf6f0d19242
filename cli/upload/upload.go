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
	"os"

	"github.com/arduino/arduino-provisioner/cli/arguments"
	"github.com/arduino/arduino-provisioner/cli/common"
	"github.com/arduino/arduino-provisioner/cli/feedback"
	"github.com/arduino/arduino-provisioner/discovery"
	uploader "github.com/arduino/arduino-provisioner/upload"
	"github.com/arduino/go-paths-helper"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	commonFlags    arguments.Flags
	image          string
	protocol       string
	filesystem     bool
	filesystemSize string
	debugSpeed     string
	uploadCommand  string
	verboseUpload  bool
	noTouch        bool
	noInteractive  bool
)

// NewCommand created a new `upload` command
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "upload",
		Short: "Uploads a firmware to a board.",
		Long:  "Puts the board in bootloader mode when needed, finds the upload device and transfers the firmware with the tool of the selected upload protocol.",
		Example: "" +
			"  " + os.Args[0] + " upload -b seeed-xiao-rp2040 --image build/firmware.elf\n" +
			"  " + os.Args[0] + " upload -b seeed-xiao-rp2040 --image build/littlefs.bin --filesystem --filesystem-size 1MB\n" +
			"  " + os.Args[0] + " upload -b seeed-xiao-samd21 -p /dev/ttyACM0 --image build/firmware.bin --protocol sam-ba",
		Args: cobra.NoArgs,
		Run:  runUpload,
	}
	commonFlags.AddToCommand(command)
	command.Flags().StringVarP(&image, "image", "i", "", "Firmware image, images of other formats are looked up next to it")
	command.Flags().StringVar(&protocol, "protocol", "", "Upload protocol, the board default when empty")
	command.Flags().BoolVar(&filesystem, "filesystem", false, "Upload the image as the filesystem partition")
	command.Flags().StringVar(&filesystemSize, "filesystem-size", "", "Filesystem size, e.g.: 1MB, 512K, 0")
	command.Flags().StringVar(&debugSpeed, "debug-speed", "", "Debug adapter speed in kHz")
	command.Flags().StringVar(&uploadCommand, "upload-command", "", "Command line of the custom protocol")
	command.Flags().BoolVar(&verboseUpload, "verbose-upload", false, "Ask the upload tool for verbose output")
	command.Flags().BoolVar(&noTouch, "no-touch", false, "Do not reset the board into bootloader mode")
	command.Flags().BoolVar(&noInteractive, "no-interactive", false, "Never ask to choose among several devices")
	return command
}

func runUpload(cmd *cobra.Command, args []string) {
	if image == "" {
		feedback.Fatal("Missing firmware image, use --image", feedback.ErrBadArgument)
	}
	b := common.GetBoard(commonFlags.Board)
	cfg := common.Config()

	req := &uploader.Request{
		Board:                b,
		Protocol:             b.DefaultProtocol(firstOf(protocol, cfg.UploadProtocol)),
		Port:                 firstOf(commonFlags.Port, cfg.UploadPort),
		Image:                paths.New(image),
		Filesystem:           filesystem,
		FilesystemSize:       firstOf(filesystemSize, cfg.FilesystemSize),
		DebugSpeed:           firstOf(debugSpeed, cfg.DebugSpeed),
		UploadCommand:        firstOf(uploadCommand, cfg.UploadCommand),
		Verbose:              verboseUpload,
		DisableAutoHandshake: noTouch || cfg.DisableAutoHandshake,
	}
	logrus.Debugf("board: %s, protocol: %s, port: %s", b.ID, req.Protocol, req.Port)

	o := uploader.New(common.NewRunner())
	o.Tools = cfg.Tools
	o.PackageDir = cfg.PackageDir
	o.Prompter = common.Prompter(noInteractive)
	if cfg.BootselDetection == "usb" {
		o.Bootsel = &discovery.USBCounter{IDs: b.Bootloader.USBIDs}
	}
	if feedback.GetFormat() == feedback.JSON {
		o.Stdout, o.Stderr = nil, nil
	}

	ctx, cancel := common.Context()
	defer cancel()
	res, err := o.Upload(ctx, req)
	if err != nil {
		code := feedback.ErrGeneric
		if errors.Is(err, uploader.ErrUnknownProtocol) {
			code = feedback.ErrBadArgument
		}
		feedback.Fatal(fmt.Sprintf("Error during upload: %s", err), code)
	}
	feedback.PrintResult(res)
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
