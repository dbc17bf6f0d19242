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
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/arduino/arduino-provisioner/board"
	"github.com/arduino/arduino-provisioner/discovery"
	"github.com/arduino/arduino-provisioner/firmware"
	"github.com/arduino/arduino-provisioner/handshake"
	"github.com/arduino/arduino-provisioner/programmers"
	"github.com/arduino/arduino-provisioner/programmers/picotool"
	"github.com/arduino/arduino-provisioner/programmers/pyocd"
	"github.com/arduino/arduino-provisioner/utils"
	"github.com/arduino/go-paths-helper"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Request describes an upload.
type Request struct {
	Board *board.Context
	// Protocol defaults to the board protocol.
	Protocol string
	// Port is the device hint: a serial port, a "SER=" serial number, a
	// volume path or pattern, or a probe id depending on the protocol.
	Port string
	// Image is the built image. Images of other kinds are looked up next to
	// it with the same base name.
	Image *paths.Path
	// Filesystem uploads Image as the filesystem partition.
	Filesystem     bool
	FilesystemSize string
	DebugSpeed     string
	UploadCommand  string
	Verbose        bool
	// DisableAutoHandshake skips the 1200bps touch.
	DisableAutoHandshake bool
}

// Result is the outcome of a successful upload.
type Result struct {
	Protocol  string            `json:"protocol"`
	Image     *firmware.Image   `json:"image"`
	Device    *discovery.Handle `json:"device,omitempty"`
	Handshake string            `json:"handshake,omitempty"`
	Command   []string          `json:"command,omitempty"`
}

func (r *Result) String() string {
	res := fmt.Sprintf("Uploaded %s with %s", r.Image.Path, r.Protocol)
	if r.Device != nil {
		res += " to " + r.Device.Address
	}
	return res
}

// Data implements feedback.Result interface
func (r *Result) Data() interface{} {
	return r
}

// TransferError is returned when the transfer tool fails.
type TransferError struct {
	Protocol string
	Err      error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("upload with %s failed: %s", e.Protocol, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Orchestrator runs uploads. The zero value is not usable, use New.
type Orchestrator struct {
	Runner   programmers.Runner
	Ports    discovery.PortLister
	Volumes  discovery.VolumeLister
	Probes   discovery.ProbeLister
	Prompter discovery.Prompter
	// Bootsel counts the devices in BOOTSEL mode, picotool by default.
	Bootsel handshake.Counter
	Touch   handshake.Stimulus
	Flush   func(ctx context.Context, port string, sleep utils.Sleeper) error
	Sleep   utils.Sleeper
	// Tools maps a tool name (picotool, bossac, dfu-util, jlink, gdb, pyocd,
	// openocd) to its executable.
	Tools map[string]string
	// BuildDir receives generated scripts, the image dir when nil.
	BuildDir   *paths.Path
	PackageDir string
	Stdout     io.Writer
	Stderr     io.Writer
}

// New creates an Orchestrator using the real devices and tools.
func New(runner programmers.Runner) *Orchestrator {
	return &Orchestrator{
		Runner:  runner,
		Ports:   discovery.EnumeratorLister{},
		Volumes: discovery.NewMountLister(),
		Touch:   handshake.Touch1200bps,
		Flush:   handshake.FlushSerialBuffer,
		Sleep:   utils.Sleep,
		Tools:   map[string]string{},
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

var defaultTools = map[string]string{
	"picotool": "picotool",
	"bossac":   "bossac",
	"dfu-util": "dfu-util",
	"jlink":    "JLinkExe",
	"gdb":      "arm-none-eabi-gdb",
	"pyocd":    "pyocd",
	"openocd":  "openocd",
}

func (o *Orchestrator) tool(name string) string {
	if exe, ok := o.Tools[name]; ok && exe != "" {
		return exe
	}
	if name == "jlink" && runtime.GOOS == "windows" {
		return "JLink.exe"
	}
	return defaultTools[name]
}

func (o *Orchestrator) serialFinder(b *board.Context) *discovery.SerialFinder {
	f := discovery.NewSerialFinder(o.Ports, b)
	f.Sleep = o.Sleep
	return f
}

func (o *Orchestrator) handshaker(counter handshake.Counter, stimulus handshake.Stimulus) *handshake.Handshaker {
	h := handshake.New(counter, stimulus)
	h.Sleep = o.Sleep
	return h
}

// Upload runs Resolve Protocol, Discover Device, Handshake, Transfer and
// Post-action for req.
func (o *Orchestrator) Upload(ctx context.Context, req *Request) (*Result, error) {
	if req.Board == nil {
		return nil, errors.New("missing board")
	}
	p, err := Lookup(req.Board.DefaultProtocol(req.Protocol), req.Board)
	if err != nil {
		return nil, err
	}
	logrus.WithField("protocol", p.Name).WithField("family", p.Family).Info("Uploading")

	t := &transfer{req: req, protocol: p, packageDir: o.PackageDir}
	if err := o.resolveImage(t); err != nil {
		return nil, err
	}
	t.buildDir = o.BuildDir
	if t.buildDir == nil {
		t.buildDir = t.image.Path.Parent()
	}
	res := &Result{Protocol: p.Name, Image: t.image}

	device, err := o.discover(ctx, t)
	if err != nil {
		return nil, err
	}
	res.Device = device
	res.Handshake = t.handshake

	if p.Family == MassStorage {
		if err := o.copyUF2(t); err != nil {
			return nil, &TransferError{Protocol: p.Name, Err: err}
		}
		return res, nil
	}

	t.initProperties(o.tool(p.Tool))
	args, err := t.commandLine()
	if err != nil {
		return nil, err
	}
	res.Command = args
	logrus.Infof("Uploading %s", t.image.Path)
	if err := o.Runner.Run(ctx, args, o.Stdout, o.Stderr); err != nil {
		return nil, &TransferError{Protocol: p.Name, Err: err}
	}

	if req.Filesystem && p.RebootAfterFilesystem {
		pt := picotool.New(o.Runner)
		pt.Executable = o.tool("picotool")
		pt.Sleep = o.Sleep
		if err := pt.Reboot(ctx); err != nil {
			return nil, &TransferError{Protocol: p.Name, Err: errors.WithMessage(err, "rebooting")}
		}
	}
	logrus.Info("Firmware has been successfully uploaded")
	return res, nil
}

var extensions = map[firmware.Kind]string{
	firmware.ELF: ".elf",
	firmware.HEX: ".hex",
	firmware.UF2: ".uf2",
	firmware.BIN: ".bin",
}

// resolveImage selects the image consumed by the protocol and, for
// filesystem uploads, computes the layout.
func (o *Orchestrator) resolveImage(t *transfer) error {
	req := t.req
	if req.Image == nil {
		return errors.New("missing image")
	}
	kind := t.protocol.Image
	if req.Filesystem {
		if t.protocol.FilesystemImage == "" {
			return errors.Errorf("protocol %s cannot upload a filesystem image on %s", t.protocol.Name, req.Board.ID)
		}
		kind = t.protocol.FilesystemImage
		l := req.Board.Layout(req.FilesystemSize)
		if err := l.Validate(); err != nil {
			return err
		}
		if l.FilesystemBytes == 0 {
			return errors.New("no filesystem configured, set the filesystem size")
		}
		t.layout = l
	}

	file := req.Image
	if kind != "" && file.Ext() != extensions[kind] {
		file = req.Image.Parent().Join(strings.TrimSuffix(req.Image.Base(), req.Image.Ext()) + extensions[kind])
	}
	img, err := firmware.Inspect(file)
	if err != nil {
		return errors.WithMessagef(err, "%s requires a %s image", t.protocol.Name, kind)
	}
	if kind != "" && img.Kind != kind {
		return errors.Errorf("%s is not a %s image", file, kind)
	}
	t.image = img
	return nil
}

func (o *Orchestrator) touchEnabled(t *transfer) bool {
	return t.board().Upload.Use1200bpsTouch && !t.req.DisableAutoHandshake
}

// discover resolves the device and runs the handshake of the protocol.
func (o *Orchestrator) discover(ctx context.Context, t *transfer) (*discovery.Handle, error) {
	b := t.board()
	switch t.protocol.Handshake {
	case TouchBootsel:
		if o.touchEnabled(t) {
			return o.bootsel(ctx, t)
		}
		return nil, nil
	case Touch:
		return o.serialBootloader(ctx, t)
	case ResetLastPort:
		if o.touchEnabled(t) {
			if err := o.resetLastPort(ctx); err != nil {
				return nil, err
			}
		}
	}

	switch t.protocol.Discovery {
	case discovery.Serial:
		h, err := o.serialFinder(b).Find(ctx, t.req.Port, nil)
		if err != nil {
			return nil, err
		}
		t.port = h.Address
		return h, nil
	case discovery.MassStorage:
		h, err := discovery.NewVolumeFinder(o.Volumes, b).Find(t.req.Port)
		if err != nil {
			return nil, err
		}
		t.port = h.Address
		return h, nil
	case discovery.Probe:
		lister := o.Probes
		if lister == nil {
			lister = pyocd.New(o.Runner, b.Debug.PyOCDTarget)
		}
		h, err := discovery.SelectProbe(ctx, lister, discovery.ProbeSelection{Hint: t.req.Port, Prompter: o.Prompter})
		if err != nil {
			return nil, err
		}
		t.probe = h.Address
		return h, nil
	}
	return nil, nil
}

// bootsel resets the board into BOOTSEL mode unless a device is already
// there. The upload port is looked up only when the touch is needed, and
// followed to its new name when the board asks to wait for it.
func (o *Orchestrator) bootsel(ctx context.Context, t *transfer) (*discovery.Handle, error) {
	counter := o.Bootsel
	if counter == nil {
		pt := picotool.New(o.Runner)
		pt.Executable = o.tool("picotool")
		counter = pt
	}
	finder := o.serialFinder(t.board())
	wait := t.board().Upload.WaitForUploadPort
	var before []string
	touched := false
	h := o.handshaker(counter, func(ctx context.Context, _ string) error {
		var port *discovery.Handle
		var err error
		if t.req.Port == "" {
			port, err = finder.ByHWID()
		} else {
			port, err = finder.Find(ctx, t.req.Port, nil)
		}
		if err != nil {
			return err
		}
		t.port = port.Address
		if wait {
			if before, err = finder.Snapshot(); err != nil {
				return err
			}
		}
		touched = true
		return o.Touch(ctx, port.Address)
	})
	h.SkipIfPresent = true
	result, err := h.Run(ctx, "upload port")
	t.handshake = result.String()
	if err != nil {
		return nil, err
	}
	if !wait || !touched || result == handshake.AlreadyInBootloader {
		return nil, nil
	}
	port, err := finder.WaitForNewPortOrDefault(ctx, before, t.port)
	if errors.Is(err, discovery.ErrNoNewPort) {
		logrus.Warnf("No upload port appeared after touching %s", t.port)
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	t.port = port.Address
	return port, nil
}

// serialBootloader resolves the upload port, flushes it, touches it and
// waits for the bootloader port when the board asks so.
func (o *Orchestrator) serialBootloader(ctx context.Context, t *transfer) (*discovery.Handle, error) {
	b := t.board()
	finder := o.serialFinder(b)
	port, err := finder.Find(ctx, t.req.Port, nil)
	if err != nil {
		return nil, err
	}
	if !b.Upload.DisableFlushing && o.Flush != nil {
		if err := o.Flush(ctx, port.Address, o.Sleep); err != nil {
			logrus.WithError(err).Warnf("Could not flush %s", port.Address)
		}
	}
	before, err := finder.Snapshot()
	if err != nil {
		return nil, err
	}
	if o.touchEnabled(t) {
		result, err := o.handshaker(nil, o.Touch).Run(ctx, port.Address)
		if err != nil {
			return nil, err
		}
		t.handshake = result.String()
	}
	if b.Upload.WaitForUploadPort {
		if port, err = finder.WaitForNewPortOrDefault(ctx, before, port.Address); err != nil {
			return nil, err
		}
	}
	t.port = port.Address
	return port, nil
}

// resetLastPort touches the last serial port, hoping it belongs to the board.
func (o *Orchestrator) resetLastPort(ctx context.Context) error {
	ports, err := o.serialFinder(nil).Snapshot()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		return nil
	}
	h := o.handshaker(nil, o.Touch)
	h.Settle = 2 * time.Second
	_, err = h.Run(ctx, ports[len(ports)-1])
	return err
}
