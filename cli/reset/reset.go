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

// Package reset implements the `recover` command erasing, and optionally
// reflashing, a board through a debug probe.
package reset

import (
	"io"
	"os"

	"github.com/arduino/arduino-provisioner/cli/common"
	"github.com/arduino/arduino-provisioner/cli/feedback"
	"github.com/arduino/arduino-provisioner/programmers/pyocd"
	"github.com/arduino/arduino-provisioner/recovery"
	"github.com/mattn/go-colorable"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type flags struct {
	mode          string
	probe         string
	firmware      string
	checksum      string
	target        string
	frequency     int
	skipFlash     bool
	forceMass     bool
	standardOnly  bool
	logPath       string
	quiet         bool
	noInteractive bool
}

var recoverFlags flags

// NewCommand created a new `recover` command
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:     "recover",
		Aliases: []string{"reset"},
		Short:   "Erases a locked board through a debug probe.",
		Long: "Selects a debug probe, erases the chip with a mass erase falling back to a standard erase " +
			"and, in factory mode, flashes a firmware.\n\n" +
			"Exit codes: 0 success, 2 probe error, 3 erase error, 4 flash error, 5 usage error.",
		Example: "" +
			"  " + os.Args[0] + " recover --mode recover\n" +
			"  " + os.Args[0] + " recover --mode factory --firmware firmware.hex --probe E6614C311B2C8D2A",
		Args: cobra.NoArgs,
		Run:  runRecover,
	}
	f := &recoverFlags
	command.Flags().StringVar(&f.mode, "mode", "", "Operation mode, can be {recover|factory} (required)")
	command.Flags().StringVar(&f.probe, "probe", "", "Unique id of the debug probe to use")
	command.Flags().StringVar(&f.firmware, "firmware", "", "Firmware to flash in factory mode, a file or an URL")
	command.Flags().StringVar(&f.checksum, "firmware-checksum", "", "Checksum of the firmware downloaded from an URL, e.g.: SHA-256:<hex>")
	command.Flags().StringVar(&f.target, "target", recovery.DefaultTarget, "pyOCD target type")
	command.Flags().IntVar(&f.frequency, "frequency", recovery.DefaultFrequency, "SWD clock frequency in Hz")
	command.Flags().BoolVar(&f.skipFlash, "skip-flash", false, "Only erase, even in factory mode")
	command.Flags().BoolVar(&f.forceMass, "force-mass", false, "Use mass erase only, without falling back to standard erase")
	command.Flags().BoolVar(&f.standardOnly, "standard-only", false, "Use standard erase only")
	command.Flags().StringVar(&f.logPath, "log", "", "Append a detailed log to this file")
	command.Flags().BoolVar(&f.quiet, "quiet", false, "Print only warnings and errors")
	command.Flags().BoolVar(&f.noInteractive, "no-interactive", false, "Never ask to choose among several probes")
	return command
}

func (f *flags) options() recovery.Options {
	return recovery.Options{
		Mode:             recovery.Mode(f.mode),
		Probe:            f.probe,
		Firmware:         f.firmware,
		FirmwareChecksum: f.checksum,
		CacheDir:         common.CacheDir(),
		SkipFlash:        f.skipFlash,
		ForceMass:        f.forceMass,
		StandardOnly:     f.standardOnly,
	}
}

// configureLogging prints info messages, or only warnings when quiet, on
// console and every message in the log file when logPath is set.
func configureLogging(logger *logrus.Logger, console io.Writer, logPath string, quiet bool) (io.Closer, error) {
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	logger.ReplaceHooks(make(logrus.LevelHooks))

	consoleLevels := lfshook.WriterMap{}
	for _, level := range logrus.AllLevels {
		if level <= logrus.WarnLevel || (!quiet && level == logrus.InfoLevel) {
			consoleLevels[level] = console
		}
	}
	logger.AddHook(lfshook.NewHook(consoleLevels, &logrus.TextFormatter{FullTimestamp: true}))

	if logPath == "" {
		return nil, nil
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	logger.AddHook(lfshook.NewHook(file, &logrus.TextFormatter{FullTimestamp: true}))
	return file, nil
}

type result struct {
	*recovery.Report
	err error
}

func (r *result) ErrorString() string {
	if r.err == nil {
		return ""
	}
	return r.err.Error()
}

// Data implements feedback.Result interface
func (r *result) Data() interface{} {
	type data struct {
		*recovery.Report
		Error string `json:"error,omitempty"`
	}
	res := &data{Report: r.Report}
	if r.err != nil {
		res.Error = r.err.Error()
	}
	return res
}

func runRecover(cmd *cobra.Command, args []string) {
	f := &recoverFlags
	logFile, err := configureLogging(logrus.StandardLogger(), colorable.NewColorableStdout(), f.logPath, f.quiet)
	if err != nil {
		feedback.Fatal("Unable to open file for logging: "+f.logPath, feedback.ErrBadArgument)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	p := pyocd.New(common.NewRunner(), f.target)
	p.Executable = common.Tool("pyocd", p.Executable)
	p.Frequency = f.frequency
	if feedback.GetFormat() == feedback.Text {
		p.Stdout, p.Stderr = os.Stdout, os.Stderr
	}
	sequencer := &recovery.Sequencer{
		Programmer: p,
		Probes:     p,
		Prompter:   common.Prompter(f.noInteractive),
		Frequency:  f.frequency,
	}

	ctx, cancel := common.Context()
	defer cancel()
	report, err := sequencer.Run(ctx, f.options())
	res := &result{Report: report, err: err}
	if err != nil {
		logrus.Error(err)
		if logFile != nil {
			logFile.Close()
		}
		feedback.FatalResult(res, feedback.ExitCode(recovery.ExitCode(err)))
	}
	feedback.PrintResult(res)
	printLogLocation(f.logPath)
}

func printLogLocation(logPath string) {
	if logPath != "" {
		feedback.Print("Full log written to " + logPath)
	}
}
