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

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arduino/arduino-provisioner/cli/common"
	"github.com/arduino/arduino-provisioner/cli/feedback"
	"github.com/arduino/arduino-provisioner/cli/layout"
	"github.com/arduino/arduino-provisioner/cli/probes"
	"github.com/arduino/arduino-provisioner/cli/reset"
	"github.com/arduino/arduino-provisioner/cli/size"
	"github.com/arduino/arduino-provisioner/cli/upload"
	"github.com/arduino/arduino-provisioner/cli/version"
	v "github.com/arduino/arduino-provisioner/version"
	"github.com/mattn/go-colorable"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	outputFormat string
	verbose      bool
	logFile      string
	logFormat    string
	logLevel     string
)

// NewCommand created a new `arduino-provisioner` root command
func NewCommand() *cobra.Command {
	// provisionerCli is the root command
	provisionerCli := &cobra.Command{
		Use:              "arduino-provisioner",
		Short:            "arduino-provisioner.",
		Long:             "Arduino Provisioner (arduino-provisioner): flash layout, firmware size checks, uploads and debug probe recovery.",
		Example:          "  " + os.Args[0] + " <command> [flags...]",
		Args:             cobra.NoArgs,
		PersistentPreRun: preRun,
	}

	provisionerCli.AddCommand(version.NewCommand())
	provisionerCli.AddCommand(layout.NewCommand())
	provisionerCli.AddCommand(size.NewCommand())
	provisionerCli.AddCommand(upload.NewCommand())
	provisionerCli.AddCommand(probes.NewCommand())
	provisionerCli.AddCommand(reset.NewCommand())

	provisionerCli.PersistentFlags().StringVar(&outputFormat, "format", "text", "The output format, can be {text|json}.")

	provisionerCli.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to the file where logs will be written")
	provisionerCli.PersistentFlags().StringVar(&logFormat, "log-format", "", "The output format for the logs, can be {text|json}.")
	provisionerCli.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Messages with this level and above will be logged. Valid levels are: trace, debug, info, warn, error, fatal, panic")
	provisionerCli.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print the logs on the standard output.")

	provisionerCli.PersistentFlags().StringVar(&common.ConfigFile, "config", "", "Configuration file, provisioner.yaml in the working directory by default")
	provisionerCli.PersistentFlags().StringVar(&common.BoardCatalog, "board-catalog", "", "Board catalog file replacing the builtin one")

	return provisionerCli
}

// Convert the string passed to the `--log-level` option to the corresponding
// logrus formal level.
func toLogLevel(s string) (t logrus.Level, found bool) {
	t, found = map[string]logrus.Level{
		"trace": logrus.TraceLevel,
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}[s]

	return
}

func preRun(cmd *cobra.Command, args []string) {
	// Prepare logging
	if verbose {
		// if we print on stdout, do it in full colors
		logrus.SetOutput(colorable.NewColorableStdout())
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors: true,
		})
	} else {
		logrus.SetOutput(io.Discard)
	}

	// Normalize the format strings
	logFormat = strings.ToLower(logFormat)
	if logFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Unable to open file for logging: %s\n", logFile)
			os.Exit(int(feedback.ErrBadArgument))
		}

		// Use a hook so we don't get color codes in the log file
		if logFormat == "json" {
			logrus.AddHook(lfshook.NewHook(file, &logrus.JSONFormatter{}))
		} else {
			logrus.AddHook(lfshook.NewHook(file, &logrus.TextFormatter{}))
		}
	}

	// Configure logging filter
	if lvl, found := toLogLevel(logLevel); !found {
		feedback.Fatal(fmt.Sprintf("Invalid option for --log-level: %s", logLevel), feedback.ErrBadArgument)
	} else {
		logrus.SetLevel(lvl)
	}

	// Prepare the Feedback system

	// normalize the format strings
	outputFormat = strings.ToLower(outputFormat)
	// check the right output format was passed
	format, found := feedback.ParseOutputFormat(outputFormat)
	if !found {
		feedback.Fatal(fmt.Sprintf("Invalid output format: %s", outputFormat), feedback.ErrBadArgument)
	}

	// use the output format to configure the Feedback
	feedback.SetFormat(format)

	logrus.Info(v.VersionInfo)

	if outputFormat != "text" {
		cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
			logrus.Warn("Calling help on JSON format")
			feedback.Fatal("Invalid Call : should show Help, but it is available only in TEXT mode.", feedback.ErrBadArgument)
		})
	}
}
