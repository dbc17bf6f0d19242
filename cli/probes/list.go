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

package probes

import (
	"os"

	"github.com/arduino/arduino-cli/table"
	"github.com/arduino/arduino-provisioner/cli/common"
	"github.com/arduino/arduino-provisioner/cli/feedback"
	"github.com/arduino/arduino-provisioner/discovery"
	"github.com/arduino/arduino-provisioner/programmers/pyocd"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var backend *string

	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List attached debug probes",
		Long:    "Displays the attached debug probes as reported by pyOCD or found on the USB bus.",
		Example: "  " + os.Args[0] + " probes list --backend usb",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			list(*backend)
		},
	}
	backend = listCmd.Flags().String("backend", "pyocd", "Probe enumeration backend, can be {pyocd|usb}")
	return listCmd
}

// ProbeListResult is the list of attached probes.
type ProbeListResult []*discovery.DebugProbe

func list(backend string) {
	ctx, cancel := common.Context()
	defer cancel()

	var lister discovery.ProbeLister
	switch backend {
	case "pyocd":
		p := pyocd.New(common.NewRunner(), "")
		p.Executable = common.Tool("pyocd", p.Executable)
		if err := p.CheckVersion(ctx); err != nil {
			logrus.WithError(err).Warn("Can't check pyocd version")
		}
		lister = p
	case "usb":
		lister = discovery.USBProbeLister{}
	default:
		feedback.Fatal("Invalid backend "+backend+", must be pyocd or usb", feedback.ErrBadArgument)
	}

	probes, err := lister.ListProbes(ctx)
	if err != nil {
		feedback.FatalError(err, feedback.ErrProbe)
	}
	printProbes(probes)
}

func printProbes(probes []*discovery.DebugProbe) {
	if len(probes) == 0 {
		feedback.Warning("No debug probes found.")
		probes = []*discovery.DebugProbe{}
	}
	feedback.PrintResult(ProbeListResult(probes))
}

func (p ProbeListResult) String() string {
	if len(p) == 0 {
		return ""
	}
	t := table.New()
	t.SetHeader("ID", "Description", "Vendor", "Target")
	for _, probe := range p {
		t.AddRow(probe.UniqueID, probe.Description, probe.Vendor, probe.Target)
	}
	return t.Render()
}

func (p ProbeListResult) Data() interface{} {
	return p
}
