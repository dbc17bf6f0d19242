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
	"bytes"
	"os"
	"testing"

	"github.com/arduino/arduino-provisioner/cli/feedback"
	"github.com/arduino/arduino-provisioner/discovery"
	"github.com/stretchr/testify/require"
)

func TestProbeListResult(t *testing.T) {
	require.Empty(t, ProbeListResult{}.String())

	res := ProbeListResult{
		{UniqueID: "E6614C311B2C8D2A", Description: "CMSIS-DAP", Vendor: "Raspberry Pi", Target: "nrf54l"},
	}
	text := res.String()
	require.Contains(t, text, "E6614C311B2C8D2A")
	require.Contains(t, text, "CMSIS-DAP")
	require.Contains(t, text, "Target")
	require.Len(t, res.Data(), 1)
}

func TestPrintProbes(t *testing.T) {
	var out, errOut bytes.Buffer
	feedback.SetOut(&out)
	feedback.SetErr(&errOut)
	defer feedback.SetOut(os.Stdout)
	defer feedback.SetErr(os.Stderr)

	printProbes(nil)
	require.Empty(t, out.String())
	require.Equal(t, "No debug probes found.\n", errOut.String())

	out.Reset()
	errOut.Reset()
	printProbes([]*discovery.DebugProbe{{UniqueID: "E6614C311B2C8D2A", Description: "CMSIS-DAP"}})
	require.Contains(t, out.String(), "E6614C311B2C8D2A")
	require.Empty(t, errOut.String())
}
