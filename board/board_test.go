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

package board

import (
	"testing"

	"github.com/arduino/go-paths-helper"
	"github.com/stretchr/testify/require"
)

func TestArchitectureFor(t *testing.T) {
	require.Equal(t, ArchRPi, ArchitectureFor("seeed-xiao-rp2040"))
	require.Equal(t, ArchRPi, ArchitectureFor("seeed-xiao-rp2350"))
	require.Equal(t, ArchRenesas, ArchitectureFor("seeed-xiao-ra4m1"))
	require.Equal(t, ArchESP, ArchitectureFor("seeed-xiao-esp32c3"))
	require.Equal(t, ArchNRF, ArchitectureFor("seeed-xiao-nrf54l15"))
	require.Equal(t, ArchSAMD, ArchitectureFor("seeed-xiao-samd21"))
	require.Equal(t, ArchSiliconLabs, ArchitectureFor("seeed-xiao-mg24"))
	require.Equal(t, ArchUnknown, ArchitectureFor("unknown-board"))
}

func TestArchitectureIsPerCall(t *testing.T) {
	// a previous lookup must not leak into the next one
	require.Equal(t, ArchRPi, ArchitectureFor("seeed-xiao-rp2040"))
	require.Equal(t, ArchUnknown, ArchitectureFor("some-other-board"))
}

func TestBuiltinCatalog(t *testing.T) {
	catalog, err := LoadCatalog()
	require.NoError(t, err)
	require.Contains(t, catalog.IDs(), "seeed-xiao-rp2040")
	require.IsIncreasing(t, catalog.IDs())

	rp2040, err := catalog.Board("seeed-xiao-rp2040")
	require.NoError(t, err)
	require.Equal(t, ArchRPi, rp2040.Arch)
	require.EqualValues(t, 2*1024*1024, rp2040.FlashBytes())
	require.EqualValues(t, 256*1024, rp2040.RAMBytes())
	require.Equal(t, "picotool", rp2040.DefaultProtocol(""))
	require.Equal(t, "mbed", rp2040.DefaultProtocol("mbed"))
	require.True(t, rp2040.Upload.Use1200bpsTouch)
	require.True(t, rp2040.MatchesHWID("2e8a", "000a"))
	require.True(t, rp2040.MatchesHWID("0x2E8A", "0x000A"))
	require.False(t, rp2040.MatchesHWID("2e8a", "0003"))

	tool, ok := rp2040.DebugTool("cmsis-dap")
	require.True(t, ok)
	require.Contains(t, tool.Server.Arguments, "target/rp2040.cfg")
	_, ok = rp2040.DebugTool("stlink")
	require.False(t, ok)

	l := rp2040.Layout("1MB")
	require.EqualValues(t, 1024*1024-4096, l.AppMaxBytes)

	_, err = catalog.Board("nope")
	require.Error(t, err)
}

func TestBoardReturnsCopy(t *testing.T) {
	catalog, err := LoadCatalog()
	require.NoError(t, err)
	b1, err := catalog.Board("seeed-xiao-rp2040")
	require.NoError(t, err)
	b1.Upload.Protocol = "custom"
	b2, err := catalog.Board("seeed-xiao-rp2040")
	require.NoError(t, err)
	require.Equal(t, "picotool", b2.Upload.Protocol)
}

func TestCatalogFile(t *testing.T) {
	dir := paths.New(t.TempDir())
	file := dir.Join("boards.yaml")
	require.NoError(t, file.WriteFile([]byte(`
my-board:
  flash_size: 16MB
  upload:
    protocol: picotool
`)))
	catalog, err := LoadCatalogFile(file)
	require.NoError(t, err)
	b, err := catalog.Board("my-board")
	require.NoError(t, err)
	require.EqualValues(t, 16*1024*1024, b.FlashBytes())
	require.Equal(t, "0", b.PSRAMSize)

	require.NoError(t, file.WriteFile([]byte("bad-board:\n  flash_size: lots\n")))
	_, err = LoadCatalogFile(file)
	require.Error(t, err)

	require.NoError(t, file.WriteFile([]byte("no-flash:\n  name: x\n")))
	_, err = LoadCatalogFile(file)
	require.Error(t, err)
}
