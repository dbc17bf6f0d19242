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

package discovery

import (
	"testing"

	"github.com/arduino/go-paths-helper"
	"github.com/stretchr/testify/require"
)

type staticVolumes []*Volume

func (s staticVolumes) ListVolumes() ([]*Volume, error) { return s, nil }

func mkVolume(t *testing.T, root *paths.Path, name string, files ...string) *Volume {
	dir := root.Join(name)
	require.NoError(t, dir.MkdirAll())
	for _, f := range files {
		require.NoError(t, dir.Join(f).WriteFile([]byte("x")))
	}
	return &Volume{Path: dir.String(), Name: name}
}

func TestVolumeExplicitHint(t *testing.T) {
	f := &VolumeFinder{Lister: staticVolumes{}}
	h, err := f.Find("/media/me/RPI-RP2")
	require.NoError(t, err)
	require.Equal(t, &Handle{Kind: MassStorage, Address: "/media/me/RPI-RP2", Provenance: Explicit}, h)
}

func TestVolumeMarkerWinsOverLabel(t *testing.T) {
	root := paths.New(t.TempDir())
	labelled := mkVolume(t, root, "RPI-RP2")
	marked := mkVolume(t, root, "NONAME", "INFO_UF2.TXT")

	f := &VolumeFinder{
		Lister:  staticVolumes{labelled, marked},
		Markers: DefaultVolumeMarkers,
		Labels:  []string{"RPI-RP2"},
	}
	h, err := f.Find("")
	require.NoError(t, err)
	require.Equal(t, marked.Path, h.Address)
	require.Equal(t, MarkerFile, h.Provenance)
}

func TestVolumeLabelIsCaseInsensitive(t *testing.T) {
	root := paths.New(t.TempDir())
	other := mkVolume(t, root, "USBSTICK")
	labelled := mkVolume(t, root, "rpi-rp2 (2)")

	f := &VolumeFinder{Lister: staticVolumes{other, labelled}, Markers: DefaultVolumeMarkers, Labels: []string{"RPI-RP2"}}
	h, err := f.Find("")
	require.NoError(t, err)
	require.Equal(t, labelled.Path, h.Address)
	require.Equal(t, Label, h.Provenance)
}

func TestVolumePatternRestrictsCandidates(t *testing.T) {
	root := paths.New(t.TempDir())
	first := mkVolume(t, root, "A", "INDEX.HTM")
	second := mkVolume(t, root, "B", "INDEX.HTM")

	f := &VolumeFinder{Lister: staticVolumes{first, second}, Markers: DefaultVolumeMarkers}
	h, err := f.Find(root.Join("[B]").String())
	require.NoError(t, err)
	require.Equal(t, second.Path, h.Address)
}

func TestVolumePatternStarCrossesSeparator(t *testing.T) {
	root := paths.New(t.TempDir())
	other := mkVolume(t, root.Join("media", "user"), "USBSTICK", "INDEX.HTM")
	rp2 := mkVolume(t, root.Join("media", "user"), "RPI-RP2", "INDEX.HTM")

	f := &VolumeFinder{Lister: staticVolumes{other, rp2}, Markers: DefaultVolumeMarkers}
	h, err := f.Find("*RPI-RP2*")
	require.NoError(t, err)
	require.Equal(t, rp2.Path, h.Address)
	require.Equal(t, MarkerFile, h.Provenance)

	_, err = f.Find("*NOTHERE*")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMatchVolume(t *testing.T) {
	for _, tc := range []struct {
		pattern, path string
		match         bool
	}{
		{"*RPI-RP2*", "/media/user/RPI-RP2", true},
		{"*RPI-RP2*", "/media/user/USBSTICK", false},
		{"/media/*", "/media/user/RPI-RP2", true},
		{"/media/?ser/RPI*", "/media/user/RPI-RP2", true},
		{"/media?user*", "/media/user/RPI-RP2", true},
		{"/mnt/[ab]", "/mnt/b", true},
		{"/mnt/[!ab]", "/mnt/b", false},
		{"/mnt/[!ab]", "/mnt/c", true},
		{"/mnt/[a-c]x", "/mnt/bx", true},
		{"/mnt/[x", "/mnt/[x", true},
		{"/mnt/RPI.RP2", "/mnt/RPI-RP2", false},
		{"/mnt/RPI(2)", "/mnt/RPI(2)", true},
	} {
		require.Equal(t, tc.match, matchVolume(tc.pattern, tc.path), "%s ~ %s", tc.pattern, tc.path)
	}
}

func TestVolumeNetworkMountsExcluded(t *testing.T) {
	f := &VolumeFinder{
		Lister: staticVolumes{{Path: "/net/server/RPI-RP2", Name: "RPI-RP2"}},
		Labels: []string{"RPI-RP2"},
	}
	_, err := f.Find("")
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "specify")
}

func TestIsPattern(t *testing.T) {
	require.True(t, IsPattern("/media/*/RPI*"))
	require.True(t, IsPattern("E?"))
	require.True(t, IsPattern("/mnt/[ab]"))
	require.False(t, IsPattern("/media/me/RPI-RP2"))
}

func TestMountLister(t *testing.T) {
	root := paths.New(t.TempDir())
	mkVolume(t, root, "VOL1")
	require.NoError(t, root.Join("file.txt").WriteFile(nil))

	l := &MountLister{Roots: paths.NewPathList(root.String(), root.Join("missing").String())}
	volumes, err := l.ListVolumes()
	require.NoError(t, err)
	require.Len(t, volumes, 1)
	require.Equal(t, "VOL1", volumes[0].Name)
}
