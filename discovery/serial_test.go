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
	"context"
	"testing"
	"time"

	"github.com/arduino/arduino-provisioner/board"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// scriptedPorts returns the given snapshots in order, repeating the last one.
type scriptedPorts struct {
	snapshots [][]*Port
	calls     int
}

func (s *scriptedPorts) ListPorts() ([]*Port, error) {
	i := s.calls
	if i >= len(s.snapshots) {
		i = len(s.snapshots) - 1
	}
	s.calls++
	return s.snapshots[i], nil
}

func ports(names ...string) []*Port {
	res := []*Port{}
	for _, n := range names {
		res = append(res, &Port{Name: n})
	}
	return res
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newFinder(lister PortLister) *SerialFinder {
	f := NewSerialFinder(lister, nil)
	f.Sleep = noSleep
	return f
}

func TestSerialExplicitHint(t *testing.T) {
	lister := &scriptedPorts{snapshots: [][]*Port{ports("/dev/ttyACM0")}}
	h, err := newFinder(lister).Find(context.Background(), "/dev/ttyUSB7", nil)
	require.NoError(t, err)
	require.Equal(t, &Handle{Kind: Serial, Address: "/dev/ttyUSB7", Provenance: Explicit}, h)
	require.Zero(t, lister.calls)
}

func TestSerialNumberHintSingleMatch(t *testing.T) {
	lister := &scriptedPorts{snapshots: [][]*Port{{
		{Name: "/dev/ttyACM0", SerialNumber: "AAAA"},
		{Name: "/dev/ttyACM1", SerialNumber: "BBBB"},
	}}}
	triggered := false
	h, err := newFinder(lister).Find(context.Background(), "SER=BBBB", func(ctx context.Context) error {
		triggered = true
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM1", h.Address)
	require.Equal(t, SerialNumber, h.Provenance)
	require.False(t, triggered, "autodetection must not run")
	require.Equal(t, 1, lister.calls)
}

func TestSerialNumberHintFallsBackToAutodetection(t *testing.T) {
	for name, first := range map[string][]*Port{
		"no match": {
			{Name: "/dev/ttyACM0", SerialNumber: "AAAA"},
		},
		"two matches": {
			{Name: "/dev/ttyACM0", SerialNumber: "CCCC"},
			{Name: "/dev/ttyACM1", SerialNumber: "CCCC"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			hook := test.NewGlobal()
			defer hook.Reset()

			after := append(append([]*Port{}, first...), &Port{Name: "/dev/ttyACM9"})
			lister := &scriptedPorts{snapshots: [][]*Port{first, first, after}}
			h, err := newFinder(lister).Find(context.Background(), "SER=CCCC", nil)
			require.NoError(t, err)
			require.Equal(t, "/dev/ttyACM9", h.Address)
			require.Equal(t, Autodetect, h.Provenance)

			var warned bool
			for _, e := range hook.AllEntries() {
				warned = warned || e.Level == logrus.WarnLevel
			}
			require.True(t, warned)
		})
	}
}

func TestSerialAutodetectCallsTriggerBetweenSnapshots(t *testing.T) {
	lister := &scriptedPorts{snapshots: [][]*Port{
		ports("/dev/ttyACM0"),
		ports("/dev/ttyACM0"),
		ports("/dev/ttyACM0", "/dev/ttyACM1"),
	}}
	var callsAtTrigger int
	h, err := newFinder(lister).Find(context.Background(), "", func(ctx context.Context) error {
		callsAtTrigger = lister.calls
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, callsAtTrigger)
	require.Equal(t, "/dev/ttyACM1", h.Address)
}

func TestSerialAutodetectByHWID(t *testing.T) {
	catalog, err := board.LoadCatalog()
	require.NoError(t, err)
	b, err := catalog.Board("seeed-xiao-rp2040")
	require.NoError(t, err)

	lister := &scriptedPorts{snapshots: [][]*Port{{
		{Name: "/dev/ttyUSB0", VID: "0403", PID: "6001"},
		{Name: "/dev/ttyACM3", VID: "2886", PID: "0042"},
	}}}
	f := NewSerialFinder(lister, b)
	f.Sleep = noSleep
	h, err := f.Find(context.Background(), "", nil)
	require.NoError(t, err)
	require.Equal(t, &Handle{Kind: Serial, Address: "/dev/ttyACM3", Provenance: HWID}, h)
}

func TestSerialByHWID(t *testing.T) {
	catalog, err := board.LoadCatalog()
	require.NoError(t, err)
	b, err := catalog.Board("seeed-xiao-rp2040")
	require.NoError(t, err)

	lister := &scriptedPorts{snapshots: [][]*Port{{{Name: "/dev/ttyUSB0", VID: "0403", PID: "6001"}}}}
	_, err = NewSerialFinder(lister, b).ByHWID()
	require.ErrorIs(t, err, ErrNotFound)

	lister.snapshots = [][]*Port{{
		{Name: "/dev/ttyACM1", VID: "2e8a", PID: "000a"},
		{Name: "/dev/ttyACM0", VID: "2886", PID: "0042"},
	}}
	_, err = NewSerialFinder(lister, b).ByHWID()
	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	require.Equal(t, []string{"/dev/ttyACM0", "/dev/ttyACM1"}, ambiguous.Candidates)

	_, err = NewSerialFinder(lister, nil).ByHWID()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWaitForNewPortRenameIsNotNew(t *testing.T) {
	// ttyACM0 disappears while ttyACM1 appears: the count does not change
	lister := &scriptedPorts{snapshots: [][]*Port{
		ports("/dev/ttyACM1", "/dev/ttyS0"),
	}}
	f := newFinder(lister)
	_, err := f.WaitForNewPort(context.Background(), []string{"/dev/ttyACM0", "/dev/ttyS0"})
	require.ErrorIs(t, err, ErrNoNewPort)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 21, lister.calls)
}

func TestWaitForNewPortAmbiguous(t *testing.T) {
	lister := &scriptedPorts{snapshots: [][]*Port{
		ports("/dev/ttyS0", "/dev/ttyACM2", "/dev/ttyACM1"),
	}}
	_, err := newFinder(lister).WaitForNewPort(context.Background(), []string{"/dev/ttyS0"})
	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	require.Equal(t, []string{"/dev/ttyACM1", "/dev/ttyACM2"}, ambiguous.Candidates)
}

func TestWaitForNewPortRollingBaseline(t *testing.T) {
	// a port vanishes and comes back: with a rolling baseline its return is
	// detected as the new port
	lister := &scriptedPorts{snapshots: [][]*Port{
		ports("/dev/ttyS0"),
		ports("/dev/ttyS0", "/dev/ttyACM0"),
	}}
	name, err := newFinder(lister).WaitForNewPort(context.Background(), []string{"/dev/ttyACM0", "/dev/ttyS0"})
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM0", name)
}

func TestWaitForNewPortOrDefault(t *testing.T) {
	lister := &scriptedPorts{snapshots: [][]*Port{ports("/dev/ttyACM0")}}
	h, err := newFinder(lister).WaitForNewPortOrDefault(context.Background(), []string{"/dev/ttyACM0"}, "/dev/ttyACM0")
	require.NoError(t, err)
	require.Equal(t, Fallback, h.Provenance)
	require.Equal(t, "/dev/ttyACM0", h.Address)

	lister = &scriptedPorts{snapshots: [][]*Port{ports()}}
	_, err = newFinder(lister).WaitForNewPortOrDefault(context.Background(), []string{"/dev/ttyACM0"}, "/dev/ttyACM0")
	require.ErrorIs(t, err, ErrNoNewPort)
}
