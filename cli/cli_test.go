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
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestToLogLevel(t *testing.T) {
	lvl, found := toLogLevel("warn")
	require.True(t, found)
	require.Equal(t, logrus.WarnLevel, lvl)
	_, found = toLogLevel("loud")
	require.False(t, found)
}

func TestCommandTree(t *testing.T) {
	root := NewCommand()
	for _, args := range [][]string{
		{"layout"}, {"size"}, {"upload"}, {"probes", "list"}, {"recover"}, {"reset"}, {"version"},
	} {
		cmd, _, err := root.Find(args)
		require.NoError(t, err, args)
		require.NotNil(t, cmd.Run, args)
	}
	require.NotNil(t, root.PersistentFlags().Lookup("board-catalog"))
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}
