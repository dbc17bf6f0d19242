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
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticProbes []*DebugProbe

func (s staticProbes) ListProbes(ctx context.Context) ([]*DebugProbe, error) { return s, nil }

type scriptedAnswers struct {
	answers []string
	asked   int
}

func (s *scriptedAnswers) Prompt(string) (string, error) {
	if s.asked >= len(s.answers) {
		return "", io.EOF
	}
	s.asked++
	return s.answers[s.asked-1], nil
}

var twoProbes = staticProbes{
	{UniqueID: "103E0DC0", Description: "CMSIS-DAP"},
	{UniqueID: "E6614103", Description: "Debug Probe"},
}

func TestSelectProbeHint(t *testing.T) {
	h, err := SelectProbe(context.Background(), twoProbes, ProbeSelection{Hint: "E6614103"})
	require.NoError(t, err)
	require.Equal(t, &Handle{Kind: Probe, Address: "E6614103", Provenance: Explicit}, h)

	_, err = SelectProbe(context.Background(), twoProbes, ProbeSelection{Hint: "nope"})
	require.ErrorIs(t, err, ErrProbeNotFound)
}

func TestSelectProbeNone(t *testing.T) {
	_, err := SelectProbe(context.Background(), staticProbes{}, ProbeSelection{})
	require.ErrorIs(t, err, ErrNoProbes)
}

func TestSelectProbeSingle(t *testing.T) {
	h, err := SelectProbe(context.Background(), twoProbes[:1], ProbeSelection{})
	require.NoError(t, err)
	require.Equal(t, "103E0DC0", h.Address)
	require.Equal(t, Single, h.Provenance)
}

func TestSelectProbeMultipleNonInteractive(t *testing.T) {
	_, err := SelectProbe(context.Background(), twoProbes, ProbeSelection{})
	var ambiguous *AmbiguousError
	require.ErrorAs(t, err, &ambiguous)
	require.Equal(t, []string{"103E0DC0", "E6614103"}, ambiguous.Candidates)
}

func TestSelectProbeInteractiveRetriesUntilValid(t *testing.T) {
	answers := &scriptedAnswers{answers: []string{"", "bogus", "E6614103"}}
	h, err := SelectProbe(context.Background(), twoProbes, ProbeSelection{Prompter: answers})
	require.NoError(t, err)
	require.Equal(t, "E6614103", h.Address)
	require.Equal(t, Interactive, h.Provenance)
	require.Equal(t, 3, answers.asked)
}

func TestSelectProbeInteractiveEOF(t *testing.T) {
	answers := &scriptedAnswers{answers: []string{"bogus"}}
	_, err := SelectProbe(context.Background(), twoProbes, ProbeSelection{Prompter: answers})
	require.ErrorIs(t, err, io.EOF)
}

func TestLinePrompter(t *testing.T) {
	out := &strings.Builder{}
	p := NewLinePrompter(strings.NewReader("  abc \nlast"), out)
	line, err := p.Prompt("id? ")
	require.NoError(t, err)
	require.Equal(t, "abc", line)
	line, err = p.Prompt("id? ")
	require.NoError(t, err)
	require.Equal(t, "last", line)
	_, err = p.Prompt("id? ")
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "id? id? id? ", out.String())
}
