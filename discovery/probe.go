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
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// DebugProbe is an attached debug adapter.
type DebugProbe struct {
	UniqueID    string `json:"unique_id"`
	Description string `json:"description"`
	Vendor      string `json:"vendor,omitempty"`
	Target      string `json:"target,omitempty"`
}

// ProbeLister enumerates the attached debug probes.
type ProbeLister interface {
	ListProbes(ctx context.Context) ([]*DebugProbe, error)
}

// Prompter asks the user to type a probe id.
type Prompter interface {
	// Prompt returns the next line typed by the user, io.EOF when the input
	// is closed.
	Prompt(message string) (string, error)
}

// LinePrompter reads answers line by line.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter creates a prompter reading from in and writing prompts to out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Prompt implements Prompter.
func (p *LinePrompter) Prompt(message string) (string, error) {
	fmt.Fprint(p.out, message)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ProbeSelection configures SelectProbe.
type ProbeSelection struct {
	// Hint is the unique id requested by the user.
	Hint string
	// Prompter is used when several probes are attached and no hint is
	// given. A nil Prompter means non-interactive.
	Prompter Prompter
}

// SelectProbe picks the probe to use.
func SelectProbe(ctx context.Context, lister ProbeLister, sel ProbeSelection) (*Handle, error) {
	probes, err := lister.ListProbes(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "listing debug probes")
	}
	ids := make([]string, 0, len(probes))
	for _, p := range probes {
		ids = append(ids, p.UniqueID)
	}

	if sel.Hint != "" {
		if slices.Contains(ids, sel.Hint) {
			logrus.Infof("Using specified probe: %s", sel.Hint)
			return &Handle{Kind: Probe, Address: sel.Hint, Provenance: Explicit}, nil
		}
		return nil, fmt.Errorf("%w: %s is not among the connected probes", ErrProbeNotFound, sel.Hint)
	}

	switch len(probes) {
	case 0:
		return nil, ErrNoProbes
	case 1:
		logrus.Infof("Auto-selected single probe: %s (%s)", probes[0].UniqueID, probes[0].Description)
		return &Handle{Kind: Probe, Address: probes[0].UniqueID, Provenance: Single}, nil
	}

	logrus.Info("Multiple probes detected:")
	for _, p := range probes {
		logrus.Infof("  - %s : %s", p.UniqueID, p.Description)
	}
	if sel.Prompter == nil {
		return nil, &AmbiguousError{Kind: Probe, Candidates: ids}
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := sel.Prompter.Prompt("Enter probe unique ID: ")
		if err != nil {
			return nil, errors.Wrap(err, "reading probe selection")
		}
		if id == "" {
			logrus.Warn("Empty input, retry.")
			continue
		}
		if slices.Contains(ids, id) {
			logrus.Infof("Selected probe: %s", id)
			return &Handle{Kind: Probe, Address: id, Provenance: Interactive}, nil
		}
		logrus.Warnf("Probe %s not found. Retry.", id)
	}
}
