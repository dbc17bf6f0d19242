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

// Package programmerstest provides a scripted programmers.Runner for tests.
package programmerstest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/arduino/arduino-provisioner/programmers"
)

// Response is the scripted outcome of a command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

type rule struct {
	match    func(args []string) bool
	response Response
	times    int
}

// Runner records every command line and answers with scripted responses.
// Commands without a matching rule succeed with no output.
type Runner struct {
	mu    sync.Mutex
	rules []*rule
	Calls [][]string
}

// On scripts the response for commands containing all the given arguments,
// in any position. The most recently added matching rule wins.
func (r *Runner) On(response Response, args ...string) *Runner {
	return r.add(response, -1, args)
}

// Once is like On but the rule is used a single time.
func (r *Runner) Once(response Response, args ...string) *Runner {
	return r.add(response, 1, args)
}

func (r *Runner) add(response Response, times int, want []string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, &rule{
		match: func(args []string) bool {
			for _, w := range want {
				found := false
				for _, a := range args {
					if a == w {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
			return true
		},
		response: response,
		times:    times,
	})
	return r
}

func (r *Runner) respond(args []string) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, append([]string(nil), args...))
	for i := len(r.rules) - 1; i >= 0; i-- {
		rl := r.rules[i]
		if rl.times == 0 || !rl.match(args) {
			continue
		}
		if rl.times > 0 {
			rl.times--
		}
		return rl.response
	}
	return Response{}
}

func (r *Runner) result(args []string, res Response) error {
	if res.Err != nil {
		return res.Err
	}
	if res.ExitCode != 0 {
		return &programmers.ExitError{Args: args, ExitCode: res.ExitCode}
	}
	return nil
}

// Run implements programmers.Runner.
func (r *Runner) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	res := r.respond(args)
	if stdout != nil {
		io.WriteString(stdout, res.Stdout)
	}
	if stderr != nil {
		io.WriteString(stderr, res.Stderr)
	}
	return r.result(args, res)
}

// Output implements programmers.Runner.
func (r *Runner) Output(ctx context.Context, args []string) ([]byte, []byte, error) {
	res := r.respond(args)
	return []byte(res.Stdout), []byte(res.Stderr), r.result(args, res)
}

// CallsTo returns the recorded command lines containing all the given arguments.
func (r *Runner) CallsTo(args ...string) [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res [][]string
	for _, call := range r.Calls {
		joined := " " + strings.Join(call, " ") + " "
		ok := true
		for _, a := range args {
			if !strings.Contains(joined, " "+a+" ") {
				ok = false
				break
			}
		}
		if ok {
			res = append(res, call)
		}
	}
	return res
}
