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

package common

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/arduino/arduino-provisioner/board"
	"github.com/arduino/arduino-provisioner/cli/feedback"
	"github.com/arduino/arduino-provisioner/cli/globals"
	"github.com/arduino/arduino-provisioner/config"
	"github.com/arduino/arduino-provisioner/discovery"
	"github.com/arduino/arduino-provisioner/programmers"
	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var (
	// ConfigFile is set by the --config flag.
	ConfigFile string
	// BoardCatalog is set by the --board-catalog flag.
	BoardCatalog string

	cfg *config.Config
)

// Config returns the configuration, loading it on first use.
func Config() *config.Config {
	if cfg == nil {
		c, err := config.Load(ConfigFile)
		if err != nil {
			feedback.Fatal(fmt.Sprintf("Error loading configuration: %s", err), feedback.ErrBadArgument)
		}
		cfg = c
	}
	return cfg
}

// GetBoard loads the catalog and returns the board with the given id, or
// the configured one when id is empty. Configured upload options are
// applied to the returned board.
func GetBoard(id string) *board.Context {
	if id == "" {
		id = Config().Board
	}
	if id == "" {
		feedback.Fatal("Missing board, use --board or set the board configuration key", feedback.ErrBadArgument)
	}

	catalogFile := BoardCatalog
	if catalogFile == "" {
		catalogFile = Config().BoardCatalog
	}
	var catalog *board.Catalog
	var err error
	if catalogFile != "" {
		catalog, err = board.LoadCatalogFile(paths.New(catalogFile))
	} else {
		catalog, err = board.LoadCatalog()
	}
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Can't load board catalog: %s", err), feedback.ErrGeneric)
	}

	b, err := catalog.Board(id)
	if err != nil {
		feedback.Fatal(fmt.Sprintf("Can't find board %s: %s", id, err), feedback.ErrBadArgument)
	}
	Config().ApplyBoard(b)
	logrus.Debugf("got board: %s (%s)", b.ID, b.Arch)
	return b
}

// NewRunner returns a runner looking up the tools in the configured
// tool_dir first.
func NewRunner() *programmers.ExecRunner {
	return programmers.NewExecRunner(Config().ToolDirPath())
}

// Tool returns the configured executable for name, def when not configured.
func Tool(name, def string) string {
	if exe, ok := Config().Tools[name]; ok && exe != "" {
		return exe
	}
	return def
}

// CacheDir is where firmware downloads are stored.
func CacheDir() *paths.Path {
	if dir := Config().CacheDir; dir != "" {
		return paths.New(dir)
	}
	return globals.CachePath
}

// Prompter returns a prompter on the standard input, nil when disabled or
// when the standard input is not a terminal.
func Prompter(disabled bool) discovery.Prompter {
	if disabled || !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return discovery.NewLinePrompter(os.Stdin, os.Stdout)
}

// Context returns a context cancelled on interrupt.
func Context() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
