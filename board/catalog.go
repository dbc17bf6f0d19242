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
	_ "embed"

	"github.com/arduino/go-paths-helper"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

//go:embed boards.yaml
var builtinCatalog []byte

// Catalog is the set of known boards.
type Catalog struct {
	boards map[string]*Context
}

// LoadCatalog returns the catalog shipped with the tool.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(builtinCatalog)
}

// LoadCatalogFile reads a catalog from a yaml file.
func LoadCatalogFile(file *paths.Path) (*Catalog, error) {
	data, err := file.ReadFile()
	if err != nil {
		return nil, errors.Wrap(err, "reading board catalog")
	}
	logrus.WithField("file", file).Debug("Loading board catalog")
	return ParseCatalog(data)
}

// ParseCatalog decodes a yaml catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	boards := map[string]*Context{}
	if err := yaml.Unmarshal(data, &boards); err != nil {
		return nil, errors.Wrap(err, "decoding board catalog")
	}
	for id, ctx := range boards {
		if ctx == nil {
			return nil, errors.Errorf("board %s: empty definition", id)
		}
		if err := ctx.init(id); err != nil {
			return nil, err
		}
	}
	return &Catalog{boards: boards}, nil
}

// Board returns a copy of the context of the board with the given id.
func (c *Catalog) Board(id string) (*Context, error) {
	ctx, ok := c.boards[id]
	if !ok {
		return nil, errors.Errorf("unknown board %s", id)
	}
	res := *ctx
	return &res, nil
}

// IDs returns the sorted list of known board ids.
func (c *Catalog) IDs() []string {
	ids := maps.Keys(c.boards)
	slices.Sort(ids)
	return ids
}
