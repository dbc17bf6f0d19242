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

package layout

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// <decimal number><unit>, unit is one of "", B, K, KB, M, MB in any case
var sizeExpression = regexp.MustCompile(`^((?:[0-9]*\.)?[0-9]+)(|[bB]|[kK][bB]?|[mM][bB]?)$`)

var unitFactors = map[string]float64{
	"":   1,
	"B":  1,
	"K":  1024,
	"KB": 1024,
	"M":  1024 * 1024,
	"MB": 1024 * 1024,
}

// ParseSizeStrict converts a capacity string like "4MB" or "512K" to a
// number of bytes. Fractional magnitudes are truncated after scaling.
func ParseSizeStrict(expression string) (int64, error) {
	match := sizeExpression.FindStringSubmatch(expression)
	if match == nil {
		return 0, errors.Errorf("could not parse size expression '%s'", expression)
	}
	number, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing size expression '%s'", expression)
	}
	size := number * unitFactors[strings.ToUpper(match[2])]
	if size >= math.MaxInt64 {
		return 0, errors.Errorf("size expression '%s' is too large", expression)
	}
	return int64(size), nil
}

// ParseSize is the lenient version of ParseSizeStrict: an unparsable
// expression is logged as a warning and treated as 0 bytes.
func ParseSize(expression string) int64 {
	size, err := ParseSizeStrict(expression)
	if err != nil {
		logrus.WithField("expression", expression).Warnf("%s, will treat as size = 0", err)
		return 0
	}
	return size
}
