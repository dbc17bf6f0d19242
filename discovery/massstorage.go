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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/arduino/arduino-provisioner/board"
	"github.com/arduino/go-paths-helper"
	"github.com/sirupsen/logrus"
)

// DefaultVolumeMarkers are the files a UF2 bootloader exposes on its volume.
var DefaultVolumeMarkers = []string{"INDEX.HTM", "INFO_UF2.TXT"}

// Volume is a mounted filesystem.
type Volume struct {
	Path string
	Name string
}

// VolumeLister enumerates the mounted volumes.
type VolumeLister interface {
	ListVolumes() ([]*Volume, error)
}

// MountLister lists the directories mounted under well known roots.
type MountLister struct {
	Roots paths.PathList
}

// NewMountLister returns a lister for the mount roots of the current OS.
func NewMountLister() *MountLister {
	var roots paths.PathList
	switch runtime.GOOS {
	case "windows":
		for l := 'A'; l <= 'Z'; l++ {
			roots.Add(paths.New(string(l) + `:\`))
		}
		return &MountLister{Roots: roots}
	case "darwin":
		roots.Add(paths.New("/Volumes"))
	default:
		if user := os.Getenv("USER"); user != "" {
			roots.Add(paths.New("/media", user))
			roots.Add(paths.New("/run/media", user))
		}
		roots.Add(paths.New("/media"))
		roots.Add(paths.New("/mnt"))
	}
	return &MountLister{Roots: roots}
}

// ListVolumes implements VolumeLister. On windows every existing root is a
// volume, elsewhere the directories below each root are.
func (l *MountLister) ListVolumes() ([]*Volume, error) {
	var res []*Volume
	seen := map[string]bool{}
	add := func(p *paths.Path) {
		if seen[p.String()] {
			return
		}
		seen[p.String()] = true
		res = append(res, &Volume{Path: p.String(), Name: p.Base()})
	}
	for _, root := range l.Roots {
		if runtime.GOOS == "windows" {
			if root.Exist() {
				add(root)
			}
			continue
		}
		dirs, err := root.ReadDir()
		if err != nil {
			continue
		}
		dirs.FilterDirs()
		for _, dir := range dirs {
			add(dir)
		}
	}
	return res, nil
}

// VolumeFinder resolves the mass storage volume of a board in bootloader mode.
type VolumeFinder struct {
	Lister  VolumeLister
	Markers []string
	Labels  []string
}

// NewVolumeFinder creates a finder using the markers and labels of the board.
func NewVolumeFinder(lister VolumeLister, b *board.Context) *VolumeFinder {
	f := &VolumeFinder{Lister: lister, Markers: DefaultVolumeMarkers}
	if b != nil {
		if len(b.Bootloader.VolumeMarkers) > 0 {
			f.Markers = b.Bootloader.VolumeMarkers
		}
		f.Labels = b.Bootloader.VolumeLabels
	}
	return f
}

// IsPattern reports whether hint is a glob pattern.
func IsPattern(hint string) bool {
	return strings.ContainsAny(hint, "*?[]")
}

// matchVolume reports whether path matches the shell-style pattern. Unlike
// filepath.Match, '*' and '?' also match the path separator.
func matchVolume(pattern, path string) bool {
	if runtime.GOOS == "windows" {
		pattern = strings.ToLower(filepath.FromSlash(pattern))
		path = strings.ToLower(filepath.FromSlash(path))
	}
	re, err := regexp.Compile(translatePattern(pattern))
	if err != nil {
		logrus.Debugf("Invalid volume pattern %s: %s", pattern, err)
		return false
	}
	return re.MatchString(path)
}

// translatePattern converts a shell-style pattern into an anchored regexp.
// An unterminated '[' is a literal.
func translatePattern(pattern string) string {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			j := i + 1
			if j < len(runes) && runes[j] == '!' {
				j++
			}
			if j < len(runes) && runes[j] == ']' {
				j++
			}
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				b.WriteString(`\[`)
				continue
			}
			class := runes[i+1 : j]
			b.WriteByte('[')
			if class[0] == '!' {
				b.WriteByte('^')
				class = class[1:]
			}
			for _, r := range class {
				if strings.ContainsRune(`\[]^`, r) {
					b.WriteByte('\\')
				}
				b.WriteRune(r)
			}
			b.WriteByte(']')
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// Find resolves the volume for hint. A plain hint is used as is, a glob
// pattern restricts the candidates.
func (f *VolumeFinder) Find(hint string) (*Handle, error) {
	if hint != "" && !IsPattern(hint) {
		return &Handle{Kind: MassStorage, Address: hint, Provenance: Explicit}, nil
	}
	volumes, err := f.Lister.ListVolumes()
	if err != nil {
		return nil, err
	}
	var candidates []*Volume
	for _, v := range volumes {
		if strings.HasPrefix(filepath.ToSlash(v.Path), "/net") {
			continue
		}
		if hint != "" {
			if !matchVolume(hint, v.Path) {
				continue
			}
		}
		candidates = append(candidates, v)
	}

	for _, v := range candidates {
		for _, marker := range f.Markers {
			if paths.New(v.Path, marker).Exist() {
				logrus.Infof("Found bootloader volume %s (contains %s)", v.Path, marker)
				return &Handle{Kind: MassStorage, Address: v.Path, Provenance: MarkerFile}, nil
			}
		}
	}
	for _, v := range candidates {
		name := strings.ToUpper(v.Name)
		for _, label := range f.Labels {
			if label != "" && strings.Contains(name, strings.ToUpper(label)) {
				logrus.Infof("Found bootloader volume %s (label %s)", v.Path, label)
				return &Handle{Kind: MassStorage, Address: v.Path, Provenance: Label}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no bootloader volume detected, please specify the volume path with the upload port", ErrNotFound)
}
