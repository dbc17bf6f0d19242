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

// Package firmware locates, downloads and inspects the images to flash.
package firmware

import (
	"bytes"
	"crypto"
	_ "crypto/md5"
	_ "crypto/sha1"
	_ "crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/arduino/go-paths-helper"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/downloader/v2"
)

// IsURL reports whether location is an http(s) URL rather than a local path.
func IsURL(location string) bool {
	u, err := url.Parse(location)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Resolve returns the local path of the firmware at location, downloading it
// into cacheDir when location is an URL. Downloaded files must match checksum.
func Resolve(location, checksum string, cacheDir *paths.Path) (*paths.Path, error) {
	if !IsURL(location) {
		file := paths.New(location)
		if file == nil || !file.Exist() {
			return nil, errors.Errorf("firmware file not found: %s", location)
		}
		if isDir, _ := file.IsDirCheck(); isDir {
			return nil, errors.Errorf("firmware path %s is a directory", location)
		}
		return file, nil
	}
	return Download(location, checksum, cacheDir)
}

// Download fetches the file at fileURL into dir and verifies its checksum.
func Download(fileURL, checksum string, dir *paths.Path) (*paths.Path, error) {
	if checksum == "" {
		return nil, errors.Errorf("missing checksum for %s", fileURL)
	}
	u, err := url.Parse(fileURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid url %s", fileURL)
	}
	if err := dir.MkdirAll(); err != nil {
		return nil, errors.Wrap(err, "creating download dir")
	}
	file := dir.Join(path.Base(u.Path))
	// truncate leftovers, the downloader would try to resume them
	if err := file.WriteFile(nil); err != nil {
		return nil, errors.Wrap(err, "creating download file")
	}
	logrus.Infof("Downloading %s", fileURL)
	d, err := downloader.Download(file.String(), fileURL)
	if err != nil {
		logrus.Error(err)
		return nil, err
	}
	if err := run(d); err != nil {
		logrus.Error(err)
		return nil, err
	}
	if err := VerifyFileChecksum(checksum, file); err != nil {
		logrus.Error(err)
		file.Remove()
		return nil, err
	}
	logrus.Debugf("firmware downloaded in %s", file)
	return file, nil
}

func run(d *downloader.Downloader) error {
	if d == nil {
		// the file is already downloaded
		return nil
	}
	if err := d.Run(); err != nil {
		return errors.Wrapf(err, "failed to download file from %s", d.URL)
	}
	if d.Resp.StatusCode >= 400 && d.Resp.StatusCode <= 599 {
		return errors.Errorf("failed to download file from %s: %s", d.URL, d.Resp.Status)
	}
	return nil
}

// VerifyFileChecksum checks filePath against a checksum in the form
// "ALGO:hexdigest", with ALGO one of SHA-256, SHA-1 or MD5.
func VerifyFileChecksum(checksum string, filePath *paths.Path) error {
	split := strings.SplitN(checksum, ":", 2)
	if len(split) != 2 {
		return errors.Errorf("invalid checksum format: %s", checksum)
	}
	digest, err := hex.DecodeString(split[1])
	if err != nil {
		return errors.Wrapf(err, "invalid hash '%s'", split[1])
	}

	var algo hash.Hash
	switch split[0] {
	case "SHA-256":
		algo = crypto.SHA256.New()
	case "SHA-1":
		algo = crypto.SHA1.New()
	case "MD5":
		algo = crypto.MD5.New()
	default:
		return errors.Errorf("unsupported hash algorithm: %s", split[0])
	}

	file, err := filePath.Open()
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer file.Close()
	if _, err := io.Copy(algo, file); err != nil {
		return errors.Wrap(err, "computing hash")
	}
	if !bytes.Equal(algo.Sum(nil), digest) {
		return errors.Errorf("checksum of %s differs from %s", filePath.Base(), checksum)
	}
	return nil
}
