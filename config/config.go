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

// Package config reads the project configuration: an optional yaml file
// overridden by PROVISIONER_* environment variables.
package config

import (
	"strings"

	"github.com/arduino/arduino-provisioner/board"
	"github.com/arduino/go-paths-helper"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of the environment variables overriding the
// configuration keys, e.g. PROVISIONER_UPLOAD_PROTOCOL.
const EnvPrefix = "PROVISIONER"

// DefaultName is the name of the file looked up in the working directory
// when no configuration file is given.
const DefaultName = "provisioner"

// Config is the build-time configuration.
type Config struct {
	Board          string
	UploadProtocol string
	UploadPort     string
	FilesystemSize string
	DebugSpeed     string
	UploadCommand  string
	// DisableAutoHandshake skips the 1200bps touch before uploading.
	DisableAutoHandshake bool
	// BootselDetection is the way devices in BOOTSEL mode are counted:
	// "picotool" or "usb".
	BootselDetection string
	SizeTool         string
	// ToolDir is searched for the external tools before the PATH.
	ToolDir string
	// PackageDir replaces $PACKAGE_DIR in the OpenOCD arguments.
	PackageDir   string
	BoardCatalog string
	CacheDir     string
	// Tools maps a tool name to its executable.
	Tools map[string]string

	v *viper.Viper
}

var boardOverrides = []string{
	"upload.use_1200bps_touch",
	"upload.wait_for_upload_port",
	"upload.disable_flushing",
}

// Load reads file, or provisioner.yaml in the working directory when file
// is empty. A missing default file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("bootsel_detection", "picotool")
	v.SetDefault("size_tool", "arm-none-eabi-size")
	v.SetDefault("upload.disable_auto_handshake", false)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading configuration %s", file)
		}
	} else {
		v.SetConfigName(DefaultName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "reading configuration")
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		logrus.WithField("file", used).Info("Using configuration file")
	}

	c := &Config{
		Board:                v.GetString("board"),
		UploadProtocol:       v.GetString("upload_protocol"),
		UploadPort:           v.GetString("upload_port"),
		FilesystemSize:       v.GetString("filesystem_size"),
		DebugSpeed:           v.GetString("debug_speed"),
		UploadCommand:        v.GetString("upload_command"),
		DisableAutoHandshake: v.GetBool("upload.disable_auto_handshake"),
		BootselDetection:     v.GetString("bootsel_detection"),
		SizeTool:             v.GetString("size_tool"),
		ToolDir:              v.GetString("tool_dir"),
		PackageDir:           v.GetString("package_dir"),
		BoardCatalog:         v.GetString("board_catalog"),
		CacheDir:             v.GetString("cache_dir"),
		Tools:                v.GetStringMapString("tools"),
		v:                    v,
	}
	if c.BootselDetection != "picotool" && c.BootselDetection != "usb" {
		return nil, errors.Errorf("invalid bootsel_detection %q, must be picotool or usb", c.BootselDetection)
	}
	return c, nil
}

// ApplyBoard overrides the upload options of b with the ones set in the
// configuration.
func (c *Config) ApplyBoard(b *board.Context) {
	for _, key := range boardOverrides {
		if !c.v.IsSet(key) {
			continue
		}
		value := c.v.GetBool(key)
		switch key {
		case "upload.use_1200bps_touch":
			b.Upload.Use1200bpsTouch = value
		case "upload.wait_for_upload_port":
			b.Upload.WaitForUploadPort = value
		case "upload.disable_flushing":
			b.Upload.DisableFlushing = value
		}
		logrus.Debugf("%s overridden to %t", key, value)
	}
}

// ToolDirPath returns ToolDir as a path, nil when unset.
func (c *Config) ToolDirPath() *paths.Path {
	if c.ToolDir == "" {
		return nil
	}
	return paths.New(c.ToolDir)
}
