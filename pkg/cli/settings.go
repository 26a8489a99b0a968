/*
Copyright The Buildflash Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*Package cli describes the operating environment for the buildflash CLI.

Settings come from three layers, later ones winning: the TOML config file,
BUILDFLASH_* environment variables, and command-line flags.
*/
package cli

import (
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// EnvSettings describes all of the environment settings.
type EnvSettings struct {
	// ConfigFile is the path to the TOML configuration file.
	ConfigFile string
	// DownloadDir is where downloaded artifacts land.
	DownloadDir string
	// BridgePath is the device-bridge executable.
	BridgePath string
	// Debug indicates whether buildflash is running in Debug mode.
	Debug bool
}

// New builds settings from the process environment.
func New() *EnvSettings {
	env := &EnvSettings{
		ConfigFile:  envOr("BUILDFLASH_CONFIG", "buildflash.toml"),
		DownloadDir: envOr("BUILDFLASH_DOWNLOAD_DIR", "builds"),
		BridgePath:  envOr("BUILDFLASH_BRIDGE", "adb"),
	}
	env.Debug, _ = strconv.ParseBool(os.Getenv("BUILDFLASH_DEBUG"))
	return env
}

// AddFlags binds flags to the given flagset.
func (s *EnvSettings) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.ConfigFile, "config", s.ConfigFile, "path to the configuration file")
	fs.StringVar(&s.DownloadDir, "download-dir", s.DownloadDir, "directory downloaded builds are saved to")
	fs.StringVar(&s.BridgePath, "bridge", s.BridgePath, "path to the device bridge executable")
	fs.BoolVar(&s.Debug, "debug", s.Debug, "enable verbose output")
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}
