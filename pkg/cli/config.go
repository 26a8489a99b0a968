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

package cli

import (
	"os"

	"github.com/BurntSushi/toml"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/pkg/errors"

	"github.com/buildflash/buildflash/pkg/getter"
)

// Config is the on-disk configuration.
type Config struct {
	Repository RepositoryConfig `toml:"repository"`
	Bridge     BridgeConfig     `toml:"bridge"`
	Dashboard  DashboardConfig  `toml:"dashboard"`
}

// RepositoryConfig holds build-repository credentials. Basic credentials
// take precedence over the API key when both are present.
type RepositoryConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	APIKey   string `toml:"api_key"`
}

// BridgeConfig configures the device-bridge tool.
type BridgeConfig struct {
	// Path overrides the bridge executable.
	Path string `toml:"path"`
	// ExtraArgs is a shell-style string of arguments prepended to every
	// bridge invocation.
	ExtraArgs string `toml:"extra_args"`
}

// DashboardConfig configures log forwarding.
type DashboardConfig struct {
	// URL accepts multipart log uploads.
	URL string `toml:"url"`
}

// LoadConfig reads the config file at path. A missing file is not an error;
// it yields an empty configuration.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}
	return &cfg, nil
}

// AuthMode names the configured authentication method, for a one-line log at
// startup.
func (r RepositoryConfig) AuthMode() string {
	switch {
	case r.Username != "" && r.Password != "":
		return "basic"
	case r.APIKey != "":
		return "api-key"
	default:
		return "none"
	}
}

// GetterOptions translates the credentials into getter options.
func (r RepositoryConfig) GetterOptions() []getter.Option {
	var opts []getter.Option
	if r.Username != "" && r.Password != "" {
		opts = append(opts, getter.WithBasicAuth(r.Username, r.Password))
	} else if r.APIKey != "" {
		opts = append(opts, getter.WithAPIKey(r.APIKey))
	}
	return opts
}

// Args splits ExtraArgs the way a shell would.
func (b BridgeConfig) Args() ([]string, error) {
	if b.ExtraArgs == "" {
		return nil, nil
	}
	args, err := shellwords.Parse(b.ExtraArgs)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing bridge extra_args %q", b.ExtraArgs)
	}
	return args, nil
}
