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
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buildflash.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
[repository]
username = "jdoe"
password = "hunter2"

[bridge]
path = "/opt/platform-tools/adb"
extra_args = "-H remote-host -P 5037"

[dashboard]
url = "https://dashboard.example.com/logs"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "jdoe", cfg.Repository.Username)
	assert.Equal(t, "basic", cfg.Repository.AuthMode())
	assert.Equal(t, "/opt/platform-tools/adb", cfg.Bridge.Path)
	assert.Equal(t, "https://dashboard.example.com/logs", cfg.Dashboard.URL)

	args, err := cfg.Bridge.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{"-H", "remote-host", "-P", "5037"}, args)
}

func TestLoadConfigMissingFileIsEmpty(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Repository.AuthMode())
	assert.Empty(t, cfg.Dashboard.URL)
}

func TestAuthModeAPIKey(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "[repository]\napi_key = \"k\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "api-key", cfg.Repository.AuthMode())
	assert.Len(t, cfg.Repository.GetterOptions(), 1)
}

func TestBridgeArgsQuoting(t *testing.T) {
	b := BridgeConfig{ExtraArgs: `-H "host with space"`}
	args, err := b.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{"-H", "host with space"}, args)
}

func TestEnvSettingsDefaultsAndFlags(t *testing.T) {
	t.Setenv("BUILDFLASH_DOWNLOAD_DIR", "/tmp/artifacts")
	t.Setenv("BUILDFLASH_DEBUG", "1")

	s := New()
	assert.Equal(t, "/tmp/artifacts", s.DownloadDir)
	assert.Equal(t, "adb", s.BridgePath)
	assert.True(t, s.Debug)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	s.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--bridge", "/usr/bin/adb", "--download-dir", "dl"}))
	assert.Equal(t, "/usr/bin/adb", s.BridgePath)
	assert.Equal(t, "dl", s.DownloadDir)
}
