// Copyright (c) 2025, The Snail Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	snailerrors "github.com/snailops/snail/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Upload.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Upload.TimeoutDuration())
	assert.Equal(t, uint64(3), cfg.Upload.Retries)
	assert.Equal(t, 5*time.Minute, cfg.Collection.TimeoutDuration())
	assert.Equal(t, "/var/lib/snail", cfg.Output.Dir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Privacy.RedactPasswords)
	assert.False(t, cfg.Privacy.AnonymizeHostnames)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
upload:
  url: https://ingest.example.com/api/v1/ingest
  enabled: true
  timeout: 60
  retries: 5
auth:
  api_key: file-key
collection:
  timeout: 120
  disabled_collectors: [logs]
output:
  dir: /tmp/snail
  keep_local: true
logging:
  level: debug
privacy:
  anonymize_hostnames: true
  redact_passwords: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://ingest.example.com/api/v1/ingest", cfg.Upload.URL)
	assert.Equal(t, 60*time.Second, cfg.Upload.TimeoutDuration())
	assert.Equal(t, uint64(5), cfg.Upload.Retries)
	assert.Equal(t, "file-key", cfg.Auth.APIKey)
	assert.Equal(t, []string{"logs"}, cfg.Collection.DisabledCollectors)
	assert.True(t, cfg.Output.KeepLocal)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Privacy.AnonymizeHostnames)
	assert.Equal(t, path, cfg.Source)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
upload:
  url: https://file.example.com/ingest
  timeout: 60
auth:
  api_key: file-key
`)

	t.Setenv("SNAIL_UPLOAD_URL", "https://env.example.com/ingest")
	t.Setenv("SNAIL_API_KEY", "env-key")
	t.Setenv("SNAIL_UPLOAD_TIMEOUT", "15")
	t.Setenv("SNAIL_LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com/ingest", cfg.Upload.URL)
	assert.Equal(t, "env-key", cfg.Auth.APIKey)
	assert.Equal(t, 15*time.Second, cfg.Upload.TimeoutDuration())
	assert.Equal(t, "warn", cfg.Logging.Level, "levels normalize to lower case")
}

func TestEnvBoolCoercion(t *testing.T) {
	path := writeConfig(t, "upload:\n  url: https://x.example.com/ingest\n")

	for value, want := range map[string]bool{
		"true": true, "1": true, "yes": true,
		"false": false, "0": false, "off": false,
	} {
		t.Setenv("SNAIL_UPLOAD_ENABLED", value)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, want, cfg.Upload.Enabled, value)
	}
}

func TestExplicitMissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, snailerrors.ErrCodeConfigInvalid, snailerrors.CodeOf(err))
}

func TestMalformedYAMLIsError(t *testing.T) {
	path := writeConfig(t, "upload: [not a map")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, snailerrors.ErrCodeConfigInvalid, snailerrors.CodeOf(err))
}

func TestFreshHostLoadsOnDefaults(t *testing.T) {
	// No config file anywhere and no overrides: Load must resolve to the
	// built-in defaults without error, even though uploads are enabled and
	// no url is set yet. The url is only required once a delivery starts.
	t.Setenv("HOME", t.TempDir())
	prevDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(prevDir) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Upload.Enabled)
	assert.Empty(t, cfg.Upload.URL)
	assert.Empty(t, cfg.Source)
}

func TestValidateAllowsEnabledUploadWithoutURL(t *testing.T) {
	cfg := Default()
	cfg.Upload.Enabled = true
	cfg.Upload.URL = ""

	require.NoError(t, cfg.Validate())
}

func TestMutualTLSRequiresBothPaths(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "client.crt")
	require.NoError(t, os.WriteFile(cert, []byte("pem"), 0o600))

	cfg := Default()
	cfg.Upload.Enabled = false
	cfg.Auth.CertPath = cert

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutual TLS")
}

func TestInvalidLogLevelRejected(t *testing.T) {
	cfg := Default()
	cfg.Upload.Enabled = false
	cfg.Logging.Level = "loud"

	require.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Upload.URL = "https://x.example.com/ingest"
	cfg.Auth.APIKey = "issued-key"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "issued-key", loaded.Auth.APIKey)
	assert.Equal(t, "https://x.example.com/ingest", loaded.Upload.URL)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "config may hold secrets")
}

func TestRedactedMasksAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Auth.APIKey = "secret"

	red := cfg.Redacted()
	assert.Equal(t, "***", red.Auth.APIKey)
	assert.Equal(t, "secret", cfg.Auth.APIKey, "original is untouched")
}
