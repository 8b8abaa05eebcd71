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

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	snailerrors "github.com/snailops/snail/pkg/errors"
	"github.com/snailops/snail/pkg/journal"
)

// writeTestConfig writes a minimal valid config with uploads disabled and
// a temp state directory, returning the config path.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf("upload:\n  enabled: false\noutput:\n  dir: %s\n%s", dir, extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := New()
	cmd.Writer = &buf
	err := cmd.Run(context.Background(), append([]string{"snail"}, args...))
	return buf.String(), err
}

func TestCommandTree(t *testing.T) {
	cmd := New()

	var names []string
	for _, c := range cmd.Commands {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t,
		[]string{"collect", "collectors", "identity", "status", "login"},
		names)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, 2, exitCode(snailerrors.New(snailerrors.ErrCodeConfigInvalid, "bad config")))
	assert.Equal(t, 3, exitCode(snailerrors.New(snailerrors.ErrCodeTransport, "delivery failed")))
	assert.Equal(t, 4, exitCode(snailerrors.New(snailerrors.ErrCodeIdentityStore, "identity broken")))
	assert.Equal(t, 1, exitCode(fmt.Errorf("something else")))
}

func TestIdentityShowAndReset(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	out, err := runCommand(t, "-c", cfgPath, "identity")
	require.NoError(t, err)
	first, err := uuid.Parse(strings.TrimSpace(out))
	require.NoError(t, err)

	// Showing again returns the same identity.
	out, err = runCommand(t, "-c", cfgPath, "identity")
	require.NoError(t, err)
	assert.Equal(t, first.String(), strings.TrimSpace(out))

	// Reset produces a fresh one.
	out, err = runCommand(t, "-c", cfgPath, "identity", "--reset")
	require.NoError(t, err)
	reset, err := uuid.Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.NotEqual(t, first, reset)
}

func TestCollectorsListsBuiltins(t *testing.T) {
	out, err := runCommand(t, "collectors", "--format", "json")
	require.NoError(t, err)

	var infos []collectorInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 8)
	assert.Equal(t, "system", infos[0].Name)
	assert.Equal(t, "logs", infos[7].Name)
}

func TestCollectorsRejectsUnknownFormat(t *testing.T) {
	_, err := runCommand(t, "collectors", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, snailerrors.ErrCodeConfigInvalid, snailerrors.CodeOf(err))
}

func TestStatusShowsRedactedConfig(t *testing.T) {
	cfgPath := writeTestConfig(t, "auth:\n  api_key: super-secret\n")

	out, err := runCommand(t, "-c", cfgPath, "status", "--format", "yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "super-secret")
	assert.Contains(t, out, "config_source")
}

func TestCommandsWorkBeforeUploadIsConfigured(t *testing.T) {
	// Defaults leave uploads enabled with no url yet; commands that do not
	// deliver anything must still run.
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath,
		[]byte(fmt.Sprintf("output:\n  dir: %s\n", dir)), 0o600))

	out, err := runCommand(t, "-c", cfgPath, "identity")
	require.NoError(t, err)
	_, err = uuid.Parse(strings.TrimSpace(out))
	require.NoError(t, err)

	_, err = runCommand(t, "-c", cfgPath, "status")
	require.NoError(t, err)
}

func TestStatusShowsLastRun(t *testing.T) {
	cfgPath := writeTestConfig(t, "")
	dir := filepath.Dir(cfgPath)

	j, err := journal.Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), journal.Run{
		CollectionID: "run-001",
		HostID:       "host",
		StartedAt:    time.Now(),
		Delivery:     "success",
	}))
	require.NoError(t, j.Close())

	out, err := runCommand(t, "-c", cfgPath, "status", "--format", "json")
	require.NoError(t, err)

	var st struct {
		LastRun    *journal.Run  `json:"last_run"`
		RecentRuns []journal.Run `json:"recent_runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "run-001", st.LastRun.CollectionID)
	require.Len(t, st.RecentRuns, 1)
}

func TestLoginPersistsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/api-key", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"key": "issued-key"})
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("upload:\n  enabled: false\n  url: %s/api/v1/ingest\noutput:\n  dir: %s\n", srv.URL, dir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	out, err := runCommand(t, "-c", cfgPath, "login", "-u", "admin", "-p", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, cfgPath)

	b, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	var saved struct {
		Auth struct {
			APIKey string `yaml:"api_key"`
		} `yaml:"auth"`
	}
	require.NoError(t, yaml.Unmarshal(b, &saved))
	assert.Equal(t, "issued-key", saved.Auth.APIKey)
}

func TestLoginTrustsConfiguredCA(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/api-key", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"key": "tls-key"})
	}))
	defer srv.Close()

	dir := t.TempDir()
	caPath := filepath.Join(dir, "ca.pem")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caPath, caPEM, 0o600))

	cfgPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(
		"upload:\n  enabled: false\n  url: %s/api/v1/ingest\nauth:\n  ca_path: %s\noutput:\n  dir: %s\n",
		srv.URL, caPath, dir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	// The endpoint's cert chains to a CA the system store does not know;
	// login only succeeds if it honors the configured bundle.
	_, err := runCommand(t, "-c", cfgPath, "login", "-u", "admin", "-p", "hunter2")
	require.NoError(t, err)

	b, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "tls-key")
}
