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

package serializer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snailops/snail/pkg/report"
)

func storedReport() *report.Report {
	return &report.Report{
		Meta: report.Meta{
			Hostname:     "web01.example.com",
			HostID:       "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
			CollectionID: "11111111-2222-3333-4444-555555555555",
			Timestamp:    "2025-06-01T12:00:00Z",
			SnailVersion: "1.2.3",
		},
		Data: map[string]map[string]any{
			"system": {"kernel": "6.8.0"},
		},
		Errors: []report.CollectorError{
			{CollectorName: "logs", Message: "journalctl not found"},
		},
	}
}

func TestSaveAndLoadReport(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveReport(dir, storedReport(), false)
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join(dir, "snail-report-11111111-2222-3333-4444-555555555555.json"),
		path)

	loaded, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, storedReport(), loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveAndLoadCompressedReport(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveReport(dir, storedReport(), true)
	require.NoError(t, err)
	assert.Equal(t, ".gz", filepath.Ext(path))

	loaded, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, storedReport(), loaded)
}

func TestSaveReportCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	path, err := SaveReport(dir, storedReport(), false)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestSaveReportLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := SaveReport(dir, storedReport(), false)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLoadReportMissingFile(t *testing.T) {
	_, err := LoadReport(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
