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

package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRun(id string, started time.Time) Run {
	return Run{
		CollectionID:     id,
		HostID:           "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		StartedAt:        started,
		Duration:         1500 * time.Millisecond,
		CollectorsOK:     7,
		CollectorsFailed: 1,
		Delivery:         "success",
		ReportPath:       "/var/lib/snail/snail-report-" + id + ".json",
	}
}

func TestRecordAndRecall(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, testRun("run-1", started)))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, "run-1", got.CollectionID)
	assert.Equal(t, started, got.StartedAt)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.Equal(t, 7, got.CollectorsOK)
	assert.Equal(t, 1, got.CollectorsFailed)
	assert.Equal(t, "success", got.Delivery)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("run-%d", i)
		require.NoError(t, s.Record(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-4", runs[0].CollectionID)
	assert.Equal(t, "run-3", runs[1].CollectionID)
	assert.Equal(t, "run-2", runs[2].CollectionID)
}

func TestDuplicateCollectionIDRejected(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	started := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, testRun("run-1", started)))
	require.Error(t, s.Record(ctx, testRun("run-1", started)))
}

func TestLast(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, last, "empty journal has no last run")

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, testRun("run-1", base)))
	require.NoError(t, s.Record(ctx, testRun("run-2", base.Add(time.Hour))))

	last, err = s.Last(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "run-2", last.CollectionID)
}

func TestPrune(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("run-%d", i)
		require.NoError(t, s.Record(ctx, testRun(id, base.Add(time.Duration(i)*time.Minute))))
	}

	require.NoError(t, s.Prune(ctx, 4))

	runs, err := s.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, "run-9", runs[0].CollectionID)
	assert.Equal(t, "run-6", runs[3].CollectionID)
}

func TestJournalSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	started := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Record(ctx, testRun("run-1", started)))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].CollectionID)
}
