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

// Package journal keeps a local history of collection runs in a SQLite
// database inside the agent state directory. The journal is best-effort
// bookkeeping: a broken journal never blocks a collection run.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snailops/snail/pkg/defaults"
	snailerrors "github.com/snailops/snail/pkg/errors"
)

// FileName is the journal database file name inside the store directory.
const FileName = "runs.db"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	collection_id    TEXT PRIMARY KEY,
	host_id          TEXT NOT NULL,
	started_at       INTEGER NOT NULL,
	duration_ms      INTEGER NOT NULL,
	collectors_ok    INTEGER NOT NULL,
	collectors_failed INTEGER NOT NULL,
	delivery         TEXT NOT NULL,
	report_path      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Run is one journaled collection run.
type Run struct {
	CollectionID     string        `json:"collection_id"`
	HostID           string        `json:"host_id"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
	CollectorsOK     int           `json:"collectors_ok"`
	CollectorsFailed int           `json:"collectors_failed"`

	// Delivery is the upload outcome for the run: success,
	// retryable_failure, fatal_failure, or skipped when uploads are off.
	Delivery string `json:"delivery"`

	// ReportPath is the retained local report file, empty when the
	// report was not kept.
	ReportPath string `json:"report_path,omitempty"`
}

// Store is a handle on the run journal.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to create journal directory", err)
	}

	dsn := "file:" + filepath.Join(dir, FileName) + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to open run journal", err)
	}
	// The driver serializes writes; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), defaults.JournalQueryTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to initialize run journal schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one run. Recording the same collection id twice is an
// error; collection ids are unique per run.
func (s *Store) Record(ctx context.Context, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, defaults.JournalQueryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (collection_id, host_id, started_at, duration_ms,
			collectors_ok, collectors_failed, delivery, report_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CollectionID,
		run.HostID,
		run.StartedAt.UnixMilli(),
		run.Duration.Milliseconds(),
		run.CollectorsOK,
		run.CollectorsFailed,
		run.Delivery,
		run.ReportPath,
	)
	if err != nil {
		return snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to record run", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. A non-positive limit
// uses the default history window.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaults.JournalRecentRuns
	}

	ctx, cancel := context.WithTimeout(ctx, defaults.JournalQueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT collection_id, host_id, started_at, duration_ms,
			collectors_ok, collectors_failed, delivery, report_path
		 FROM runs ORDER BY started_at DESC, collection_id LIMIT ?`, limit)
	if err != nil {
		return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to query run journal", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedMilli, durationMilli int64
		if err := rows.Scan(&r.CollectionID, &r.HostID, &startedMilli, &durationMilli,
			&r.CollectorsOK, &r.CollectorsFailed, &r.Delivery, &r.ReportPath); err != nil {
			return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
				"failed to scan run journal row", err)
		}
		r.StartedAt = time.UnixMilli(startedMilli).UTC()
		r.Duration = time.Duration(durationMilli) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to read run journal rows", err)
	}
	return runs, nil
}

// Last returns the most recent run, or nil when the journal is empty.
func (s *Store) Last(ctx context.Context) (*Run, error) {
	runs, err := s.Recent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// Prune deletes all but the newest keep runs.
func (s *Store) Prune(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}

	ctx, cancel := context.WithTimeout(ctx, defaults.JournalQueryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE collection_id NOT IN (
			SELECT collection_id FROM runs
			ORDER BY started_at DESC, collection_id LIMIT ?)`, keep)
	if err != nil {
		return snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to prune run journal", err)
	}
	return nil
}
