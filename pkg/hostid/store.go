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

// Package hostid manages the persistent identity that correlates this
// host's reports across runs. The identifier is created on first run,
// survives reboots, and only changes through an explicit reset.
package hostid

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	snailerrors "github.com/snailops/snail/pkg/errors"
)

// FileName is the identity file name inside the store directory.
const FileName = "host-id"

// Store persists the host identity under a fixed directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir (typically the agent's state
// directory, e.g. /var/lib/snail).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the identity file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// LoadOrCreate returns the persisted host identifier, creating and durably
// persisting a fresh one on first run. The write is atomic create-if-absent:
// when two processes race, exactly one identity wins and both return it. A
// crash between generation and persistence never leaks a committed identity.
func (s *Store) LoadOrCreate() (uuid.UUID, error) {
	if id, err := s.load(); err == nil {
		return id, nil
	} else if !os.IsNotExist(err) {
		return uuid.Nil, snailerrors.Wrap(snailerrors.ErrCodeIdentityStore, "reading host identity", err)
	}

	id := uuid.New()
	if err := s.commit(id, false); err != nil {
		if os.IsExist(err) {
			// Lost the creation race: the other process's identity is the
			// committed one.
			winner, loadErr := s.load()
			if loadErr != nil {
				return uuid.Nil, snailerrors.Wrap(snailerrors.ErrCodeIdentityStore, "reading host identity after create race", loadErr)
			}
			return winner, nil
		}
		return uuid.Nil, snailerrors.Wrap(snailerrors.ErrCodeIdentityStore, "persisting host identity", err)
	}

	slog.Info("created host identity", "host_id", id, "path", s.Path())
	return id, nil
}

// Reset forcibly generates, persists, and returns a new identity,
// discarding the old one. This is the only sanctioned way the stable
// identity changes; the host will appear as a new system to the server.
func (s *Store) Reset() (uuid.UUID, error) {
	id := uuid.New()
	if err := s.commit(id, true); err != nil {
		return uuid.Nil, snailerrors.Wrap(snailerrors.ErrCodeIdentityStore, "persisting reset host identity", err)
	}
	slog.Info("reset host identity", "host_id", id, "path", s.Path())
	return id, nil
}

func (s *Store) load() (uuid.UUID, error) {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(string(b)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt host identity file %s: %w", s.Path(), err)
	}
	return id, nil
}

// commit durably writes the identity. The payload lands in a unique temp
// file, is fsynced, then linked into place: O_EXCL link for create-if-absent
// semantics, rename for an explicit overwrite.
func (s *Store) commit(id uuid.UUID, overwrite bool) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, FileName+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(id.String() + "\n"); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if overwrite {
		return os.Rename(tmpName, s.Path())
	}

	// Link fails with EEXIST when another process committed first, which
	// is exactly the serialization the create path needs.
	return os.Link(tmpName, s.Path())
}
