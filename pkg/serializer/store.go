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
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	snailerrors "github.com/snailops/snail/pkg/errors"
	"github.com/snailops/snail/pkg/report"
)

// ReportFileName returns the retained-report file name for a collection.
func ReportFileName(collectionID string, compress bool) string {
	name := fmt.Sprintf("snail-report-%s.json", collectionID)
	if compress {
		name += ".gz"
	}
	return name
}

// SaveReport persists a report document under dir and returns its path.
// The file lands whole or not at all: content is staged in a temp file in
// the same directory and renamed into place.
func SaveReport(dir string, rep *report.Report, compress bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to create report directory", err)
	}

	path := filepath.Join(dir, ReportFileName(rep.Meta.CollectionID, compress))

	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return "", snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to stage report file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeReport(tmp, rep, compress); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to close report file", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return "", snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to set report file mode", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to place report file", err)
	}
	return path, nil
}

func writeReport(f *os.File, rep *report.Report, compress bool) error {
	var enc *json.Encoder
	var zw *gzip.Writer

	if compress {
		zw = gzip.NewWriter(f)
		enc = json.NewEncoder(zw)
	} else {
		enc = json.NewEncoder(f)
		enc.SetIndent("", "  ")
	}

	if err := enc.Encode(rep); err != nil {
		return snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to encode report", err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return snailerrors.Wrap(snailerrors.ErrCodeInternal,
				"failed to finish report compression", err)
		}
	}
	return f.Sync()
}

// LoadReport reads a retained report back from path, transparently
// handling gzip-compressed files.
func LoadReport(path string) (*report.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to open report file", err)
	}
	defer f.Close()

	var rep report.Report
	if filepath.Ext(path) == ".gz" {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
				"failed to read compressed report", err)
		}
		defer zr.Close()
		err = json.NewDecoder(zr).Decode(&rep)
		if err != nil {
			return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
				"failed to decode report", err)
		}
		return &rep, nil
	}

	if err := json.NewDecoder(f).Decode(&rep); err != nil {
		return nil, snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to decode report", err)
	}
	return &rep, nil
}
