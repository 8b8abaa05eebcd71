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

package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/snailops/snail/pkg/defaults"
	snailerrors "github.com/snailops/snail/pkg/errors"
)

// FetchAPIKey exchanges operator credentials for an API key at the
// endpoint's auth service. The key endpoint is derived from the upload URL:
// .../api/v1/ingest becomes .../api/v1/auth/api-key.
func FetchAPIKey(ctx context.Context, hc *http.Client, uploadURL, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", snailerrors.New(snailerrors.ErrCodeConfigInvalid,
			"username and password are required to fetch an API key")
	}
	if hc == nil {
		hc = &http.Client{
			Timeout:   defaults.UploadTimeout,
			Transport: newTransport(nil),
		}
	}

	endpoint := apiKeyEndpoint(uploadURL)

	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", snailerrors.Wrap(snailerrors.ErrCodeInternal,
			"failed to encode credentials", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", snailerrors.Wrap(snailerrors.ErrCodeTransport,
			"failed to build API key request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return "", snailerrors.Wrap(snailerrors.ErrCodeTransport,
			"API key request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", snailerrors.WrapWithContext(snailerrors.ErrCodeTransport,
			"API key request rejected", nil, map[string]any{"status": resp.StatusCode})
	}

	var body struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", snailerrors.Wrap(snailerrors.ErrCodeTransport,
			"failed to decode API key response", err)
	}
	if body.Key == "" {
		return "", snailerrors.New(snailerrors.ErrCodeTransport,
			"API key response missing key field")
	}
	return body.Key, nil
}

// apiKeyEndpoint derives the auth endpoint from the upload URL.
func apiKeyEndpoint(uploadURL string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(uploadURL, "/"), "/ingest")
	base = strings.TrimSuffix(base, "/")
	if !strings.HasSuffix(base, "/api/v1") {
		switch {
		case strings.HasSuffix(base, "/api"):
			base += "/v1"
		case !strings.Contains(base, "/api"):
			base += "/api/v1"
		}
	}
	return base + "/auth/api-key"
}
