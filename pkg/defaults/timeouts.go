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

package defaults

import "time"

// Collection timeouts.
const (
	// CollectorTimeout is the default per-collector timeout.
	// Collectors should respect parent context deadlines when shorter.
	CollectorTimeout = 30 * time.Second

	// RunTimeout is the default wall-clock bound for a full collection run.
	RunTimeout = 5 * time.Minute

	// ProbeCommandTimeout bounds individual subprocess probes inside a collector.
	ProbeCommandTimeout = 10 * time.Second
)

// Execution engine limits.
const (
	// MaxConcurrency caps the collector worker pool when NumCPU exceeds it.
	MaxConcurrency = 8

	// LaunchRate is the sustained collector launch rate (starts per second).
	// Pacing keeps a burst of subprocess-heavy collectors from landing at once.
	LaunchRate = 20

	// LaunchBurst is the launch rate limiter burst size.
	LaunchBurst = 8
)

// Upload transport defaults.
const (
	// UploadTimeout is the default per-attempt upload timeout.
	UploadTimeout = 30 * time.Second

	// UploadRetries is the default number of additional delivery attempts
	// after the first one fails with a retryable error.
	UploadRetries = 3

	// UploadBackoffBase is the initial backoff delay between attempts.
	UploadBackoffBase = 1 * time.Second

	// UploadBackoffCap is the maximum backoff delay between attempts.
	UploadBackoffCap = 30 * time.Second
)

// HTTP client timeouts for outbound requests.
const (
	// HTTPConnectTimeout is the timeout for establishing connections.
	HTTPConnectTimeout = 5 * time.Second

	// HTTPTLSHandshakeTimeout is the timeout for TLS handshake.
	HTTPTLSHandshakeTimeout = 5 * time.Second

	// HTTPResponseHeaderTimeout is the timeout for reading response headers.
	HTTPResponseHeaderTimeout = 10 * time.Second

	// HTTPIdleConnTimeout is the timeout for idle connections in the pool.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPKeepAlive is the keep-alive duration for connections.
	HTTPKeepAlive = 30 * time.Second
)

// Journal limits.
const (
	// JournalQueryTimeout bounds local run-history queries.
	JournalQueryTimeout = 5 * time.Second

	// JournalRecentRuns is the default row count for recent-run listings.
	JournalRecentRuns = 20

	// JournalRetainRuns is how many runs the journal keeps; older rows are
	// pruned after each recorded run.
	JournalRetainRuns = 100
)
