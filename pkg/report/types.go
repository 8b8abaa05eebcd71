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

// Package report assembles collector results into the canonical report
// document delivered to the ingestion endpoint.
package report

import (
	"github.com/snailops/snail/pkg/facts"
)

// Meta identifies one collection run and the host it came from.
type Meta struct {
	Hostname     string `json:"hostname" yaml:"hostname"`
	HostID       string `json:"host_id" yaml:"host_id"`
	CollectionID string `json:"collection_id" yaml:"collection_id"`
	Timestamp    string `json:"timestamp" yaml:"timestamp"`
	SnailVersion string `json:"snail_version" yaml:"snail_version"`
}

// CollectorError records one non-OK collector outcome.
type CollectorError struct {
	CollectorName string `json:"collector_name" yaml:"collector_name"`
	Message       string `json:"message" yaml:"message"`
}

// Report is the merged, redacted document representing one collection run.
// It is immutable after assembly and is the unit the uploader transmits.
type Report struct {
	Meta Meta `json:"meta" yaml:"meta"`

	// Data maps category name to that category's facts. Only collectors
	// that completed OK contribute an entry.
	Data map[string]facts.Tree `json:"data" yaml:"data"`

	// Errors lists non-OK collectors in execution (registration) order.
	Errors []CollectorError `json:"errors" yaml:"errors"`
}
