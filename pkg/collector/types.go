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

package collector

import (
	"context"
	"time"

	"github.com/snailops/snail/pkg/defaults"
	"github.com/snailops/snail/pkg/distro"
	"github.com/snailops/snail/pkg/facts"
)

// Collector is a named, versioned unit of work producing the fact tree for
// one diagnostic category. New collectors implement this interface; the
// execution engine never needs to change.
type Collector interface {
	// Name uniquely identifies the collector within a registry.
	Name() string
	// Category names the report section this collector's facts land under.
	Category() string
	// Timeout bounds a single Collect invocation.
	Timeout() time.Duration
	// AppliesTo reports whether the collector is meaningful for the profile.
	AppliesTo(p distro.Profile) bool
	// Collect gathers the facts. It must treat the run context as read-only
	// and must not share mutable state with sibling collectors.
	Collect(ctx context.Context, rc *Context) (facts.Tree, error)
}

// Meta implements the identity portion of the Collector interface.
// Category collectors embed it and supply only Collect.
type Meta struct {
	name     string
	category string
	timeout  time.Duration
	applies  func(distro.Profile) bool
}

// NewMeta creates collector identity metadata. A nil applies predicate
// means the collector applies to every profile; a zero timeout falls back
// to the default collector timeout.
func NewMeta(name, category string, timeout time.Duration, applies func(distro.Profile) bool) Meta {
	if timeout <= 0 {
		timeout = defaults.CollectorTimeout
	}
	return Meta{
		name:     name,
		category: category,
		timeout:  timeout,
		applies:  applies,
	}
}

func (m Meta) Name() string           { return m.name }
func (m Meta) Category() string       { return m.category }
func (m Meta) Timeout() time.Duration { return m.timeout }

func (m Meta) AppliesTo(p distro.Profile) bool {
	if m.applies == nil {
		return true
	}
	return m.applies(p)
}

// Status classifies the outcome of one collector attempt.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFailed   Status = "failed"
	StatusTimedOut Status = "timed_out"
	StatusSkipped  Status = "skipped"
)

// Result is the immutable outcome of one attempted collector run.
type Result struct {
	Name     string
	Category string
	Status   Status
	Data     facts.Tree
	Err      string
	Duration time.Duration
}
