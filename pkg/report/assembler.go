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

package report

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/facts"
)

// RedactionMarker replaces sensitive leaf values before transmission.
const RedactionMarker = "[REDACTED]"

// defaultSensitiveKeys matches fact keys whose values must never leave the
// host: credentials and key material in any spelling the collectors emit.
var defaultSensitiveKeys = regexp.MustCompile(`(?i)(password|passwd|secret|token|key)`)

// hostnameKeys matches fact keys that carry hostname-shaped values.
var hostnameKeys = regexp.MustCompile(`(?i)(hostname|fqdn)`)

// PrivacyOptions controls redaction and anonymization during assembly.
type PrivacyOptions struct {
	// RedactPasswords replaces leaf values under sensitive keys with the
	// redaction marker.
	RedactPasswords bool
	// AnonymizeHostnames passes the host name in meta and hostname-shaped
	// leaves through a one-way, run-stable transform.
	AnonymizeHostnames bool
	// ExcludeFacts drops matching top-level fact keys from every category.
	// A pattern surrounded by '*' matches as a substring, otherwise exactly.
	ExcludeFacts []string
}

// Option configures an Assembler; used by tests to pin the generated
// collection id, timestamp, and hostname.
type Option func(*Assembler)

// WithClock fixes the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		a.now = now
	}
}

// WithIDSource fixes the collection id source.
func WithIDSource(newID func() uuid.UUID) Option {
	return func(a *Assembler) {
		a.newID = newID
	}
}

// WithHostname fixes the reported hostname.
func WithHostname(hostname string) Option {
	return func(a *Assembler) {
		a.hostname = func() string { return hostname }
	}
}

// WithAnonymizer replaces the hostname anonymizer.
func WithAnonymizer(an *Anonymizer) Option {
	return func(a *Assembler) {
		a.anonymizer = an
	}
}

// WithSensitiveKeyPattern overrides the sensitive-key pattern.
func WithSensitiveKeyPattern(re *regexp.Regexp) Option {
	return func(a *Assembler) {
		a.sensitive = re
	}
}

// Assembler merges collector results and run metadata into a Report,
// applying the configured privacy rules. Assembly is deterministic given
// identical inputs, except for collection id and timestamp which are fresh
// per call.
type Assembler struct {
	version    string
	privacy    PrivacyOptions
	sensitive  *regexp.Regexp
	anonymizer *Anonymizer
	now        func() time.Time
	newID      func() uuid.UUID
	hostname   func() string
}

// NewAssembler creates an Assembler for the given tool version.
func NewAssembler(version string, privacy PrivacyOptions, opts ...Option) *Assembler {
	a := &Assembler{
		version:    version,
		privacy:    privacy,
		sensitive:  defaultSensitiveKeys,
		anonymizer: NewAnonymizer(),
		now:        time.Now,
		newID:      uuid.New,
		hostname:   osHostname,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func osHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// Assemble builds the report for one run. OK results land under their
// category in data; every other status becomes an entry in errors, in
// input order.
func (a *Assembler) Assemble(results []collector.Result, hostID uuid.UUID) *Report {
	rawHostname := a.hostname()

	r := &Report{
		Meta: Meta{
			Hostname:     rawHostname,
			HostID:       hostID.String(),
			CollectionID: a.newID().String(),
			Timestamp:    a.now().UTC().Format(time.RFC3339),
			SnailVersion: a.version,
		},
		Data:   make(map[string]facts.Tree, len(results)),
		Errors: make([]CollectorError, 0),
	}

	if a.privacy.AnonymizeHostnames {
		r.Meta.Hostname = a.anonymizer.Anonymize(rawHostname)
	}

	for _, res := range results {
		if res.Status == collector.StatusOK {
			r.Data[res.Category] = a.sanitize(res.Data, rawHostname)
			continue
		}
		r.Errors = append(r.Errors, CollectorError{
			CollectorName: res.Name,
			Message:       errorMessage(res),
		})
	}

	return r
}

func errorMessage(res collector.Result) string {
	if res.Err != "" {
		return res.Err
	}
	switch res.Status {
	case collector.StatusTimedOut:
		return "collector timed out"
	case collector.StatusSkipped:
		return "collector skipped"
	default:
		return "collector failed"
	}
}

// sanitize applies the privacy rules to one collector's fact tree.
func (a *Assembler) sanitize(t facts.Tree, rawHostname string) facts.Tree {
	if len(a.privacy.ExcludeFacts) > 0 {
		t = facts.FilterOut(t, a.privacy.ExcludeFacts)
	}
	if !a.privacy.RedactPasswords && !a.privacy.AnonymizeHostnames {
		return t
	}
	return facts.Transform(t, func(key string, value any) any {
		if a.privacy.RedactPasswords && key != "" && a.sensitive.MatchString(key) {
			return RedactionMarker
		}
		if a.privacy.AnonymizeHostnames {
			if s, ok := value.(string); ok && s != "" {
				if hostnameKeys.MatchString(key) || sameHost(s, rawHostname) {
					return a.anonymizer.Anonymize(s)
				}
			}
		}
		return value
	})
}

// sameHost reports whether a leaf string is this host's name, bare or
// fully qualified.
func sameHost(value, hostname string) bool {
	if hostname == "" {
		return false
	}
	return value == hostname || strings.HasPrefix(value, hostname+".")
}
