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

// Package logs collects recent journald entries: boot warnings, kernel
// errors, authentication failures, and service failures.
package logs

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/collector/file"
	"github.com/snailops/snail/pkg/distro"
	"github.com/snailops/snail/pkg/facts"
)

const collectorName = "logs"

// maxEntries bounds each log section.
const maxEntries = 100

// maxMessageLen truncates very long journal messages.
const maxMessageLen = 500

// journalEntry is the subset of journald's JSON export format the
// collector extracts.
type journalEntry struct {
	RealtimeTimestamp string `json:"__REALTIME_TIMESTAMP"`
	Priority          string `json:"PRIORITY"`
	Unit              string `json:"_SYSTEMD_UNIT"`
	Message           string `json:"MESSAGE"`
}

// Collector gathers journald facts. It only applies on systemd hosts.
type Collector struct {
	collector.Meta
	parser *file.Parser
}

// New creates the logs collector.
func New() *Collector {
	return &Collector{
		Meta: collector.NewMeta(collectorName, collectorName, 0, func(p distro.Profile) bool {
			return p.InitSystem == distro.InitSystemd
		}),
		parser: file.NewParser(),
	}
}

func (c *Collector) Collect(ctx context.Context, rc *collector.Context) (facts.Tree, error) {
	return facts.Tree{
		"journald":         c.journaldInfo(ctx, rc),
		"boot_logs":        c.bootWarnings(ctx, rc),
		"kernel_errors":    c.kernelErrors(ctx, rc),
		"auth_failures":    c.authFailures(ctx, rc),
		"service_failures": c.serviceFailures(ctx, rc),
	}, nil
}

func (c *Collector) journaldInfo(ctx context.Context, rc *collector.Context) facts.Tree {
	info := facts.Tree{}

	if out, ok := rc.ExecOK(ctx, "journalctl", "--disk-usage"); ok {
		// "Archived and active journals take up 512.0M in the file system."
		fields := strings.Fields(out)
		for i, f := range fields {
			if f == "up" && i+1 < len(fields) {
				info["disk_usage"] = fields[i+1]
				break
			}
		}
	}

	if out, ok := rc.ExecOK(ctx, "journalctl", "--list-boots", "--no-pager"); ok {
		info["boot_count"] = len(c.parser.SplitLines(out))
	}

	conf := file.NewParser(file.WithTrimQuotes()).MapFromLines(rc.ReadLines("/etc/systemd/journald.conf"))
	info["config"] = facts.Tree{
		"storage":       valueOr(conf, "Storage", "auto"),
		"compress":      valueOr(conf, "Compress", "yes"),
		"max_use":       conf["SystemMaxUse"],
		"max_file_size": conf["SystemMaxFileSize"],
	}

	return info
}

func (c *Collector) bootWarnings(ctx context.Context, rc *collector.Context) []any {
	return c.journalQuery(ctx, rc, func(e journalEntry) facts.Tree {
		return facts.Tree{
			"timestamp": formatTimestamp(e.RealtimeTimestamp),
			"priority":  e.Priority,
			"unit":      e.Unit,
			"message":   truncate(e.Message),
		}
	}, "-b", "-p", "warning", "-n", strconv.Itoa(maxEntries))
}

func (c *Collector) kernelErrors(ctx context.Context, rc *collector.Context) []any {
	return c.journalQuery(ctx, rc, func(e journalEntry) facts.Tree {
		return facts.Tree{
			"timestamp": formatTimestamp(e.RealtimeTimestamp),
			"message":   truncate(e.Message),
		}
	}, "-k", "-p", "err", "-n", "50")
}

func (c *Collector) authFailures(ctx context.Context, rc *collector.Context) facts.Tree {
	since := time.Now().UTC().Add(-24 * time.Hour).Format("2006-01-02 15:04:05")

	entries := c.journalQuery(ctx, rc, func(e journalEntry) facts.Tree {
		msg := strings.ToLower(e.Message)
		if !strings.Contains(msg, "fail") && !strings.Contains(msg, "invalid") && !strings.Contains(msg, "error") {
			return nil
		}
		return facts.Tree{
			"timestamp": formatTimestamp(e.RealtimeTimestamp),
			"unit":      e.Unit,
			"message":   truncate(e.Message),
		}
	}, "-u", "sshd", "-u", "systemd-logind", "--since", since, "-n", "50")

	return facts.Tree{
		"recent_count":   len(entries),
		"recent_entries": entries,
	}
}

// serviceFailures keeps the most recent error per service unit.
func (c *Collector) serviceFailures(ctx context.Context, rc *collector.Context) []any {
	seen := make(map[string]bool)

	return c.journalQuery(ctx, rc, func(e journalEntry) facts.Tree {
		if !strings.HasSuffix(e.Unit, ".service") || seen[e.Unit] {
			return nil
		}
		seen[e.Unit] = true
		return facts.Tree{
			"timestamp": formatTimestamp(e.RealtimeTimestamp),
			"unit":      e.Unit,
			"message":   truncate(e.Message),
		}
	}, "-p", "err", "-n", "50")
}

// journalQuery runs journalctl with JSON output and maps each decoded entry
// through extract. A nil return from extract drops the entry.
func (c *Collector) journalQuery(ctx context.Context, rc *collector.Context, extract func(journalEntry) facts.Tree, args ...string) []any {
	full := append(args, "-o", "json", "--no-pager")
	out, ok := rc.ExecOK(ctx, "journalctl", full...)
	if !ok {
		return []any{}
	}

	entries := make([]any, 0)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e journalEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		if t := extract(e); t != nil {
			entries = append(entries, t)
		}
		if len(entries) >= maxEntries {
			break
		}
	}
	return entries
}

// formatTimestamp converts journald's microsecond epoch to RFC 3339.
func formatTimestamp(ts string) string {
	if ts == "" {
		return ""
	}
	usec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ts
	}
	return time.UnixMicro(usec).UTC().Format(time.RFC3339)
}

func truncate(msg string) string {
	if len(msg) > maxMessageLen {
		return msg[:maxMessageLen]
	}
	return msg
}

func valueOr(m map[string]string, key, fallback string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return fallback
}
