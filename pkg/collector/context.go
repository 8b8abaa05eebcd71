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
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/snailops/snail/pkg/defaults"
	"github.com/snailops/snail/pkg/distro"
)

// ContextOption configures a collector run context.
type ContextOption func(*Context)

// WithExec replaces the command probe, enabling tests to simulate hosts.
func WithExec(fn func(ctx context.Context, name string, args ...string) (string, error)) ContextOption {
	return func(c *Context) {
		c.exec = fn
	}
}

// WithReadFile replaces the file probe.
func WithReadFile(fn func(path string) ([]byte, error)) ContextOption {
	return func(c *Context) {
		c.readFile = fn
	}
}

// Context is the per-collector run context. It carries the immutable
// distribution profile plus the host probes collectors are allowed to use.
// Each concurrently running collector receives its own Context so there is
// no shared mutable state between them.
type Context struct {
	Profile distro.Profile

	exec     func(ctx context.Context, name string, args ...string) (string, error)
	readFile func(path string) ([]byte, error)
}

// NewContext creates a run context for the given profile with real host probes.
func NewContext(profile distro.Profile, opts ...ContextOption) *Context {
	c := &Context{
		Profile:  profile,
		exec:     runCommand,
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exec runs a host command and returns its trimmed stdout. The command is
// bound to the collector's context and additionally time-boxed by the probe
// command timeout.
func (c *Context) Exec(ctx context.Context, name string, args ...string) (string, error) {
	return c.exec(ctx, name, args...)
}

// ExecOK runs a host command and reports success. Missing binaries and
// non-zero exits are an expected part of probing heterogeneous hosts, so
// they surface as ok=false rather than errors.
func (c *Context) ExecOK(ctx context.Context, name string, args ...string) (string, bool) {
	out, err := c.exec(ctx, name, args...)
	if err != nil {
		slog.Debug("probe command unavailable", "command", name, "error", err)
		return "", false
	}
	return out, true
}

// ReadFile reads a host file, returning the empty string when the file is
// missing or unreadable.
func (c *Context) ReadFile(path string) string {
	b, err := c.readFile(path)
	if err != nil {
		slog.Debug("probe file unavailable", "path", path, "error", err)
		return ""
	}
	return string(b)
}

// ReadLines reads a host file and splits it into trimmed, non-empty lines.
func (c *Context) ReadLines(path string) []string {
	content := c.ReadFile(path)
	if content == "" {
		return nil
	}
	raw := strings.Split(content, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaults.ProbeCommandTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("command %q failed: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}
