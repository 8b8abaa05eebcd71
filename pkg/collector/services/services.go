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

// Package services collects systemd unit facts over the manager's D-Bus
// API, falling back to systemctl when the bus is unreachable.
package services

import (
	"context"
	"strings"

	sd "github.com/coreos/go-systemd/v22/dbus"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/collector/file"
	"github.com/snailops/snail/pkg/distro"
	"github.com/snailops/snail/pkg/facts"
)

const collectorName = "services"

// unitLister is the slice of the systemd D-Bus API the collector uses.
type unitLister interface {
	ListUnitsContext(ctx context.Context) ([]sd.UnitStatus, error)
	GetManagerProperty(prop string) (string, error)
	Close()
}

// Collector gathers systemd unit facts. It only applies on systemd hosts.
type Collector struct {
	collector.Meta
	parser  *file.Parser
	connect func(ctx context.Context) (unitLister, error)
}

// Option configures the services collector.
type Option func(*Collector)

// WithConnector replaces the D-Bus connection factory.
func WithConnector(fn func(ctx context.Context) (unitLister, error)) Option {
	return func(c *Collector) {
		c.connect = fn
	}
}

// New creates the services collector.
func New(opts ...Option) *Collector {
	c := &Collector{
		Meta: collector.NewMeta(collectorName, collectorName, 0, func(p distro.Profile) bool {
			return p.InitSystem == distro.InitSystemd
		}),
		parser: file.NewParser(),
		connect: func(ctx context.Context) (unitLister, error) {
			return sd.NewSystemConnectionContext(ctx)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collector) Collect(ctx context.Context, rc *collector.Context) (facts.Tree, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return c.collectViaSystemctl(ctx, rc), nil
	}
	defer conn.Close()

	units, err := conn.ListUnitsContext(ctx)
	if err != nil {
		return c.collectViaSystemctl(ctx, rc), nil
	}

	tree := c.classifyUnits(units)
	tree["systemd"] = c.managerInfo(conn, units)
	tree["targets"] = c.targetInfo(ctx, rc, units)
	return tree, nil
}

// classifyUnits splits the unit listing into the running-service and
// failed-unit views the report exposes.
func (c *Collector) classifyUnits(units []sd.UnitStatus) facts.Tree {
	running := make([]any, 0)
	failed := make([]any, 0)

	for _, u := range units {
		entry := facts.Tree{
			"name":        u.Name,
			"load":        u.LoadState,
			"active":      u.ActiveState,
			"sub":         u.SubState,
			"description": u.Description,
		}
		if u.ActiveState == "failed" {
			failed = append(failed, entry)
			continue
		}
		if strings.HasSuffix(u.Name, ".service") && u.SubState == "running" {
			running = append(running, entry)
		}
	}

	return facts.Tree{
		"running_services": running,
		"failed_units":     failed,
	}
}

func (c *Collector) managerInfo(conn unitLister, units []sd.UnitStatus) facts.Tree {
	info := facts.Tree{}

	if v, err := conn.GetManagerProperty("Version"); err == nil {
		info["version"] = strings.Trim(v, `"`)
	}
	if state, err := conn.GetManagerProperty("SystemState"); err == nil {
		info["system_state"] = strings.Trim(state, `"`)
	}

	byType := facts.Tree{}
	for _, u := range units {
		if idx := strings.LastIndex(u.Name, "."); idx >= 0 {
			kind := u.Name[idx+1:]
			if n, ok := byType[kind].(int); ok {
				byType[kind] = n + 1
			} else {
				byType[kind] = 1
			}
		}
	}
	info["units_by_type"] = byType
	return info
}

func (c *Collector) targetInfo(ctx context.Context, rc *collector.Context, units []sd.UnitStatus) facts.Tree {
	active := make([]any, 0)
	for _, u := range units {
		if strings.HasSuffix(u.Name, ".target") && u.ActiveState == "active" {
			active = append(active, u.Name)
		}
	}

	targets := facts.Tree{"active": active, "default": ""}
	if out, ok := rc.ExecOK(ctx, "systemctl", "get-default"); ok {
		targets["default"] = out
	}
	return targets
}

// collectViaSystemctl is the degraded path for hosts where the collector
// cannot reach the system bus, such as inside restricted containers.
func (c *Collector) collectViaSystemctl(ctx context.Context, rc *collector.Context) facts.Tree {
	tree := facts.Tree{
		"running_services": c.listUnits(ctx, rc, "--type=service", "--state=running"),
		"failed_units":     c.listUnits(ctx, rc, "--state=failed"),
	}

	info := facts.Tree{}
	if out, ok := rc.ExecOK(ctx, "systemctl", "--version"); ok {
		line, _, _ := strings.Cut(out, "\n")
		info["version"] = strings.TrimSpace(line)
	}
	if out, _ := rc.Exec(ctx, "systemctl", "is-system-running"); out != "" {
		info["system_state"] = out
	}
	tree["systemd"] = info

	targets := facts.Tree{"active": []any{}, "default": ""}
	if out, ok := rc.ExecOK(ctx, "systemctl", "get-default"); ok {
		targets["default"] = out
	}
	tree["targets"] = targets
	return tree
}

func (c *Collector) listUnits(ctx context.Context, rc *collector.Context, filters ...string) []any {
	args := append([]string{"list-units", "--no-legend", "--plain"}, filters...)
	out, ok := rc.ExecOK(ctx, "systemctl", args...)
	if !ok {
		return []any{}
	}

	units := make([]any, 0)
	for _, line := range c.parser.SplitLines(out) {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		entry := facts.Tree{
			"name":   fields[0],
			"load":   fields[1],
			"active": fields[2],
			"sub":    fields[3],
		}
		if len(fields) > 4 {
			entry["description"] = strings.Join(fields[4:], " ")
		}
		units = append(units, entry)
	}
	return units
}
