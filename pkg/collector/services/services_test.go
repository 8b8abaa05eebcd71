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

package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	sd "github.com/coreos/go-systemd/v22/dbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/distro"
	"github.com/snailops/snail/pkg/facts"
)

type fakeBus struct {
	units      []sd.UnitStatus
	properties map[string]string
	closed     bool
}

func (f *fakeBus) ListUnitsContext(context.Context) ([]sd.UnitStatus, error) {
	return f.units, nil
}

func (f *fakeBus) GetManagerProperty(prop string) (string, error) {
	if v, ok := f.properties[prop]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown property %q", prop)
}

func (f *fakeBus) Close() { f.closed = true }

func systemdProfile() distro.Profile {
	return distro.Profile{Family: distro.FamilyRPMDNF, InitSystem: distro.InitSystemd}
}

func execTable(outputs map[string]string) collector.ContextOption {
	return collector.WithExec(func(_ context.Context, name string, args ...string) (string, error) {
		key := strings.Join(append([]string{name}, args...), " ")
		if out, ok := outputs[key]; ok {
			return strings.TrimSpace(out), nil
		}
		return "", fmt.Errorf("command %q failed: executable not found", name)
	})
}

func TestCollectOverDBus(t *testing.T) {
	bus := &fakeBus{
		units: []sd.UnitStatus{
			{Name: "sshd.service", LoadState: "loaded", ActiveState: "active", SubState: "running", Description: "OpenSSH server daemon"},
			{Name: "chronyd.service", LoadState: "loaded", ActiveState: "active", SubState: "running", Description: "NTP client/server"},
			{Name: "fancy.service", LoadState: "loaded", ActiveState: "failed", SubState: "failed", Description: "Broken unit"},
			{Name: "multi-user.target", LoadState: "loaded", ActiveState: "active", SubState: "active", Description: "Multi-User System"},
			{Name: "dnf-makecache.timer", LoadState: "loaded", ActiveState: "active", SubState: "waiting", Description: "dnf makecache"},
		},
		properties: map[string]string{
			"Version":     `"254.10-1.fc39"`,
			"SystemState": `"running"`,
		},
	}

	c := New(WithConnector(func(context.Context) (unitLister, error) {
		return bus, nil
	}))
	rc := collector.NewContext(systemdProfile(), execTable(map[string]string{
		"systemctl get-default": "multi-user.target",
	}))

	tree, err := c.Collect(context.Background(), rc)
	require.NoError(t, err)

	running := tree["running_services"].([]any)
	require.Len(t, running, 2)
	assert.Equal(t, "sshd.service", running[0].(facts.Tree)["name"])

	failed := tree["failed_units"].([]any)
	require.Len(t, failed, 1)
	assert.Equal(t, "fancy.service", failed[0].(facts.Tree)["name"])

	systemd := tree["systemd"].(facts.Tree)
	assert.Equal(t, "254.10-1.fc39", systemd["version"])
	assert.Equal(t, "running", systemd["system_state"])
	byType := systemd["units_by_type"].(facts.Tree)
	assert.Equal(t, 3, byType["service"])
	assert.Equal(t, 1, byType["target"])
	assert.Equal(t, 1, byType["timer"])

	targets := tree["targets"].(facts.Tree)
	assert.Equal(t, "multi-user.target", targets["default"])
	assert.Equal(t, []any{"multi-user.target"}, targets["active"])

	assert.True(t, bus.closed, "the bus connection must be released")
}

func TestCollectFallsBackToSystemctl(t *testing.T) {
	c := New(WithConnector(func(context.Context) (unitLister, error) {
		return nil, fmt.Errorf("dbus: connection refused")
	}))

	rc := collector.NewContext(systemdProfile(), execTable(map[string]string{
		"systemctl list-units --no-legend --plain --type=service --state=running": `sshd.service loaded active running OpenSSH server daemon
crond.service loaded active running Command Scheduler`,
		"systemctl list-units --no-legend --plain --state=failed": "",
		"systemctl --version":          "systemd 254 (254.10-1.fc39)\n+PAM +AUDIT",
		"systemctl is-system-running":  "running",
		"systemctl get-default":        "graphical.target",
	}))

	tree, err := c.Collect(context.Background(), rc)
	require.NoError(t, err)

	running := tree["running_services"].([]any)
	require.Len(t, running, 2)
	first := running[0].(facts.Tree)
	assert.Equal(t, "sshd.service", first["name"])
	assert.Equal(t, "OpenSSH server daemon", first["description"])

	assert.Empty(t, tree["failed_units"].([]any))

	systemd := tree["systemd"].(facts.Tree)
	assert.Equal(t, "systemd 254 (254.10-1.fc39)", systemd["version"])
	assert.Equal(t, "running", systemd["system_state"])

	targets := tree["targets"].(facts.Tree)
	assert.Equal(t, "graphical.target", targets["default"])
}

func TestAppliesToRequiresSystemd(t *testing.T) {
	c := New()
	assert.True(t, c.AppliesTo(systemdProfile()))
	assert.False(t, c.AppliesTo(distro.Profile{InitSystem: distro.InitOther}))
}
