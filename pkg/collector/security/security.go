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

// Package security collects mandatory access control, firewall, and
// hardening-posture facts across the SELinux and AppArmor ecosystems.
package security

import (
	"context"
	"strconv"
	"strings"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/collector/file"
	"github.com/snailops/snail/pkg/distro"
	"github.com/snailops/snail/pkg/facts"
)

const collectorName = "security"

// Collector gathers security facts. It applies to every profile; sections
// for absent subsystems report themselves unavailable instead of erroring.
type Collector struct {
	collector.Meta
	parser *file.Parser
}

// New creates the security collector.
func New() *Collector {
	return &Collector{
		Meta:   collector.NewMeta(collectorName, collectorName, 0, nil),
		parser: file.NewParser(file.WithTrimQuotes()),
	}
}

func (c *Collector) Collect(ctx context.Context, rc *collector.Context) (facts.Tree, error) {
	return facts.Tree{
		"selinux":       c.selinuxInfo(ctx, rc),
		"apparmor":      c.apparmorInfo(ctx, rc),
		"firewall":      c.firewallInfo(ctx, rc),
		"crypto_policy": c.cryptoPolicy(ctx, rc),
		"fips":          c.fipsStatus(rc),
		"sshd":          c.sshdConfig(ctx, rc),
		"sudo":          c.sudoInfo(ctx, rc),
		"audit":         c.auditStatus(ctx, rc),
	}, nil
}

func (c *Collector) selinuxInfo(ctx context.Context, rc *collector.Context) facts.Tree {
	selinux := facts.Tree{
		"available": false,
		"enabled":   false,
		"mode":      "disabled",
		"policy":    "",
	}

	if rc.Profile.SecurityModule != distro.SecuritySELinux {
		return selinux
	}
	selinux["available"] = true
	selinux["enabled"] = true

	if out, ok := rc.ExecOK(ctx, "getenforce"); ok {
		selinux["mode"] = strings.ToLower(out)
	}

	conf := c.parser.MapFromLines(rc.ReadLines("/etc/selinux/config"))
	selinux["configured_mode"] = strings.ToLower(conf["SELINUX"])
	selinux["policy"] = conf["SELINUXTYPE"]
	return selinux
}

func (c *Collector) apparmorInfo(ctx context.Context, rc *collector.Context) facts.Tree {
	apparmor := facts.Tree{
		"available": false,
		"enabled":   false,
		"profiles":  facts.Tree{},
	}

	if rc.Profile.SecurityModule != distro.SecurityAppArmor {
		return apparmor
	}
	apparmor["available"] = true
	apparmor["enabled"] = true

	out, ok := rc.ExecOK(ctx, "aa-status")
	if !ok {
		return apparmor
	}

	profiles := facts.Tree{}
	for _, line := range c.parser.SplitLines(out) {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		switch {
		case strings.Contains(line, "profiles are loaded"):
			profiles["loaded"] = n
		case strings.Contains(line, "profiles are in enforce mode"):
			profiles["enforce"] = n
		case strings.Contains(line, "profiles are in complain mode"):
			profiles["complain"] = n
		}
	}
	apparmor["profiles"] = profiles
	return apparmor
}

func (c *Collector) firewallInfo(ctx context.Context, rc *collector.Context) facts.Tree {
	firewall := facts.Tree{
		"type":    string(rc.Profile.FirewallBackend),
		"enabled": false,
		"running": false,
	}

	switch rc.Profile.FirewallBackend {
	case distro.FirewallFirewalld:
		if out, ok := rc.ExecOK(ctx, "firewall-cmd", "--state"); ok && strings.Contains(out, "running") {
			firewall["running"] = true
			firewall["enabled"] = true
			if zone, ok := rc.ExecOK(ctx, "firewall-cmd", "--get-default-zone"); ok {
				firewall["default_zone"] = zone
			}
			if zones, ok := rc.ExecOK(ctx, "firewall-cmd", "--get-zones"); ok {
				list := make([]any, 0)
				for _, z := range strings.Fields(zones) {
					list = append(list, z)
				}
				firewall["zones"] = list
			}
		}
	case distro.FirewallUFW:
		if out, ok := rc.ExecOK(ctx, "ufw", "status"); ok {
			// "Status: inactive" also contains "active", so match the full field.
			active := strings.Contains(strings.ToLower(out), "status: active")
			firewall["running"] = active
			firewall["enabled"] = active
		}
	case distro.FirewallIPTables:
		if out, ok := rc.ExecOK(ctx, "iptables", "-L", "-n"); ok {
			firewall["running"] = true
			rules := 0
			for _, line := range c.parser.SplitLines(out) {
				if !strings.HasPrefix(line, "Chain") && !strings.HasPrefix(line, "target") {
					rules++
				}
			}
			firewall["rules_count"] = rules
		}
	}

	return firewall
}

func (c *Collector) cryptoPolicy(ctx context.Context, rc *collector.Context) facts.Tree {
	policy := facts.Tree{}
	if out, ok := rc.ExecOK(ctx, "update-crypto-policies", "--show"); ok {
		policy["current"] = out
	} else if current := strings.TrimSpace(rc.ReadFile("/etc/crypto-policies/state/current")); current != "" {
		policy["current"] = current
	}
	return policy
}

func (c *Collector) fipsStatus(rc *collector.Context) facts.Tree {
	return facts.Tree{
		"enabled": strings.TrimSpace(rc.ReadFile("/proc/sys/crypto/fips_enabled")) == "1",
	}
}

// sshdConfig reports policy-relevant sshd settings. Values only, never key
// material.
func (c *Collector) sshdConfig(ctx context.Context, rc *collector.Context) facts.Tree {
	sshd := facts.Tree{
		"running":           false,
		"port":              "22",
		"permit_root_login": "unknown",
		"password_auth":     "unknown",
		"pubkey_auth":       "unknown",
	}

	for _, service := range []string{"sshd", "ssh"} {
		if out, ok := rc.ExecOK(ctx, "systemctl", "is-active", service); ok && strings.Contains(out, "active") {
			sshd["running"] = true
			break
		}
	}

	for _, line := range rc.ReadLines("/etc/ssh/sshd_config") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, " ")
		if !found {
			continue
		}
		value = strings.ToLower(strings.TrimSpace(value))
		switch strings.ToLower(key) {
		case "port":
			sshd["port"] = value
		case "permitrootlogin":
			sshd["permit_root_login"] = value
		case "passwordauthentication":
			sshd["password_auth"] = value
		case "pubkeyauthentication":
			sshd["pubkey_auth"] = value
		}
	}
	return sshd
}

func (c *Collector) sudoInfo(ctx context.Context, rc *collector.Context) facts.Tree {
	sudo := facts.Tree{"version": ""}
	if out, ok := rc.ExecOK(ctx, "sudo", "--version"); ok {
		line, _, _ := strings.Cut(out, "\n")
		sudo["version"] = strings.TrimSpace(line)
	}
	return sudo
}

func (c *Collector) auditStatus(ctx context.Context, rc *collector.Context) facts.Tree {
	audit := facts.Tree{
		"installed": false,
		"running":   false,
	}
	if _, ok := rc.ExecOK(ctx, "auditctl", "-v"); !ok {
		return audit
	}
	audit["installed"] = true
	if out, ok := rc.ExecOK(ctx, "systemctl", "is-active", "auditd"); ok {
		audit["running"] = strings.Contains(out, "active")
	}
	return audit
}
