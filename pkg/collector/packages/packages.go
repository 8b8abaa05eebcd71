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

// Package packages collects installed-package and repository facts for the
// dnf, yum, apt, and zypper ecosystems.
package packages

import (
	"context"
	"strings"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/collector/file"
	"github.com/snailops/snail/pkg/distro"
	"github.com/snailops/snail/pkg/facts"
)

const collectorName = "packages"

// maxUpgradeable bounds the reported pending-update list.
const maxUpgradeable = 50

// Collector gathers package manager facts. It only applies when the
// profile identified a supported package manager family.
type Collector struct {
	collector.Meta
	parser *file.Parser
}

// New creates the packages collector.
func New() *Collector {
	return &Collector{
		Meta: collector.NewMeta(collectorName, collectorName, 0, func(p distro.Profile) bool {
			return p.Family != distro.FamilyUnknown
		}),
		parser: file.NewParser(),
	}
}

func (c *Collector) Collect(ctx context.Context, rc *collector.Context) (facts.Tree, error) {
	switch rc.Profile.Family {
	case distro.FamilyRPMDNF:
		return c.collectDNF(ctx, rc), nil
	case distro.FamilyRPMYUM:
		return c.collectYUM(ctx, rc), nil
	case distro.FamilyDebAPT:
		return c.collectAPT(ctx, rc), nil
	case distro.FamilySUSEZypper:
		return c.collectZypper(ctx, rc), nil
	default:
		return facts.Tree{"package_manager": "unknown"}, nil
	}
}

func (c *Collector) collectDNF(ctx context.Context, rc *collector.Context) facts.Tree {
	return facts.Tree{
		"package_manager": "dnf",
		"summary":         c.rpmSummary(ctx, rc),
		"repositories":    c.repoList(ctx, rc, "dnf", "repolist", "--all"),
		"config":          c.dnfConfig(ctx, rc, "dnf", "/etc/dnf/dnf.conf"),
		"upgradeable":     c.checkUpdate(ctx, rc, "dnf"),
		"kernel_packages": c.rpmKernelPackages(ctx, rc),
	}
}

func (c *Collector) collectYUM(ctx context.Context, rc *collector.Context) facts.Tree {
	return facts.Tree{
		"package_manager": "yum",
		"summary":         c.rpmSummary(ctx, rc),
		"repositories":    c.repoList(ctx, rc, "yum", "repolist", "all"),
		"config":          c.dnfConfig(ctx, rc, "yum", "/etc/yum.conf"),
		"upgradeable":     c.checkUpdate(ctx, rc, "yum"),
		"kernel_packages": c.rpmKernelPackages(ctx, rc),
	}
}

func (c *Collector) collectAPT(ctx context.Context, rc *collector.Context) facts.Tree {
	return facts.Tree{
		"package_manager": "apt",
		"summary":         c.aptSummary(ctx, rc),
		"repositories":    c.aptRepositories(rc),
		"config":          c.aptConfig(ctx, rc),
		"upgradeable":     c.aptUpgradeable(ctx, rc),
		"kernel_packages": c.debKernelPackages(ctx, rc),
	}
}

func (c *Collector) collectZypper(ctx context.Context, rc *collector.Context) facts.Tree {
	return facts.Tree{
		"package_manager": "zypper",
		"summary":         c.rpmSummary(ctx, rc),
		"repositories":    c.zypperRepositories(ctx, rc),
		"config":          c.zypperConfig(ctx, rc),
		"upgradeable":     c.zypperUpgradeable(ctx, rc),
		"kernel_packages": c.rpmKernelPackages(ctx, rc),
	}
}

// rpmSummary counts installed RPMs grouped by architecture.
func (c *Collector) rpmSummary(ctx context.Context, rc *collector.Context) facts.Tree {
	summary := facts.Tree{
		"total_count": 0,
		"by_arch":     facts.Tree{},
	}

	out, ok := rc.ExecOK(ctx, "rpm", "-qa", "--qf", "%{ARCH}\n")
	if !ok {
		return summary
	}
	byArch := facts.Tree{}
	total := 0
	for _, arch := range c.parser.SplitLines(out) {
		total++
		if n, ok := byArch[arch].(int); ok {
			byArch[arch] = n + 1
		} else {
			byArch[arch] = 1
		}
	}
	summary["total_count"] = total
	summary["by_arch"] = byArch

	if out, ok := rc.ExecOK(ctx, "rpm", "-qa", "gpg-pubkey*"); ok {
		summary["gpg_keys_count"] = len(c.parser.SplitLines(out))
	}
	return summary
}

// repoList parses the two-column repolist output shared by dnf and yum.
func (c *Collector) repoList(ctx context.Context, rc *collector.Context, args ...string) []any {
	out, ok := rc.ExecOK(ctx, args[0], args[1:]...)
	if !ok {
		return nil
	}
	repos := make([]any, 0)
	lines := c.parser.SplitLines(out)
	if len(lines) < 2 {
		return repos
	}
	for _, line := range lines[1:] {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		id := strings.TrimSuffix(parts[0], "*")
		repos = append(repos, facts.Tree{
			"id":      id,
			"name":    strings.Join(parts[1:], " "),
			"enabled": !strings.HasSuffix(line, "disabled"),
		})
	}
	return repos
}

func (c *Collector) dnfConfig(ctx context.Context, rc *collector.Context, manager, confPath string) facts.Tree {
	conf := c.parser.MapFromLines(rc.ReadLines(confPath))

	config := facts.Tree{
		"gpgcheck": conf["gpgcheck"] != "0",
	}
	if out, ok := rc.ExecOK(ctx, manager, "--version"); ok {
		config["version"] = firstLine(out)
	}
	return config
}

// checkUpdate lists pending updates. Both dnf and yum exit 100 when updates
// exist, which the probe surfaces as a failure, so absence of output means
// either up to date or unreachable mirrors.
func (c *Collector) checkUpdate(ctx context.Context, rc *collector.Context, manager string) facts.Tree {
	result := facts.Tree{"count": 0, "packages": []any{}}

	out, _ := rc.Exec(ctx, manager, "check-update", "-q")
	packages := make([]any, 0)
	for _, line := range c.parser.SplitLines(out) {
		parts := strings.Fields(line)
		if len(parts) < 2 || strings.HasPrefix(line, "Obsoleting") {
			continue
		}
		packages = append(packages, facts.Tree{"name": parts[0], "version": parts[1]})
		if len(packages) >= maxUpgradeable {
			break
		}
	}
	result["count"] = len(packages)
	result["packages"] = packages
	return result
}

func (c *Collector) rpmKernelPackages(ctx context.Context, rc *collector.Context) []any {
	out, ok := rc.ExecOK(ctx, "rpm", "-qa", "kernel*", "--qf", "%{NAME}|%{VERSION}-%{RELEASE}\n")
	if !ok {
		return nil
	}
	return splitNameVersion(c.parser.SplitLines(out))
}

func (c *Collector) aptSummary(ctx context.Context, rc *collector.Context) facts.Tree {
	summary := facts.Tree{
		"total_count": 0,
		"by_arch":     facts.Tree{},
	}
	out, ok := rc.ExecOK(ctx, "dpkg-query", "-W", "-f=${Architecture}\n")
	if !ok {
		return summary
	}
	byArch := facts.Tree{}
	total := 0
	for _, arch := range c.parser.SplitLines(out) {
		total++
		if n, ok := byArch[arch].(int); ok {
			byArch[arch] = n + 1
		} else {
			byArch[arch] = 1
		}
	}
	summary["total_count"] = total
	summary["by_arch"] = byArch
	return summary
}

func (c *Collector) aptRepositories(rc *collector.Context) []any {
	repos := make([]any, 0)
	for _, line := range rc.ReadLines("/etc/apt/sources.list") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}
		components := make([]any, 0, len(parts)-3)
		for _, comp := range parts[3:] {
			components = append(components, comp)
		}
		repos = append(repos, facts.Tree{
			"type":       parts[0],
			"url":        parts[1],
			"suite":      parts[2],
			"components": components,
		})
	}
	return repos
}

func (c *Collector) aptConfig(ctx context.Context, rc *collector.Context) facts.Tree {
	config := facts.Tree{
		// apt verifies signatures unconditionally.
		"gpgcheck": true,
	}
	if out, ok := rc.ExecOK(ctx, "apt", "--version"); ok {
		fields := strings.Fields(firstLine(out))
		if len(fields) >= 2 {
			config["version"] = fields[1]
		}
	}
	return config
}

func (c *Collector) aptUpgradeable(ctx context.Context, rc *collector.Context) facts.Tree {
	result := facts.Tree{"count": 0, "packages": []any{}}

	out, ok := rc.ExecOK(ctx, "apt", "list", "--upgradable")
	if !ok {
		return result
	}
	packages := make([]any, 0)
	for _, line := range c.parser.SplitLines(out) {
		// Entries look like "name/suite version arch [upgradable from: old]".
		if !strings.Contains(line, "/") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		name, _, _ := strings.Cut(parts[0], "/")
		packages = append(packages, facts.Tree{"name": name, "version": parts[1]})
		if len(packages) >= maxUpgradeable {
			break
		}
	}
	result["count"] = len(packages)
	result["packages"] = packages
	return result
}

func (c *Collector) debKernelPackages(ctx context.Context, rc *collector.Context) []any {
	out, ok := rc.ExecOK(ctx, "dpkg-query", "-W", "-f=${Package}|${Version}\n", "linux-image*")
	if !ok {
		return nil
	}
	return splitNameVersion(c.parser.SplitLines(out))
}

func (c *Collector) zypperRepositories(ctx context.Context, rc *collector.Context) []any {
	out, ok := rc.ExecOK(ctx, "zypper", "repos", "-d")
	if !ok {
		return nil
	}
	repos := make([]any, 0)
	for _, line := range c.parser.SplitLines(out) {
		// Tabular output: # | Alias | Name | Enabled | ...
		parts := strings.Split(line, "|")
		if len(parts) < 4 || strings.HasPrefix(line, "#") {
			continue
		}
		repos = append(repos, facts.Tree{
			"id":      strings.TrimSpace(parts[1]),
			"name":    strings.TrimSpace(parts[2]),
			"enabled": strings.TrimSpace(parts[3]) == "Yes",
		})
	}
	return repos
}

func (c *Collector) zypperConfig(ctx context.Context, rc *collector.Context) facts.Tree {
	config := facts.Tree{}
	if out, ok := rc.ExecOK(ctx, "zypper", "--version"); ok {
		config["version"] = firstLine(out)
	}
	return config
}

func (c *Collector) zypperUpgradeable(ctx context.Context, rc *collector.Context) facts.Tree {
	result := facts.Tree{"count": 0, "packages": []any{}}

	out, ok := rc.ExecOK(ctx, "zypper", "list-updates")
	if !ok {
		return result
	}
	packages := make([]any, 0)
	for _, line := range c.parser.SplitLines(out) {
		parts := strings.Split(line, "|")
		if len(parts) < 5 || strings.HasPrefix(line, "S ") || strings.HasPrefix(line, "--") {
			continue
		}
		packages = append(packages, facts.Tree{
			"name":    strings.TrimSpace(parts[2]),
			"version": strings.TrimSpace(parts[4]),
		})
		if len(packages) >= maxUpgradeable {
			break
		}
	}
	result["count"] = len(packages)
	result["packages"] = packages
	return result
}

func splitNameVersion(lines []string) []any {
	out := make([]any, 0, len(lines))
	for _, line := range lines {
		name, version, found := strings.Cut(line, "|")
		if !found {
			continue
		}
		out = append(out, facts.Tree{"name": name, "version": version})
	}
	return out
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
