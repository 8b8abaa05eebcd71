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

// Package system collects operating system identity, kernel, uptime, and
// virtualization facts.
package system

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/collector/file"
	"github.com/snailops/snail/pkg/facts"
)

const collectorName = "system"

// Collector gathers general OS and host facts. It applies to every
// distribution profile.
type Collector struct {
	collector.Meta
	parser *file.Parser
}

// New creates the system collector.
func New() *Collector {
	return &Collector{
		Meta:   collector.NewMeta(collectorName, collectorName, 0, nil),
		parser: file.NewParser(file.WithTrimQuotes()),
	}
}

func (c *Collector) Collect(ctx context.Context, rc *collector.Context) (facts.Tree, error) {
	return facts.Tree{
		"os":             c.osInfo(rc),
		"kernel":         c.kernelInfo(ctx, rc),
		"hostname":       c.hostnameInfo(ctx, rc),
		"uptime":         c.uptimeInfo(rc),
		"boot":           c.bootInfo(rc),
		"locale":         c.localeInfo(rc),
		"timezone":       c.timezoneInfo(rc),
		"virtualization": c.virtualizationInfo(ctx, rc),
	}, nil
}

var versionDigits = regexp.MustCompile(`[^\d.]`)

func (c *Collector) osInfo(rc *collector.Context) facts.Tree {
	rel := c.parser.MapFromLines(c.parser.SplitLines(rc.ReadFile("/etc/os-release")))

	versionID := rel["VERSION_ID"]
	major, minor, patch := splitVersion(rel["ID"], versionID)

	return facts.Tree{
		"name":          rel["PRETTY_NAME"],
		"id":            rel["ID"],
		"version":       rel["VERSION"],
		"version_id":    versionID,
		"version_major": major,
		"version_minor": minor,
		"version_patch": patch,
		"codename":      rel["VERSION_CODENAME"],
		"like":          rel["ID_LIKE"],
		"variant":       rel["VARIANT"],
		"variant_id":    rel["VARIANT_ID"],
		"platform_id":   rel["PLATFORM_ID"],
	}
}

// splitVersion breaks a version id into its components. Fedora releases are
// a single number, so minor and patch stay empty there.
func splitVersion(distroID, versionID string) (major, minor, patch string) {
	clean := versionDigits.ReplaceAllString(versionID, "")
	if clean == "" {
		return "", "", ""
	}
	parts := strings.Split(clean, ".")
	major = parts[0]
	if distroID == "fedora" {
		return major, "", ""
	}
	if len(parts) > 1 {
		minor = parts[1]
	}
	if len(parts) > 2 {
		patch = parts[2]
	}
	return major, minor, patch
}

func (c *Collector) kernelInfo(ctx context.Context, rc *collector.Context) facts.Tree {
	modules := 0
	if content := rc.ReadFile("/proc/modules"); content != "" {
		modules = len(c.parser.SplitLines(content))
	}

	arch, _ := rc.ExecOK(ctx, "uname", "-m")

	return facts.Tree{
		"release":        strings.TrimSpace(rc.ReadFile("/proc/sys/kernel/osrelease")),
		"version":        strings.TrimSpace(rc.ReadFile("/proc/sys/kernel/version")),
		"machine":        arch,
		"cmdline":        strings.TrimSpace(rc.ReadFile("/proc/cmdline")),
		"modules_loaded": modules,
	}
}

func (c *Collector) hostnameInfo(ctx context.Context, rc *collector.Context) facts.Tree {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = ""
	}

	info := facts.Tree{
		"hostname": hostname,
		"fqdn":     hostname,
	}

	if out, ok := rc.ExecOK(ctx, "hostname", "-f"); ok && out != "" {
		info["fqdn"] = out
	}

	// hostnamectl adds chassis and deployment metadata on systemd hosts.
	if out, ok := rc.ExecOK(ctx, "hostnamectl", "status", "--json=short"); ok {
		var hc map[string]any
		if err := json.Unmarshal([]byte(out), &hc); err == nil {
			for src, dst := range map[string]string{
				"StaticHostname": "static_hostname",
				"IconName":       "icon_name",
				"Chassis":        "chassis",
				"Deployment":     "deployment",
				"Location":       "location",
			} {
				if v, ok := hc[src].(string); ok && v != "" {
					info[dst] = v
				}
			}
		}
	}

	return info
}

func (c *Collector) uptimeInfo(rc *collector.Context) facts.Tree {
	fields := strings.Fields(rc.ReadFile("/proc/uptime"))
	if len(fields) == 0 {
		return facts.Tree{}
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return facts.Tree{}
	}

	total := int64(seconds)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60

	return facts.Tree{
		"seconds":        seconds,
		"days":           days,
		"hours":          hours,
		"minutes":        minutes,
		"human_readable": fmt.Sprintf("%dd %dh %dm", days, hours, minutes),
	}
}

func (c *Collector) bootInfo(rc *collector.Context) facts.Tree {
	// The efi directory only exists on UEFI-booted hosts.
	isUEFI := rc.ReadFile("/sys/firmware/efi/fw_platform_size") != ""

	firmware := "BIOS"
	if isUEFI {
		firmware = "UEFI"
	}
	return facts.Tree{
		"firmware": firmware,
	}
}

func (c *Collector) localeInfo(rc *collector.Context) facts.Tree {
	vars := facts.Tree{
		"LANG":        os.Getenv("LANG"),
		"LC_ALL":      os.Getenv("LC_ALL"),
		"LC_CTYPE":    os.Getenv("LC_CTYPE"),
		"LC_MESSAGES": os.Getenv("LC_MESSAGES"),
	}
	conf := c.parser.MapFromLines(c.parser.SplitLines(rc.ReadFile("/etc/locale.conf")))
	for k, v := range conf {
		if strings.HasPrefix(k, "L") {
			vars[k] = v
		}
	}
	return vars
}

func (c *Collector) timezoneInfo(rc *collector.Context) facts.Tree {
	name := ""
	if link, err := os.Readlink("/etc/localtime"); err == nil {
		if idx := strings.Index(link, "zoneinfo/"); idx >= 0 {
			name = link[idx+len("zoneinfo/"):]
		}
	}
	if name == "" {
		name = strings.TrimSpace(rc.ReadFile("/etc/timezone"))
	}
	return facts.Tree{
		"name": name,
	}
}

func (c *Collector) virtualizationInfo(ctx context.Context, rc *collector.Context) facts.Tree {
	virtType := "none"
	container := "none"

	if out, ok := rc.ExecOK(ctx, "systemd-detect-virt"); ok && out != "" && out != "none" {
		virtType = out
	}
	if out, ok := rc.ExecOK(ctx, "systemd-detect-virt", "--container"); ok && out != "" && out != "none" {
		container = out
		virtType = out
	}

	vendor := strings.ToLower(strings.TrimSpace(rc.ReadFile("/sys/class/dmi/id/sys_vendor")))
	product := strings.ToLower(strings.TrimSpace(rc.ReadFile("/sys/class/dmi/id/product_name")))

	hypervisor := ""
	switch {
	case strings.Contains(vendor, "vmware") || strings.Contains(product, "vmware"):
		hypervisor = "vmware"
	case strings.Contains(vendor, "virtualbox") || strings.Contains(product, "virtualbox"):
		hypervisor = "virtualbox"
	case strings.Contains(vendor, "kvm") || strings.Contains(product, "qemu"):
		hypervisor = "kvm"
	case strings.Contains(vendor, "microsoft") && strings.Contains(product, "virtual"):
		hypervisor = "hyperv"
	case strings.Contains(vendor, "xen"):
		hypervisor = "xen"
	}

	return facts.Tree{
		"type":       virtType,
		"container":  container,
		"hypervisor": hypervisor,
		"is_virtual": virtType != "none" || hypervisor != "",
	}
}
