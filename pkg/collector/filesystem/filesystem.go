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

// Package filesystem collects mount, fstab, LVM, and inode facts.
package filesystem

import (
	"context"
	"strconv"
	"strings"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/collector/file"
	"github.com/snailops/snail/pkg/facts"
)

const collectorName = "filesystem"

// pseudoFilesystems are kernel-backed mounts skipped in the mount listing.
var pseudoFilesystems = map[string]bool{
	"proc":       true,
	"sysfs":      true,
	"devpts":     true,
	"cgroup":     true,
	"cgroup2":    true,
	"securityfs": true,
	"debugfs":    true,
	"tracefs":    true,
	"fusectl":    true,
	"configfs":   true,
	"pstore":     true,
	"efivarfs":   true,
	"bpf":        true,
}

// Collector gathers filesystem facts. It applies to every profile.
type Collector struct {
	collector.Meta
	parser *file.Parser
}

// New creates the filesystem collector.
func New() *Collector {
	return &Collector{
		Meta:   collector.NewMeta(collectorName, collectorName, 0, nil),
		parser: file.NewParser(),
	}
}

func (c *Collector) Collect(ctx context.Context, rc *collector.Context) (facts.Tree, error) {
	return facts.Tree{
		"mounts": c.mounts(rc),
		"fstab":  c.fstab(rc),
		"lvm":    c.lvmInfo(ctx, rc),
		"tmpfs":  c.tmpfsMounts(rc),
		"inodes": c.inodeUsage(ctx, rc),
	}, nil
}

func (c *Collector) mounts(rc *collector.Context) []any {
	mounts := make([]any, 0)
	for _, line := range rc.ReadLines("/proc/mounts") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		if pseudoFilesystems[fields[2]] {
			continue
		}
		options := make([]any, 0)
		for _, o := range strings.Split(fields[3], ",") {
			options = append(options, o)
		}
		mounts = append(mounts, facts.Tree{
			"device":     fields[0],
			"mountpoint": fields[1],
			"fstype":     fields[2],
			"options":    options,
		})
	}
	return mounts
}

func (c *Collector) fstab(rc *collector.Context) []any {
	entries := make([]any, 0)
	for _, line := range rc.ReadLines("/etc/fstab") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		options := make([]any, 0)
		for _, o := range strings.Split(fields[3], ",") {
			options = append(options, o)
		}
		entry := facts.Tree{
			"spec":       fields[0],
			"mountpoint": fields[1],
			"fstype":     fields[2],
			"options":    options,
			"dump":       0,
			"pass":       0,
		}
		if len(fields) > 4 {
			entry["dump"] = parseInt(fields[4])
		}
		if len(fields) > 5 {
			entry["pass"] = parseInt(fields[5])
		}
		entries = append(entries, entry)
	}
	return entries
}

func (c *Collector) lvmInfo(ctx context.Context, rc *collector.Context) facts.Tree {
	lvm := facts.Tree{
		"installed":        false,
		"volume_groups":    []any{},
		"logical_volumes":  []any{},
		"physical_volumes": []any{},
	}

	vgs, ok := rc.ExecOK(ctx, "vgs", "--noheadings", "--units", "b",
		"-o", "vg_name,vg_size,vg_free,pv_count,lv_count")
	if !ok {
		return lvm
	}
	lvm["installed"] = true

	groups := make([]any, 0)
	for _, line := range c.parser.SplitLines(vgs) {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		groups = append(groups, facts.Tree{
			"name":     fields[0],
			"size":     fields[1],
			"free":     fields[2],
			"pv_count": parseInt(fields[3]),
			"lv_count": parseInt(fields[4]),
		})
	}
	lvm["volume_groups"] = groups

	if lvs, ok := rc.ExecOK(ctx, "lvs", "--noheadings", "--units", "b",
		"-o", "lv_name,vg_name,lv_size,lv_attr"); ok {
		vols := make([]any, 0)
		for _, line := range c.parser.SplitLines(lvs) {
			fields := strings.Fields(line)
			if len(fields) < 4 {
				continue
			}
			vols = append(vols, facts.Tree{
				"name": fields[0],
				"vg":   fields[1],
				"size": fields[2],
				"attr": fields[3],
			})
		}
		lvm["logical_volumes"] = vols
	}

	if pvs, ok := rc.ExecOK(ctx, "pvs", "--noheadings", "--units", "b",
		"-o", "pv_name,vg_name,pv_size,pv_free"); ok {
		phys := make([]any, 0)
		for _, line := range c.parser.SplitLines(pvs) {
			fields := strings.Fields(line)
			if len(fields) < 4 {
				continue
			}
			phys = append(phys, facts.Tree{
				"name": fields[0],
				"vg":   fields[1],
				"size": fields[2],
				"free": fields[3],
			})
		}
		lvm["physical_volumes"] = phys
	}

	return lvm
}

func (c *Collector) tmpfsMounts(rc *collector.Context) []any {
	mounts := make([]any, 0)
	for _, line := range rc.ReadLines("/proc/mounts") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[2] != "tmpfs" {
			continue
		}
		mounts = append(mounts, facts.Tree{
			"mountpoint": fields[1],
		})
	}
	return mounts
}

func (c *Collector) inodeUsage(ctx context.Context, rc *collector.Context) []any {
	out, ok := rc.ExecOK(ctx, "df", "-i")
	if !ok {
		return nil
	}

	inodes := make([]any, 0)
	lines := c.parser.SplitLines(out)
	if len(lines) < 2 {
		return inodes
	}
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 6 || fields[1] == "-" {
			continue
		}
		inodes = append(inodes, facts.Tree{
			"filesystem":   fields[0],
			"inodes_total": parseInt(fields[1]),
			"inodes_used":  parseInt(fields[2]),
			"inodes_free":  parseInt(fields[3]),
			"percent_used": strings.TrimSuffix(fields[4], "%"),
			"mountpoint":   fields[5],
		})
	}
	return inodes
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
