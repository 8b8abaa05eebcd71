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

// Package hardware collects CPU, memory, block device, and DMI facts.
package hardware

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/collector/file"
	"github.com/snailops/snail/pkg/facts"
)

const collectorName = "hardware"

// dmiPaths maps the fact key to its sysfs source.
var dmiPaths = map[string]string{
	"bios_vendor":     "/sys/class/dmi/id/bios_vendor",
	"bios_version":    "/sys/class/dmi/id/bios_version",
	"bios_date":       "/sys/class/dmi/id/bios_date",
	"board_name":      "/sys/class/dmi/id/board_name",
	"board_vendor":    "/sys/class/dmi/id/board_vendor",
	"chassis_type":    "/sys/class/dmi/id/chassis_type",
	"chassis_vendor":  "/sys/class/dmi/id/chassis_vendor",
	"product_name":    "/sys/class/dmi/id/product_name",
	"product_version": "/sys/class/dmi/id/product_version",
	"sys_vendor":      "/sys/class/dmi/id/sys_vendor",
}

// Collector gathers hardware facts from procfs, sysfs, and the standard
// inventory tools.
type Collector struct {
	collector.Meta
	parser *file.Parser
}

// New creates the hardware collector.
func New() *Collector {
	return &Collector{
		Meta:   collector.NewMeta(collectorName, collectorName, 0, nil),
		parser: file.NewParser(file.WithKVDelimiter(":")),
	}
}

func (c *Collector) Collect(ctx context.Context, rc *collector.Context) (facts.Tree, error) {
	return facts.Tree{
		"cpu":           c.cpuInfo(rc),
		"memory":        c.memoryInfo(rc),
		"swap":          c.swapInfo(rc),
		"block_devices": c.blockDevices(ctx, rc),
		"pci":           c.pciDevices(ctx, rc),
		"dmi":           c.dmiInfo(rc),
	}, nil
}

func (c *Collector) cpuInfo(rc *collector.Context) facts.Tree {
	info := facts.Tree{}

	logical := 0
	for _, line := range rc.ReadLines("/proc/cpuinfo") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ReplaceAll(strings.TrimSpace(key), " ", "_")
		value = strings.TrimSpace(value)

		switch key {
		case "processor":
			logical++
		case "model_name":
			info["model"] = value
		case "vendor_id":
			info["vendor"] = value
		case "cache_size":
			info["cache_size"] = value
		case "flags":
			if _, seen := info["flags"]; !seen {
				info["flags"] = strings.Fields(value)
			}
		}
	}
	info["logical_cores"] = logical

	if fields := strings.Fields(rc.ReadFile("/proc/loadavg")); len(fields) >= 3 {
		info["load_average"] = facts.Tree{
			"1min":  fields[0],
			"5min":  fields[1],
			"15min": fields[2],
		}
	}

	return info
}

// meminfoBytes parses /proc/meminfo into byte counts.
func (c *Collector) meminfoBytes(rc *collector.Context) map[string]uint64 {
	out := make(map[string]uint64)
	for key, value := range c.parser.MapFromLines(rc.ReadLines("/proc/meminfo")) {
		fields := strings.Fields(value)
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		// Values are reported in kB except the bare hugepage counters.
		if len(fields) > 1 && fields[1] == "kB" {
			n *= 1024
		}
		out[key] = n
	}
	return out
}

func (c *Collector) memoryInfo(rc *collector.Context) facts.Tree {
	mem := c.meminfoBytes(rc)

	total := mem["MemTotal"]
	available := mem["MemAvailable"]
	var used uint64
	if total > available {
		used = total - available
	}

	info := facts.Tree{
		"total":           total,
		"total_human":     humanize.IBytes(total),
		"available":       available,
		"available_human": humanize.IBytes(available),
		"used":            used,
		"free":            mem["MemFree"],
		"buffers":         mem["Buffers"],
		"cached":          mem["Cached"],
		"shared":          mem["Shmem"],
		"slab":            mem["Slab"],
		"hugepages_total": mem["HugePages_Total"],
		"hugepages_free":  mem["HugePages_Free"],
	}
	if total > 0 {
		info["percent_used"] = float64(used) / float64(total) * 100
	}
	return info
}

func (c *Collector) swapInfo(rc *collector.Context) facts.Tree {
	mem := c.meminfoBytes(rc)

	total := mem["SwapTotal"]
	free := mem["SwapFree"]
	var used uint64
	if total > free {
		used = total - free
	}

	info := facts.Tree{
		"total":       total,
		"total_human": humanize.IBytes(total),
		"used":        used,
		"free":        free,
	}
	if total > 0 {
		info["percent_used"] = float64(used) / float64(total) * 100
	}
	return info
}

func (c *Collector) blockDevices(ctx context.Context, rc *collector.Context) []any {
	out, ok := rc.ExecOK(ctx, "lsblk", "-J", "-o", "NAME,SIZE,TYPE,FSTYPE,MOUNTPOINT,MODEL,ROTA,RO")
	if !ok {
		return nil
	}
	var parsed struct {
		BlockDevices []any `json:"blockdevices"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return nil
	}
	return parsed.BlockDevices
}

// maxPCIDevices bounds the inventory on hosts with large PCIe fabrics.
const maxPCIDevices = 50

func (c *Collector) pciDevices(ctx context.Context, rc *collector.Context) []any {
	out, ok := rc.ExecOK(ctx, "lspci", "-mm")
	if !ok {
		return nil
	}
	devices := make([]any, 0)
	for _, line := range c.parser.SplitLines(out) {
		parts := strings.Split(line, `"`)
		if len(parts) < 7 {
			continue
		}
		devices = append(devices, facts.Tree{
			"slot":   strings.TrimSpace(parts[0]),
			"class":  parts[1],
			"vendor": parts[3],
			"device": parts[5],
		})
		if len(devices) >= maxPCIDevices {
			break
		}
	}
	return devices
}

func (c *Collector) dmiInfo(rc *collector.Context) facts.Tree {
	dmi := facts.Tree{}
	for key, path := range dmiPaths {
		if value := strings.TrimSpace(rc.ReadFile(path)); value != "" {
			dmi[key] = value
		}
	}
	return dmi
}
