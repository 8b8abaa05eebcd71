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

// Package network collects interface, routing, DNS, and traffic facts.
package network

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/collector/file"
	"github.com/snailops/snail/pkg/facts"
)

const collectorName = "network"

// Collector gathers network facts. Interface enumeration is injectable so
// tests do not depend on the host's NICs.
type Collector struct {
	collector.Meta
	parser     *file.Parser
	interfaces func() ([]net.Interface, error)
}

// Option configures the network collector.
type Option func(*Collector)

// WithInterfaceSource replaces the NIC enumeration.
func WithInterfaceSource(fn func() ([]net.Interface, error)) Option {
	return func(c *Collector) {
		c.interfaces = fn
	}
}

// New creates the network collector.
func New(opts ...Option) *Collector {
	c := &Collector{
		Meta:       collector.NewMeta(collectorName, collectorName, 0, nil),
		parser:     file.NewParser(),
		interfaces: net.Interfaces,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collector) Collect(ctx context.Context, rc *collector.Context) (facts.Tree, error) {
	return facts.Tree{
		"interfaces": c.interfaceInfo(),
		"routing":    c.routingTable(ctx, rc),
		"dns":        c.dnsConfig(ctx, rc),
		"stats":      c.trafficStats(rc),
	}, nil
}

func (c *Collector) interfaceInfo() []any {
	ifaces, err := c.interfaces()
	if err != nil {
		return nil
	}

	out := make([]any, 0, len(ifaces))
	for _, iface := range ifaces {
		entry := facts.Tree{
			"name":  iface.Name,
			"mac":   iface.HardwareAddr.String(),
			"mtu":   iface.MTU,
			"is_up": iface.Flags&net.FlagUp != 0,
		}

		addrs, err := iface.Addrs()
		if err == nil {
			list := make([]any, 0, len(addrs))
			for _, addr := range addrs {
				ipNet, ok := addr.(*net.IPNet)
				if !ok {
					continue
				}
				kind := "ipv6"
				if ipNet.IP.To4() != nil {
					kind = "ipv4"
				}
				list = append(list, facts.Tree{
					"type":    kind,
					"address": ipNet.IP.String(),
					"netmask": net.IP(ipNet.Mask).String(),
				})
			}
			entry["addresses"] = list
		}

		out = append(out, entry)
	}
	return out
}

func (c *Collector) routingTable(ctx context.Context, rc *collector.Context) []any {
	out, ok := rc.ExecOK(ctx, "ip", "route", "show")
	if !ok {
		return nil
	}

	routes := make([]any, 0)
	for _, line := range c.parser.SplitLines(out) {
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		route := facts.Tree{"raw": line}
		if parts[0] == "default" {
			route["destination"] = "0.0.0.0/0"
			route["type"] = "default"
		} else {
			route["destination"] = parts[0]
			route["type"] = "network"
		}
		for i, p := range parts {
			if i+1 >= len(parts) {
				break
			}
			switch p {
			case "via":
				route["gateway"] = parts[i+1]
			case "dev":
				route["device"] = parts[i+1]
			}
		}
		routes = append(routes, route)
	}
	return routes
}

func (c *Collector) dnsConfig(ctx context.Context, rc *collector.Context) facts.Tree {
	nameservers := make([]any, 0)
	searchDomains := make([]any, 0)
	options := make([]any, 0)

	for _, line := range rc.ReadLines("/etc/resolv.conf") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "nameserver":
			nameservers = append(nameservers, fields[1])
		case "search", "domain":
			for _, d := range fields[1:] {
				searchDomains = append(searchDomains, d)
			}
		case "options":
			for _, o := range fields[1:] {
				options = append(options, o)
			}
		}
	}

	_, resolved := rc.ExecOK(ctx, "resolvectl", "status", "--no-pager")

	return facts.Tree{
		"nameservers":      nameservers,
		"search_domains":   searchDomains,
		"options":          options,
		"systemd_resolved": resolved,
	}
}

// trafficStats sums per-NIC counters from /proc/net/dev, loopback excluded.
func (c *Collector) trafficStats(rc *collector.Context) facts.Tree {
	var bytesRecv, packetsRecv, errsIn, dropsIn uint64
	var bytesSent, packetsSent, errsOut, dropsOut uint64

	for _, line := range rc.ReadLines("/proc/net/dev") {
		name, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.TrimSpace(name) == "lo" {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 12 {
			continue
		}
		bytesRecv += parseUint(fields[0])
		packetsRecv += parseUint(fields[1])
		errsIn += parseUint(fields[2])
		dropsIn += parseUint(fields[3])
		bytesSent += parseUint(fields[8])
		packetsSent += parseUint(fields[9])
		errsOut += parseUint(fields[10])
		dropsOut += parseUint(fields[11])
	}

	return facts.Tree{
		"total_bytes_sent":   bytesSent,
		"total_bytes_recv":   bytesRecv,
		"total_packets_sent": packetsSent,
		"total_packets_recv": packetsRecv,
		"total_errors_in":    errsIn,
		"total_errors_out":   errsOut,
		"total_drops_in":     dropsIn,
		"total_drops_out":    dropsOut,
	}
}

func parseUint(s string) uint64 {
	n, _ := strconv.ParseUint(s, 10, 64)
	return n
}
