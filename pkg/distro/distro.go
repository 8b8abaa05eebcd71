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

// Package distro classifies the host's packaging, init, security-module,
// and firewall ecosystems. The profile is computed once per run and shared
// read-only with every collector that branches on it.
package distro

import (
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Family identifies the host's package manager ecosystem.
type Family string

const (
	FamilyRPMDNF     Family = "rpm-dnf"
	FamilyRPMYUM     Family = "rpm-yum"
	FamilyDebAPT     Family = "deb-apt"
	FamilySUSEZypper Family = "suse-zypper"
	FamilyUnknown    Family = "unknown"
)

// RPMBased reports whether the family installs RPM packages.
func (f Family) RPMBased() bool {
	return f == FamilyRPMDNF || f == FamilyRPMYUM || f == FamilySUSEZypper
}

// InitSystem identifies the host's init system.
type InitSystem string

const (
	InitSystemd InitSystem = "systemd"
	InitOther   InitSystem = "other"
)

// SecurityModule identifies the active mandatory access control system.
type SecurityModule string

const (
	SecuritySELinux  SecurityModule = "selinux"
	SecurityAppArmor SecurityModule = "apparmor"
	SecurityNone     SecurityModule = "none"
)

// FirewallBackend identifies the host firewall management tool.
type FirewallBackend string

const (
	FirewallFirewalld FirewallBackend = "firewalld"
	FirewallUFW       FirewallBackend = "ufw"
	FirewallIPTables  FirewallBackend = "iptables"
	FirewallNone      FirewallBackend = "none"
)

// Profile is the detected classification of the host. It is immutable for
// the duration of a run.
type Profile struct {
	Family          Family          `json:"family" yaml:"family"`
	InitSystem      InitSystem      `json:"init_system" yaml:"init_system"`
	SecurityModule  SecurityModule  `json:"security_module" yaml:"security_module"`
	FirewallBackend FirewallBackend `json:"firewall_backend" yaml:"firewall_backend"`
}

// Detector probes the host for the profile. The probe functions are
// injectable so tests can simulate arbitrary distributions.
type Detector struct {
	LookPath func(file string) (string, error)
	ReadFile func(path string) ([]byte, error)
	Stat     func(path string) (os.FileInfo, error)
}

// NewDetector creates a Detector backed by the real host.
func NewDetector() *Detector {
	return &Detector{
		LookPath: exec.LookPath,
		ReadFile: os.ReadFile,
		Stat:     os.Stat,
	}
}

// Detect classifies the host. It never fails: any ambiguity resolves to the
// unknown/none variants rather than aborting the run.
func (d *Detector) Detect() Profile {
	p := Profile{
		Family:          d.detectFamily(),
		InitSystem:      d.detectInit(),
		SecurityModule:  d.detectSecurityModule(),
		FirewallBackend: d.detectFirewall(),
	}

	slog.Debug("detected distribution profile",
		"family", p.Family,
		"init", p.InitSystem,
		"security", p.SecurityModule,
		"firewall", p.FirewallBackend)

	return p
}

// Detect classifies the host using the default detector.
func Detect() Profile {
	return NewDetector().Detect()
}

func (d *Detector) hasBinary(name string) bool {
	_, err := d.LookPath(name)
	return err == nil
}

func (d *Detector) detectFamily() Family {
	// Order matters: dnf hosts usually ship a yum compatibility shim,
	// so the newer manager is probed first.
	switch {
	case d.hasBinary("dnf"):
		return FamilyRPMDNF
	case d.hasBinary("yum"):
		return FamilyRPMYUM
	case d.hasBinary("apt"), d.hasBinary("apt-get"):
		return FamilyDebAPT
	case d.hasBinary("zypper"):
		return FamilySUSEZypper
	default:
		return FamilyUnknown
	}
}

func (d *Detector) detectInit() InitSystem {
	// systemd advertises itself through this directory on every booted host.
	if fi, err := d.Stat("/run/systemd/system"); err == nil && fi.IsDir() {
		return InitSystemd
	}
	return InitOther
}

func (d *Detector) detectSecurityModule() SecurityModule {
	if b, err := d.ReadFile("/sys/fs/selinux/enforce"); err == nil && len(b) > 0 {
		return SecuritySELinux
	}
	if b, err := d.ReadFile("/sys/module/apparmor/parameters/enabled"); err == nil {
		if strings.HasPrefix(strings.TrimSpace(string(b)), "Y") {
			return SecurityAppArmor
		}
	}
	return SecurityNone
}

func (d *Detector) detectFirewall() FirewallBackend {
	switch {
	case d.hasBinary("firewall-cmd"):
		return FirewallFirewalld
	case d.hasBinary("ufw"):
		return FirewallUFW
	case d.hasBinary("iptables"):
		return FirewallIPTables
	default:
		return FirewallNone
	}
}
