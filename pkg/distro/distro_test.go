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

package distro

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeDirInfo struct{ os.FileInfo }

func (fakeDirInfo) IsDir() bool        { return true }
func (fakeDirInfo) Name() string       { return "system" }
func (fakeDirInfo) Size() int64        { return 0 }
func (fakeDirInfo) Mode() os.FileMode  { return os.ModeDir }
func (fakeDirInfo) ModTime() time.Time { return time.Time{} }
func (fakeDirInfo) Sys() any           { return nil }

func fakeDetector(binaries []string, files map[string]string, dirs []string) *Detector {
	binSet := make(map[string]bool, len(binaries))
	for _, b := range binaries {
		binSet[b] = true
	}
	dirSet := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		dirSet[d] = true
	}
	return &Detector{
		LookPath: func(file string) (string, error) {
			if binSet[file] {
				return "/usr/bin/" + file, nil
			}
			return "", fmt.Errorf("%s: not found", file)
		},
		ReadFile: func(path string) ([]byte, error) {
			if content, ok := files[path]; ok {
				return []byte(content), nil
			}
			return nil, os.ErrNotExist
		},
		Stat: func(path string) (os.FileInfo, error) {
			if dirSet[path] {
				return fakeDirInfo{}, nil
			}
			return nil, os.ErrNotExist
		},
	}
}

func TestDetectFamilyOrder(t *testing.T) {
	tests := []struct {
		name     string
		binaries []string
		want     Family
	}{
		{"dnf wins over yum shim", []string{"dnf", "yum", "rpm"}, FamilyRPMDNF},
		{"yum without dnf", []string{"yum", "rpm"}, FamilyRPMYUM},
		{"apt", []string{"apt", "dpkg"}, FamilyDebAPT},
		{"apt-get only", []string{"apt-get"}, FamilyDebAPT},
		{"zypper", []string{"zypper"}, FamilySUSEZypper},
		{"nothing", nil, FamilyUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := fakeDetector(tc.binaries, nil, nil)
			assert.Equal(t, tc.want, d.Detect().Family)
		})
	}
}

func TestDetectSecurityModule(t *testing.T) {
	selinux := fakeDetector(nil, map[string]string{"/sys/fs/selinux/enforce": "1"}, nil)
	assert.Equal(t, SecuritySELinux, selinux.Detect().SecurityModule)

	// SELinux wins even when AppArmor is also reported.
	both := fakeDetector(nil, map[string]string{
		"/sys/fs/selinux/enforce":                "0",
		"/sys/module/apparmor/parameters/enabled": "Y",
	}, nil)
	assert.Equal(t, SecuritySELinux, both.Detect().SecurityModule)

	apparmor := fakeDetector(nil, map[string]string{
		"/sys/module/apparmor/parameters/enabled": "Y\n",
	}, nil)
	assert.Equal(t, SecurityAppArmor, apparmor.Detect().SecurityModule)

	disabledAppArmor := fakeDetector(nil, map[string]string{
		"/sys/module/apparmor/parameters/enabled": "N\n",
	}, nil)
	assert.Equal(t, SecurityNone, disabledAppArmor.Detect().SecurityModule)

	none := fakeDetector(nil, nil, nil)
	assert.Equal(t, SecurityNone, none.Detect().SecurityModule)
}

func TestDetectInitSystem(t *testing.T) {
	systemd := fakeDetector(nil, nil, []string{"/run/systemd/system"})
	assert.Equal(t, InitSystemd, systemd.Detect().InitSystem)

	other := fakeDetector(nil, nil, nil)
	assert.Equal(t, InitOther, other.Detect().InitSystem)
}

func TestDetectFirewall(t *testing.T) {
	tests := []struct {
		binaries []string
		want     FirewallBackend
	}{
		{[]string{"firewall-cmd", "iptables"}, FirewallFirewalld},
		{[]string{"ufw", "iptables"}, FirewallUFW},
		{[]string{"iptables"}, FirewallIPTables},
		{nil, FirewallNone},
	}

	for _, tc := range tests {
		d := fakeDetector(tc.binaries, nil, nil)
		assert.Equal(t, tc.want, d.Detect().FirewallBackend)
	}
}

func TestDetectNeverFails(t *testing.T) {
	// A detector whose probes all error still yields a complete profile.
	d := &Detector{
		LookPath: func(string) (string, error) { return "", os.ErrNotExist },
		ReadFile: func(string) ([]byte, error) { return nil, os.ErrPermission },
		Stat:     func(string) (os.FileInfo, error) { return nil, os.ErrPermission },
	}
	p := d.Detect()
	assert.Equal(t, FamilyUnknown, p.Family)
	assert.Equal(t, InitOther, p.InitSystem)
	assert.Equal(t, SecurityNone, p.SecurityModule)
	assert.Equal(t, FirewallNone, p.FirewallBackend)
}

func TestFamilyRPMBased(t *testing.T) {
	assert.True(t, FamilyRPMDNF.RPMBased())
	assert.True(t, FamilyRPMYUM.RPMBased())
	assert.True(t, FamilySUSEZypper.RPMBased())
	assert.False(t, FamilyDebAPT.RPMBased())
	assert.False(t, FamilyUnknown.RPMBased())
}
