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

package packages

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/distro"
	"github.com/snailops/snail/pkg/facts"
)

// fakeExec answers probes from a command-line to output table. Commands not
// in the table behave like missing binaries.
func fakeExec(outputs map[string]string) func(ctx context.Context, name string, args ...string) (string, error) {
	return func(_ context.Context, name string, args ...string) (string, error) {
		key := strings.Join(append([]string{name}, args...), " ")
		if out, ok := outputs[key]; ok {
			return strings.TrimSpace(out), nil
		}
		return "", fmt.Errorf("command %q failed: executable not found", name)
	}
}

func runCollect(t *testing.T, family distro.Family, outputs map[string]string) facts.Tree {
	t.Helper()
	rc := collector.NewContext(
		distro.Profile{Family: family},
		collector.WithExec(fakeExec(outputs)),
		collector.WithReadFile(func(string) ([]byte, error) {
			return nil, fmt.Errorf("no such file")
		}),
	)
	tree, err := New().Collect(context.Background(), rc)
	require.NoError(t, err)
	return tree
}

func TestCollectDNF(t *testing.T) {
	tree := runCollect(t, distro.FamilyRPMDNF, map[string]string{
		"rpm -qa --qf %{ARCH}\n": "x86_64\nx86_64\nnoarch\n",
		"rpm -qa gpg-pubkey*":    "gpg-pubkey-1\ngpg-pubkey-2\n",
		"dnf --version":          "dnf 4.18.0\ninstalled: ...",
		"dnf repolist --all": `repo id        repo name
fedora         Fedora 40
updates        Fedora 40 - Updates`,
		"rpm -qa kernel* --qf %{NAME}|%{VERSION}-%{RELEASE}\n": "kernel|6.8.0-1\nkernel-core|6.8.0-1\n",
	})

	assert.Equal(t, "dnf", tree["package_manager"])

	summary := tree["summary"].(facts.Tree)
	assert.Equal(t, 3, summary["total_count"])
	assert.Equal(t, 2, summary["by_arch"].(facts.Tree)["x86_64"])
	assert.Equal(t, 1, summary["by_arch"].(facts.Tree)["noarch"])
	assert.Equal(t, 2, summary["gpg_keys_count"])

	repos := tree["repositories"].([]any)
	require.Len(t, repos, 2)
	assert.Equal(t, "fedora", repos[0].(facts.Tree)["id"])

	kernels := tree["kernel_packages"].([]any)
	require.Len(t, kernels, 2)
	assert.Equal(t, "kernel", kernels[0].(facts.Tree)["name"])
	assert.Equal(t, "6.8.0-1", kernels[0].(facts.Tree)["version"])

	config := tree["config"].(facts.Tree)
	assert.Equal(t, "dnf 4.18.0", config["version"])
}

func TestCollectAPT(t *testing.T) {
	tree := runCollect(t, distro.FamilyDebAPT, map[string]string{
		"dpkg-query -W -f=${Architecture}\n": "amd64\namd64\nall\n",
		"apt --version":                      "apt 2.7.14 (amd64)",
		"apt list --upgradable": `Listing...
bash/stable 5.2.21-2 amd64 [upgradable from: 5.2.15-2]
curl/stable 8.5.0-2 amd64 [upgradable from: 8.4.0-1]`,
	})

	assert.Equal(t, "apt", tree["package_manager"])

	summary := tree["summary"].(facts.Tree)
	assert.Equal(t, 3, summary["total_count"])
	assert.Equal(t, 2, summary["by_arch"].(facts.Tree)["amd64"])

	upgradeable := tree["upgradeable"].(facts.Tree)
	assert.Equal(t, 2, upgradeable["count"])
	first := upgradeable["packages"].([]any)[0].(facts.Tree)
	assert.Equal(t, "bash", first["name"])
	assert.Equal(t, "5.2.21-2", first["version"])

	config := tree["config"].(facts.Tree)
	assert.Equal(t, true, config["gpgcheck"])
	assert.Equal(t, "2.7.14", config["version"])
}

func TestCollectZypper(t *testing.T) {
	tree := runCollect(t, distro.FamilySUSEZypper, map[string]string{
		"zypper --version": "zypper 1.14.66",
		"zypper repos -d": `1 | repo-oss     | Main Repository | Yes | ...
2 | repo-debug   | Debug Repository | No | ...`,
	})

	assert.Equal(t, "zypper", tree["package_manager"])

	repos := tree["repositories"].([]any)
	require.Len(t, repos, 2)
	assert.Equal(t, "repo-oss", repos[0].(facts.Tree)["id"])
	assert.Equal(t, true, repos[0].(facts.Tree)["enabled"])
	assert.Equal(t, false, repos[1].(facts.Tree)["enabled"])
}

func TestCollectUnknownFamily(t *testing.T) {
	tree := runCollect(t, distro.FamilyUnknown, nil)
	assert.Equal(t, "unknown", tree["package_manager"])
}

func TestAppliesToSkipsUnknownFamily(t *testing.T) {
	c := New()
	assert.False(t, c.AppliesTo(distro.Profile{Family: distro.FamilyUnknown}))
	assert.True(t, c.AppliesTo(distro.Profile{Family: distro.FamilyRPMDNF}))
	assert.True(t, c.AppliesTo(distro.Profile{Family: distro.FamilyDebAPT}))
}

func TestMissingToolsDegradeGracefully(t *testing.T) {
	// A dnf host where every probe fails still yields a well-formed tree.
	tree := runCollect(t, distro.FamilyRPMDNF, nil)

	assert.Equal(t, "dnf", tree["package_manager"])
	summary := tree["summary"].(facts.Tree)
	assert.Equal(t, 0, summary["total_count"])
}
