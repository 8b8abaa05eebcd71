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

package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snailops/snail/pkg/distro"
	"github.com/snailops/snail/pkg/facts"
)

type stubCollector struct {
	Meta
	data facts.Tree
}

func (s *stubCollector) Collect(ctx context.Context, rc *Context) (facts.Tree, error) {
	return s.data, nil
}

func newStub(name string, applies func(distro.Profile) bool) *stubCollector {
	return &stubCollector{
		Meta: NewMeta(name, name, time.Second, applies),
	}
}

func rpmOnly(p distro.Profile) bool { return p.Family.RPMBased() }

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newStub("system", nil)))

	err := reg.Register(newStub("system", nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateCollector))
}

func TestResolveFiltersByProfile(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(
		newStub("system", nil),
		newStub("packages", rpmOnly),
	)

	deb := distro.Profile{Family: distro.FamilyDebAPT}
	resolved := reg.Resolve(deb, nil, nil)
	require.Len(t, resolved, 1)
	assert.Equal(t, "system", resolved[0].Name())

	// Resolve never returns a collector whose AppliesTo is false.
	for _, family := range []distro.Family{
		distro.FamilyRPMDNF, distro.FamilyRPMYUM, distro.FamilyDebAPT,
		distro.FamilySUSEZypper, distro.FamilyUnknown,
	} {
		p := distro.Profile{Family: family}
		for _, c := range reg.Resolve(p, nil, nil) {
			assert.True(t, c.AppliesTo(p), "family %s resolved %s", family, c.Name())
		}
	}
}

func TestResolveEnabledActsAsAllowList(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newStub("system", nil), newStub("hardware", nil), newStub("logs", nil))

	resolved := reg.Resolve(distro.Profile{}, []string{"logs", "system"}, nil)
	require.Len(t, resolved, 2)
	// Registration order, not allow-list order.
	assert.Equal(t, "system", resolved[0].Name())
	assert.Equal(t, "logs", resolved[1].Name())
}

func TestResolveDisabledWinsOverEnabled(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newStub("system", nil), newStub("hardware", nil))

	resolved := reg.Resolve(distro.Profile{}, []string{"system", "hardware"}, []string{"hardware"})
	require.Len(t, resolved, 1)
	assert.Equal(t, "system", resolved[0].Name())
}

func TestResolvePreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	names := []string{"system", "hardware", "network", "packages", "services"}
	for _, n := range names {
		reg.MustRegister(newStub(n, nil))
	}

	resolved := reg.Resolve(distro.Profile{}, nil, nil)
	got := make([]string, 0, len(resolved))
	for _, c := range resolved {
		got = append(got, c.Name())
	}
	assert.Equal(t, names, got)
}

func TestMetaDefaults(t *testing.T) {
	m := NewMeta("x", "y", 0, nil)
	assert.Positive(t, m.Timeout())
	assert.True(t, m.AppliesTo(distro.Profile{}))
}
