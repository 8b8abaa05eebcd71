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
	"fmt"
	"sync"

	"github.com/snailops/snail/pkg/distro"
	snailerrors "github.com/snailops/snail/pkg/errors"
)

// ErrDuplicateCollector reports a name collision during registration.
// Registration happens at process start, so this is a programming error
// and fatal at startup.
var ErrDuplicateCollector = snailerrors.New(snailerrors.ErrCodeDuplicateCollector, "collector name already registered")

// Registry enumerates the known collectors and resolves the execution set
// for a run. Registration order is preserved so report output stays
// deterministic across runs.
type Registry struct {
	mu     sync.Mutex
	order  []Collector
	byName map[string]Collector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Collector),
	}
}

// Register adds a collector. It fails with ErrDuplicateCollector when the
// name is already present.
func (r *Registry) Register(c Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[c.Name()]; exists {
		return fmt.Errorf("register %q: %w", c.Name(), ErrDuplicateCollector)
	}
	r.byName[c.Name()] = c
	r.order = append(r.order, c)
	return nil
}

// MustRegister registers collectors and panics on duplicates. Intended for
// process-start wiring of the built-in collector set.
func (r *Registry) MustRegister(collectors ...Collector) {
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Names returns all registered collector names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.order))
	for _, c := range r.order {
		names = append(names, c.Name())
	}
	return names
}

// Collectors returns all registered collectors in registration order.
func (r *Registry) Collectors() []Collector {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Collector, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve computes the execution set for a run: registered collectors whose
// AppliesTo accepts the profile, intersected with enabled when non-empty,
// minus disabled. Disabled always wins over enabled since explicit
// exclusion is the stronger signal. Order is registration order.
func (r *Registry) Resolve(p distro.Profile, enabled, disabled []string) []Collector {
	allow := toSet(enabled)
	deny := toSet(disabled)

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Collector, 0, len(r.order))
	for _, c := range r.order {
		if !c.AppliesTo(p) {
			continue
		}
		if len(allow) > 0 && !allow[c.Name()] {
			continue
		}
		if deny[c.Name()] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
