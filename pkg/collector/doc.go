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

// Package collector defines the contract every diagnostic collector
// satisfies, plus the registry that resolves which collectors run.
//
// # Core Interface
//
// A collector is a named unit of work producing the fact tree for one
// category:
//
//	type Collector interface {
//	    Name() string
//	    Category() string
//	    Timeout() time.Duration
//	    AppliesTo(p distro.Profile) bool
//	    Collect(ctx context.Context, rc *Context) (facts.Tree, error)
//	}
//
// Collectors are side-effect free on shared state: they only read the host
// through the probes carried by their private Context. New collectors
// implement the interface and register; the execution engine is untouched.
//
// # Registry
//
// The Registry guards name uniqueness and resolves the execution set for a
// detected distribution profile:
//
//	reg := collector.NewRegistry()
//	reg.MustRegister(system.New(), packages.New(), ...)
//	specs := reg.Resolve(profile, cfg.EnabledCollectors, cfg.DisabledCollectors)
//
// Enabled acts as an allow-list when non-empty; disabled always wins.
//
// # Subpackages
//
// The built-in collectors live in subpackages by category: system,
// hardware, network, packages, services, filesystem, security, and logs.
// The file subpackage holds the shared configuration-file parser.
package collector
