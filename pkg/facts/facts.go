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

// Package facts defines the generic tree-shaped value collectors produce.
//
// Collector categories are heterogeneous by design, so facts are a nested
// mapping of string keys to scalars, sequences, or further mappings rather
// than a fixed schema. The tree serializes directly into the report's
// per-category data section.
package facts

import "strings"

// Tree is one collector's fact output: string keys over scalar values,
// []any sequences, or nested Tree mappings.
type Tree = map[string]any

// LeafTransform rewrites a single leaf value. The key is the immediate map
// key the leaf sits under (empty for sequence elements).
type LeafTransform func(key string, value any) any

// Transform returns a deep copy of t with fn applied to every leaf value.
// The input tree is never mutated; results are immutable once produced.
func Transform(t Tree, fn LeafTransform) Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = transformValue(k, v, fn)
	}
	return out
}

func transformValue(key string, v any, fn LeafTransform) any {
	switch tv := v.(type) {
	case Tree:
		return Transform(tv, fn)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = transformValue("", e, fn)
		}
		return out
	default:
		return fn(key, v)
	}
}

// FilterOut returns a copy of t without top-level keys matching any of the
// given patterns. A pattern surrounded by '*' matches as a substring,
// otherwise it must match the key exactly.
func FilterOut(t Tree, patterns []string) Tree {
	out := make(Tree, len(t))
	for k, v := range t {
		if matchesAny(k, patterns) {
			continue
		}
		out[k] = v
	}
	return out
}

func matchesAny(key string, patterns []string) bool {
	for _, p := range patterns {
		if strings.HasPrefix(p, "*") && strings.HasSuffix(p, "*") && len(p) > 2 {
			if strings.Contains(key, p[1:len(p)-1]) {
				return true
			}
			continue
		}
		if key == p {
			return true
		}
	}
	return false
}
