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

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "snail",
		Subsystem: "engine",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of a full collector run.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	collectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "snail",
		Subsystem: "engine",
		Name:      "collector_duration_seconds",
		Help:      "Duration of individual collector executions.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"collector"})

	collectorStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snail",
		Subsystem: "engine",
		Name:      "collector_results_total",
		Help:      "Collector results by terminal status.",
	}, []string{"collector", "status"})
)
