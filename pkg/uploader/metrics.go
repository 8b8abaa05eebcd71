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

package uploader

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snail_upload_duration_seconds",
		Help:    "Wall-clock duration of report deliveries including retries.",
		Buckets: prometheus.DefBuckets,
	})

	uploadOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snail_upload_outcomes_total",
		Help: "Final delivery outcomes by status.",
	}, []string{"status"})

	uploadAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snail_upload_attempts_total",
		Help: "Individual delivery attempts across all uploads.",
	})
)

func observeUpload(o *Outcome, elapsed time.Duration) {
	uploadDuration.Observe(elapsed.Seconds())
	uploadOutcomes.WithLabelValues(string(o.Status)).Inc()
	uploadAttempts.Add(float64(len(o.Attempts)))
}
