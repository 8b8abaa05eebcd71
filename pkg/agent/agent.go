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

// Package agent orchestrates one collection run end to end: profile the
// host, execute the applicable collectors, assemble and sanitize the
// report, retain it locally, deliver it, and journal the outcome.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/collector/filesystem"
	"github.com/snailops/snail/pkg/collector/hardware"
	"github.com/snailops/snail/pkg/collector/logs"
	"github.com/snailops/snail/pkg/collector/network"
	"github.com/snailops/snail/pkg/collector/packages"
	"github.com/snailops/snail/pkg/collector/security"
	"github.com/snailops/snail/pkg/collector/services"
	"github.com/snailops/snail/pkg/collector/system"
	"github.com/snailops/snail/pkg/config"
	"github.com/snailops/snail/pkg/defaults"
	"github.com/snailops/snail/pkg/distro"
	"github.com/snailops/snail/pkg/engine"
	snailerrors "github.com/snailops/snail/pkg/errors"
	"github.com/snailops/snail/pkg/hostid"
	"github.com/snailops/snail/pkg/journal"
	"github.com/snailops/snail/pkg/report"
	"github.com/snailops/snail/pkg/serializer"
	"github.com/snailops/snail/pkg/uploader"
	"github.com/snailops/snail/pkg/version"
)

// DeliverySkipped marks runs where upload was disabled by configuration.
const DeliverySkipped = "skipped"

// DefaultRegistry returns the built-in collector set in its canonical
// registration order, which is also the report's category order.
func DefaultRegistry() *collector.Registry {
	r := collector.NewRegistry()
	r.MustRegister(
		system.New(),
		hardware.New(),
		network.New(),
		packages.New(),
		services.New(),
		filesystem.New(),
		security.New(),
		logs.New(),
	)
	return r
}

// Delivery uploads an assembled report. Satisfied by uploader.Client.
type Delivery interface {
	Upload(ctx context.Context, rep *report.Report) (*uploader.Outcome, error)
}

// Summary is the outcome of one collection run.
type Summary struct {
	Report  *report.Report
	Results []collector.Result
	Profile distro.Profile

	// ReportPath is the retained local copy, empty when not kept.
	ReportPath string

	// Delivery is the upload status: an uploader status string, or
	// "skipped" when uploads are disabled.
	Delivery string
	Outcome  *uploader.Outcome

	Duration time.Duration
}

// CollectorsOK counts collectors that produced facts.
func (s *Summary) CollectorsOK() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == collector.StatusOK {
			n++
		}
	}
	return n
}

// CollectorsFailed counts collectors that did not produce facts,
// including timeouts and skips.
func (s *Summary) CollectorsFailed() int {
	return len(s.Results) - s.CollectorsOK()
}

// Option configures an Agent.
type Option func(*Agent)

// WithRegistry replaces the built-in collector set.
func WithRegistry(r *collector.Registry) Option {
	return func(a *Agent) {
		a.registry = r
	}
}

// WithDelivery replaces the report uploader; used by tests.
func WithDelivery(d Delivery) Option {
	return func(a *Agent) {
		a.delivery = d
		a.deliverySet = true
	}
}

// WithProfile pins the distribution profile instead of detecting it.
func WithProfile(p distro.Profile) Option {
	return func(a *Agent) {
		a.profile = &p
	}
}

// WithContextOptions passes probe overrides through to every collector
// run context; used by tests to simulate hosts.
func WithContextOptions(opts ...collector.ContextOption) Option {
	return func(a *Agent) {
		a.ctxOpts = opts
	}
}

// Agent runs collections according to one resolved configuration.
type Agent struct {
	cfg         *config.Config
	registry    *collector.Registry
	delivery    Delivery
	deliverySet bool
	profile     *distro.Profile
	ctxOpts     []collector.ContextOption
}

// New creates an Agent. When uploads are enabled the upload client is
// built from the configuration unless a Delivery override is supplied.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	a := &Agent{
		cfg:      cfg,
		registry: DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.Upload.Enabled && !a.deliverySet {
		if cfg.Upload.URL == "" {
			return nil, snailerrors.New(snailerrors.ErrCodeConfigInvalid,
				"upload is enabled but no upload url is configured")
		}
		client, err := uploader.NewClient(
			cfg.Upload.URL,
			cfg.Auth.APIKey,
			uploader.TLSOptions{
				CAFile:   cfg.Auth.CAPath,
				CertFile: cfg.Auth.CertPath,
				KeyFile:  cfg.Auth.KeyPath,
			},
			uploader.WithRetries(cfg.Upload.Retries),
			uploader.WithTimeout(cfg.Upload.TimeoutDuration()),
			uploader.WithCompression(cfg.Output.Compress),
			uploader.WithUserAgent("snail/"+version.Version),
		)
		if err != nil {
			return nil, err
		}
		a.delivery = client
	}
	return a, nil
}

// Run performs one full collection. Collection failures degrade into
// report errors; only infrastructure failures (host identity, local
// retention) abort the run.
func (a *Agent) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	profile := a.resolveProfile()
	slog.Info("starting collection",
		"family", profile.Family,
		"init", profile.InitSystem)

	results := a.collect(ctx, profile)

	store := hostid.NewStore(a.cfg.Output.Dir)
	hostID, err := store.LoadOrCreate()
	if err != nil {
		return nil, err
	}

	asm := report.NewAssembler(version.Version, report.PrivacyOptions{
		RedactPasswords:    a.cfg.Privacy.RedactPasswords,
		AnonymizeHostnames: a.cfg.Privacy.AnonymizeHostnames,
		ExcludeFacts:       a.cfg.Privacy.ExcludePaths,
	})
	rep := asm.Assemble(results, hostID)

	summary := &Summary{
		Report:   rep,
		Results:  results,
		Profile:  profile,
		Delivery: DeliverySkipped,
	}

	if a.cfg.Output.KeepLocal {
		path, err := serializer.SaveReport(a.cfg.Output.Dir, rep, a.cfg.Output.Compress)
		if err != nil {
			return nil, err
		}
		summary.ReportPath = path
		slog.Info("retained local report", "path", path)
	}

	if a.cfg.Upload.Enabled && a.delivery != nil {
		outcome, err := a.delivery.Upload(ctx, rep)
		if err != nil {
			return nil, err
		}
		summary.Outcome = outcome
		summary.Delivery = string(outcome.Status)
	}

	summary.Duration = time.Since(start)
	a.journalRun(ctx, summary)

	slog.Info("collection complete",
		"collection_id", rep.Meta.CollectionID,
		"ok", summary.CollectorsOK(),
		"failed", summary.CollectorsFailed(),
		"delivery", summary.Delivery,
		"duration", summary.Duration)

	return summary, nil
}

func (a *Agent) resolveProfile() distro.Profile {
	if a.profile != nil {
		return *a.profile
	}
	return distro.Detect()
}

// collect runs the resolved collector set and merges in skip records for
// registered collectors that do not apply to this host, preserving
// registration order.
func (a *Agent) collect(ctx context.Context, profile distro.Profile) []collector.Result {
	specs := a.registry.Resolve(profile,
		a.cfg.Collection.EnabledCollectors,
		a.cfg.Collection.DisabledCollectors)

	eng := engine.New(
		engine.WithConcurrency(a.cfg.Collection.Concurrency),
		engine.WithRunTimeout(a.cfg.Collection.TimeoutDuration()),
	)
	executed := eng.Run(ctx, specs, func() *collector.Context {
		return collector.NewContext(profile, a.ctxOpts...)
	})

	byName := make(map[string]collector.Result, len(executed))
	for _, r := range executed {
		byName[r.Name] = r
	}

	allow := toSet(a.cfg.Collection.EnabledCollectors)
	deny := toSet(a.cfg.Collection.DisabledCollectors)

	results := make([]collector.Result, 0, len(a.registry.Collectors()))
	for _, c := range a.registry.Collectors() {
		if r, ok := byName[c.Name()]; ok {
			results = append(results, r)
			continue
		}
		// Explicitly excluded collectors are omitted entirely; only
		// not-applicable ones surface as skips.
		if (len(allow) > 0 && !allow[c.Name()]) || deny[c.Name()] {
			continue
		}
		results = append(results, collector.Result{
			Name:     c.Name(),
			Category: c.Category(),
			Status:   collector.StatusSkipped,
			Err:      "not applicable to this host",
		})
	}
	return results
}

// journalRun records the run in the local history. Journal failures are
// logged and swallowed; history is not worth failing a run over.
func (a *Agent) journalRun(ctx context.Context, s *Summary) {
	j, err := journal.Open(a.cfg.Output.Dir)
	if err != nil {
		slog.Warn("run journal unavailable", "error", err)
		return
	}
	defer j.Close()

	err = j.Record(ctx, journal.Run{
		CollectionID:     s.Report.Meta.CollectionID,
		HostID:           s.Report.Meta.HostID,
		StartedAt:        time.Now().Add(-s.Duration),
		Duration:         s.Duration,
		CollectorsOK:     s.CollectorsOK(),
		CollectorsFailed: s.CollectorsFailed(),
		Delivery:         s.Delivery,
		ReportPath:       s.ReportPath,
	})
	if err != nil {
		slog.Warn("failed to journal run", "error", err)
		return
	}
	if err := j.Prune(ctx, defaults.JournalRetainRuns); err != nil {
		slog.Warn("failed to prune run journal", "error", err)
	}
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
