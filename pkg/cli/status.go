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

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/snailops/snail/pkg/config"
	snailerrors "github.com/snailops/snail/pkg/errors"
	"github.com/snailops/snail/pkg/journal"
	"github.com/snailops/snail/pkg/serializer"
	"github.com/snailops/snail/pkg/version"
)

type statusOutput struct {
	Version      string         `json:"version" yaml:"version"`
	ConfigSource string         `json:"config_source,omitempty" yaml:"config_source,omitempty"`
	Config       *config.Config `json:"config" yaml:"config"`
	LastRun      *journal.Run   `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	RecentRuns   []journal.Run  `json:"recent_runs" yaml:"recent_runs"`
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the resolved configuration and recent run history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: fmt.Sprintf("output format (%v)", serializer.SupportedFormats()),
				Value: string(serializer.FormatYAML),
			},
			&cli.IntFlag{
				Name:  "runs",
				Usage: "number of recent runs to show",
				Value: 5,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}

			outFormat := serializer.Format(cmd.String("format"))
			if outFormat.IsUnknown() {
				return snailerrors.New(snailerrors.ErrCodeConfigInvalid,
					fmt.Sprintf("unknown output format: %q", outFormat))
			}

			out := statusOutput{
				Version:      version.String(),
				ConfigSource: cfg.Source,
				Config:       cfg.Redacted(),
			}

			// A missing journal just means no runs yet.
			if j, err := journal.Open(cfg.Output.Dir); err == nil {
				defer j.Close()
				last, err := j.Last(ctx)
				if err != nil {
					slog.Warn("failed to read run journal", "error", err)
				}
				out.LastRun = last
				runs, err := j.Recent(ctx, int(cmd.Int("runs")))
				if err != nil {
					slog.Warn("failed to read run journal", "error", err)
				}
				out.RecentRuns = runs
			}

			return serializer.NewWriter(outFormat, cmd.Root().Writer).Serialize(out)
		},
	}
}
