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
	"time"

	"github.com/urfave/cli/v3"

	"github.com/snailops/snail/pkg/agent"
	snailerrors "github.com/snailops/snail/pkg/errors"
	"github.com/snailops/snail/pkg/serializer"
)

func collectCmd() *cli.Command {
	return &cli.Command{
		Name:  "collect",
		Usage: "Run a collection and deliver the report",
		Description: `Profile the host, run the applicable collectors, assemble the
report, retain a local copy when configured, and upload it to the
ingestion endpoint.

Collector failures degrade gracefully: a failing collector becomes an
entry in the report's errors section and the run continues.`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "collector",
				Usage: "restrict the run to the named collectors (can be repeated)",
			},
			&cli.BoolFlag{
				Name:  "no-upload",
				Usage: "collect and retain locally without uploading",
			},
			&cli.BoolFlag{
				Name:  "keep-local",
				Usage: "retain a local report copy regardless of config",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "write the assembled report to this path ('-' for stdout)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: fmt.Sprintf("report output format (%v)", serializer.SupportedFormats()),
				Value: string(serializer.FormatJSON),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "overall collection deadline (overrides config)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("no-upload") {
				cfg.Upload.Enabled = false
			}
			if cmd.Bool("keep-local") {
				cfg.Output.KeepLocal = true
			}
			if only := cmd.StringSlice("collector"); len(only) > 0 {
				cfg.Collection.EnabledCollectors = only
			}
			if d := cmd.Duration("timeout"); d > 0 {
				cfg.Collection.Timeout = int(d / time.Second)
			}

			outFormat := serializer.Format(cmd.String("format"))
			if outFormat.IsUnknown() {
				return snailerrors.New(snailerrors.ErrCodeConfigInvalid,
					fmt.Sprintf("unknown output format: %q", outFormat))
			}

			a, err := agent.New(cfg)
			if err != nil {
				return err
			}
			summary, err := a.Run(ctx)
			if err != nil {
				return err
			}

			if out := cmd.String("output"); out != "" {
				var w *serializer.Writer
				if out == "-" {
					w = serializer.NewWriter(outFormat, cmd.Root().Writer)
				} else {
					w = serializer.NewFileWriterOrStdout(outFormat, out)
				}
				defer w.Close()
				if err := w.Serialize(summary.Report); err != nil {
					return err
				}
			}

			if summary.Outcome != nil && !summary.Outcome.Succeeded() {
				return snailerrors.New(snailerrors.ErrCodeTransport,
					"report delivery failed: "+summary.Outcome.Err)
			}
			return nil
		},
	}
}
