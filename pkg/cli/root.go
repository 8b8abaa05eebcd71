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

// Package cli defines the snail command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/snailops/snail/pkg/config"
	snailerrors "github.com/snailops/snail/pkg/errors"
	"github.com/snailops/snail/pkg/logging"
	"github.com/snailops/snail/pkg/version"
)

const name = "snail"

// New builds the root command.
func New() *cli.Command {
	return &cli.Command{
		Name:    name,
		Usage:   "Linux host diagnostic collection agent",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file path (default: search standard locations)",
				Sources: cli.EnvVars("SNAIL_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "emit log records as JSON lines",
			},
		},
		Commands: []*cli.Command{
			collectCmd(),
			collectorsCmd(),
			identityCmd(),
			statusCmd(),
			loginCmd(),
		},
	}
}

// Run executes the command tree and maps failures to process exit codes.
func Run(ctx context.Context, args []string) int {
	if err := New().Run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps the error taxonomy to stable exit codes for scripting:
// 2 configuration, 3 delivery, 4 identity store, 1 everything else.
func exitCode(err error) int {
	switch snailerrors.CodeOf(err) {
	case snailerrors.ErrCodeConfigInvalid:
		return 2
	case snailerrors.ErrCodeTransport:
		return 3
	case snailerrors.ErrCodeIdentityStore:
		return 4
	default:
		return 1
	}
}

// setup loads configuration and installs the structured logger. Command
// line flags override both file and environment values.
func setup(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if cmd.Bool("log-json") {
		cfg.Logging.JSON = true
	}

	// Logs go to stderr (or the configured file) so stdout stays clean
	// for report and status output.
	var w io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, snailerrors.Wrap(snailerrors.ErrCodeConfigInvalid,
				"failed to open log file", err)
		}
		w = f
	}
	logging.SetDefaultStructuredLogger(w, name, version.Version,
		logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON)

	slog.Debug("configuration resolved", "source", cfg.Source)
	return cfg, nil
}
