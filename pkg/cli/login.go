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

	"github.com/urfave/cli/v3"

	"github.com/snailops/snail/pkg/config"
	snailerrors "github.com/snailops/snail/pkg/errors"
	"github.com/snailops/snail/pkg/uploader"
)

func loginCmd() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Exchange operator credentials for an API key and persist it",
		Description: `Contact the ingestion endpoint's auth service, exchange the given
credentials for an API key, and write the key into the config file so
subsequent collections authenticate without credentials.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Aliases:  []string{"u"},
				Usage:    "operator username",
				Sources:  cli.EnvVars("SNAIL_USERNAME"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Aliases:  []string{"p"},
				Usage:    "operator password",
				Sources:  cli.EnvVars("SNAIL_PASSWORD"),
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			if cfg.Upload.URL == "" {
				return snailerrors.New(snailerrors.ErrCodeConfigInvalid,
					"an upload url must be configured before logging in")
			}

			// The auth endpoint sits behind the same TLS setup as ingestion,
			// so the login client carries the configured CA and client cert.
			hc, err := uploader.NewHTTPClient(uploader.TLSOptions{
				CAFile:   cfg.Auth.CAPath,
				CertFile: cfg.Auth.CertPath,
				KeyFile:  cfg.Auth.KeyPath,
			}, cfg.Upload.TimeoutDuration())
			if err != nil {
				return err
			}

			key, err := uploader.FetchAPIKey(ctx, hc, cfg.Upload.URL,
				cmd.String("username"), cmd.String("password"))
			if err != nil {
				return err
			}

			cfg.Auth.APIKey = key
			path := cfg.Source
			if path == "" {
				path = cmd.String("config")
			}
			if path == "" {
				path = config.DefaultPaths()[0]
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.Root().Writer, "API key saved to %s\n", path)
			return nil
		},
	}
}
