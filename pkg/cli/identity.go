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

	"github.com/snailops/snail/pkg/hostid"
)

func identityCmd() *cli.Command {
	return &cli.Command{
		Name:  "identity",
		Usage: "Show or reset the persistent host identity",
		Description: `The host identity correlates this host's reports across runs. It is
created on first use and survives reboots.

Resetting generates a fresh identity; the host will appear as a new
system to the server from the next upload on.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "discard the current identity and generate a new one",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}

			store := hostid.NewStore(cfg.Output.Dir)

			if cmd.Bool("reset") {
				id, err := store.Reset()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.Root().Writer, id.String())
				return nil
			}

			id, err := store.LoadOrCreate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, id.String())
			return nil
		},
	}
}
