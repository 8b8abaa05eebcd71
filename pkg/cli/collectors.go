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

	"github.com/snailops/snail/pkg/agent"
	"github.com/snailops/snail/pkg/distro"
	snailerrors "github.com/snailops/snail/pkg/errors"
	"github.com/snailops/snail/pkg/serializer"
)

type collectorInfo struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Timeout  string `json:"timeout" yaml:"timeout"`
	Applies  bool   `json:"applies" yaml:"applies"`
}

func collectorsCmd() *cli.Command {
	return &cli.Command{
		Name:  "collectors",
		Usage: "List the built-in collectors and their applicability to this host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: fmt.Sprintf("output format (%v)", serializer.SupportedFormats()),
				Value: string(serializer.FormatTable),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			outFormat := serializer.Format(cmd.String("format"))
			if outFormat.IsUnknown() {
				return snailerrors.New(snailerrors.ErrCodeConfigInvalid,
					fmt.Sprintf("unknown output format: %q", outFormat))
			}

			profile := distro.Detect()

			var infos []collectorInfo
			for _, c := range agent.DefaultRegistry().Collectors() {
				infos = append(infos, collectorInfo{
					Name:     c.Name(),
					Category: c.Category(),
					Timeout:  c.Timeout().String(),
					Applies:  c.AppliesTo(profile),
				})
			}
			return serializer.NewWriter(outFormat, cmd.Root().Writer).Serialize(infos)
		},
	}
}
