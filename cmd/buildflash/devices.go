/*
Copyright The Buildflash Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/buildflash/buildflash/pkg/cli"
)

func newDevicesCmd(settings *cli.EnvSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "list attached devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(settings)
			if err != nil {
				return err
			}
			b, err := newBridge(settings, cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			devices, err := b.Devices(ctx)
			if err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("SERIAL", "MODEL")
			for _, d := range devices {
				table.AddRow(d.Serial, d.Model)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}
