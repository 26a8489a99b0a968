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
	"github.com/spf13/cobra"

	"github.com/buildflash/buildflash/pkg/action"
	"github.com/buildflash/buildflash/pkg/cli"
)

const flashDesc = `
This command flashes an already-downloaded build file onto an attached
device: the device is rebooted into recovery, given time to settle, and the
payload is sideloaded through the bridge tool.

A sideload that exits nonzero is reported as a warning rather than an error;
the device may still have received the payload.
`

func newFlashCmd(settings *cli.EnvSettings) *cobra.Command {
	var serial string

	cmd := &cobra.Command{
		Use:   "flash [FILE]",
		Short: "flash a local build file onto a device",
		Long:  flashDesc,
		Args:  cobra.ExactArgs(1),
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

			client := action.NewFlash(newActionConfig())
			client.Bridge = b

			_, err = client.Run(ctx, args[0], serial)
			return err
		},
	}

	cmd.Flags().StringVarP(&serial, "serial", "s", "", "serial of the device to flash")

	return cmd
}
