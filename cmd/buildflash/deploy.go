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

const deployDesc = `
This command downloads a build artifact and immediately flashes it onto an
attached device. Flashing only starts once the download has completed; a
download failure stops the operation.

Without --serial the first attached device is flashed.
`

func newDeployCmd(settings *cli.EnvSettings) *cobra.Command {
	var serial string
	var maxAttempts int

	cmd := &cobra.Command{
		Use:   "deploy [URL]",
		Short: "download a build and flash it onto a device",
		Long:  deployDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(settings)
			if err != nil {
				return err
			}
			g, err := newGetter(cfg)
			if err != nil {
				return err
			}
			b, err := newBridge(settings, cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			client := action.NewDeploy(newActionConfig())
			client.Download.Getter = g
			client.Download.DestDir = settings.DownloadDir
			client.Download.MaxAttempts = maxAttempts
			client.Flash.Bridge = b

			_, err = client.Run(ctx, args[0], serial)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&serial, "serial", "s", "", "serial of the device to flash")
	f.IntVar(&maxAttempts, "max-attempts", 3, "maximum download attempts for transient faults")

	return cmd
}
