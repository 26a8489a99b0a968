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

	"github.com/spf13/cobra"

	"github.com/buildflash/buildflash/pkg/action"
	"github.com/buildflash/buildflash/pkg/cli"
)

const downloadDesc = `
This command downloads a build artifact to the local download directory.

The URL may point directly at an artifact file, or at a repository directory;
directories are searched for the best build payload (device-tier subfolders
first, then full-update packages). An interrupted download leaves its partial
file in place and the next run resumes from that byte offset.
`

func newDownloadCmd(settings *cli.EnvSettings) *cobra.Command {
	var maxAttempts int

	cmd := &cobra.Command{
		Use:   "download [URL]",
		Short: "download a build artifact from the repository",
		Long:  downloadDesc,
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

			ctx, cancel := signalContext()
			defer cancel()

			client := action.NewDownload(newActionConfig())
			client.Getter = g
			client.DestDir = settings.DownloadDir
			client.MaxAttempts = maxAttempts

			path, err := client.Run(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 3, "maximum download attempts for transient faults")

	return cmd
}
