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
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/buildflash/buildflash/pkg/cli"
	"github.com/buildflash/buildflash/pkg/uploader"
)

func newUploadLogsCmd(settings *cli.EnvSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "upload-logs [FILE]",
		Short: "upload a log file to the dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(settings)
			if err != nil {
				return err
			}
			if cfg.Dashboard.URL == "" {
				return errors.New("no dashboard url configured")
			}

			ctx, cancel := signalContext()
			defer cancel()

			u := &uploader.LogUploader{
				URL: cfg.Dashboard.URL,
				Log: log.Infof,
			}
			return u.Upload(ctx, args[0])
		},
	}
}
