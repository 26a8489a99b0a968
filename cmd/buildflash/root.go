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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/buildflash/buildflash/pkg/action"
	"github.com/buildflash/buildflash/pkg/bridge"
	"github.com/buildflash/buildflash/pkg/cli"
	"github.com/buildflash/buildflash/pkg/getter"
)

var globalUsage = `Buildflash fetches device build artifacts from a build
repository and installs them onto attached devices.

Builds are located inside repository directory listings, downloaded with
resume support, and sideloaded through the platform's debug bridge.
Interrupting a running command (Ctrl+C) cancels it cooperatively: partial
downloads stay on disk and are resumed by the next run.`

func newRootCmd(args []string) (*cobra.Command, error) {
	settings := cli.New()

	cmd := &cobra.Command{
		Use:          "buildflash",
		Short:        "download device builds and flash them onto hardware",
		Long:         globalUsage,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			if settings.Debug {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	flags := cmd.PersistentFlags()
	settings.AddFlags(flags)

	cmd.AddCommand(
		newDownloadCmd(settings),
		newDeployCmd(settings),
		newFlashCmd(settings),
		newDevicesCmd(settings),
		newUploadLogsCmd(settings),
		newVersionCmd(),
	)

	flags.Parse(args)

	return cmd, nil
}

// signalContext returns a context cancelled by SIGINT/SIGTERM, so in-flight
// downloads and flashes stop at their next checkpoint.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Warn("Interrupt received, cancelling...")
		cancel()
	}()
	return ctx, cancel
}

// newActionConfig wires the log and progress sinks to the CLI's logger.
func newActionConfig() *action.Configuration {
	return &action.Configuration{
		Log: log.Infof,
		Progress: func(current, total int64, phase string) {
			if total > 0 {
				log.Infof("%s: %.1f%%", phase, float64(current)/float64(total)*100)
			} else {
				log.Infof("%s: %d bytes", phase, current)
			}
		},
		Status: func(s action.Status) {
			if s == action.StatusSuccess {
				log.Infof("Status: %s", s)
			} else {
				log.Warnf("Status: %s", s)
			}
		},
	}
}

// loadConfig reads the config file and logs the authentication mode once,
// the way operators diagnose credential trouble.
func loadConfig(settings *cli.EnvSettings) (*cli.Config, error) {
	cfg, err := cli.LoadConfig(settings.ConfigFile)
	if err != nil {
		return nil, err
	}
	switch cfg.Repository.AuthMode() {
	case "basic":
		log.Infof("Using basic authentication with username: %s", cfg.Repository.Username)
	case "api-key":
		log.Info("Using API key authentication")
	default:
		log.Warn("Repository credentials not configured; downloads will likely fail")
	}
	return cfg, nil
}

// newGetter builds the repository transport with the configured credentials,
// prompting for a password when a username is set without one.
func newGetter(cfg *cli.Config) (getter.Getter, error) {
	repo := cfg.Repository
	if repo.Username != "" && repo.Password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, err
		}
		repo.Password = string(pw)
	}
	return getter.NewHTTPGetter(repo.GetterOptions()...)
}

// newBridge builds the device bridge from settings and config; the config
// file's path wins over the environment default.
func newBridge(settings *cli.EnvSettings, cfg *cli.Config) (*bridge.Bridge, error) {
	path := settings.BridgePath
	if cfg.Bridge.Path != "" {
		path = cfg.Bridge.Path
	}
	extraArgs, err := cfg.Bridge.Args()
	if err != nil {
		return nil, err
	}
	b := bridge.New(path, extraArgs...)
	b.Log = log.Debugf
	return b, nil
}
