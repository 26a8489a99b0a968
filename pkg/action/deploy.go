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

package action

import (
	"context"
)

// Deploy is the action for downloading a build and immediately flashing it.
//
// It provides the implementation of 'buildflash deploy'. The flash stage
// only starts once the download succeeded; any stage failure short-circuits
// the rest.
type Deploy struct {
	cfg *Configuration

	// Download and Flash run the two stages; their own status sinks are
	// suppressed so one deploy reports one terminal status.
	Download *Download
	Flash    *Flash
}

// NewDeploy creates a new Deploy object with the given configuration.
func NewDeploy(cfg *Configuration) *Deploy {
	stage := &Configuration{Log: cfg.Log, Progress: cfg.Progress}
	d := NewDownload(stage)
	f := NewFlash(stage)
	return &Deploy{cfg: cfg, Download: d, Flash: f}
}

// Run downloads the artifact behind ref and flashes it onto the device with
// the given serial, returning the terminal status.
func (d *Deploy) Run(ctx context.Context, ref, serial string) (Status, error) {
	op := newOperationID()
	d.cfg.logf("[%s] Deploying %s", op, ref)

	path, err := d.Download.Run(ctx, ref)
	if err != nil {
		status := statusOf(err)
		d.cfg.report(op, status)
		return status, err
	}

	status, err := d.Flash.Run(ctx, path, serial)
	d.cfg.report(op, status)
	return status, err
}
