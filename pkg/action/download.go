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

	"github.com/buildflash/buildflash/pkg/downloader"
	"github.com/buildflash/buildflash/pkg/getter"
	"github.com/buildflash/buildflash/pkg/repo"
)

// Download is the action for fetching a build artifact to local storage.
//
// It provides the implementation of 'buildflash download'.
type Download struct {
	cfg *Configuration

	// Getter performs repository HTTP requests.
	Getter getter.Getter
	// GetterOptions carry credentials and other request parameters.
	GetterOptions []getter.Option
	// DestDir is where artifacts land.
	DestDir string
	// MaxAttempts bounds transfer retries; 0 uses the downloader default.
	MaxAttempts int
}

// NewDownload creates a new Download object with the given configuration.
func NewDownload(cfg *Configuration) *Download {
	return &Download{cfg: cfg}
}

// Run executes the download and returns the local path, or "" on failure.
func (d *Download) Run(ctx context.Context, ref string) (string, error) {
	op := newOperationID()
	d.cfg.logf("[%s] Downloading build from %s", op, ref)

	path, err := d.download(ctx, ref)
	d.cfg.report(op, statusOf(err))
	if err != nil {
		d.cfg.logf("[%s] Download failed: %v", op, err)
		return "", err
	}
	d.cfg.logf("[%s] Build downloaded successfully: %s", op, path)
	return path, nil
}

// download wires the locator and downloader for one run; Run owns status
// reporting.
func (d *Download) download(ctx context.Context, ref string) (string, error) {
	locator := &repo.Locator{
		Getter: d.Getter,
		Log:    d.cfg.Log,
	}
	dl := &downloader.Downloader{
		Getter:      d.Getter,
		Locator:     locator,
		Options:     d.GetterOptions,
		MaxAttempts: d.MaxAttempts,
		Log:         d.cfg.Log,
		Progress: func(current, total int64) {
			d.cfg.progress(current, total, "Downloading")
		},
	}
	return dl.DownloadTo(ctx, ref, d.DestDir)
}
