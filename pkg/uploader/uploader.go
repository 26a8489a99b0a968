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

// Package uploader forwards log files to the dashboard endpoint.
package uploader

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// LogUploader posts log files to a dashboard as multipart form data.
type LogUploader struct {
	// URL is the upload endpoint.
	URL string
	// Client may be nil; http.DefaultClient is used then.
	Client *http.Client
	// Log receives human-readable trace lines. May be nil.
	Log func(string, ...interface{})
}

// Upload sends the file at path under the "file" form field.
func (u *LogUploader) Upload(ctx context.Context, path string) error {
	u.logf("Uploading logs to %s from %s", u.URL, path)

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening log file %s", path)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return errors.Wrap(err, "reading log file")
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "uploading logs to %s", u.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("log upload to %s failed: %s", u.URL, resp.Status)
	}

	u.logf("Logs uploaded successfully.")
	return nil
}

func (u *LogUploader) logf(format string, v ...interface{}) {
	if u.Log != nil {
		u.Log(format, v...)
	}
}
