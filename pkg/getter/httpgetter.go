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

package getter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/buildflash/buildflash/internal/version"
)

// HTTPGetter is the default HTTP(/S) backend handler
type HTTPGetter struct {
	opts options
}

// NewHTTPGetter constructs a valid http/https client as a Getter
func NewHTTPGetter(options ...Option) (*HTTPGetter, error) {
	var g HTTPGetter

	for _, opt := range options {
		opt(&g.opts)
	}

	return &g, nil
}

// Get performs a Get from repo.Getter and returns the body.
func (g *HTTPGetter) Get(ctx context.Context, href string, options ...Option) (*bytes.Buffer, error) {
	// Local copy of options so concurrent Gets do not race.
	opts := g.opts
	for _, opt := range options {
		opt(&opts)
	}

	resp, err := g.do(ctx, href, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.Wrapf(ErrUnauthorized, "fetching %s", href)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("failed to fetch %s : %s", href, resp.Status)
	}

	buf := bytes.NewBuffer(nil)
	_, err = io.Copy(buf, resp.Body)
	return buf, err
}

// Stream opens a streaming response for href. Unlike Get, no status
// filtering happens here; large-transfer callers need to see 206 and 416
// responses themselves.
func (g *HTTPGetter) Stream(ctx context.Context, href string, options ...Option) (*http.Response, error) {
	opts := g.opts
	for _, opt := range options {
		opt(&opts)
	}
	// No client timeout on streams: a wall-clock deadline would abort a
	// healthy multi-gigabyte transfer.
	opts.timeout = 0

	return g.do(ctx, href, opts)
}

func (g *HTTPGetter) do(ctx context.Context, href string, opts options) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, err
	}

	// Set a buildflash specific user agent so the repository server can
	// separate buildflash calls from other tools interacting with it.
	req.Header.Set("User-Agent", version.GetUserAgent())
	if opts.userAgent != "" {
		req.Header.Set("User-Agent", opts.userAgent)
	}

	if opts.username != "" && opts.password != "" {
		req.SetBasicAuth(opts.username, opts.password)
	} else if opts.apiKey != "" {
		header := opts.apiKeyHeader
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		req.Header.Set(header, opts.apiKey)
	}

	if opts.rangeOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", opts.rangeOffset))
	}

	client := &http.Client{
		Timeout: opts.timeout,
	}
	if opts.transport != nil {
		client.Transport = opts.transport
	}

	return client.Do(req)
}
