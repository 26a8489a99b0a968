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

/*Package getter provides the transport layer for talking to build
repositories.

A Getter fetches small documents (directory listings) into memory and opens
streaming responses for large artifact payloads. Authentication, byte ranges
and other request parameters are expressed as functional options so callers
can override the getter's defaults per request.
*/
package getter

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// DefaultAPIKeyHeader is the vendor header used to pass an API key when no
// basic credentials are configured.
const DefaultAPIKeyHeader = "X-JFrog-Art-Api"

// ErrUnauthorized indicates the repository rejected the configured
// credentials (HTTP 401).
var ErrUnauthorized = errors.New("repository authentication failed (401)")

// options are generic parameters to be provided to the getter during
// instantiation. Getters may or may not ignore these parameters as they are
// passed in.
type options struct {
	url          string
	username     string
	password     string
	apiKey       string
	apiKeyHeader string
	userAgent    string
	rangeOffset  int64
	timeout      time.Duration
	transport    http.RoundTripper
}

// Option allows specifying various settings configurable by the user for
// overriding the defaults used when performing Get operations with the
// Getter.
type Option func(*options)

// WithURL informs the getter the server name that will be used when fetching
// objects.
func WithURL(url string) Option {
	return func(opts *options) {
		opts.url = url
	}
}

// WithBasicAuth sets the request's Authorization header to use the provided
// credentials
func WithBasicAuth(username, password string) Option {
	return func(opts *options) {
		opts.username = username
		opts.password = password
	}
}

// WithAPIKey passes the given key in the vendor API-key header. Basic
// credentials take precedence when both are set.
func WithAPIKey(key string) Option {
	return func(opts *options) {
		opts.apiKey = key
		if opts.apiKeyHeader == "" {
			opts.apiKeyHeader = DefaultAPIKeyHeader
		}
	}
}

// WithAPIKeyHeader overrides the header name used by WithAPIKey.
func WithAPIKeyHeader(header string) Option {
	return func(opts *options) {
		opts.apiKeyHeader = header
	}
}

// WithUserAgent sets the request's User-Agent header
func WithUserAgent(userAgent string) Option {
	return func(opts *options) {
		opts.userAgent = userAgent
	}
}

// WithByteRange asks the server to send the payload starting at offset, for
// resuming interrupted transfers. An offset of zero means a full request.
func WithByteRange(offset int64) Option {
	return func(opts *options) {
		opts.rangeOffset = offset
	}
}

// WithTimeout sets the request timeout. Streaming requests ignore it so that
// large transfers are not cut off mid-body.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		opts.timeout = timeout
	}
}

// WithTransport sets the http.RoundTripper used by the underlying client.
func WithTransport(transport http.RoundTripper) Option {
	return func(opts *options) {
		opts.transport = transport
	}
}

// Getter is an interface to support GET to the specified URL.
type Getter interface {
	// Get fetches the whole document at href into memory. Intended for
	// directory listings and other small documents; any status other than
	// 200 is an error.
	Get(ctx context.Context, href string, options ...Option) (*bytes.Buffer, error)

	// Stream opens a streaming response for href. The response is returned
	// for any status code; interpreting it (206 vs 200 vs 416) is the
	// caller's business. The caller owns the response body.
	Stream(ctx context.Context, href string, options ...Option) (*http.Response, error)
}
