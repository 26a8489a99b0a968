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

/*Package downloader fetches build artifacts to local storage.

Downloads are resumable: the partial file on disk is the checkpoint, its size
the resume offset. Transient transport faults are retried a bounded number of
times; every retry re-reads the offset from disk so completed bytes are never
re-fetched. Cancellation leaves the partial file in place for a later resume.
*/
package downloader

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/buildflash/buildflash/pkg/getter"
	"github.com/buildflash/buildflash/pkg/repo"
)

const (
	// DefaultMaxAttempts is how often a transfer is attempted before the
	// fault is surfaced.
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the pause between attempts.
	DefaultRetryDelay = 5 * time.Second
	// DefaultChunkSize bounds the memory held per copy step.
	DefaultChunkSize = 1 << 20
	// DefaultProgressInterval throttles progress callbacks so the sink is
	// not flooded on fast links.
	DefaultProgressInterval = 2 * time.Second

	// fallbackFileName is used when a direct URL has no usable base name.
	fallbackFileName = "build.zip"
)

// ErrBusy indicates another transfer already holds the destination file.
var ErrBusy = errors.New("destination file is locked by another transfer")

// StatusError is a non-transient HTTP failure; it aborts the transfer
// without consuming a retry.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "unexpected status fetching " + e.URL + ": " + e.Status
}

// TransportError is a transient transport fault that survived every retry.
type TransportError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return "download of " + e.URL + " failed after " + strconv.Itoa(e.Attempts) + " attempts: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProgressFunc receives transfer progress. total is 0 when the server did
// not report a size.
type ProgressFunc func(current, total int64)

// Downloader handles downloading a build artifact.
type Downloader struct {
	// Getter performs the HTTP requests.
	Getter getter.Getter
	// Locator resolves directory references to concrete files. May be nil
	// if callers only pass direct file URLs.
	Locator *repo.Locator
	// Options are applied to every request (credentials, user agent).
	Options []getter.Option

	// MaxAttempts, RetryDelay, ChunkSize and ProgressInterval fall back to
	// the package defaults when zero.
	MaxAttempts      int
	RetryDelay       time.Duration
	ChunkSize        int
	ProgressInterval time.Duration

	// Log receives human-readable trace lines. May be nil.
	Log func(string, ...interface{})
	// Progress receives throttled byte counts. May be nil.
	Progress ProgressFunc
}

// DownloadTo retrieves the artifact behind ref into destDir and returns the
// local path.
//
// ref may be a direct file URL or a directory URL; directories are resolved
// through the Locator first. A partial file left by an earlier attempt is
// resumed, never restarted. On cancellation the partial file stays on disk
// and the context's error is returned.
func (d *Downloader) DownloadTo(ctx context.Context, ref, destDir string) (string, error) {
	fileURL := ref
	if IsDirectoryRef(ref) {
		if d.Locator == nil {
			return "", errors.Errorf("%s is a directory reference but no locator is configured", ref)
		}
		d.logf("Detected directory URL, searching for build files...")
		art, err := d.Locator.Resolve(ctx, ref)
		if err != nil {
			return "", err
		}
		d.logf("Found build file: %s", art.FileName)
		fileURL = art.URL
	}

	name := path.Base(fileURL)
	if name == "" || name == "." || name == "/" {
		name = fallbackFileName
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating download directory %s", destDir)
	}
	dest, err := securejoin.SecureJoin(destDir, name)
	if err != nil {
		return "", errors.Wrapf(err, "unsafe artifact name %q", name)
	}

	// One writer per destination file. The lock lives next to the partial
	// file so a second invocation against the same path fails fast instead
	// of interleaving writes.
	fileLock := flock.New(lockPath(dest))
	locked, err := fileLock.TryLock()
	if err != nil {
		return "", errors.Wrapf(err, "locking %s", dest)
	}
	if !locked {
		return "", errors.Wrapf(ErrBusy, "%s", dest)
	}
	defer fileLock.Unlock()

	if err := d.fetch(ctx, fileURL, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// fetch runs the attempt loop for one resolved URL.
func (d *Downloader) fetch(ctx context.Context, fileURL, dest string) error {
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	retryDelay := d.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		offset, err := resumeOffset(dest)
		if err != nil {
			return errors.Wrapf(err, "checking partial file %s", dest)
		}
		if offset > 0 {
			d.logf("Resuming download from byte position: %d", offset)
		}

		// attempt classifies its own failures: done means the result is
		// final, otherwise the fault is transient and worth a retry.
		done, err := d.attempt(ctx, fileURL, dest, offset)
		if done || err == nil {
			return err
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}
		d.logf("Download interrupted: %v", err)
		d.logf("Retrying download (attempt %d/%d)...", attempt+1, maxAttempts)
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	d.logf("Failed to download build after %d attempts", maxAttempts)
	return &TransportError{URL: fileURL, Attempts: maxAttempts, Err: lastErr}
}

// attempt performs one ranged request and copy. done reports that the result
// is final regardless of err (success, cancellation, non-transient failure
// already classified).
func (d *Downloader) attempt(ctx context.Context, fileURL, dest string, offset int64) (done bool, err error) {
	opts := append([]getter.Option{getter.WithURL(fileURL)}, d.Options...)
	if offset > 0 {
		opts = append(opts, getter.WithByteRange(offset))
	}

	d.logf("Downloading from: %s", fileURL)
	resp, err := d.Getter.Stream(ctx, fileURL, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}
		// Request-level faults (refused, reset, DNS) are the transient
		// class; the next attempt resumes from the current offset.
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusUnauthorized:
		return true, errors.Wrapf(getter.ErrUnauthorized, "fetching %s", fileURL)
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial file already covers the whole payload; re-running a
		// completed download is a no-op.
		if offset > 0 {
			d.logf("Requested range not satisfiable at offset %d; treating file as complete", offset)
			return true, nil
		}
		return true, &StatusError{URL: fileURL, Code: resp.StatusCode, Status: resp.Status}
	default:
		return true, &StatusError{URL: fileURL, Code: resp.StatusCode, Status: resp.Status}
	}

	total := totalSize(resp, offset)
	if total > 0 {
		d.logf("File size: %.2f MB", float64(total)/(1<<20))
	}
	if offset > 0 {
		d.logf("Already downloaded: %.2f MB", float64(offset)/(1<<20))
	}

	// The server ignored the range request; start the file over rather
	// than appending a second copy of the leading bytes.
	if offset > 0 && resp.StatusCode == http.StatusOK {
		offset = 0
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(dest, flags, 0644)
	if err != nil {
		return true, errors.Wrapf(err, "opening %s", dest)
	}
	defer f.Close()

	return d.copyChunks(ctx, f, resp.Body, offset, total)
}

// copyChunks streams body to f in fixed-size blocks, firing throttled
// progress callbacks and checking for cancellation between writes.
func (d *Downloader) copyChunks(ctx context.Context, f *os.File, body io.Reader, written, total int64) (bool, error) {
	chunkSize := d.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	interval := d.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	buf := make([]byte, chunkSize)
	lastReport := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			// Keep the partial file; the next call resumes from here.
			return true, err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return true, errors.Wrap(err, "writing artifact")
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			d.reportProgress(written, total)
			return true, nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			// Mid-stream fault: transient, retry resumes from the bytes
			// already flushed.
			return false, readErr
		}

		if time.Since(lastReport) >= interval {
			d.reportProgress(written, total)
			lastReport = time.Now()
		}
	}
}

func (d *Downloader) reportProgress(current, total int64) {
	if d.Progress != nil {
		d.Progress(current, total)
	}
	if total > 0 {
		d.logf("Download progress: %.1f%%", float64(current)/float64(total)*100)
	}
}

func (d *Downloader) logf(format string, v ...interface{}) {
	if d.Log != nil {
		d.Log(format, v...)
	}
}

// IsDirectoryRef reports whether ref names a listing rather than a file: it
// ends in a slash or its last segment carries no extension.
func IsDirectoryRef(ref string) bool {
	if strings.HasSuffix(ref, "/") {
		return true
	}
	return !strings.Contains(path.Base(ref), ".")
}

// resumeOffset returns the size of an existing partial file, or 0.
func resumeOffset(dest string) (int64, error) {
	fi, err := os.Stat(dest)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// totalSize derives the full payload size from Content-Range on resumed
// responses, falling back to Content-Length plus the resume offset.
func totalSize(resp *http.Response, offset int64) int64 {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if i := strings.LastIndex(cr, "/"); i >= 0 {
			if total, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
				return total
			}
		}
	}
	if resp.ContentLength > 0 {
		if resp.StatusCode == http.StatusPartialContent {
			return resp.ContentLength + offset
		}
		return resp.ContentLength
	}
	return 0
}

func lockPath(dest string) string {
	ext := filepath.Ext(dest)
	if len(ext) > 0 && len(ext) < len(dest) {
		return strings.TrimSuffix(dest, ext) + ".lock"
	}
	return dest + ".lock"
}
