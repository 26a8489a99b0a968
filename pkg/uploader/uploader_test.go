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

package uploader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	var gotName, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, err := io.ReadAll(f)
		require.NoError(t, err)
		gotName, gotBody = header.Filename, string(body)
	}))
	defer srv.Close()

	logFile := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(logFile, []byte("line one\nline two\n"), 0644))

	u := &LogUploader{URL: srv.URL, Log: t.Logf}
	require.NoError(t, u.Upload(context.Background(), logFile))

	assert.Equal(t, "run.log", gotName)
	assert.Equal(t, "line one\nline two\n", gotBody)
}

func TestUploadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	logFile := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(logFile, []byte("x"), 0644))

	u := &LogUploader{URL: srv.URL}
	err := u.Upload(context.Background(), logFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestUploadMissingFile(t *testing.T) {
	u := &LogUploader{URL: "http://example.invalid"}
	err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.log"))
	require.Error(t, err)
}
