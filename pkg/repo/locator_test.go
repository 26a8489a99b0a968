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

package repo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildflash/buildflash/pkg/getter"
)

// newListingServer serves a fake repository: keys are directory paths
// (ending in /), values the entry names to list.
func newListingServer(t *testing.T, tree map[string][]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries, ok := tree[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var b strings.Builder
		b.WriteString("<html><head><title>Index</title></head><body><pre>")
		for _, e := range entries {
			fmt.Fprintf(&b, "<a href=%q>%s</a>\n", e, e)
		}
		b.WriteString("</pre></body></html>")
		w.Write([]byte(b.String()))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestLocator(t *testing.T) *Locator {
	t.Helper()
	g, err := getter.NewHTTPGetter()
	require.NoError(t, err)
	return &Locator{Getter: g, Log: t.Logf}
}

func TestResolveUserDirHasAbsolutePriority(t *testing.T) {
	srv := newListingServer(t, map[string][]string{
		"/builds/":      {"some_FULL_UPDATE.zip", "gms/", "user/"},
		"/builds/user/": {"user_build.zip"},
	})

	art, err := newTestLocator(t).Resolve(context.Background(), srv.URL+"/builds/")
	require.NoError(t, err)
	assert.Equal(t, "user_build.zip", art.FileName)
	assert.Equal(t, srv.URL+"/builds/user/user_build.zip", art.URL)
}

func TestResolveGmsDirWhenNoUserDir(t *testing.T) {
	srv := newListingServer(t, map[string][]string{
		"/builds/":     {"top_level.zip", "gms/"},
		"/builds/gms/": {"gms_build.zip"},
	})

	art, err := newTestLocator(t).Resolve(context.Background(), srv.URL+"/builds/")
	require.NoError(t, err)
	assert.Equal(t, "gms_build.zip", art.FileName)
}

func TestResolveFullUpdateOutranksFull(t *testing.T) {
	srv := newListingServer(t, map[string][]string{
		"/builds/": {"a_FULL_UPDATE.zip", "b_FULL.zip", "c_update.zip"},
	})

	art, err := newTestLocator(t).Resolve(context.Background(), srv.URL+"/builds/")
	require.NoError(t, err)
	assert.Equal(t, "a_FULL_UPDATE.zip", art.FileName)
}

func TestResolveKeywordRanking(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		want    string
	}{
		{"hyphenated full update", []string{"x_ota.zip", "y_FULL-update.zip"}, "y_FULL-update.zip"},
		{"full before keywords", []string{"c_ota.zip", "b_full.zip"}, "b_full.zip"},
		{"keyword class in listing order", []string{"n_release.zip", "m_ota.zip"}, "n_release.zip"},
		{"reverse lexicographic fallback", []string{"b.zip", "a.zip"}, "b.zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newListingServer(t, map[string][]string{"/builds/": tt.entries})
			art, err := newTestLocator(t).Resolve(context.Background(), srv.URL+"/builds/")
			require.NoError(t, err)
			assert.Equal(t, tt.want, art.FileName)
		})
	}
}

func TestResolvePrefersHigherEmbeddedVersion(t *testing.T) {
	// Plain string order would pick 1.9.0 here.
	srv := newListingServer(t, map[string][]string{
		"/builds/": {"img_1.9.0.zip", "img_1.10.0.zip"},
	})

	art, err := newTestLocator(t).Resolve(context.Background(), srv.URL+"/builds/")
	require.NoError(t, err)
	assert.Equal(t, "img_1.10.0.zip", art.FileName)
}

func TestResolveDescendsIntoSubdirsSkippingEmptyOnes(t *testing.T) {
	srv := newListingServer(t, map[string][]string{
		"/builds/":       {"docs/", "nightly/"},
		"/builds/docs/":  {"readme.txt"},
		"/builds/nightly/": {"nightly_BUILD.zip"},
	})

	art, err := newTestLocator(t).Resolve(context.Background(), srv.URL+"/builds/")
	require.NoError(t, err)
	assert.Equal(t, "nightly_BUILD.zip", art.FileName)
}

func TestResolveNotFound(t *testing.T) {
	srv := newListingServer(t, map[string][]string{
		"/builds/":      {"notes.txt", "empty/"},
		"/builds/empty/": {},
	})

	_, err := newTestLocator(t).Resolve(context.Background(), srv.URL+"/builds/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveDepthIsBounded(t *testing.T) {
	// Every level lists another loop/; traversal must still terminate.
	tree := map[string][]string{}
	prefix := "/loop/"
	for i := 0; i < 30; i++ {
		tree[prefix] = []string{"loop/"}
		prefix += "loop/"
	}

	l := newTestLocator(t)
	l.MaxDepth = 5
	srv := newListingServer(t, tree)
	_, err := l.Resolve(context.Background(), srv.URL+"/loop/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveTransportErrorAborts(t *testing.T) {
	srv := newListingServer(t, map[string][]string{
		"/builds/": {"missing/"},
	})

	_, err := newTestLocator(t).Resolve(context.Background(), srv.URL+"/builds/")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "404")
}

func TestParseListingIgnoresEscapingLinks(t *testing.T) {
	doc := `<html><body>
		<a href="../">Parent</a>
		<a href="/absolute/path.zip">abs</a>
		<a href="ok.zip">ok.zip</a>
		<a href="sub/">sub/</a>
	</body></html>`

	entries, err := ParseListing(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Name: "ok.zip", IsDirectory: false}, entries[0])
	assert.Equal(t, Entry{Name: "sub/", IsDirectory: true}, entries[1])
}

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive("build.zip"))
	assert.True(t, IsArchive("BUILD.ZIP"))
	assert.True(t, IsArchive("rootfs.tar.gz"))
	assert.False(t, IsArchive("notes.txt"))
	assert.False(t, IsArchive("checksum.zip.md5"))
}
