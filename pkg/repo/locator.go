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

/*Package repo locates build artifacts inside an HTTP directory-listing
repository.

A build link rarely points at the payload itself: it names a directory whose
layout varies by build flavor. The Locator walks that tree with a fixed
priority policy (device-tier subfolders first, then update-package naming
conventions) and returns the single file worth downloading.
*/
package repo

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/buildflash/buildflash/pkg/getter"
)

// ErrNotFound indicates no artifact was resolvable anywhere in the searched
// subtree.
var ErrNotFound = errors.New("no build artifact found")

// DefaultMaxDepth bounds the directory traversal. Listing pages are produced
// by a server we do not control; a malformed or self-referential listing must
// not walk forever.
const DefaultMaxDepth = 10

// updateKeywords mark archives that are likely update payloads, in the
// naming conventions build systems actually use.
var updateKeywords = []string{"UPDATE", "PACKAGE", "BUILD", "RELEASE", "OTA"}

// ResolvedArtifact is the file chosen for download.
type ResolvedArtifact struct {
	// URL is the absolute download location.
	URL string
	// FileName is the artifact's base name as listed by the server.
	FileName string
}

// Locator resolves a directory URL to a downloadable artifact.
type Locator struct {
	// Getter fetches listing pages.
	Getter getter.Getter
	// MaxDepth caps traversal depth; 0 means DefaultMaxDepth.
	MaxDepth int
	// Log receives human-readable trace lines. May be nil.
	Log func(string, ...interface{})
}

type frame struct {
	url   string
	depth int
}

// Resolve walks the listing tree under dirURL and returns the artifact to
// download.
//
// Per directory, first match wins: a user/ child (absolute priority), then a
// gms/ child, then archive files ranked by naming convention
// (FULL_UPDATE > FULL > update keywords > newest-looking of the rest), then
// the remaining subdirectories depth-first. Subtrees that turn up empty are
// skipped; transport failures abort the whole search.
func (l *Locator) Resolve(ctx context.Context, dirURL string) (*ResolvedArtifact, error) {
	maxDepth := l.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var misses *multierror.Error
	stack := []frame{{url: ensureSlash(dirURL), depth: 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > maxDepth {
			l.logf("Skipping %s: exceeds max search depth %d", f.url, maxDepth)
			misses = multierror.Append(misses, errors.Errorf("%s deeper than %d levels", f.url, maxDepth))
			continue
		}

		l.logf("Searching for build files in: %s", f.url)
		entries, err := l.list(ctx, f.url)
		if err != nil {
			return nil, err
		}

		var archives []string
		var subdirs []string
		for _, e := range entries {
			switch {
			case e.IsDirectory:
				subdirs = append(subdirs, e.Name)
			case IsArchive(e.Name):
				archives = append(archives, e.Name)
			}
		}

		// A device-tier subfolder supersedes everything else in this
		// directory, including archives sitting next to it.
		if tier, ok := tierSubdir(subdirs); ok {
			l.logf("Found %s directory, navigating into it...", tier)
			stack = append(stack, frame{url: f.url + tier, depth: f.depth + 1})
			continue
		}

		if name, ok := pickArchive(archives); ok {
			l.logf("Selected artifact: %s", name)
			return &ResolvedArtifact{URL: f.url + name, FileName: name}, nil
		}

		if len(subdirs) > 0 {
			l.logf("Searching %d other subdirectories...", len(subdirs))
		} else {
			misses = multierror.Append(misses, errors.Errorf("nothing in %s", f.url))
		}
		// Push in reverse so the listing's first subdirectory is explored
		// first.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, frame{url: f.url + subdirs[i], depth: f.depth + 1})
		}
	}

	if misses != nil {
		l.logf("Search exhausted: %s", misses.Error())
	}
	return nil, errors.Wrapf(ErrNotFound, "in %s", dirURL)
}

func (l *Locator) list(ctx context.Context, dirURL string) ([]Entry, error) {
	body, err := l.Getter.Get(ctx, dirURL, getter.WithURL(dirURL))
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", dirURL)
	}
	entries, err := ParseListing(body)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing listing of %s", dirURL)
	}
	return entries, nil
}

// tierSubdir returns the single subdirectory that preempts the rest of the
// directory, if present. user/ builds outrank gms/ builds.
func tierSubdir(subdirs []string) (string, bool) {
	for _, want := range []string{"user/", "gms/"} {
		for _, s := range subdirs {
			if s == want {
				return want, true
			}
		}
	}
	return "", false
}

// pickArchive ranks the archives of one directory. Listing order breaks ties
// within a keyword class; the catch-all class takes the newest-looking name
// instead.
func pickArchive(archives []string) (string, bool) {
	for _, name := range archives {
		upper := strings.ToUpper(name)
		if strings.Contains(upper, "FULL_UPDATE") || strings.Contains(upper, "FULL-UPDATE") {
			return name, true
		}
	}
	for _, name := range archives {
		if strings.Contains(strings.ToUpper(name), "FULL") {
			return name, true
		}
	}
	for _, name := range archives {
		upper := strings.ToUpper(name)
		for _, keyword := range updateKeywords {
			if strings.Contains(upper, keyword) {
				return name, true
			}
		}
	}
	if len(archives) > 0 {
		sorted := make([]string, len(archives))
		copy(sorted, archives)
		sort.Slice(sorted, func(i, j int) bool {
			return newerName(sorted[i], sorted[j])
		})
		return sorted[0], true
	}
	return "", false
}

var versionToken = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// newerName reports whether a names a more recent build than b. Embedded
// version numbers are compared as semver when both sides carry one;
// otherwise this falls back to reverse-lexicographic order, which
// approximates recency for date- or build-number-suffixed names but is not a
// verified timestamp comparison.
func newerName(a, b string) bool {
	va := versionToken.FindString(a)
	vb := versionToken.FindString(b)
	if va != "" && vb != "" {
		sva, erra := semver.NewVersion(va)
		svb, errb := semver.NewVersion(vb)
		if erra == nil && errb == nil && !sva.Equal(svb) {
			return sva.GreaterThan(svb)
		}
	}
	return a > b
}

func (l *Locator) logf(format string, v ...interface{}) {
	if l.Log != nil {
		l.Log(format, v...)
	}
}

func ensureSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
