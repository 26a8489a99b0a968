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
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Entry is one row of a repository directory listing. Name keeps the
// trailing slash for directories, matching the server's anchor text.
type Entry struct {
	Name        string
	IsDirectory bool
}

// archiveSuffixes are the artifact payload formats build systems publish.
var archiveSuffixes = []string{".zip", ".tgz", ".tar.gz", ".tar.xz"}

// ParseListing extracts the entries of an HTML directory listing. Every
// anchor's href becomes an entry; hrefs that escape the listed directory
// (absolute paths, parent references) are dropped.
func ParseListing(r io.Reader) ([]Entry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if e, ok := entryFromHref(attr.Val); ok {
					entries = append(entries, e)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return entries, nil
}

func entryFromHref(href string) (Entry, bool) {
	if href == "" || strings.HasPrefix(href, "/") || strings.HasPrefix(href, "..") {
		return Entry{}, false
	}
	return Entry{
		Name:        href,
		IsDirectory: strings.HasSuffix(href, "/"),
	}, true
}

// IsArchive reports whether name looks like a downloadable build payload.
func IsArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
