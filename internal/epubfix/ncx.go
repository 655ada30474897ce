// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package epubfix

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	// navLabelRe matches a navPoint label together with the content element
	// that follows it. NCX requires <navLabel> before <content>, so the pair
	// is adjacent for every navPoint, nested or not.
	navLabelRe = regexp.MustCompile(`(?is)<navLabel\b[^>]*>\s*<text\b[^>]*>(.*?)</text\s*>\s*</navLabel\s*>\s*<content\b[^>]*?\bsrc\s*=\s*(?:"([^"]*)"|'([^']*)')`)

	docTitleRe = regexp.MustCompile(`(?is)(<docTitle\b[^>]*>\s*<text\b[^>]*>)(.*?)(</text\s*>)`)
)

// ResolveHref resolves a manifest or NCX reference relative to the archive
// directory baseDir. References with a fragment resolve to "" together with
// hasFragment == true.
func ResolveHref(baseDir, href string) (name string, hasFragment bool) {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return "", true
	}
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	if baseDir == "" {
		baseDir = "."
	}
	return path.Clean(path.Join(baseDir, href)), false
}

// PatchNCX rewrites navigation labels for retitled documents. titles maps
// archive entry names to their new titles. Only fragment-free navPoints are
// considered, and for each document only the last one in file order is
// patched: EpubMerge nests a book-title navPoint around the book's own
// entries, and both point at the same first document.
func PatchNCX(ncx, ncxDir string, titles map[string]string) (string, int) {
	matches := navLabelRe.FindAllStringSubmatchIndex(ncx, -1)
	if len(matches) == 0 || len(titles) == 0 {
		return ncx, 0
	}

	last := make(map[string]int)
	for i, m := range matches {
		src := submatch(ncx, m, 2)
		if src == "" {
			src = submatch(ncx, m, 3)
		}
		name, frag := ResolveHref(ncxDir, src)
		if frag {
			continue
		}
		if _, ok := titles[name]; ok {
			last[name] = i
		}
	}

	var b strings.Builder
	pos, patched := 0, 0
	for i, m := range matches {
		src := submatch(ncx, m, 2)
		if src == "" {
			src = submatch(ncx, m, 3)
		}
		name, frag := ResolveHref(ncxDir, src)
		if frag || last[name] != i {
			continue
		}
		title, ok := titles[name]
		if !ok || PlainText(ncx[m[2]:m[3]]) == title {
			continue
		}
		b.WriteString(ncx[pos:m[2]])
		b.WriteString(html.EscapeString(title))
		pos = m[3]
		patched++
	}
	if patched == 0 {
		return ncx, 0
	}
	b.WriteString(ncx[pos:])
	return b.String(), patched
}

// PatchNCXDocTitle replaces the NCX docTitle text.
func PatchNCXDocTitle(ncx, title string) (string, bool) {
	loc := docTitleRe.FindStringSubmatchIndex(ncx)
	if loc == nil || PlainText(ncx[loc[4]:loc[5]]) == title {
		return ncx, false
	}
	return ncx[:loc[4]] + html.EscapeString(title) + ncx[loc[5]:], true
}

func submatch(s string, loc []int, group int) string {
	if loc[2*group] < 0 {
		return ""
	}
	return s[loc[2*group]:loc[2*group+1]]
}
