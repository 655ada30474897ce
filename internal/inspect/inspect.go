// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inspect summarises an EPUB: metadata, chapters and navigation.
package inspect

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tsawler/tabula/epubdoc"
)

// Entry is one flattened table of contents line.
type Entry struct {
	Title string `json:"title" yaml:"title"`
	Href  string `json:"href" yaml:"href"`
	Depth int    `json:"depth" yaml:"depth"`
}

// Chapter is one spine document.
type Chapter struct {
	Index int    `json:"index" yaml:"index"`
	Href  string `json:"href" yaml:"href"`
	Title string `json:"title" yaml:"title"`
}

// Report describes an EPUB.
type Report struct {
	Path     string    `json:"path" yaml:"path"`
	Size     int64     `json:"size" yaml:"size"`
	Title    string    `json:"title" yaml:"title"`
	Creators []string  `json:"creators,omitempty" yaml:"creators,omitempty"`
	Language string    `json:"language,omitempty" yaml:"language,omitempty"`
	Chapters []Chapter `json:"chapters" yaml:"chapters"`
	TOC      []Entry   `json:"toc" yaml:"toc"`
	Words    int       `json:"words" yaml:"words"`
}

// HumanSize returns the file size in SI units.
func (r Report) HumanSize() string {
	return humanize.Bytes(uint64(r.Size))
}

// Untitled returns the chapters whose title is empty or still looks like
// a file name, which means title repair has not run or found nothing.
func (r Report) Untitled() []Chapter {
	var out []Chapter
	for _, c := range r.Chapters {
		if c.Title == "" || looksLikeFileName(c.Title, c.Href) {
			out = append(out, c)
		}
	}
	return out
}

func looksLikeFileName(title, href string) bool {
	base := href
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return strings.EqualFold(strings.TrimSpace(title), base)
}

// Inspect opens the EPUB at path and builds its Report.
func Inspect(path string) (Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Report{}, fmt.Errorf("inspecting %s: %w", path, err)
	}

	r, err := epubdoc.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer r.Close()

	meta := r.Metadata()
	rep := Report{
		Path:     path,
		Size:     info.Size(),
		Title:    meta.Title,
		Creators: meta.Creator,
		Language: meta.Language,
	}

	for _, ch := range r.Chapters() {
		rep.Chapters = append(rep.Chapters, Chapter{Index: ch.Index, Href: ch.Href, Title: ch.Title})
	}

	if toc := r.TableOfContents(); toc != nil {
		rep.TOC = flatten(toc.Entries, 0, nil)
	}

	if text, err := r.Text(); err == nil {
		rep.Words = len(strings.Fields(text))
	}

	return rep, nil
}

func flatten(entries []epubdoc.TOCEntry, depth int, out []Entry) []Entry {
	for _, e := range entries {
		out = append(out, Entry{Title: strings.TrimSpace(e.Title), Href: e.Href, Depth: depth})
		out = flatten(e.Children, depth+1, out)
	}
	return out
}
