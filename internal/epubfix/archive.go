// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package epubfix

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	mimetypeName  = "mimetype"
	epubMimetype  = "application/epub+zip"
	containerName = "META-INF/container.xml"
	ncxMediaType  = "application/x-dtbncx+xml"
)

var (
	rootfileRe = regexp.MustCompile(`(?is)<rootfile\b[^>]*?\bfull-path\s*=\s*"([^"]+)"`)
	itemRe     = regexp.MustCompile(`(?is)<item\b[^>]*>`)
	itemrefRe  = regexp.MustCompile(`(?is)<itemref\b[^>]*>`)
	attrRe     = regexp.MustCompile(`(?is)\b([a-z:-]+)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// Options configures FixFile.
type Options struct {
	// Class is the title paragraph class. Empty selects DefaultClass.
	Class string

	// PatchMetadata also rewrites the OPF dc:title and NCX docTitle with the
	// title of the first retitled document in spine order. Use it for
	// single-page EPUBs, not for merged books whose title is set by the
	// merge tool.
	PatchMetadata bool

	// Logger receives per-entry warnings. Nil discards them.
	Logger *slog.Logger
}

// Result summarises what FixFile changed.
type Result struct {
	Documents        int
	Retitled         int
	Skipped          int
	NavPointsPatched int
	OPFPatched       bool
	Rewritten        bool
}

// manifestItem is the subset of an OPF <item> the fixer needs.
type manifestItem struct {
	id        string
	name      string // archive entry name
	mediaType string
}

// archive is an opened EPUB with its package structure located.
type archive struct {
	zr      *zip.ReadCloser
	entries map[string]*zip.File
	opfName string
	ncxName string
	spine   []string // archive entry names in reading order
}

// FixFile repairs the titles inside the EPUB at epubPath and rewrites it in
// place when anything changed. The rewritten file keeps the original
// modification time so date ordering of merge inputs is unaffected.
func FixFile(epubPath string, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var res Result

	info, err := os.Stat(epubPath)
	if err != nil {
		return res, fmt.Errorf("opening %s: %w", epubPath, err)
	}

	a, err := openArchive(epubPath)
	if err != nil {
		return res, err
	}
	defer a.zr.Close()

	extractor := NewExtractor(opts.Class)
	modified := make(map[string][]byte)
	titles := make(map[string]string)

	for _, f := range a.zr.File {
		if !isContentDocument(f.Name) {
			continue
		}
		res.Documents++

		data, err := readEntry(f)
		if err != nil {
			log.Warn("unreadable content document",
				slog.String("epub", epubPath),
				slog.String("entry", f.Name),
				slog.String("error", err.Error()),
			)
			res.Skipped++
			continue
		}

		markup := string(data)
		title, ok := extractor.Title(markup)
		if !ok {
			log.Debug("no title paragraph", slog.String("epub", epubPath), slog.String("entry", f.Name))
			res.Skipped++
			continue
		}
		titles[f.Name] = title

		if out, changed := RewriteTitle(markup, title); changed {
			modified[f.Name] = []byte(out)
			res.Retitled++
		}
	}

	firstTitle := ""
	for _, name := range a.spine {
		if t, ok := titles[name]; ok {
			firstTitle = t
			break
		}
	}

	if a.ncxName != "" && len(titles) > 0 {
		if f := a.entries[a.ncxName]; f != nil {
			data, err := readEntry(f)
			if err != nil {
				log.Warn("unreadable ncx", slog.String("epub", epubPath), slog.String("error", err.Error()))
			} else {
				ncx, n := PatchNCX(string(data), path.Dir(a.ncxName), titles)
				changed := n > 0
				if opts.PatchMetadata && firstTitle != "" {
					var docChanged bool
					ncx, docChanged = PatchNCXDocTitle(ncx, firstTitle)
					changed = changed || docChanged
				}
				if changed {
					modified[a.ncxName] = []byte(ncx)
				}
				res.NavPointsPatched = n
			}
		}
	}

	if opts.PatchMetadata && firstTitle != "" && a.opfName != "" {
		if f := a.entries[a.opfName]; f != nil {
			data, err := readEntry(f)
			if err != nil {
				log.Warn("unreadable package document", slog.String("epub", epubPath), slog.String("error", err.Error()))
			} else if opf, changed := PatchOPFTitle(string(data), firstTitle); changed {
				modified[a.opfName] = []byte(opf)
				res.OPFPatched = true
			}
		}
	}

	if len(modified) == 0 {
		return res, nil
	}

	tmpPath, err := writeArchive(epubPath, a.zr, modified)
	if err != nil {
		return res, err
	}
	a.zr.Close()
	if err := os.Rename(tmpPath, epubPath); err != nil {
		os.Remove(tmpPath)
		return res, fmt.Errorf("replacing %s: %w", epubPath, err)
	}
	if err := os.Chtimes(epubPath, time.Time{}, info.ModTime()); err != nil {
		log.Warn("could not restore modification time", slog.String("epub", epubPath), slog.String("error", err.Error()))
	}
	res.Rewritten = true
	return res, nil
}

func openArchive(epubPath string) (*archive, error) {
	zr, err := zip.OpenReader(epubPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", epubPath, err)
	}
	a := &archive{zr: zr, entries: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		a.entries[f.Name] = f
	}

	a.opfName = a.findOPF()
	if a.opfName != "" {
		if f := a.entries[a.opfName]; f != nil {
			if data, err := readEntry(f); err == nil {
				a.readPackage(string(data))
			}
		}
	}
	if a.ncxName == "" {
		for _, f := range zr.File {
			if strings.EqualFold(path.Ext(f.Name), ".ncx") {
				a.ncxName = f.Name
				break
			}
		}
	}
	return a, nil
}

// findOPF locates the package document via container.xml, falling back to
// the first .opf entry.
func (a *archive) findOPF() string {
	if f := a.entries[containerName]; f != nil {
		if data, err := readEntry(f); err == nil {
			if m := rootfileRe.FindStringSubmatch(string(data)); m != nil {
				if name, _ := ResolveHref("", m[1]); a.entries[name] != nil {
					return name
				}
			}
		}
	}
	for _, f := range a.zr.File {
		if strings.EqualFold(path.Ext(f.Name), ".opf") {
			return f.Name
		}
	}
	return ""
}

// readPackage pulls the manifest, spine order and NCX location out of the
// OPF markup.
func (a *archive) readPackage(opf string) {
	base := path.Dir(a.opfName)
	byID := make(map[string]manifestItem)
	for _, tag := range itemRe.FindAllString(opf, -1) {
		attrs := parseAttrs(tag)
		name, frag := ResolveHref(base, attrs["href"])
		if frag || attrs["href"] == "" {
			continue
		}
		item := manifestItem{id: attrs["id"], name: name, mediaType: attrs["media-type"]}
		byID[item.id] = item
		if item.mediaType == ncxMediaType && a.ncxName == "" {
			a.ncxName = item.name
		}
	}
	for _, tag := range itemrefRe.FindAllString(opf, -1) {
		if item, ok := byID[parseAttrs(tag)["idref"]]; ok {
			a.spine = append(a.spine, item.name)
		}
	}
}

func parseAttrs(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(tag, -1) {
		val := m[2]
		if val == "" {
			val = m[3]
		}
		attrs[strings.ToLower(m[1])] = val
	}
	return attrs
}

// writeArchive writes a copy of zr with modified entries replaced to a temp
// file next to epubPath and returns its path. The mimetype entry is written
// first and stored uncompressed, as OCF requires.
func writeArchive(epubPath string, zr *zip.ReadCloser, modified map[string][]byte) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(epubPath), ".epubfix-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}

	zw := zip.NewWriter(tmp)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: mimetypeName, Method: zip.Store})
	if err != nil {
		return fail(fmt.Errorf("writing mimetype: %w", err))
	}
	if _, err := io.WriteString(w, epubMimetype); err != nil {
		return fail(fmt.Errorf("writing mimetype: %w", err))
	}

	for _, f := range zr.File {
		if f.Name == mimetypeName {
			continue
		}
		data, ok := modified[f.Name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				return fail(fmt.Errorf("copying %s: %w", f.Name, err))
			}
			continue
		}
		hdr := &zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fail(fmt.Errorf("writing %s: %w", f.Name, err))
		}
		if _, err := w.Write(data); err != nil {
			return fail(fmt.Errorf("writing %s: %w", f.Name, err))
		}
	}

	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("finishing archive: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return tmpPath, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func isContentDocument(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xhtml", ".html", ".htm":
		return true
	}
	return false
}
