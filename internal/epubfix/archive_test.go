// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package epubfix

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
}

// writeZip writes entries in order. The mimetype entry, when present, is
// stored uncompressed.
func writeZip(t *testing.T, path string, entries []entry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, e := range entries {
		method := zip.Deflate
		if e.name == mimetypeName {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		require.NoError(t, err)
		_, err = io.WriteString(w, e.body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func readZip(t *testing.T, path string) ([]*zip.File, map[string]string) {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { zr.Close() })
	bodies := make(map[string]string)
	for _, f := range zr.File {
		data, err := readEntry(f)
		require.NoError(t, err)
		bodies[f.Name] = string(data)
	}
	return zr.File, bodies
}

const (
	testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles>
</container>`

	testOPF = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>part1</dc:title>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="p1" href="Text/part1.xhtml" media-type="application/xhtml+xml"/>
    <item id="p2" href="Text/part2.xhtml" media-type="application/xhtml+xml"/>
    <item id="p3" href="Text/part3.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="p1"/>
    <itemref idref="p2"/>
    <itemref idref="p3"/>
  </spine>
</package>`

	testNCX = `<?xml version="1.0" encoding="utf-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <docTitle><text>part1</text></docTitle>
  <navMap>
    <navPoint id="n1"><navLabel><text>part1</text></navLabel><content src="Text/part1.xhtml"/></navPoint>
    <navPoint id="n2"><navLabel><text>part2</text></navLabel><content src="Text/part2.xhtml"/></navPoint>
    <navPoint id="n3"><navLabel><text>part3</text></navLabel><content src="Text/part3.xhtml"/></navPoint>
  </navMap>
</ncx>`

	testPart1 = `<html xmlns="http://www.w3.org/1999/xhtml"><head><title>part1</title></head>
<body><p class="para0">Meeting Notes</p><p class="para1">text</p></body></html>`
	testPart2 = `<html xmlns="http://www.w3.org/1999/xhtml"><head><title>part2</title></head>
<body><h2>Agenda</h2></body></html>`
	testPart3 = `<html xmlns="http://www.w3.org/1999/xhtml"><head><title>part3</title></head>
<body><p>untitled</p></body></html>`
	testCSS = `p { margin: 0 }`
)

func testEntries() []entry {
	return []entry{
		{mimetypeName, epubMimetype},
		{containerName, testContainer},
		{"OEBPS/content.opf", testOPF},
		{"OEBPS/toc.ncx", testNCX},
		{"OEBPS/Text/part1.xhtml", testPart1},
		{"OEBPS/Text/part2.xhtml", testPart2},
		{"OEBPS/Text/part3.xhtml", testPart3},
		{"OEBPS/style.css", testCSS},
	}
}

func TestFixFile(t *testing.T) {
	dir := t.TempDir()
	epub := filepath.Join(dir, "page.epub")
	writeZip(t, epub, testEntries())

	res, err := FixFile(epub, Options{PatchMetadata: true})
	require.NoError(t, err)
	assert.Equal(t, Result{
		Documents:        3,
		Retitled:         2,
		Skipped:          1,
		NavPointsPatched: 2,
		OPFPatched:       true,
		Rewritten:        true,
	}, res)

	files, bodies := readZip(t, epub)
	require.NotEmpty(t, files)
	assert.Equal(t, mimetypeName, files[0].Name)
	assert.Equal(t, zip.Store, files[0].Method)
	assert.Equal(t, epubMimetype, bodies[mimetypeName])
	assert.Len(t, files, len(testEntries()))

	assert.Contains(t, bodies["OEBPS/Text/part1.xhtml"], "<title>Meeting Notes</title>")
	assert.Contains(t, bodies["OEBPS/Text/part2.xhtml"], "<title>Agenda</title>")
	assert.Equal(t, testPart3, bodies["OEBPS/Text/part3.xhtml"])
	assert.Equal(t, testCSS, bodies["OEBPS/style.css"])

	ncx := bodies["OEBPS/toc.ncx"]
	assert.Contains(t, ncx, "<docTitle><text>Meeting Notes</text></docTitle>")
	assert.Contains(t, ncx, "<navLabel><text>Meeting Notes</text></navLabel>")
	assert.Contains(t, ncx, "<navLabel><text>Agenda</text></navLabel>")
	assert.Contains(t, ncx, "<navLabel><text>part3</text></navLabel>")
	assert.Contains(t, bodies["OEBPS/content.opf"], "<dc:title>Meeting Notes</dc:title>")

	leftovers, err := filepath.Glob(filepath.Join(dir, ".epubfix-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFixFile_Idempotent(t *testing.T) {
	epub := filepath.Join(t.TempDir(), "page.epub")
	writeZip(t, epub, testEntries())

	_, err := FixFile(epub, Options{PatchMetadata: true})
	require.NoError(t, err)
	before, err := os.ReadFile(epub)
	require.NoError(t, err)

	res, err := FixFile(epub, Options{PatchMetadata: true})
	require.NoError(t, err)
	assert.False(t, res.Rewritten)
	assert.Zero(t, res.Retitled)
	assert.Zero(t, res.NavPointsPatched)

	after, err := os.ReadFile(epub)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFixFile_WithoutMetadata(t *testing.T) {
	epub := filepath.Join(t.TempDir(), "merged.epub")
	writeZip(t, epub, testEntries())

	res, err := FixFile(epub, Options{})
	require.NoError(t, err)
	assert.False(t, res.OPFPatched)
	assert.True(t, res.Rewritten)

	_, bodies := readZip(t, epub)
	assert.Contains(t, bodies["OEBPS/content.opf"], "<dc:title>part1</dc:title>")
	assert.Contains(t, bodies["OEBPS/toc.ncx"], "<docTitle><text>part1</text></docTitle>")
}

func TestFixFile_MimetypeMovedFirst(t *testing.T) {
	epub := filepath.Join(t.TempDir(), "odd.epub")
	entries := testEntries()
	// Put mimetype last.
	entries = append(entries[1:], entries[0])
	writeZip(t, epub, entries)

	_, err := FixFile(epub, Options{})
	require.NoError(t, err)

	files, _ := readZip(t, epub)
	assert.Equal(t, mimetypeName, files[0].Name)
	assert.Equal(t, zip.Store, files[0].Method)
	assert.Len(t, files, len(entries))
}

func TestFixFile_NoPackageDocument(t *testing.T) {
	epub := filepath.Join(t.TempDir(), "bare.epub")
	writeZip(t, epub, []entry{
		{mimetypeName, epubMimetype},
		{"page.xhtml", testPart1},
		{"nav.ncx", `<ncx><navMap><navPoint><navLabel><text>page</text></navLabel><content src="page.xhtml"/></navPoint></navMap></ncx>`},
	})

	res, err := FixFile(epub, Options{PatchMetadata: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retitled)
	assert.Equal(t, 1, res.NavPointsPatched)
	assert.False(t, res.OPFPatched)

	_, bodies := readZip(t, epub)
	assert.Contains(t, bodies["nav.ncx"], "<text>Meeting Notes</text>")
}

func TestFixFile_NothingToFix(t *testing.T) {
	epub := filepath.Join(t.TempDir(), "plain.epub")
	writeZip(t, epub, []entry{
		{mimetypeName, epubMimetype},
		{"page.xhtml", testPart3},
	})
	info, err := os.Stat(epub)
	require.NoError(t, err)

	res, err := FixFile(epub, Options{})
	require.NoError(t, err)
	assert.False(t, res.Rewritten)
	assert.Equal(t, 1, res.Skipped)

	after, err := os.Stat(epub)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
}

func TestFixFile_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.epub")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := FixFile(path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.epub")
}

func TestFixFile_KeepsModTime(t *testing.T) {
	epub := filepath.Join(t.TempDir(), "page.epub")
	writeZip(t, epub, testEntries())
	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(epub, stamp, stamp))

	res, err := FixFile(epub, Options{PatchMetadata: true})
	require.NoError(t, err)
	require.True(t, res.Rewritten)

	info, err := os.Stat(epub)
	require.NoError(t, err)
	assert.True(t, stamp.Equal(info.ModTime()), "mtime %v, want %v", info.ModTime(), stamp)
}
