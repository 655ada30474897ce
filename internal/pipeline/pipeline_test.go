// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/onenote2epub/internal/discover"
	"github.com/pdiddy/onenote2epub/internal/journal"
	"github.com/pdiddy/onenote2epub/internal/merge"
	"github.com/pdiddy/onenote2epub/internal/workspace"
	"github.com/pdiddy/onenote2epub/pkg/types"
)

// --- fixtures ---

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	if body, ok := files["mimetype"]; ok {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	for name, body := range files {
		if name == "mimetype" {
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func writeDocx(t *testing.T, path string) {
	t.Helper()
	writeZip(t, path, map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml": `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
			`<w:body><w:p><w:r><w:t>x</w:t></w:r></w:p></w:body></w:document>`,
	})
}

// writePageEpub writes an EPUB whose single page is titled after its file
// name but whose title paragraph says "Page <stem>".
func writePageEpub(t *testing.T, path string) {
	t.Helper()
	stem := strings.TrimSuffix(filepath.Base(path), ".epub")
	writeZip(t, path, map[string]string{
		"mimetype": "application/epub+zip",
		"page.xhtml": fmt.Sprintf(`<html><head><title>%s</title></head>`+
			`<body><p class="para0">Page %s</p></body></html>`, stem, stem),
	})
}

// writeUntitledEpub writes a page EPUB without a title paragraph.
func writeUntitledEpub(t *testing.T, path string) {
	t.Helper()
	stem := strings.TrimSuffix(filepath.Base(path), ".epub")
	writeZip(t, path, map[string]string{
		"mimetype": "application/epub+zip",
		"page.xhtml": fmt.Sprintf(`<html><head><title>%s</title></head>`+
			`<body><p class="body">just text</p></body></html>`, stem),
	})
}

type fakeConverter struct {
	t        *testing.T
	fail     map[string]bool
	untitled map[string]bool

	// clock, when set, stamps each output one second after the previous.
	clock time.Time
}

func (f *fakeConverter) Convert(ctx context.Context, docxPath, outDir string) (string, error) {
	base := filepath.Base(docxPath)
	if f.fail[base] {
		return "", errors.New("soffice: exit status 1")
	}
	out := filepath.Join(outDir, strings.TrimSuffix(base, ".docx")+".epub")
	if f.untitled[base] {
		writeUntitledEpub(f.t, out)
	} else {
		writePageEpub(f.t, out)
	}
	if !f.clock.IsZero() {
		f.clock = f.clock.Add(time.Second)
		if err := os.Chtimes(out, f.clock, f.clock); err != nil {
			return "", err
		}
	}
	return out, nil
}

type mergeCall struct {
	folder string
	opts   merge.Options
	epubs  []string
}

type fakeMerger struct {
	t     *testing.T
	fail  map[string]bool
	calls []mergeCall
}

func (f *fakeMerger) MergeFolder(ctx context.Context, folder string, opts merge.Options) (string, error) {
	epubs, err := discover.EpubFiles(folder)
	if err != nil {
		return "", err
	}
	if opts.Sort != "" {
		if err := discover.SortEpubs(epubs, opts.Sort); err != nil {
			return "", err
		}
	}
	f.calls = append(f.calls, mergeCall{folder: folder, opts: opts, epubs: epubs})
	if len(epubs) == 0 {
		return "", merge.ErrNoEpubs
	}
	if f.fail[filepath.Base(folder)] {
		return "", errors.New("epubmerge: plugin crashed")
	}
	writePageEpub(f.t, opts.Output)
	return opts.Output, nil
}

type memJournal struct {
	mu       sync.Mutex
	roots    []string
	docs     []types.Document
	statuses map[string]string
	messages map[string]string
}

func newMemJournal() *memJournal {
	return &memJournal{statuses: map[string]string{}, messages: map[string]string{}}
}

func (j *memJournal) BeginRun(ctx context.Context, root string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.roots = append(j.roots, root)
	return fmt.Sprintf("run-%d", len(j.roots)), nil
}

func (j *memJournal) RecordDocument(ctx context.Context, runID string, doc types.Document) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.docs = append(j.docs, doc)
	return nil
}

func (j *memJournal) FinishRun(ctx context.Context, runID, status string, books int, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.statuses[runID] = status
	j.messages[runID] = message
	return nil
}

func (j *memJournal) count(stage types.Stage, status types.ConversionStatus) int {
	n := 0
	for _, d := range j.docs {
		if d.Stage == stage && d.Status == status {
			n++
		}
	}
	return n
}

// notebook lays out three export folders, two sharing a base name.
func notebook(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeDocx(t, filepath.Join(root, "Notebook", "Section A", "a.docx"))
	writeDocx(t, filepath.Join(root, "Notebook", "Section A", "b.docx"))
	writeDocx(t, filepath.Join(root, "Notebook", "Section B", "c.docx"))
	writeDocx(t, filepath.Join(root, "Other", "Section A", "d.docx"))
	return root
}

type harness struct {
	p       *Pipeline
	cfg     types.Config
	merger  *fakeMerger
	journal *memJournal
	out     *bytes.Buffer
}

func newHarness(t *testing.T, mutate func(*types.Config, *fakeConverter, *fakeMerger)) harness {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.WorkDir = t.TempDir()

	conv := &fakeConverter{t: t, fail: map[string]bool{}, untitled: map[string]bool{}}
	mg := &fakeMerger{t: t, fail: map[string]bool{}}
	if mutate != nil {
		mutate(&cfg, conv, mg)
	}
	j := newMemJournal()
	var out bytes.Buffer

	p, err := New(Options{Config: cfg, Converter: conv, Merger: mg, Journal: j, Out: &out})
	require.NoError(t, err)
	return harness{p: p, cfg: cfg, merger: mg, journal: j, out: &out}
}

// --- tests ---

func TestRun(t *testing.T) {
	root := notebook(t)
	h := newHarness(t, nil)

	sum, err := h.p.Run(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, sum.OK())
	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, 3, sum.Folders)
	assert.Equal(t, 4, sum.Converted)
	assert.Zero(t, sum.Failed)
	// Four pages before merge, one page per merged book after.
	assert.Equal(t, 7, sum.Retitled)

	final := filepath.Join(h.cfg.WorkDir, "finalEpubs")
	assert.Equal(t, []string{
		filepath.Join(final, "Section A.epub"),
		filepath.Join(final, "Section B.epub"),
		filepath.Join(final, "Section A-2.epub"),
	}, sum.Books)
	for _, b := range sum.Books {
		assert.FileExists(t, b)
	}

	require.Len(t, h.merger.calls, 3)
	first := h.merger.calls[0]
	assert.Equal(t, "Section A", first.opts.Title)
	assert.Equal(t, "OneNote", first.opts.Author)
	assert.Equal(t, discover.SortDateReverse, first.opts.Sort)
	assert.Len(t, first.epubs, 2)

	intern := filepath.Join(h.cfg.WorkDir, "internEpubs")
	entries, err := os.ReadDir(intern)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory is cleared")

	assert.Equal(t, journal.StatusSucceeded, h.journal.statuses["run-1"])
	assert.Equal(t, 4, h.journal.count(types.StageConvert, types.ConversionDone))
	assert.Equal(t, 3, h.journal.count(types.StageMerge, types.ConversionDone))
	assert.Equal(t, 7, h.journal.count(types.StageTitles, types.ConversionDone))

	out := h.out.String()
	assert.Contains(t, out, "converted: a.docx")
	assert.Contains(t, out, "merged:    Section A-2.epub")
}

func TestRun_FailuresAreCounted(t *testing.T) {
	root := notebook(t)
	h := newHarness(t, func(cfg *types.Config, conv *fakeConverter, mg *fakeMerger) {
		conv.fail["c.docx"] = true
		mg.fail["Section A-2"] = true
	})

	sum, err := h.p.Run(context.Background(), root)
	require.NoError(t, err)
	assert.False(t, sum.OK())
	assert.Equal(t, 3, sum.Converted)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.MergeFailures)
	assert.Len(t, sum.Books, 1)

	// Section B converted nothing, so it is never merged.
	require.Len(t, h.merger.calls, 2)
	assert.Equal(t, journal.StatusFailed, h.journal.statuses["run-1"])
	assert.Contains(t, h.journal.messages["run-1"], "1 documents failed, 1 merges failed")
	assert.Contains(t, h.out.String(), "failed:    Section A-2")
}

func TestRun_TitleStagesDisabled(t *testing.T) {
	root := notebook(t)
	h := newHarness(t, func(cfg *types.Config, _ *fakeConverter, _ *fakeMerger) {
		cfg.Titles.BeforeMerge = false
		cfg.Titles.AfterMerge = false
	})

	sum, err := h.p.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Zero(t, sum.Retitled)
	assert.Zero(t, h.journal.count(types.StageTitles, types.ConversionDone))
}

func TestRun_ClearsStaleOutput(t *testing.T) {
	root := notebook(t)
	h := newHarness(t, nil)

	stale := filepath.Join(h.cfg.WorkDir, "finalEpubs", "old.epub")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	_, err := h.p.Run(context.Background(), root)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestRun_NoFolders(t *testing.T) {
	h := newHarness(t, nil)

	sum, err := h.p.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, sum.Folders)
	assert.Empty(t, sum.Books)
	assert.Empty(t, h.merger.calls)
}

func TestRun_Errors(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.p.Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, discover.ErrNotDirectory)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.p.Run(ctx, notebook(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, journal.StatusFailed, h.journal.statuses["run-1"])
}

func TestRun_Locked(t *testing.T) {
	h := newHarness(t, nil)
	lock, err := workspace.Lock(h.cfg.WorkDir)
	require.NoError(t, err)
	defer lock.Release()

	_, err = h.p.Run(context.Background(), notebook(t))
	require.ErrorIs(t, err, workspace.ErrLocked)
}

func TestCombine(t *testing.T) {
	root := notebook(t)
	h := newHarness(t, nil)
	_, err := h.p.Run(context.Background(), root)
	require.NoError(t, err)

	out, err := h.p.Combine(context.Background(), "All Notes", "Me", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(h.cfg.WorkDir, "All Notes.epub"), out)
	assert.FileExists(t, out)

	call := h.merger.calls[len(h.merger.calls)-1]
	assert.Equal(t, filepath.Join(h.cfg.WorkDir, "finalEpubs"), call.folder)
	assert.Equal(t, "All Notes", call.opts.Title)
	assert.Equal(t, "Me", call.opts.Author)
	assert.Len(t, call.epubs, 3)

	entries, err := os.ReadDir(filepath.Join(h.cfg.WorkDir, "finalEpubs"))
	require.NoError(t, err)
	assert.Empty(t, entries, "final directory is cleared")

	assert.Equal(t, journal.StatusSucceeded, h.journal.statuses["run-2"])
	assert.Equal(t, 1, h.journal.count(types.StageCombine, types.ConversionDone))
}

func TestCombine_Errors(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.p.Combine(context.Background(), " ", "", "")
	require.Error(t, err)

	inside := filepath.Join(h.cfg.WorkDir, "finalEpubs", "all.epub")
	_, err = h.p.Combine(context.Background(), "All", "", inside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cleared afterwards")

	require.NoError(t, os.MkdirAll(filepath.Join(h.cfg.WorkDir, "finalEpubs"), 0o755))
	_, err = h.p.Combine(context.Background(), "All", "", "")
	require.ErrorIs(t, err, merge.ErrNoEpubs)
	assert.Equal(t, journal.StatusFailed, h.journal.statuses["run-1"])
}

func TestNew_Validation(t *testing.T) {
	cfg := types.DefaultConfig()
	_, err := New(Options{Config: cfg})
	require.Error(t, err)

	cfg.Merge.Sort = "random"
	_, err = New(Options{Config: cfg, Converter: &fakeConverter{t: t}, Merger: &fakeMerger{t: t}})
	require.Error(t, err)
}

func TestTerminalWriter(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.Nil(t, TerminalWriter(f))
	assert.Nil(t, TerminalWriter(nil))
}

func TestRun_TitleRepairKeepsDateOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.docx", "b.docx", "c.docx"} {
		writeDocx(t, filepath.Join(root, "Journal", name))
	}
	h := newHarness(t, func(cfg *types.Config, conv *fakeConverter, mg *fakeMerger) {
		conv.untitled["b.docx"] = true
		conv.clock = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	})
	require.Equal(t, string(discover.SortDateReverse), h.cfg.Merge.Sort)

	sum, err := h.p.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Converted)

	require.Len(t, h.merger.calls, 1)
	var order []string
	for _, p := range h.merger.calls[0].epubs {
		order = append(order, filepath.Base(p))
	}
	assert.Equal(t, []string{"c.epub", "b.epub", "a.epub"}, order)
}
