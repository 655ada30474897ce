// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the whole conversion: discover OneNote export
// folders, convert each document, merge each folder into a book, repair
// titles and clean up.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/onenote2epub/internal/convert"
	"github.com/pdiddy/onenote2epub/internal/discover"
	"github.com/pdiddy/onenote2epub/internal/epubfix"
	"github.com/pdiddy/onenote2epub/internal/journal"
	"github.com/pdiddy/onenote2epub/internal/logging"
	"github.com/pdiddy/onenote2epub/internal/merge"
	"github.com/pdiddy/onenote2epub/internal/workspace"
	"github.com/pdiddy/onenote2epub/pkg/types"
)

// Merger merges a folder of EPUBs into one book.
type Merger interface {
	MergeFolder(ctx context.Context, folder string, opts merge.Options) (string, error)
}

// Journal receives run records. *journal.Store implements it.
type Journal interface {
	BeginRun(ctx context.Context, root string) (string, error)
	RecordDocument(ctx context.Context, runID string, doc types.Document) error
	FinishRun(ctx context.Context, runID, status string, books int, message string) error
}

// Fixer repairs titles in one EPUB. epubfix.FixFile is the default.
type Fixer func(path string, opts epubfix.Options) (epubfix.Result, error)

// Options wires a Pipeline.
type Options struct {
	Config    types.Config
	Converter convert.Converter
	Merger    Merger

	// Journal is optional.
	Journal Journal

	// Fix overrides epubfix.FixFile.
	Fix Fixer

	Logger *slog.Logger

	// Out receives per-item status lines.
	Out io.Writer

	// Progress receives progress bars. Nil disables them.
	Progress io.Writer
}

// Pipeline runs conversions for one work directory.
type Pipeline struct {
	cfg      types.Config
	conv     convert.Converter
	merger   Merger
	journal  Journal
	fix      Fixer
	log      *slog.Logger
	out      io.Writer
	progress io.Writer
}

// New validates opts and returns a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Converter == nil {
		return nil, errors.New("pipeline: converter is required")
	}
	if opts.Merger == nil {
		return nil, errors.New("pipeline: merger is required")
	}
	if _, err := discover.ParseSortMode(opts.Config.Merge.Sort); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:      opts.Config,
		conv:     opts.Converter,
		merger:   opts.Merger,
		journal:  opts.Journal,
		fix:      opts.Fix,
		log:      opts.Logger,
		out:      opts.Out,
		progress: opts.Progress,
	}
	if p.fix == nil {
		p.fix = epubfix.FixFile
	}
	if p.log == nil {
		p.log = logging.Discard()
	}
	if p.out == nil {
		p.out = io.Discard
	}
	return p, nil
}

// Summary is the outcome of Run.
type Summary struct {
	RunID         string
	Folders       int
	Converted     int
	Failed        int
	Retitled      int
	Books         []string
	MergeFailures int
	Duration      time.Duration
}

// OK reports whether every document converted and every folder merged.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.MergeFailures == 0
}

func (p *Pipeline) workspace() (*workspace.Workspace, error) {
	return workspace.New(p.cfg.WorkDir, p.cfg.InternDir, p.cfg.FinalDir)
}

// Run converts every OneNote export folder under root into final/<name>.epub.
// Per-document and per-folder failures are logged and counted; only setup,
// discovery and context errors are returned.
func (p *Pipeline) Run(ctx context.Context, root string) (Summary, error) {
	start := time.Now()
	var sum Summary

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return sum, fmt.Errorf("resolving %s: %w", root, err)
	}
	if info, err := os.Stat(absRoot); err != nil || !info.IsDir() {
		return sum, fmt.Errorf("root %s: %w", root, discover.ErrNotDirectory)
	}

	ws, err := p.workspace()
	if err != nil {
		return sum, err
	}
	lock, err := workspace.Lock(ws.Root)
	if err != nil {
		return sum, err
	}
	defer lock.Release()

	if err := ws.Prepare(p.log); err != nil {
		return sum, err
	}

	sum.RunID = p.beginRun(ctx, absRoot)
	runErr := p.run(ctx, ws, absRoot, &sum)
	sum.Duration = time.Since(start)
	p.finishRun(sum, runErr)

	if runErr != nil {
		return sum, runErr
	}
	p.log.Info("run complete",
		slog.Int("folders", sum.Folders),
		slog.Int("converted", sum.Converted),
		slog.Int("failed", sum.Failed),
		slog.Int("books", len(sum.Books)),
		slog.Int("merge_failures", sum.MergeFailures),
		slog.Duration("duration", sum.Duration),
		logging.Event("run_done"),
	)
	return sum, nil
}

func (p *Pipeline) run(ctx context.Context, ws *workspace.Workspace, root string, sum *Summary) error {
	folders, err := discover.FindDocxFolders(root)
	if err != nil {
		return err
	}
	sum.Folders = len(folders)
	if len(folders) == 0 {
		p.log.Warn("no docx folders found", slog.String(logging.FieldFolder, root))
		return nil
	}
	p.log.Info("discovered folders", slog.Int("count", len(folders)), slog.String("root", root))

	bookDirs, err := p.convertAll(ctx, ws, folders, sum)
	if err != nil {
		return err
	}
	if err := p.mergeAll(ctx, ws, bookDirs, sum); err != nil {
		return err
	}

	if _, err := workspace.ClearContents(ws.Intern, p.log); err != nil {
		p.log.Warn("could not clear scratch directory", slog.String("path", ws.Intern), logging.Error(err))
	}
	return nil
}

// convertAll converts every folder into its own scratch directory and
// returns the directories that received at least one EPUB.
func (p *Pipeline) convertAll(ctx context.Context, ws *workspace.Workspace, folders []string, sum *Summary) ([]string, error) {
	opts := convert.Options{
		DeleteOriginal: p.cfg.LibreOffice.DeleteOriginal,
		Logger:         p.log,
	}
	bar := newBar(p.progress, len(folders), "converting")
	defer bar.finish()

	var bookDirs []string
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir, err := ws.BookDir(folder)
		if err != nil {
			return nil, err
		}

		res, err := convert.ConvertFolder(ctx, p.conv, folder, dir, opts, p.out)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.Error("folder conversion failed", slog.String(logging.FieldFolder, folder), logging.Error(err))
			bar.add()
			continue
		}
		sum.Converted += res.Converted
		sum.Failed += res.Failed
		for _, doc := range res.Documents {
			p.record(ctx, sum.RunID, doc)
			if doc.Status == types.ConversionDone && p.cfg.Titles.BeforeMerge {
				sum.Retitled += p.fixTitles(ctx, sum.RunID, doc.Output, true)
			}
		}
		if res.Converted > 0 {
			bookDirs = append(bookDirs, dir)
		} else {
			p.log.Warn("no documents converted, skipping merge", slog.String(logging.FieldFolder, folder))
		}
		bar.add()
	}
	return bookDirs, nil
}

func (p *Pipeline) mergeAll(ctx context.Context, ws *workspace.Workspace, bookDirs []string, sum *Summary) error {
	bar := newBar(p.progress, len(bookDirs), "merging")
	defer bar.finish()

	for _, dir := range bookDirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(dir)
		opts := merge.FromConfig(p.cfg.Merge)
		opts.Title = name
		opts.Output = ws.FinalPath(dir)

		doc := types.Document{Source: dir, Stage: types.StageMerge}
		out, err := p.merger.MergeFolder(ctx, dir, opts)
		doc.Finished = time.Now()
		switch {
		case errors.Is(err, merge.ErrNoEpubs):
			p.log.Warn("nothing to merge", slog.String(logging.FieldFolder, dir))
			doc.Status = types.ConversionSkipped
			doc.Detail = err.Error()
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Error("merge failed",
				slog.String(logging.FieldFolder, dir),
				logging.Error(err),
				logging.Event("merge_failed"),
			)
			fmt.Fprintf(p.out, "failed:    %s (%v)\n", name, err)
			sum.MergeFailures++
			doc.Status = types.ConversionFailed
			doc.Detail = err.Error()
		default:
			fmt.Fprintf(p.out, "merged:    %s\n", filepath.Base(out))
			doc.Status = types.ConversionDone
			doc.Output = out
			sum.Books = append(sum.Books, out)
		}
		p.record(ctx, sum.RunID, doc)

		if doc.Status == types.ConversionDone && p.cfg.Titles.AfterMerge {
			sum.Retitled += p.fixTitles(ctx, sum.RunID, out, false)
		}
		bar.add()
	}
	return nil
}

// fixTitles repairs one EPUB and returns the number of retitled documents.
// Failures are logged and recorded, never returned.
func (p *Pipeline) fixTitles(ctx context.Context, runID, path string, patchMetadata bool) int {
	res, err := p.fix(path, epubfix.Options{
		Class:         p.cfg.Titles.Class,
		PatchMetadata: patchMetadata,
		Logger:        p.log,
	})
	doc := types.Document{Source: path, Output: path, Stage: types.StageTitles, Finished: time.Now()}
	switch {
	case err != nil:
		p.log.Warn("title repair failed", slog.String(logging.FieldFile, path), logging.Error(err))
		doc.Status = types.ConversionFailed
		doc.Detail = err.Error()
	case res.Rewritten:
		p.log.Debug("titles repaired",
			slog.String(logging.FieldFile, path),
			slog.Int("retitled", res.Retitled),
			slog.Int("nav_points", res.NavPointsPatched),
		)
		doc.Status = types.ConversionDone
		doc.Detail = fmt.Sprintf("%d documents, %d navigation points", res.Retitled, res.NavPointsPatched)
	default:
		doc.Status = types.ConversionSkipped
	}
	p.record(ctx, runID, doc)
	return res.Retitled
}

// Combine merges every book in the final directory into output, repairs
// its titles and empties the final directory. An empty output becomes
// "<title>.epub" in the work directory.
func (p *Pipeline) Combine(ctx context.Context, title, author, output string) (string, error) {
	ws, err := p.workspace()
	if err != nil {
		return "", err
	}
	lock, err := workspace.Lock(ws.Root)
	if err != nil {
		return "", err
	}
	defer lock.Release()

	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("combine: a title is required")
	}
	if output == "" {
		output = filepath.Join(ws.Root, title+".epub")
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return "", err
	}
	if rel, err := filepath.Rel(ws.Final, output); err == nil && !strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("combine: output %s is inside %s, which is cleared afterwards", output, ws.Final)
	}

	opts := merge.FromConfig(p.cfg.Merge)
	opts.Title = title
	if author != "" {
		opts.Author = author
	}
	opts.Output = output
	opts.Sort = discover.SortName

	runID := p.beginRun(ctx, ws.Final)
	doc := types.Document{Source: ws.Final, Stage: types.StageCombine}
	out, err := p.merger.MergeFolder(ctx, ws.Final, opts)
	doc.Finished = time.Now()
	if err != nil {
		doc.Status = types.ConversionFailed
		doc.Detail = err.Error()
		p.record(ctx, runID, doc)
		p.finishJournal(ctx, runID, journal.StatusFailed, 0, err.Error())
		return "", fmt.Errorf("combining books: %w", err)
	}
	doc.Status = types.ConversionDone
	doc.Output = out
	p.record(ctx, runID, doc)
	fmt.Fprintf(p.out, "combined:  %s\n", out)

	if p.cfg.Titles.AfterMerge {
		p.fixTitles(ctx, runID, out, false)
	}

	if _, err := workspace.ClearContents(ws.Final, p.log); err != nil {
		p.log.Warn("could not clear final directory", slog.String("path", ws.Final), logging.Error(err))
	}
	p.finishJournal(ctx, runID, journal.StatusSucceeded, 1, "")
	return out, nil
}

func (p *Pipeline) beginRun(ctx context.Context, root string) string {
	if p.journal == nil {
		return ""
	}
	id, err := p.journal.BeginRun(ctx, root)
	if err != nil {
		p.log.Warn("journal unavailable", logging.Error(err))
		return ""
	}
	return id
}

func (p *Pipeline) record(ctx context.Context, runID string, doc types.Document) {
	if p.journal == nil || runID == "" {
		return
	}
	if err := p.journal.RecordDocument(ctx, runID, doc); err != nil {
		p.log.Warn("journal write failed", slog.String(logging.FieldFile, doc.Source), logging.Error(err))
	}
}

func (p *Pipeline) finishRun(sum Summary, runErr error) {
	status, msg := journal.StatusSucceeded, ""
	switch {
	case runErr != nil:
		status, msg = journal.StatusFailed, runErr.Error()
	case !sum.OK():
		status = journal.StatusFailed
		msg = fmt.Sprintf("%d documents failed, %d merges failed", sum.Failed, sum.MergeFailures)
	}
	// The run context may already be cancelled.
	p.finishJournal(context.Background(), sum.RunID, status, len(sum.Books), msg)
}

func (p *Pipeline) finishJournal(ctx context.Context, runID, status string, books int, msg string) {
	if p.journal == nil || runID == "" {
		return
	}
	if err := p.journal.FinishRun(ctx, runID, status, books, msg); err != nil {
		p.log.Warn("journal write failed", logging.Error(err))
	}
}
