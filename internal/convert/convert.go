// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns OneNote-exported .docx files into per-document EPUBs
// with a pluggable converter backend (LibreOffice in production).
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tsawler/tabula/docx"

	"github.com/pdiddy/onenote2epub/internal/discover"
	"github.com/pdiddy/onenote2epub/pkg/types"
)

// ErrOutputMissing is returned when the converter exits cleanly but the
// expected EPUB does not exist.
var ErrOutputMissing = errors.New("converted but output file missing")

// Converter transforms a .docx file into an EPUB written to outDir.
type Converter interface {
	// Convert converts docxPath and returns the path of the produced EPUB.
	Convert(ctx context.Context, docxPath, outDir string) (string, error)
}

// Options tunes a conversion run.
type Options struct {
	// DeleteOriginal removes each source file after a successful conversion.
	DeleteOriginal bool

	// Validate checks a source file before conversion. Nil uses ValidateDocx.
	Validate func(path string) error

	// Logger receives structured events. Nil discards them.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o Options) validate(path string) error {
	if o.Validate != nil {
		return o.Validate(path)
	}
	return ValidateDocx(path)
}

// BatchResult holds the outcome of a folder conversion.
type BatchResult struct {
	Converted int
	Failed    int
	Documents []types.Document
}

// Total returns the number of documents processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Failed
}

// HasFailures reports whether any document failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ValidateDocx opens path as a Word package and reports whether it is
// readable. OneNote occasionally writes truncated files for pages that fail
// to publish; LibreOffice hangs or crashes on some of them.
func ValidateDocx(path string) error {
	r, err := docx.Open(path)
	if err != nil {
		return fmt.Errorf("invalid docx %s: %w", filepath.Base(path), err)
	}
	return r.Close()
}

// ConvertFile validates and converts one document. It never returns an
// error: failures are reported in the returned record and on w.
func ConvertFile(ctx context.Context, c Converter, docxPath, outDir string, opts Options, w io.Writer) types.Document {
	log := opts.logger()
	doc := types.Document{Source: docxPath, Stage: types.StageConvert}
	base := filepath.Base(docxPath)

	fail := func(err error) types.Document {
		fmt.Fprintf(w, "failed:    %s (%v)\n", base, err)
		log.Error("conversion failed",
			slog.String("file", docxPath),
			slog.String("error", err.Error()),
			slog.String("event_type", "convert_failed"),
		)
		doc.Status = types.ConversionFailed
		doc.Detail = err.Error()
		doc.Finished = time.Now()
		return doc
	}

	if err := opts.validate(docxPath); err != nil {
		return fail(err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fail(fmt.Errorf("creating output directory: %w", err))
	}

	epubPath, err := c.Convert(ctx, docxPath, outDir)
	if err != nil {
		return fail(err)
	}

	log.Info("converted",
		slog.String("file", docxPath),
		slog.String("output", epubPath),
		slog.String("event_type", "convert_done"),
	)
	fmt.Fprintf(w, "converted: %s\n", base)

	if opts.DeleteOriginal {
		if err := os.Remove(docxPath); err != nil {
			log.Warn("could not delete original",
				slog.String("file", docxPath),
				slog.String("error", err.Error()),
			)
		} else {
			log.Info("deleted original", slog.String("file", docxPath))
		}
	}

	doc.Output = epubPath
	doc.Status = types.ConversionDone
	doc.Finished = time.Now()
	return doc
}

// ConvertFolder converts every .docx directly inside folder into outDir,
// continuing after individual failures. A missing folder is an error; a
// folder without documents yields an empty result.
func ConvertFolder(ctx context.Context, c Converter, folder, outDir string, opts Options, w io.Writer) (BatchResult, error) {
	log := opts.logger()
	var result BatchResult

	if _, err := os.Stat(folder); err != nil {
		return result, fmt.Errorf("source folder %s: %w", folder, err)
	}

	files, err := discover.DocxFiles(folder)
	if err != nil {
		return result, err
	}
	if len(files) == 0 {
		log.Info("no docx files to convert", slog.String("folder", folder))
		return result, nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return result, fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		doc := ConvertFile(ctx, c, f, outDir, opts, w)
		result.Documents = append(result.Documents, doc)
		if doc.Status == types.ConversionDone {
			result.Converted++
		} else {
			result.Failed++
		}
	}

	fmt.Fprintf(w, "converted %d/%d from %s\n", result.Converted, result.Total(), filepath.Base(folder))
	log.Info("folder converted",
		slog.String("folder", folder),
		slog.Int("converted", result.Converted),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
