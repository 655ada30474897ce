// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge combines a folder of EPUBs into one book with Calibre's
// EpubMerge plugin.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdiddy/onenote2epub/internal/discover"
	"github.com/pdiddy/onenote2epub/internal/runner"
	"github.com/pdiddy/onenote2epub/pkg/types"
)

// ErrNoEpubs is returned when the folder to merge contains no EPUB files.
var ErrNoEpubs = errors.New("no epub files found")

// Options maps onto the EpubMerge command-line options. Integer options
// equal to types.Unset are omitted.
type Options struct {
	Output          string
	Title           string
	Author          string
	Description     string
	Tags            string
	CoverImage      string
	TitlesNavPoints int
	NavPointsInsert int
	SourceNavRule   int
	Sort            discover.SortMode
}

// DefaultOptions returns Options with every optional flag unset and name
// ordering.
func DefaultOptions() Options {
	return Options{
		TitlesNavPoints: types.Unset,
		NavPointsInsert: types.Unset,
		SourceNavRule:   types.Unset,
		Sort:            discover.SortName,
	}
}

// FromConfig converts the configured merge settings into Options.
func FromConfig(cfg types.MergeConfig) Options {
	return Options{
		Author:          cfg.Author,
		Description:     cfg.Description,
		Tags:            cfg.Tags,
		CoverImage:      cfg.CoverImage,
		TitlesNavPoints: cfg.TitlesNavPoints,
		NavPointsInsert: cfg.NavPointsInsert,
		SourceNavRule:   cfg.SourceNavRule,
		Sort:            discover.SortMode(cfg.Sort),
	}
}

// Validate checks the ranges EpubMerge accepts.
func (o Options) Validate() error {
	if _, err := discover.ParseSortMode(string(o.Sort)); err != nil {
		return err
	}
	checks := []struct {
		flag string
		val  int
		max  int
	}{
		{"titlesnavpoints", o.TitlesNavPoints, 1},
		{"navpointsinsert", o.NavPointsInsert, 1},
		{"sourcenavrule", o.SourceNavRule, 2},
	}
	for _, c := range checks {
		if c.val == types.Unset {
			continue
		}
		if c.val < 0 || c.val > c.max {
			return fmt.Errorf("--%s must be between 0 and %d, got %d", c.flag, c.max, c.val)
		}
	}
	return nil
}

// Args returns the calibre-debug argument list for merging epubs.
func Args(opts Options, epubs []string) []string {
	args := []string{"--run-plugin", "EpubMerge", "--"}

	str := []struct{ flag, val string }{
		{"--output", opts.Output},
		{"--title", opts.Title},
		{"--author", opts.Author},
		{"--description", opts.Description},
		{"--tags", opts.Tags},
		{"--coverimg", opts.CoverImage},
	}
	for _, s := range str {
		if s.val != "" {
			args = append(args, s.flag, s.val)
		}
	}

	ints := []struct {
		flag string
		val  int
	}{
		{"--titlesnavpoints", opts.TitlesNavPoints},
		{"--navpointsinsert", opts.NavPointsInsert},
		{"--sourcenavrule", opts.SourceNavRule},
	}
	for _, n := range ints {
		if n.val != types.Unset {
			args = append(args, n.flag, strconv.Itoa(n.val))
		}
	}

	return append(args, epubs...)
}

// Merger runs EpubMerge through calibre-debug.
type Merger struct {
	calibre runner.Runner
	logger  *slog.Logger
}

// NewMerger returns a Merger using rn for the calibre-debug binary.
func NewMerger(rn runner.Runner, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{calibre: rn, logger: logger}
}

// MergeFiles merges epubs, in the given order, into opts.Output.
func (m *Merger) MergeFiles(ctx context.Context, epubs []string, opts Options) error {
	if len(epubs) == 0 {
		return ErrNoEpubs
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	args := Args(opts, epubs)
	m.logger.Info("merging epubs",
		slog.Int("count", len(epubs)),
		slog.String("output", opts.Output),
		slog.String("command", runner.CommandLine(m.calibre.Name(), args)),
	)
	res, err := m.calibre.Run(ctx, args...)
	if err != nil {
		return fmt.Errorf("epubmerge into %s: %w", filepath.Base(opts.Output), err)
	}
	m.logger.Debug("epubmerge finished",
		slog.String("output", opts.Output),
		slog.Duration("duration", res.Duration),
	)
	return nil
}

// MergeFolder collects every EPUB under folder, orders them by opts.Sort,
// and merges them. An empty opts.Output becomes "<folder>_merged.epub" in
// the current directory. It returns the absolute output path.
func (m *Merger) MergeFolder(ctx context.Context, folder string, opts Options) (string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return "", fmt.Errorf("folder %s does not exist: %w", folder, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", folder, discover.ErrNotDirectory)
	}

	epubs, err := discover.EpubFiles(folder)
	if err != nil {
		return "", err
	}
	if len(epubs) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoEpubs, folder)
	}

	if opts.Sort == "" {
		opts.Sort = discover.SortName
	}
	if err := discover.SortEpubs(epubs, opts.Sort); err != nil {
		return "", err
	}

	if opts.Output == "" {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return "", err
		}
		opts.Output = filepath.Base(abs) + "_merged.epub"
	}
	out, err := filepath.Abs(opts.Output)
	if err != nil {
		return "", fmt.Errorf("resolving output %s: %w", opts.Output, err)
	}
	opts.Output = out
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	if err := m.MergeFiles(ctx, epubs, opts); err != nil {
		return "", err
	}
	return out, nil
}
