// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/pdiddy/onenote2epub/internal/convert"
	"github.com/pdiddy/onenote2epub/internal/journal"
	"github.com/pdiddy/onenote2epub/internal/logging"
	"github.com/pdiddy/onenote2epub/internal/merge"
	"github.com/pdiddy/onenote2epub/internal/runner"
)

var errJournalDisabled = errors.New("the run journal is disabled (journal.enabled=false)")

func newConverter() (*convert.LibreOfficeConverter, error) {
	soffice := runner.New(cfg.LibreOffice.Path, cfg.LibreOffice.Timeout)
	return convert.NewLibreOfficeConverter(runner.WithRetry(soffice, cfg.LibreOffice.Retries, logger.Logger))
}

func newMerger(calibrePath string) *merge.Merger {
	if calibrePath == "" {
		calibrePath = cfg.Calibre.Path
	}
	return merge.NewMerger(runner.New(calibrePath, cfg.Calibre.Timeout), logger.Logger)
}

// openJournal opens the configured journal, or returns errJournalDisabled.
func openJournal() (*journal.Store, error) {
	if !cfg.Journal.Enabled {
		return nil, errJournalDisabled
	}
	return journal.Open(cfg.Resolve(cfg.Journal.Path))
}

// optionalJournal is openJournal for commands that run without one.
func optionalJournal() *journal.Store {
	j, err := openJournal()
	if err != nil {
		if !errors.Is(err, errJournalDisabled) {
			logger.Warn("journal unavailable, continuing without it", logging.Error(err))
		}
		return nil
	}
	return j
}

func interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stderr)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func closeJournal(j *journal.Store) {
	if j == nil {
		return
	}
	if err := j.Close(); err != nil {
		logger.Warn("closing journal", logging.Error(err))
	}
}
