// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workspace manages the scratch and output directories of a
// conversion run and the lock that keeps two runs out of the same tree.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrLocked is returned by Lock when another run holds the workspace.
var ErrLocked = errors.New("workspace is locked by another run")

// StateDir holds files owned by the tool rather than the user.
const StateDir = ".onenote2epub"

// Workspace is the pair of directories a run writes to.
type Workspace struct {
	Root   string
	Intern string
	Final  string

	used map[string]int
}

// New returns a Workspace for root. Relative intern and final paths are
// resolved against root.
func New(root, intern, final string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(abs, p)
	}
	return &Workspace{
		Root:   abs,
		Intern: resolve(intern),
		Final:  resolve(final),
		used:   make(map[string]int),
	}, nil
}

// Prepare empties both directories and creates them. It refuses to clear
// the root itself or any of its ancestors.
func (w *Workspace) Prepare(logger *slog.Logger) error {
	for _, dir := range []string{w.Final, w.Intern} {
		if rel, err := filepath.Rel(dir, w.Root); err == nil && !strings.HasPrefix(rel, "..") {
			return fmt.Errorf("refusing to clear %s: it contains the work directory", dir)
		}
		if _, err := ClearContents(dir, logger); err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	w.used = make(map[string]int)
	return nil
}

// BookDir returns a fresh scratch directory under Intern named after the
// base name of folder. A repeated base name gets a numeric suffix, so
// "Notes" then "Notes-2". The directory is created.
func (w *Workspace) BookDir(folder string) (string, error) {
	name := BookName(folder)
	key := strings.ToLower(name)
	w.used[key]++
	if n := w.used[key]; n > 1 {
		name = fmt.Sprintf("%s-%d", name, n)
	}
	dir := filepath.Join(w.Intern, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// FinalPath returns the merged book path for a scratch directory.
func (w *Workspace) FinalPath(bookDir string) string {
	return filepath.Join(w.Final, filepath.Base(bookDir)+".epub")
}

// BookName is the file-system safe base name of folder.
func BookName(folder string) string {
	name := filepath.Base(filepath.Clean(folder))
	switch name {
	case ".", string(filepath.Separator), "":
		return "book"
	}
	return name
}

// ClearContents removes everything inside dir but keeps dir itself. A
// missing dir is logged and reported as zero removals. The first failed
// removal aborts. It returns the number of top-level entries removed.
func ClearContents(dir string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("directory does not exist", slog.String("path", dir))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("checking %s: %w", dir, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	removed := 0
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			return removed, fmt.Errorf("removing %s: %w", p, err)
		}
		removed++
	}
	logger.Debug("cleared directory", slog.String("path", dir), slog.Int("removed", removed))
	return removed, nil
}

// FileLock is an exclusive lock on a workspace root.
type FileLock struct {
	fl *flock.Flock
}

// Lock takes the lock file under root's state directory without blocking.
// It fails with ErrLocked when another process holds it.
func Lock(root string) (*FileLock, error) {
	dir := filepath.Join(root, StateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	fl := flock.New(filepath.Join(dir, "lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &FileLock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string { return l.fl.Path() }

// Release unlocks. It is safe to call more than once.
func (l *FileLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
