// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discover finds the source documents and intermediate EPUBs the
// pipeline operates on. Everything here is a flat list of paths.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotDirectory is returned when a path that must be a folder is not one.
var ErrNotDirectory = errors.New("not a directory")

// SortMode selects the order in which EPUBs are handed to the merge tool.
type SortMode string

const (
	SortName        SortMode = "name"
	SortNameReverse SortMode = "name_reverse"
	SortSize        SortMode = "size"
	SortSizeReverse SortMode = "size_reverse"
	SortDate        SortMode = "date"
	SortDateReverse SortMode = "date_reverse"
)

// SortModes lists every accepted sort mode, in flag help order.
var SortModes = []SortMode{SortName, SortNameReverse, SortSize, SortSizeReverse, SortDate, SortDateReverse}

// ParseSortMode validates s. The empty string maps to SortName.
func ParseSortMode(s string) (SortMode, error) {
	if s == "" {
		return SortName, nil
	}
	for _, m := range SortModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}

// Reverse reports whether the mode sorts in descending order.
func (m SortMode) Reverse() bool {
	return strings.HasSuffix(string(m), "_reverse")
}

// FindDocxFolders walks root and returns the absolute path of every
// directory that directly contains a .docx file (case-insensitive).
// Directories are returned once each, in walk order.
func FindDocxFolders(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	if err := requireDir(abs); err != nil {
		return nil, err
	}

	var folders []string
	seen := make(map[string]bool)
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasExt(d.Name(), ".docx") {
			return nil
		}
		dir := filepath.Dir(path)
		if !seen[dir] {
			seen[dir] = true
			folders = append(folders, dir)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", abs, err)
	}
	return folders, nil
}

// DocxFiles lists the .docx files directly inside folder, skipping Word's
// "~$" lock files and any other name starting with "~".
func DocxFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", folder, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~") || !hasExt(name, ".docx") {
			continue
		}
		files = append(files, filepath.Join(folder, name))
	}
	sort.Strings(files)
	return files, nil
}

// EpubFiles lists every .epub under folder, recursively, sorted by path.
func EpubFiles(folder string) ([]string, error) {
	if err := requireDir(folder); err != nil {
		return nil, err
	}
	var files []string
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasExt(d.Name(), ".epub") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", folder, err)
	}
	sort.Strings(files)
	return files, nil
}

// SortEpubs orders paths in place according to mode. Ties keep their
// previous relative order.
func SortEpubs(paths []string, mode SortMode) error {
	if _, err := ParseSortMode(string(mode)); err != nil {
		return err
	}

	type entry struct {
		path string
		name string
		size int64
		mod  int64
	}
	entries := make([]entry, len(paths))
	for i, p := range paths {
		e := entry{path: p, name: strings.ToLower(filepath.Base(p))}
		if mode != SortName && mode != SortNameReverse {
			info, err := os.Stat(p)
			if err != nil {
				return fmt.Errorf("stat %s: %w", p, err)
			}
			e.size = info.Size()
			e.mod = info.ModTime().UnixNano()
		}
		entries[i] = e
	}

	less := func(a, b entry) bool {
		switch mode {
		case SortSize, SortSizeReverse:
			return a.size < b.size
		case SortDate, SortDateReverse:
			return a.mod < b.mod
		default:
			return a.name < b.name
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if mode.Reverse() {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})

	for i, e := range entries {
		paths[i] = e.path
	}
	return nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("folder %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", path, ErrNotDirectory)
	}
	return nil
}

func hasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}
