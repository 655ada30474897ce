// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package envfile loads settings from dotenv files into the process
// environment so that viper's environment binding sees them.
//
// Variables already present in the environment win over file values, and a
// later file never overrides an earlier one.
package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads each file in order and exports its variables. A missing file is
// not an error. Empty values are skipped. Load returns the sorted names of
// the variables it set.
func Load(files ...string) ([]string, error) {
	var set []string
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return set, fmt.Errorf("reading env file %s: %w", f, err)
		}
		for k, v := range vars {
			if strings.TrimSpace(v) == "" {
				continue
			}
			if _, ok := os.LookupEnv(k); ok {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return set, fmt.Errorf("setting %s: %w", k, err)
			}
			set = append(set, k)
		}
	}
	sort.Strings(set)
	return set, nil
}

// Filter returns the names in keys that start with prefix.
func Filter(keys []string, prefix string) []string {
	var out []string
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}
