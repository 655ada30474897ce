// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"runtime"
	"time"
)

// Unset marks an optional integer merge option that should not be passed
// to EpubMerge.
const Unset = -1

// LibreOfficeConfig holds settings for the docx-to-epub conversion stage.
type LibreOfficeConfig struct {
	// Path is the soffice binary (absolute path or a name resolved on PATH).
	Path string `yaml:"path" toml:"path" mapstructure:"path"`

	// Timeout bounds a single document conversion.
	Timeout time.Duration `yaml:"timeout" toml:"timeout" mapstructure:"timeout"`

	// Retries is how many more times a failed conversion is attempted.
	Retries int `yaml:"retries" toml:"retries" mapstructure:"retries"`

	// DeleteOriginal removes the source .docx after a successful conversion.
	DeleteOriginal bool `yaml:"delete_original" toml:"delete_original" mapstructure:"delete_original"`
}

// CalibreConfig holds settings for the EpubMerge invocation.
type CalibreConfig struct {
	// Path is the calibre-debug binary.
	Path string `yaml:"path" toml:"path" mapstructure:"path"`

	// Timeout bounds a single merge.
	Timeout time.Duration `yaml:"timeout" toml:"timeout" mapstructure:"timeout"`
}

// MergeConfig holds the EpubMerge options applied to every per-folder book.
type MergeConfig struct {
	Author      string `yaml:"author" toml:"author" mapstructure:"author"`
	Sort        string `yaml:"sort" toml:"sort" mapstructure:"sort"`
	Description string `yaml:"description,omitempty" toml:"description,omitempty" mapstructure:"description"`
	Tags        string `yaml:"tags,omitempty" toml:"tags,omitempty" mapstructure:"tags"`
	CoverImage  string `yaml:"cover_img,omitempty" toml:"cover_img,omitempty" mapstructure:"cover_img"`

	// TitlesNavPoints, NavPointsInsert and SourceNavRule map to the EpubMerge
	// flags of the same name. Unset (-1) omits the flag.
	TitlesNavPoints int `yaml:"titles_nav_points" toml:"titles_nav_points" mapstructure:"titles_nav_points"`
	NavPointsInsert int `yaml:"nav_points_insert" toml:"nav_points_insert" mapstructure:"nav_points_insert"`
	SourceNavRule   int `yaml:"source_nav_rule" toml:"source_nav_rule" mapstructure:"source_nav_rule"`
}

// TitlesConfig controls the EPUB title repair stage.
type TitlesConfig struct {
	// Class is the paragraph class OneNote uses for the page title.
	Class string `yaml:"class" toml:"class" mapstructure:"class"`

	// BeforeMerge repairs each converted document EPUB (including its OPF
	// dc:title) before EpubMerge reads it.
	BeforeMerge bool `yaml:"before_merge" toml:"before_merge" mapstructure:"before_merge"`

	// AfterMerge repairs the merged book.
	AfterMerge bool `yaml:"after_merge" toml:"after_merge" mapstructure:"after_merge"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" mapstructure:"level"`
	Format string `yaml:"format" toml:"format" mapstructure:"format"`
}

// JournalConfig controls the SQLite run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" toml:"path" mapstructure:"path"`
}

// Config groups all settings for a pipeline run.
type Config struct {
	// WorkDir is the directory that holds the scratch, final and log directories.
	WorkDir string `yaml:"work_dir" toml:"work_dir" mapstructure:"work_dir"`

	// InternDir holds per-document EPUBs between conversion and merge.
	InternDir string `yaml:"intern_dir" toml:"intern_dir" mapstructure:"intern_dir"`

	// FinalDir holds the merged per-folder books.
	FinalDir string `yaml:"final_dir" toml:"final_dir" mapstructure:"final_dir"`

	// LogDir holds the timestamped conversion logs.
	LogDir string `yaml:"log_dir" toml:"log_dir" mapstructure:"log_dir"`

	LibreOffice LibreOfficeConfig `yaml:"libreoffice" toml:"libreoffice" mapstructure:"libreoffice"`
	Calibre     CalibreConfig     `yaml:"calibre" toml:"calibre" mapstructure:"calibre"`
	Merge       MergeConfig       `yaml:"merge" toml:"merge" mapstructure:"merge"`
	Titles      TitlesConfig      `yaml:"titles" toml:"titles" mapstructure:"titles"`
	Log         LogConfig         `yaml:"log" toml:"log" mapstructure:"log"`
	Journal     JournalConfig     `yaml:"journal" toml:"journal" mapstructure:"journal"`
}

// DefaultLibreOfficePath returns the soffice location for the current OS.
func DefaultLibreOfficePath() string {
	if runtime.GOOS == "windows" {
		return `C:\Program Files\LibreOffice\program\soffice.exe`
	}
	return "soffice"
}

// DefaultConfig returns the configuration used when no file, flag or
// environment variable overrides a value.
func DefaultConfig() Config {
	return Config{
		WorkDir:   ".",
		InternDir: "internEpubs",
		FinalDir:  "finalEpubs",
		LogDir:    "logs",
		LibreOffice: LibreOfficeConfig{
			Path:    DefaultLibreOfficePath(),
			Timeout: 5 * time.Minute,
			Retries: 1,
		},
		Calibre: CalibreConfig{
			Path:    "calibre-debug",
			Timeout: 30 * time.Minute,
		},
		Merge: MergeConfig{
			Author:          "OneNote",
			Sort:            "date_reverse",
			TitlesNavPoints: Unset,
			NavPointsInsert: Unset,
			SourceNavRule:   Unset,
		},
		Titles: TitlesConfig{
			Class:       "para0",
			BeforeMerge: true,
			AfterMerge:  true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(".onenote2epub", "journal.db"),
		},
	}
}

// Resolve returns p unchanged when absolute, otherwise joined to WorkDir.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}
