// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/onenote2epub/internal/discover"
	"github.com/pdiddy/onenote2epub/internal/epubfix"
	"github.com/pdiddy/onenote2epub/internal/merge"
	"github.com/pdiddy/onenote2epub/pkg/types"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <folder>",
	Short: "Merge the EPUBs in a folder into one book with EpubMerge",
	Long: `Merge collects every EPUB under folder, orders them with --sort and runs
Calibre's EpubMerge plugin, by name unless --sort says otherwise. Other
unset options fall back to the merge section of the configuration. The merged book's page titles are repaired unless
--no-fix-titles is given.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationLogFile: "true"},
	RunE:        runMerge,
}

func init() {
	registerMergeFlags(mergeCmd)
	rootCmd.AddCommand(mergeCmd)
}

// registerMergeFlags adds the EpubMerge option flags to cmd.
func registerMergeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("output", "o", "", "merged EPUB path (default: <folder>_merged.epub)")
	f.StringP("title", "t", "", "title of the merged book (default: folder name)")
	f.StringP("author", "a", "", "author of the merged book (default: merge.author)")
	f.StringP("description", "d", "", "description of the merged book")
	f.StringP("tags", "g", "", "comma separated tags")
	f.StringP("cover-img", "i", "", "cover image path")
	f.IntP("titles-nav-points", "m", types.Unset, "add a title navpoint per source book (0 or 1)")
	f.IntP("nav-points-insert", "n", types.Unset, "keep source navpoints under the title navpoint (0 or 1)")
	f.IntP("source-nav-rule", "s", types.Unset, "source navpoint rule (0, 1 or 2)")
	f.String("calibre-path", "", "calibre-debug binary (default: calibre.path)")
	f.String("sort", string(discover.SortName), fmt.Sprintf("merge order: %v", discover.SortModes))
	f.Bool("no-fix-titles", false, "leave the merged titles untouched")
}

// mergeOptions overlays the changed flags of cmd onto the configured
// merge settings.
func mergeOptions(cmd *cobra.Command, folder string, mc types.MergeConfig) (merge.Options, error) {
	opts := merge.FromConfig(mc)
	f := cmd.Flags()

	strFlags := map[string]*string{
		"output":      &opts.Output,
		"title":       &opts.Title,
		"author":      &opts.Author,
		"description": &opts.Description,
		"tags":        &opts.Tags,
		"cover-img":   &opts.CoverImage,
	}
	for name, dst := range strFlags {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	intFlags := map[string]*int{
		"titles-nav-points": &opts.TitlesNavPoints,
		"nav-points-insert": &opts.NavPointsInsert,
		"source-nav-rule":   &opts.SourceNavRule,
	}
	for name, dst := range intFlags {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	// merge.sort orders the pages of a run; a standalone merge sorts by name
	// unless told otherwise.
	s, _ := f.GetString("sort")
	mode, err := discover.ParseSortMode(s)
	if err != nil {
		return opts, err
	}
	opts.Sort = mode

	if opts.Title == "" {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return opts, err
		}
		opts.Title = filepath.Base(abs)
	}
	return opts, opts.Validate()
}

func runMerge(cmd *cobra.Command, args []string) error {
	folder := args[0]
	opts, err := mergeOptions(cmd, folder, cfg.Merge)
	if err != nil {
		return err
	}
	calibrePath, _ := cmd.Flags().GetString("calibre-path")
	noFix, _ := cmd.Flags().GetBool("no-fix-titles")

	out, err := newMerger(calibrePath).MergeFolder(cmd.Context(), folder, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "merged:    %s\n", out)

	if noFix {
		return nil
	}
	res, err := epubfix.FixFile(out, epubfix.Options{Class: cfg.Titles.Class, Logger: logger.Logger})
	if err != nil {
		return fmt.Errorf("repairing titles: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "repaired %d of %d title(s), %d navpoint(s)\n", res.Retitled, res.Documents, res.NavPointsPatched)
	return nil
}
