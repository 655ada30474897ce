// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pdiddy/onenote2epub/internal/epubfix"
	"github.com/pdiddy/onenote2epub/internal/logging"
)

var fixTitlesCmd = &cobra.Command{
	Use:   "fix-titles <epub>...",
	Short: "Replace file-name titles with the OneNote page title",
	Long: `Fix-titles reads the first paragraph with the title class (para0 by
default) of every content document and writes it into <title>, and into
the matching table of contents entries. Files are rewritten in place; a
file that needs no change is left untouched.`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{annotationLogFile: "true"},
	RunE:        runFixTitles,
}

func init() {
	fixTitlesCmd.Flags().String("class", "", "title paragraph class (default: titles.class)")
	fixTitlesCmd.Flags().Bool("metadata", false, "also set dc:title and docTitle from the first page title")

	rootCmd.AddCommand(fixTitlesCmd)
}

func runFixTitles(cmd *cobra.Command, args []string) error {
	class, _ := cmd.Flags().GetString("class")
	if class == "" {
		class = cfg.Titles.Class
	}
	metadata, _ := cmd.Flags().GetBool("metadata")

	var rows [][]string
	failed := 0
	for _, p := range args {
		res, err := epubfix.FixFile(p, epubfix.Options{
			Class:         class,
			PatchMetadata: metadata,
			Logger:        logger.Logger,
		})
		if err != nil {
			failed++
			logger.Error("title repair failed", slog.String(logging.FieldFile, p), logging.Error(err))
			rows = append(rows, []string{filepath.Base(p), "-", "-", "-", "-", "error"})
			continue
		}
		state := "unchanged"
		if res.Rewritten {
			state = "rewritten"
		}
		rows = append(rows, []string{
			filepath.Base(p),
			strconv.Itoa(res.Documents),
			strconv.Itoa(res.Retitled),
			strconv.Itoa(res.Skipped),
			strconv.Itoa(res.NavPointsPatched),
			state,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"EPUB", "Pages", "Retitled", "No title", "Navpoints", "File"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(args))
	}
	return nil
}
