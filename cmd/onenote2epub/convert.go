// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/onenote2epub/internal/convert"
	"github.com/pdiddy/onenote2epub/internal/epubfix"
	"github.com/pdiddy/onenote2epub/internal/logging"
	"github.com/pdiddy/onenote2epub/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert <folder>",
	Short: "Convert the .docx pages of one folder to EPUB",
	Long: `Convert runs LibreOffice on every .docx directly inside folder and writes
one EPUB per page to the output directory. Failed pages are reported and
skipped. Page titles are repaired unless --no-fix-titles is given.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationLogFile: "true"},
	RunE:        runConvert,
}

func init() {
	convertCmd.Flags().StringP("output-dir", "o", "", "directory for the EPUBs (default: intern_dir)")
	convertCmd.Flags().Bool("delete-original", false, "delete each .docx after it converts")
	convertCmd.Flags().Bool("no-fix-titles", false, "leave the LibreOffice titles untouched")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("output-dir")
	if outDir == "" {
		outDir = cfg.Resolve(cfg.InternDir)
	}
	deleteOriginal := cfg.LibreOffice.DeleteOriginal
	if cmd.Flags().Changed("delete-original") {
		deleteOriginal, _ = cmd.Flags().GetBool("delete-original")
	}
	noFix, _ := cmd.Flags().GetBool("no-fix-titles")

	conv, err := newConverter()
	if err != nil {
		return err
	}

	res, err := convert.ConvertFolder(cmd.Context(), conv, args[0], outDir, convert.Options{
		DeleteOriginal: deleteOriginal,
		Logger:         logger.Logger,
	}, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if !noFix {
		retitled := 0
		for _, doc := range res.Documents {
			if doc.Status != types.ConversionDone {
				continue
			}
			r, err := epubfix.FixFile(doc.Output, epubfix.Options{
				Class:         cfg.Titles.Class,
				PatchMetadata: true,
				Logger:        logger.Logger,
			})
			if err != nil {
				logger.Warn("title repair failed", slog.String(logging.FieldFile, doc.Output), logging.Error(err))
				continue
			}
			retitled += r.Retitled
		}
		fmt.Fprintf(cmd.OutOrStdout(), "repaired %d title(s)\n", retitled)
	}

	if res.HasFailures() {
		return fmt.Errorf("%d of %d page(s) failed", res.Failed, res.Total())
	}
	return nil
}
