// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/onenote2epub/internal/pipeline"
	"github.com/pdiddy/onenote2epub/internal/prompt"
)

var runCmd = &cobra.Command{
	Use:   "run [root]",
	Short: "Convert every OneNote export folder under root into an EPUB book",
	Long: `Run walks root for folders that contain .docx pages, converts each page
to EPUB with LibreOffice, merges each folder into <final_dir>/<folder>.epub
with EpubMerge, and repairs the page titles. Failed pages and folders are
logged and counted; the run continues.

With --combine the per-folder books are merged once more into a single
book and the final directory is emptied.

Without a root argument on a terminal, run asks for the inputs.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationLogFile: "true"},
	RunE:        runRun,
}

func init() {
	runCmd.Flags().Bool("combine", false, "merge all books into one after the run")
	runCmd.Flags().String("title", "", "title of the combined book (required with --combine)")
	runCmd.Flags().String("author", "", "author of the combined book (default: merge.author)")
	runCmd.Flags().String("output", "", "combined book path (default: <work_dir>/<title>.epub)")
	runCmd.Flags().Bool("strict", false, "exit non-zero when any page or folder failed")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	combine, _ := cmd.Flags().GetBool("combine")
	title, _ := cmd.Flags().GetString("title")
	author, _ := cmd.Flags().GetString("author")
	output, _ := cmd.Flags().GetString("output")
	strict, _ := cmd.Flags().GetBool("strict")

	var root string
	if len(args) == 1 {
		root = args[0]
	} else {
		if !interactive() {
			return errors.New("a root folder is required")
		}
		cwd, _ := os.Getwd()
		answers, err := prompt.AskRun(cwd, cfg.Merge.Author, os.Stdin, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		root = answers.Root
		if answers.Combine {
			combine = true
			title = answers.Title
			author = answers.Author
		}
	}
	if combine && title == "" {
		return errors.New("--title is required with --combine")
	}

	conv, err := newConverter()
	if err != nil {
		return err
	}
	opts := pipeline.Options{
		Config:    cfg,
		Converter: conv,
		Merger:    newMerger(""),
		Logger:    logger.Logger,
		Out:       cmd.OutOrStdout(),
		Progress:  pipeline.TerminalWriter(os.Stderr),
	}
	if j := optionalJournal(); j != nil {
		defer closeJournal(j)
		opts.Journal = j
	}
	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}

	sum, err := p.Run(cmd.Context(), root)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), sum)

	if combine && len(sum.Books) > 0 {
		out, err := p.Combine(cmd.Context(), title, author, output)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Combined book: %s\n", out)
	}

	if strict && !sum.OK() {
		return fmt.Errorf("%d page(s) and %d folder(s) failed", sum.Failed, sum.MergeFailures)
	}
	return nil
}

func printSummary(w io.Writer, sum pipeline.Summary) {
	rows := [][]string{
		{"Folders", strconv.Itoa(sum.Folders)},
		{"Pages converted", strconv.Itoa(sum.Converted)},
		{"Pages failed", strconv.Itoa(sum.Failed)},
		{"Titles repaired", strconv.Itoa(sum.Retitled)},
		{"Books", strconv.Itoa(len(sum.Books))},
		{"Folders failed", strconv.Itoa(sum.MergeFailures)},
		{"Duration", sum.Duration.Round(100 * time.Millisecond).String()},
	}
	if sum.RunID != "" {
		rows = append(rows, []string{"Run", sum.RunID})
	}
	fmt.Fprintln(w, renderTable([]string{"Run summary", ""}, rows, []columnAlignment{alignLeft, alignRight}))
	for _, b := range sum.Books {
		fmt.Fprintf(w, "  %s\n", b)
	}
}
