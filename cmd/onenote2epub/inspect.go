// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/onenote2epub/internal/inspect"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <epub>",
	Short: "Show the metadata, chapters and table of contents of an EPUB",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().String("format", "text", "output format: text, json or yaml")
	inspectCmd.Flags().Bool("toc", false, "also print the table of contents")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	withTOC, _ := cmd.Flags().GetBool("toc")

	rep, err := inspect.Inspect(args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		writeInspectText(w, rep, withTOC)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

func writeInspectText(w io.Writer, rep inspect.Report, withTOC bool) {
	fmt.Fprintf(w, "Title:    %s\n", rep.Title)
	if len(rep.Creators) > 0 {
		fmt.Fprintf(w, "Author:   %s\n", strings.Join(rep.Creators, ", "))
	}
	if rep.Language != "" {
		fmt.Fprintf(w, "Language: %s\n", rep.Language)
	}
	fmt.Fprintf(w, "Size:     %s\n", rep.HumanSize())
	fmt.Fprintf(w, "Words:    %d\n", rep.Words)

	rows := make([][]string, 0, len(rep.Chapters))
	for _, ch := range rep.Chapters {
		rows = append(rows, []string{strconv.Itoa(ch.Index), ch.Title, ch.Href})
	}
	fmt.Fprintln(w, renderTable([]string{"#", "Title", "Document"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft}))

	if withTOC {
		for _, e := range rep.TOC {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", e.Depth), e.Title)
		}
	}
	if untitled := rep.Untitled(); len(untitled) > 0 {
		fmt.Fprintf(w, "%d chapter(s) still carry a file-name title; run fix-titles\n", len(untitled))
	}
}
