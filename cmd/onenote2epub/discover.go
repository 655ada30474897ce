// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/onenote2epub/internal/discover"
	"github.com/pdiddy/onenote2epub/internal/workspace"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <root>",
	Short: "List the folders run would turn into books",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	root := args[0]
	folders, err := discover.FindDocxFolders(root)
	if err != nil {
		return err
	}
	if len(folders) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no .docx folders under %s\n", root)
		return nil
	}

	var rows [][]string
	var pages int
	var total uint64
	for _, folder := range folders {
		files, err := discover.DocxFiles(folder)
		if err != nil {
			return err
		}
		var size uint64
		for _, f := range files {
			if info, err := os.Stat(f); err == nil {
				size += uint64(info.Size())
			}
		}
		pages += len(files)
		total += size

		rel, err := filepath.Rel(root, folder)
		if err != nil {
			rel = folder
		}
		rows = append(rows, []string{rel, workspace.BookName(folder), strconv.Itoa(len(files)), humanize.Bytes(size)})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Folder", "Book", "Pages", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	))
	fmt.Fprintf(cmd.OutOrStdout(), "%d folder(s), %d page(s), %s\n", len(folders), pages, humanize.Bytes(total))
	return nil
}
