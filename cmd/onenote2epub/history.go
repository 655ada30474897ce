// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/onenote2epub/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs from the journal",
	Long: `History lists the most recent runs recorded in the journal. With --run
it prints one run and the record of every page and folder it processed.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to list")
	historyCmd.Flags().String("run", "", "show the documents of one run")
	historyCmd.Flags().String("format", "yaml", "format for --run: yaml or json")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	format, _ := cmd.Flags().GetString("format")

	j, err := openJournal()
	if err != nil {
		return err
	}
	defer closeJournal(j)

	w := cmd.OutOrStdout()
	if runID != "" {
		rep, err := j.Report(cmd.Context(), runID)
		if err != nil {
			return err
		}
		switch format {
		case "yaml":
			return rep.WriteYAML(w)
		case "json":
			return rep.WriteJSON(w)
		default:
			return fmt.Errorf("unknown format %q (want yaml or json)", format)
		}
	}

	runs, err := j.History(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Run", "Started", "Status", "Pages", "Failed", "Books", "Duration", "Root"},
		historyRows(runs),
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	return nil
}

func historyRows(runs []journal.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		dur := "-"
		if d := r.Duration(); d > 0 {
			dur = d.Round(time.Second).String()
		}
		rows = append(rows, []string{
			r.ID,
			r.Started.Local().Format("2006-01-02 15:04"),
			r.Status,
			strconv.Itoa(r.Converted),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Books),
			dur,
			r.Root,
		})
	}
	return rows
}
