// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/beo-intake/internal/history"
	"github.com/pdiddy/beo-intake/internal/pdffile"
	"github.com/pdiddy/beo-intake/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history [submission-id]",
	Short: "List submissions made from this machine",
	Long: `History lists the receipts of submissions the backend accepted, newest
first, with the last status seen for each. Pass a submission ID to show one
receipt in full. Run status to refresh a receipt from the backend.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", history.DefaultListLimit, "maximum number of receipts to list")
	historyCmd.Flags().StringP("output", "o", formatText, "output format: text, json, yaml")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	store := openHistory()
	if store == nil {
		return errors.New("history is not available; check history.path")
	}
	defer store.Close()

	if len(args) == 1 {
		r, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeOutput(out, format, r, func(w io.Writer) error {
			return printReceipt(w, r)
		})
	}

	receipts, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return writeOutput(out, format, receipts, func(w io.Writer) error {
		if len(receipts) == 0 {
			_, err := fmt.Fprintln(w, "No submissions yet.")
			return err
		}
		return printReceipts(w, receipts)
	})
}

func printReceipts(w io.Writer, receipts []types.Receipt) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMITTED\tSTATUS\tFILE\tSIZE\tEMAIL\tID")
	for _, r := range receipts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(r.SubmittedAt), r.Status, r.FileName,
			pdffile.FormatSize(r.FileSize), r.Email, r.SubmissionID)
	}
	return tw.Flush()
}

func printReceipt(w io.Writer, r *types.Receipt) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", label, value)
		}
	}
	row("Submission", r.SubmissionID)
	row("Status", string(r.Status))
	row("Name", r.Name)
	row("Email", r.Email)
	row("Event", r.EventName)
	row("File", fmt.Sprintf("%s (%s)", r.FileName, humanize.IBytes(uint64(max(r.FileSize, 0)))))
	row("Submitted", fmt.Sprintf("%s (%s)", r.SubmittedAt.Local().Format("2006-01-02 15:04"), humanize.Time(r.SubmittedAt)))
	row("Updated", humanize.Time(r.UpdatedAt))
	row("Status URL", r.StatusURL)
	row("Download", r.DownloadURL)
	row("Error", r.ErrorMessage)
	return tw.Flush()
}
