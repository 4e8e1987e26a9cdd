// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/beo-intake/internal/history"
	"github.com/pdiddy/beo-intake/internal/intake"
	"github.com/pdiddy/beo-intake/internal/pdffile"
	"github.com/pdiddy/beo-intake/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <submission-id>",
	Short: "Check the processing status of a submission",
	Long: `Status asks the backend where a submission is in processing: pending,
processing, completed (with a download link), or failed (with a reason).
With --watch it keeps checking every poll interval until processing
finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().Bool("watch", false, "poll until processing finishes")
	statusCmd.Flags().StringP("output", "o", formatText, "output format: text, json, yaml")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	id := args[0]
	watch, _ := cmd.Flags().GetBool("watch")
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	api := newClient()
	store := openHistory()
	if store != nil {
		defer store.Close()
	}

	if watch {
		var opts []intake.Option
		if store != nil {
			opts = append(opts, intake.WithRecorder(store))
		}
		ctrl := intake.New(api, logger, opts...)
		defer ctrl.Close()
		if err := ctrl.Track(id); err != nil {
			return err
		}
		if format == formatText {
			return watchSubmission(cmd, ctrl, api, out)
		}
		final, err := ctrl.Watch(cmd.Context(), api, cfg.Poll.Interval, nil)
		if err != nil {
			return err
		}
		return writeOutput(out, format, final, nil)
	}

	st, err := api.CheckStatus(cmd.Context(), id)
	if err != nil {
		return errors.New(intake.UserMessage(err))
	}
	if store != nil {
		if err := store.UpdateStatus(cmd.Context(), *st); err != nil && !errors.Is(err, history.ErrNotFound) {
			logger.Warn().Err(err).Msg("could not update receipt")
		}
	}
	return writeOutput(out, format, st, func(w io.Writer) error {
		return printStatus(w, st)
	})
}

func printStatus(w io.Writer, st *types.SubmissionStatus) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", label, value)
		}
	}
	row("Submission", st.ID)
	row("Status", string(st.Status))
	row("Name", st.Name)
	row("Email", st.Email)
	row("Event", st.EventName)
	if st.FileSize != nil {
		row("File size", pdffile.FormatSize(*st.FileSize))
	}
	if st.BEOCount != nil {
		row("BEOs", fmt.Sprint(*st.BEOCount))
	}
	if st.CreatedAt != nil {
		row("Created", st.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if st.CompletedAt != nil {
		row("Completed", st.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	}
	row("Download", st.DownloadURL)
	row("Error", st.ErrorMessage)
	return tw.Flush()
}
