// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/beo-intake/internal/form"
	"github.com/pdiddy/beo-intake/internal/intake"
	"github.com/pdiddy/beo-intake/internal/pdffile"
	"github.com/pdiddy/beo-intake/pkg/types"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Upload a BEO packet for processing",
	Long: `Submit validates the contact details and the PDF, uploads them to the
backend, and prints the submission ID. With --watch it then checks the
processing status every poll interval until the packet is completed or
failed.`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().String("name", "", "contact name (required)")
	submitCmd.Flags().String("email", "", "email address for the results (required)")
	submitCmd.Flags().String("event", "", "event name")
	submitCmd.Flags().String("file", "", "path to the BEO packet PDF (required)")
	submitCmd.Flags().Bool("watch", false, "poll processing status until it finishes")

	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	event, _ := cmd.Flags().GetString("event")
	path, _ := cmd.Flags().GetString("file")
	watch, _ := cmd.Flags().GetBool("watch")
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	api := newClient()
	var opts []intake.Option
	if store := openHistory(); store != nil {
		defer store.Close()
		opts = append(opts, intake.WithRecorder(store))
	}
	ctrl := intake.New(api, logger, opts...)
	defer ctrl.Close()

	ctrl.SetFields(form.Fields{Name: name, Email: email, EventName: event})
	if path != "" {
		f, err := pdffile.FromPath(path)
		if err != nil {
			return err
		}
		if sel, _ := ctrl.SelectFile(f); sel == nil {
			fmt.Fprintf(errOut, "%s is not a PDF (detected %s)\n", path, f.ContentType())
		} else {
			fmt.Fprintf(errOut, "uploading %s (%s)\n", f.FileName(), pdffile.FormatSize(f.Size()))
		}
	}

	snap, err := ctrl.Submit(cmd.Context())
	if err != nil {
		return err
	}
	if snap.State != intake.StateSuccess {
		for _, fe := range snap.FieldErrors {
			fmt.Fprintf(errOut, "  %s: %s\n", fe.Field, fe.Message)
		}
		return errors.New(snap.Message)
	}

	fmt.Fprintln(out, snap.Message)
	fmt.Fprintf(out, "Submission ID: %s\n", snap.SubmissionID)
	if !watch {
		return nil
	}
	return watchSubmission(cmd, ctrl, api, out)
}

// watchSubmission polls the controller's tracked submission and prints each
// status change. It fails when processing fails.
func watchSubmission(cmd *cobra.Command, ctrl *intake.Controller, checker intake.StatusChecker, out io.Writer) error {
	final, err := ctrl.Watch(cmd.Context(), checker, cfg.Poll.Interval, func(st types.SubmissionStatus) {
		fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), st.Status)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, intake.OutcomeMessage(final))
	if final.Status == types.StatusFailed {
		return errors.New("processing failed")
	}
	return nil
}
