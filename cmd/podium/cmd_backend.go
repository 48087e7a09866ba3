package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jwulff/podium/internal/analysis"
	"github.com/spf13/cobra"
)

func newFeedbackCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <session-id>",
		Short: "Fetch the stored feedback for a past session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.analysisClient()
			if err != nil {
				return err
			}
			res, err := client.Feedback(cmd.Context(), args[0])
			if err != nil {
				return errors.New(analysis.Message(err))
			}
			writeResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newRecordingsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recordings",
		Short: "List the recordings the analysis service has stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.analysisClient()
			if err != nil {
				return err
			}
			recs, err := client.Recordings(cmd.Context())
			if err != nil {
				return errors.New(analysis.Message(err))
			}

			out := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(out, "No recordings on the server.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tDATE\tSCORE\tPERSONALITY\tGOAL")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\t%s\n",
					r.SessionID,
					r.Time().Local().Format("2006-01-02 15:04"),
					r.OverallScore, r.AIPersonality, r.Goal,
				)
			}
			return w.Flush()
		},
	}
}

// writeResult prints a feedback result the way the recorder shows it.
func writeResult(out io.Writer, r analysis.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Overall\t%.0f\n", r.OverallScore)
	fmt.Fprintf(w, "Clarity\t%.0f\n", r.ClarityScore)
	fmt.Fprintf(w, "Confidence\t%.0f\n", r.ConfidenceScore)
	fmt.Fprintf(w, "Engagement\t%.0f\n", r.EngagementScore)
	fmt.Fprintf(w, "Structure\t%.0f\n", r.StructureScore)
	fmt.Fprintf(w, "Pace\t%d wpm\n", r.Pace)
	fmt.Fprintf(w, "Fillers\t%d\n", r.FillerTotal())
	w.Flush()

	if r.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", r.Summary)
	}
	if r.Tip != "" {
		fmt.Fprintf(out, "\nTip: %s\n", r.Tip)
	}
	if len(r.Strengths) > 0 {
		fmt.Fprintf(out, "\nStrengths:\n  - %s\n", strings.Join(r.Strengths, "\n  - "))
	}
	if len(r.Improvements) > 0 {
		fmt.Fprintf(out, "\nTo improve:\n  - %s\n", strings.Join(r.Improvements, "\n  - "))
	}
}
