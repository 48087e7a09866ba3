package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/db"
	"github.com/jwulff/podium/internal/history"
	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List and manage saved recordings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, opts, false)
		},
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved recordings, pinned first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, opts, asJSON)
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")

	pin := &cobra.Command{
		Use:   "pin <id>",
		Short: "Toggle the pin on a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := opts.openStores(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer st.Close()

			e, err := st.history.TogglePin(cmd.Context(), id)
			if err != nil {
				return err
			}
			state := "unpinned"
			if e.IsPinned {
				state = "pinned"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", e.ID, state)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recording and its archived audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := opts.openStores(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.history.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d deleted\n", id)
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show average scores across recordings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryStats(cmd, opts)
		},
	}

	cmd.AddCommand(list, pin, del, stats)
	return cmd
}

func runHistoryList(cmd *cobra.Command, opts *rootOptions, asJSON bool) error {
	st, err := opts.openStores(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.history.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No recordings yet.")
		return nil
	}
	writeEntries(out, entries)
	return nil
}

func writeEntries(out io.Writer, entries []history.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPIN\tDATE\tDURATION\tWPM\tSCORE\tGOAL")
	for _, e := range entries {
		pin := ""
		if e.IsPinned {
			pin = "*"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.0f\t%s\n",
			e.ID, pin,
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			analysis.FormatDuration(e.Duration),
			e.WPM, e.Score, e.Goal,
		)
	}
	w.Flush()
}

func runHistoryStats(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()
	st, err := opts.openStores(ctx, false)
	if err != nil {
		return err
	}
	defer st.Close()

	var (
		stats     db.Stats
		snapshots []db.Snapshot
	)
	if st.db != nil {
		if stats, err = st.db.Stats(ctx, opts.cfg.UserID); err != nil {
			return err
		}
		if snapshots, err = st.db.Snapshots(ctx, opts.cfg.UserID, 4); err != nil {
			return err
		}
	} else {
		entries, err := st.history.List(ctx)
		if err != nil {
			return err
		}
		stats = statsFromEntries(entries)
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Recordings\t%d\n", stats.TotalRecordings)
	fmt.Fprintf(w, "Overall\t%.1f\n", stats.AvgOverallScore)
	fmt.Fprintf(w, "Clarity\t%.1f\n", stats.AvgClarityScore)
	fmt.Fprintf(w, "Confidence\t%.1f\n", stats.AvgConfidenceScore)
	fmt.Fprintf(w, "Engagement\t%.1f\n", stats.AvgEngagementScore)
	fmt.Fprintf(w, "Structure\t%.1f\n", stats.AvgStructureScore)
	fmt.Fprintf(w, "WPM\t%.0f\n", stats.AvgWPM)
	fmt.Fprintf(w, "Fillers\t%.1f\n", stats.AvgFillerCount)
	w.Flush()

	if len(snapshots) > 0 {
		fmt.Fprintln(out)
		writeSnapshots(out, snapshots)
	}
	return nil
}

func writeSnapshots(out io.Writer, snapshots []db.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WEEK\tRECORDINGS\tSCORE\tCHANGE\tFILLERS\tCHANGE")
	for _, s := range snapshots {
		fmt.Fprintf(w, "%s\t%d\t%.1f\t%+.1f\t%.1f\t%+.1f\n",
			s.PeriodStart.Format(time.DateOnly),
			s.RecordingsInPeriod,
			s.Averages.AvgOverallScore, s.ScoreImprovement,
			s.Averages.AvgFillerCount, -s.FillerReduction,
		)
	}
	w.Flush()
}

// statsFromEntries averages what the file backend keeps locally.
func statsFromEntries(entries []history.Entry) db.Stats {
	s := db.Stats{TotalRecordings: len(entries)}
	if len(entries) == 0 {
		return s
	}
	for _, e := range entries {
		s.AvgOverallScore += e.Score
		s.AvgClarityScore += e.Feedback.ClarityScore
		s.AvgConfidenceScore += e.Feedback.ConfidenceScore
		s.AvgEngagementScore += e.Feedback.EngagementScore
		s.AvgStructureScore += e.Feedback.StructureScore
		s.AvgWPM += float64(e.WPM)
		s.AvgFillerCount += float64(e.Feedback.FillerTotal())
	}
	n := float64(len(entries))
	s.AvgOverallScore /= n
	s.AvgClarityScore /= n
	s.AvgConfidenceScore /= n
	s.AvgEngagementScore /= n
	s.AvgStructureScore /= n
	s.AvgWPM /= n
	s.AvgFillerCount /= n
	return s
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid recording id %q", s)
	}
	return id, nil
}
