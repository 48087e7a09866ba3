package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/app"
	"github.com/jwulff/podium/internal/daemon"
	"github.com/jwulff/podium/internal/engine"
	"github.com/jwulff/podium/internal/metrics"
	"github.com/jwulff/podium/internal/scheduler"
	"github.com/jwulff/podium/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

type recordOptions struct {
	goal        string
	personality string
}

func addRecordFlags(cmd *cobra.Command, rec *recordOptions) {
	cmd.Flags().StringVarP(&rec.goal, "goal", "g", "", "What the speech should achieve")
	cmd.Flags().StringVarP(&rec.personality, "personality", "p", "",
		"Feedback personality: "+personalityNames())
}

func newRecordCommand(opts *rootOptions) *cobra.Command {
	rec := &recordOptions{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a practice speech and get feedback",
		Long: `Open the recorder. Press space to start and stop, r to retry a failed
analysis and q to quit.

When --goal is not given you are asked for one before the recorder opens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, opts, rec)
		},
	}
	addRecordFlags(cmd, rec)
	return cmd
}

func runRecord(cmd *cobra.Command, opts *rootOptions, rec *recordOptions) error {
	cfg := opts.cfg
	logger := opts.logger

	personality := cfg.DefaultPersonality()
	if rec.personality != "" {
		p, err := analysis.ParsePersonality(rec.personality)
		if err != nil {
			return err
		}
		personality = p
	}

	goal := strings.TrimSpace(rec.goal)
	if goal == "" {
		var err error
		goal, personality, err = promptGoal(cmd.InOrStdin(), cmd.OutOrStdout(), personality)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	socket := cfg.SocketPath
	if socket == "" {
		socket = daemon.SocketPath()
	}
	eng := engine.New(engine.Config{SocketPath: socket, Device: cfg.Device, Logger: logger})
	if err := eng.Connect(ctx); err != nil {
		return fmt.Errorf("speech daemon is not running at %s: %w", socket, err)
	}
	defer eng.Close()

	st, err := opts.openStores(ctx, true)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := opts.analysisClient()
	if err != nil {
		return err
	}

	m, reg := newMetrics(cfg)

	sc := session.Config{
		Recognizer:      eng,
		Audio:           eng,
		Analyzer:        client,
		History:         st.history,
		Metrics:         m,
		Logger:          logger,
		Locale:          cfg.Locale,
		FinalizeTimeout: cfg.FinalizeTimeout,
	}
	if st.blobs != nil {
		sc.Archiver = st.blobs
	}
	ctrl, err := session.New(sc)
	if err != nil {
		return err
	}

	if st.db != nil {
		if err := st.db.SetPreferredPersonality(ctx, cfg.UserID, personality); err != nil {
			logger.Warn("save preferred personality", "error", err)
		}
	}

	var sched *scheduler.Scheduler
	if st.db != nil {
		sched, err = scheduler.New(scheduler.Config{
			Store:   st.db,
			Spec:    cfg.SnapshotSchedule,
			Metrics: m,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })

	if reg != nil {
		g.Go(func() error { return metrics.Serve(gctx, cfg.MetricsAddr, reg) })
	}

	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}

	model := app.New(app.Config{
		Controller:  ctrl,
		History:     st.history,
		Goal:        goal,
		Personality: personality,
		Backend:     client.BaseURL(),
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
			return nil
		}
		return err
	})

	logger.Info("recorder started", "goal", goal, "personality", personality)
	return g.Wait()
}

// promptGoal asks for the speech goal and personality. Accessible mode is
// used when in is not a terminal.
func promptGoal(in io.Reader, out io.Writer, current analysis.Personality) (string, analysis.Personality, error) {
	var (
		goal        string
		personality = string(current)
	)

	options := make([]huh.Option[string], 0, len(analysis.Personalities))
	for _, p := range analysis.Personalities {
		options = append(options, huh.NewOption(p.Title(), string(p)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Speech goal").
				Description("What should this speech achieve?").
				Placeholder("Pitch the new roadmap to the team").
				Value(&goal).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return analysis.ErrMissingGoal
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Feedback personality").
				Options(options...).
				Value(&personality),
		),
	).
		WithInput(in).
		WithOutput(out)

	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return "", current, fmt.Errorf("goal prompt: %w", err)
	}

	p, err := analysis.ParsePersonality(personality)
	if err != nil {
		return "", current, err
	}
	return strings.TrimSpace(goal), p, nil
}

func personalityNames() string {
	names := make([]string, 0, len(analysis.Personalities))
	for _, p := range analysis.Personalities {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
