// Package scheduler creates periodic progress snapshots.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwulff/podium/internal/db"
	"github.com/jwulff/podium/internal/metrics"
	"github.com/robfig/cron/v3"
)

// DefaultSpec runs every Monday at 00:00 UTC.
const DefaultSpec = "0 0 * * 1"

// DefaultPeriod is the window each snapshot aggregates.
const DefaultPeriod = 7 * 24 * time.Hour

// SnapshotStore is implemented by *db.Store.
type SnapshotStore interface {
	UserIDs(ctx context.Context) ([]string, error)
	CreateSnapshot(ctx context.Context, userID string, start, end, now time.Time) (*db.Snapshot, error)
}

// Config configures a Scheduler.
type Config struct {
	Store   SnapshotStore
	Spec    string
	Period  time.Duration
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Scheduler runs snapshot jobs on a cron schedule.
type Scheduler struct {
	cfg    Config
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates the schedule and returns a stopped scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Store == nil {
		return nil, errors.New("scheduler: store is required")
	}
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(cron.WithLocation(time.UTC))
	s := &Scheduler{cfg: cfg, cron: c, logger: logger.With("component", "scheduler")}
	if _, err := c.AddFunc(cfg.Spec, s.job); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Run starts the cron loop and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.cfg.Spec)

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	<-done.Done()
	s.logger.Info("scheduler stopped")
}

// Next returns the next scheduled run, or the zero time when none is
// scheduled. It works before Run has started the cron loop.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if next := entries[0].Next; !next.IsZero() {
		return next
	}
	return entries[0].Schedule.Next(s.cfg.Now().In(time.UTC))
}

func (s *Scheduler) job() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("snapshot run failed", "error", err)
	}
}

// RunOnce snapshots the last period for every user. Users with no
// recordings in the period are skipped. Per-user failures are joined.
func (s *Scheduler) RunOnce(ctx context.Context) ([]db.Snapshot, error) {
	users, err := s.cfg.Store.UserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	now := s.cfg.Now().UTC()
	start := now.Add(-s.cfg.Period)

	var (
		created []db.Snapshot
		errs    []error
	)
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		snap, err := s.cfg.Store.CreateSnapshot(ctx, userID, start, now, now)
		s.cfg.Metrics.Snapshot(err)
		if err != nil {
			errs = append(errs, fmt.Errorf("snapshot %s: %w", userID, err))
			continue
		}
		if snap == nil {
			s.logger.Debug("no recordings in period", "user", userID)
			continue
		}
		s.logger.Info("progress snapshot created",
			"user", userID,
			"recordings", snap.RecordingsInPeriod,
			"score_improvement", snap.ScoreImprovement,
		)
		created = append(created, *snap)
	}
	return created, errors.Join(errs...)
}
