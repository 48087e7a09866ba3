package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/archive"
	"github.com/jwulff/podium/internal/config"
	"github.com/jwulff/podium/internal/db"
	"github.com/jwulff/podium/internal/history"
	"github.com/jwulff/podium/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// stores bundles the persistence a command needs. db is nil for the file
// backend and blobs is nil when archiving is disabled.
type stores struct {
	history history.Store
	db      *db.Store
	blobs   *archive.Blob
}

func (s *stores) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// openStores opens the configured history backend and, when a storage
// account is configured, the audio archive.
func (o *rootOptions) openStores(ctx context.Context, withArchive bool) (*stores, error) {
	cfg := o.cfg
	s := &stores{}

	switch cfg.HistoryBackend {
	case config.BackendSQLite:
		store, err := o.openDB(ctx)
		if err != nil {
			return nil, err
		}
		s.db = store
		s.history = db.NewHistoryStore(store, cfg.UserID, cfg.HistoryCap)
	default:
		dir := cfg.HistoryDir
		if dir == "" {
			dir = configDir()
		}
		fs, err := history.OpenFile(history.FileConfig{
			Dir:    dir,
			Key:    cfg.HistoryKey,
			Cap:    cfg.HistoryCap,
			Logger: o.logger,
		})
		if err != nil {
			return nil, err
		}
		s.history = fs
	}

	if withArchive && cfg.ArchiveEnabled() {
		blobs, err := archive.New(ctx, archive.Config{
			ConnectionString: cfg.AzureConnectionString,
			Container:        cfg.AzureContainer,
			UserID:           cfg.UserID,
			Logger:           o.logger,
		})
		if err != nil {
			// Recording still works without the archive.
			o.logger.Warn("audio archive unavailable", "error", err)
		} else {
			s.blobs = blobs
			s.history = archive.WithCleanup(s.history, blobs, o.logger)
		}
	}
	return s, nil
}

// openDB opens the SQLite store and makes sure the configured user exists.
func (o *rootOptions) openDB(ctx context.Context) (*db.Store, error) {
	path := o.cfg.DBPath
	if path == "" {
		path = db.DefaultDBPath()
	}
	store, err := db.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureUser(ctx, o.cfg.UserID, "", "", time.Now()); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return store, nil
}

func (o *rootOptions) analysisClient() (*analysis.Client, error) {
	return analysis.NewClient(analysis.Config{
		BaseURL: o.cfg.BackendURL,
		Timeout: o.cfg.RequestTimeout,
	})
}

// requireSQLite returns an error naming the command when the file backend
// is configured.
func (o *rootOptions) requireSQLite(name string) error {
	if o.cfg.HistoryBackend != config.BackendSQLite {
		return fmt.Errorf("%s needs the sqlite history backend (set PODIUM_HISTORY=sqlite)", name)
	}
	return nil
}

// newMetrics returns nil when no metrics address is configured.
func newMetrics(cfg *config.Config) (*metrics.Metrics, *prometheus.Registry) {
	if cfg.MetricsAddr == "" {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg), reg
}
