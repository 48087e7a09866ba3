package archive

import (
	"context"
	"log/slog"

	"github.com/jwulff/podium/internal/history"
)

// Deleter removes an archived recording by name.
type Deleter interface {
	Delete(ctx context.Context, name string) error
}

// CleanupStore deletes a recording's archived audio when its history entry
// is deleted.
type CleanupStore struct {
	history.Store
	blobs  Deleter
	logger *slog.Logger
}

var _ history.Store = (*CleanupStore)(nil)

// WithCleanup wraps store. A nil blobs returns store unchanged.
func WithCleanup(store history.Store, blobs Deleter, logger *slog.Logger) history.Store {
	if blobs == nil {
		return store
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupStore{Store: store, blobs: blobs, logger: logger.With("component", "archive")}
}

// Delete removes the entry, then its audio. Audio failures are logged.
func (s *CleanupStore) Delete(ctx context.Context, id int64) error {
	var audioPath string
	entries, err := s.Store.List(ctx)
	if err == nil {
		for _, e := range entries {
			if e.ID == id {
				audioPath = e.AudioPath
				break
			}
		}
	}

	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	if audioPath == "" {
		return nil
	}
	if err := s.blobs.Delete(ctx, audioPath); err != nil {
		s.logger.Warn("archived audio not deleted", "blob", audioPath, "error", err)
	}
	return nil
}
