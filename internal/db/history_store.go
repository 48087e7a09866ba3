package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwulff/podium/internal/history"
)

var _ history.Store = (*HistoryStore)(nil)

// HistoryStore exposes one user's recordings as a history.Store.
type HistoryStore struct {
	store  *Store
	userID string
	cap    int
	now    func() time.Time
}

// NewHistoryStore scopes s to userID. List returns at most cap entries.
func NewHistoryStore(s *Store, userID string, cap int) *HistoryStore {
	if cap <= 0 {
		cap = history.DefaultCap
	}
	return &HistoryStore{store: s, userID: userID, cap: cap, now: time.Now}
}

// Entry converts a recording to its history form.
func (r Recording) Entry() history.Entry {
	return history.Entry{
		ID:                r.ID,
		Timestamp:         r.CreatedAt,
		IsPinned:          r.IsPinned,
		Goal:              r.SpeechGoal,
		Transcript:        r.Transcript,
		TranscriptPreview: r.TranscriptPreview,
		Duration:          r.DurationSeconds,
		WordCount:         r.WordCount,
		WPM:               r.WordsPerMinute,
		Score:             r.OverallScore,
		Feedback:          r.Feedback,
		SessionID:         r.SessionID,
		AudioPath:         r.AudioFilePath,
	}
}

// List returns the user's capped history.
func (h *HistoryStore) List(ctx context.Context) ([]history.Entry, error) {
	recs, err := h.store.Recordings(ctx, h.userID, h.cap)
	if err != nil {
		return nil, err
	}
	entries := make([]history.Entry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, r.Entry())
	}
	return entries, nil
}

// Save stores a new recording.
func (h *HistoryStore) Save(ctx context.Context, d history.Draft) (history.Entry, error) {
	rec, err := h.store.SaveRecording(ctx, h.userID, d, h.now())
	if err != nil {
		return history.Entry{}, err
	}
	return rec.Entry(), nil
}

// Delete removes a recording.
func (h *HistoryStore) Delete(ctx context.Context, id int64) error {
	return mapNotFound(h.store.DeleteRecording(ctx, h.userID, id))
}

// TogglePin flips the pin flag of a recording.
func (h *HistoryStore) TogglePin(ctx context.Context, id int64) (history.Entry, error) {
	rec, err := h.store.RecordingByID(ctx, h.userID, id)
	if err != nil {
		return history.Entry{}, mapNotFound(err)
	}
	if err := h.store.SetPinned(ctx, h.userID, id, !rec.IsPinned); err != nil {
		return history.Entry{}, mapNotFound(err)
	}
	rec.IsPinned = !rec.IsPinned
	return rec.Entry(), nil
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", history.ErrNotFound, err)
	}
	return err
}
