// Package history keeps the list of recent recordings shown next to the
// recorder. Pinned entries come first, then the newest.
package history

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/transcript"
)

// DefaultCap is the number of entries kept.
const DefaultCap = 10

// DefaultKey names the local history blob.
const DefaultKey = "podiumPalHistory"

const previewLen = 100

// ErrNotFound is returned for an unknown entry id.
var ErrNotFound = errors.New("history entry not found")

// Entry is one saved recording.
type Entry struct {
	ID                int64           `json:"id"`
	Timestamp         time.Time       `json:"timestamp"`
	IsPinned          bool            `json:"isPinned"`
	Goal              string          `json:"goal"`
	Transcript        string          `json:"transcript"`
	TranscriptPreview string          `json:"transcriptPreview"`
	Duration          int             `json:"duration"`
	WordCount         int             `json:"wordCount"`
	WPM               int             `json:"wpm"`
	Score             float64         `json:"score"`
	Feedback          analysis.Result `json:"feedback"`
	SessionID         string          `json:"sessionId,omitempty"`
	AudioPath         string          `json:"audioPath,omitempty"`
}

// Draft is an entry before the store assigns its id and timestamp.
type Draft struct {
	Goal              string
	Transcript        string
	TranscriptPreview string
	Duration          int
	WordCount         int
	WPM               int
	Score             float64
	Feedback          analysis.Result
	SessionID         string
	AudioPath         string
}

// NewDraft derives a draft from a finished, analysed recording.
func NewDraft(goal, text string, duration int, res analysis.Result) Draft {
	text = strings.TrimSpace(text)
	words := transcript.CountWords(text)
	return Draft{
		Goal:              goal,
		Transcript:        text,
		TranscriptPreview: Preview(text),
		Duration:          duration,
		WordCount:         words,
		WPM:               analysis.WPM(words, duration),
		Score:             res.OverallScore,
		Feedback:          res,
		SessionID:         res.SessionID,
	}
}

// Preview returns the first 100 characters of text, with "..." appended
// only when something was cut.
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen]) + "..."
}

// Store persists history entries. Implementations may be slow or remote.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, d Draft) (Entry, error)
	Delete(ctx context.Context, id int64) error
	TogglePin(ctx context.Context, id int64) (Entry, error)
}

// Sort orders entries pinned first, then by descending timestamp, then by
// descending id.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
}

// Trim shrinks a sorted list to max entries. The oldest unpinned entry
// other than keep is evicted first; pinned entries go only when nothing
// else is left.
func Trim(entries []Entry, max int, keep int64) []Entry {
	for len(entries) > max && len(entries) > 0 {
		victim := -1
		for i := len(entries) - 1; i >= 0; i-- {
			if !entries[i].IsPinned && entries[i].ID != keep {
				victim = i
				break
			}
		}
		if victim < 0 {
			for i := len(entries) - 1; i >= 0; i-- {
				if entries[i].ID != keep {
					victim = i
					break
				}
			}
		}
		if victim < 0 {
			victim = len(entries) - 1
		}
		entries = append(entries[:victim], entries[victim+1:]...)
	}
	return entries
}

// NextID returns a millisecond id for now that is strictly greater than
// last.
func NextID(now time.Time, last int64) int64 {
	id := now.UnixMilli()
	if id <= last {
		id = last + 1
	}
	return id
}

// Entry builds the stored form of d.
func (d Draft) Entry(id int64, ts time.Time) Entry {
	return Entry{
		ID:                id,
		Timestamp:         ts,
		Goal:              d.Goal,
		Transcript:        d.Transcript,
		TranscriptPreview: d.TranscriptPreview,
		Duration:          d.Duration,
		WordCount:         d.WordCount,
		WPM:               d.WPM,
		Score:             d.Score,
		Feedback:          d.Feedback,
		SessionID:         d.SessionID,
		AudioPath:         d.AudioPath,
	}
}
