// Package db provides SQLite storage for recordings, user profiles and
// progress snapshots.
package db

import (
	"time"

	"github.com/jwulff/podium/internal/analysis"
)

// User is a profile row.
type User struct {
	ID                     string
	Email                  string
	DisplayName            string
	PreferredAIPersonality analysis.Personality
	TotalRecordings        int
	CreatedAt              time.Time
	LastLogin              time.Time
}

// Recording is one analysed recording owned by a user.
type Recording struct {
	DocID             string
	ID                int64
	UserID            string
	CreatedAt         time.Time
	DurationSeconds   int
	WordCount         int
	SpeechGoal        string
	Transcript        string
	TranscriptPreview string
	OverallScore      float64
	ClarityScore      float64
	ConfidenceScore   float64
	EngagementScore   float64
	StructureScore    float64
	WordsPerMinute    int
	FillerWordsCount  int
	Feedback          analysis.Result
	SessionID         string
	AudioFilePath     string
	IsPinned          bool
}

// Stats aggregates every recording of a user.
type Stats struct {
	TotalRecordings    int     `json:"total_recordings"`
	AvgOverallScore    float64 `json:"avg_overall_score"`
	AvgClarityScore    float64 `json:"avg_clarity_score"`
	AvgConfidenceScore float64 `json:"avg_confidence_score"`
	AvgEngagementScore float64 `json:"avg_engagement_score"`
	AvgStructureScore  float64 `json:"avg_structure_score"`
	AvgWPM             float64 `json:"avg_wpm"`
	AvgFillerCount     float64 `json:"avg_filler_count"`
}

// Snapshot summarises a user's recordings over one period and compares it
// to the previous snapshot.
type Snapshot struct {
	ID                 string
	UserID             string
	PeriodStart        time.Time
	PeriodEnd          time.Time
	CreatedAt          time.Time
	Averages           Stats
	ScoreImprovement   float64
	FillerReduction    float64
	RecordingsInPeriod int
}
