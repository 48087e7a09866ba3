package db

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	displayName TEXT NOT NULL DEFAULT '',
	preferredAiPersonality TEXT NOT NULL DEFAULT 'supportive',
	totalRecordings INTEGER NOT NULL DEFAULT 0,
	createdAt REAL NOT NULL,
	lastLogin REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS recordings (
	docId TEXT PRIMARY KEY,
	id INTEGER NOT NULL UNIQUE,
	userId TEXT NOT NULL,
	createdAt REAL NOT NULL,
	durationSeconds INTEGER NOT NULL DEFAULT 0,
	wordCount INTEGER NOT NULL DEFAULT 0,
	speechGoal TEXT NOT NULL DEFAULT '',
	transcriptText TEXT NOT NULL DEFAULT '',
	transcriptPreview TEXT NOT NULL DEFAULT '',
	overallScore REAL NOT NULL DEFAULT 0,
	clarityScore REAL NOT NULL DEFAULT 0,
	confidenceScore REAL NOT NULL DEFAULT 0,
	engagementScore REAL NOT NULL DEFAULT 0,
	structureScore REAL NOT NULL DEFAULT 0,
	wordsPerMinute INTEGER NOT NULL DEFAULT 0,
	fillerWordsCount INTEGER NOT NULL DEFAULT 0,
	feedback TEXT NOT NULL DEFAULT '{}',
	sessionId TEXT,
	audioFilePath TEXT,
	isPinned INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS recordings_user ON recordings(userId, isPinned, createdAt);

CREATE TABLE IF NOT EXISTS progress_snapshots (
	id TEXT PRIMARY KEY,
	userId TEXT NOT NULL,
	periodStart REAL NOT NULL,
	periodEnd REAL NOT NULL,
	createdAt REAL NOT NULL,
	avgOverallScore REAL NOT NULL,
	avgClarityScore REAL NOT NULL,
	avgConfidenceScore REAL NOT NULL,
	avgEngagementScore REAL NOT NULL,
	avgStructureScore REAL NOT NULL,
	avgWpm REAL NOT NULL,
	avgFillerCount REAL NOT NULL,
	scoreImprovement REAL NOT NULL,
	fillerReduction REAL NOT NULL,
	recordingsInPeriod INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS snapshots_user ON progress_snapshots(userId, periodEnd);
`

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
