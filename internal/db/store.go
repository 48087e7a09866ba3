package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/history"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a recording does not exist for the user.
var ErrNotFound = errors.New("recording not found")

// Store provides access to the podium SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "podium", "podium.sqlite")
}

// Open opens (creating if needed) the database with WAL and applies the
// schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureUser creates the profile on first use and refreshes lastLogin
// afterwards.
func (s *Store) EnsureUser(ctx context.Context, userID, email, displayName string, now time.Time) error {
	ts := unixFromTime(now)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, displayName, createdAt, lastLogin)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET lastLogin = excluded.lastLogin
	`, userID, email, displayName, ts, ts)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// User returns the profile, or nil if the user has never been seen.
func (s *Store) User(ctx context.Context, userID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, displayName, preferredAiPersonality, totalRecordings, createdAt, lastLogin
		FROM users
		WHERE id = ?
	`, userID)

	var u User
	var personality string
	var createdAt, lastLogin float64
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &personality,
		&u.TotalRecordings, &createdAt, &lastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.PreferredAIPersonality = analysis.Personality(personality)
	u.CreatedAt = timeFromUnix(createdAt)
	u.LastLogin = timeFromUnix(lastLogin)
	return &u, nil
}

// SetPreferredPersonality stores the user's default feedback personality.
func (s *Store) SetPreferredPersonality(ctx context.Context, userID string, p analysis.Personality) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", analysis.ErrInvalidPersonality, p)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET preferredAiPersonality = ? WHERE id = ?`, string(p), userID)
	if err != nil {
		return fmt.Errorf("update personality: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q not found", userID)
	}
	return nil
}

// SaveRecording inserts a recording under a fresh document id and bumps
// the user's recording count.
func (s *Store) SaveRecording(ctx context.Context, userID string, d history.Draft, now time.Time) (Recording, error) {
	feedback, err := json.Marshal(d.Feedback)
	if err != nil {
		return Recording{}, fmt.Errorf("marshal feedback: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Recording{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var lastID int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM recordings`).Scan(&lastID); err != nil {
		return Recording{}, fmt.Errorf("next id: %w", err)
	}

	rec := Recording{
		DocID:             uuid.NewString(),
		ID:                history.NextID(now, lastID),
		UserID:            userID,
		CreatedAt:         timeFromUnix(unixFromTime(now)),
		DurationSeconds:   d.Duration,
		WordCount:         d.WordCount,
		SpeechGoal:        d.Goal,
		Transcript:        d.Transcript,
		TranscriptPreview: d.TranscriptPreview,
		OverallScore:      d.Score,
		ClarityScore:      d.Feedback.ClarityScore,
		ConfidenceScore:   d.Feedback.ConfidenceScore,
		EngagementScore:   d.Feedback.EngagementScore,
		StructureScore:    d.Feedback.StructureScore,
		WordsPerMinute:    d.WPM,
		FillerWordsCount:  d.Feedback.FillerTotal(),
		Feedback:          d.Feedback,
		SessionID:         d.SessionID,
		AudioFilePath:     d.AudioPath,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recordings (docId, id, userId, createdAt, durationSeconds, wordCount,
			speechGoal, transcriptText, transcriptPreview, overallScore, clarityScore,
			confidenceScore, engagementScore, structureScore, wordsPerMinute,
			fillerWordsCount, feedback, sessionId, audioFilePath, isPinned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`, rec.DocID, rec.ID, rec.UserID, unixFromTime(now), rec.DurationSeconds, rec.WordCount,
		rec.SpeechGoal, rec.Transcript, rec.TranscriptPreview, rec.OverallScore, rec.ClarityScore,
		rec.ConfidenceScore, rec.EngagementScore, rec.StructureScore, rec.WordsPerMinute,
		rec.FillerWordsCount, string(feedback), nullString(rec.SessionID), nullString(rec.AudioFilePath))
	if err != nil {
		return Recording{}, fmt.Errorf("insert recording: %w", err)
	}

	ts := unixFromTime(now)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, createdAt, lastLogin, totalRecordings)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET totalRecordings = totalRecordings + 1
	`, userID, ts, ts)
	if err != nil {
		return Recording{}, fmt.Errorf("count recording: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Recording{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

const recordingColumns = `docId, id, userId, createdAt, durationSeconds, wordCount,
	speechGoal, transcriptText, transcriptPreview, overallScore, clarityScore,
	confidenceScore, engagementScore, structureScore, wordsPerMinute,
	fillerWordsCount, feedback, sessionId, audioFilePath, isPinned`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (Recording, error) {
	var r Recording
	var createdAt float64
	var feedback string
	var sessionID, audioPath sql.NullString
	var pinned int

	if err := row.Scan(&r.DocID, &r.ID, &r.UserID, &createdAt, &r.DurationSeconds, &r.WordCount,
		&r.SpeechGoal, &r.Transcript, &r.TranscriptPreview, &r.OverallScore, &r.ClarityScore,
		&r.ConfidenceScore, &r.EngagementScore, &r.StructureScore, &r.WordsPerMinute,
		&r.FillerWordsCount, &feedback, &sessionID, &audioPath, &pinned); err != nil {
		return Recording{}, err
	}

	r.CreatedAt = timeFromUnix(createdAt)
	r.IsPinned = pinned != 0
	if sessionID.Valid {
		r.SessionID = sessionID.String
	}
	if audioPath.Valid {
		r.AudioFilePath = audioPath.String
	}
	if err := json.Unmarshal([]byte(feedback), &r.Feedback); err != nil {
		return Recording{}, fmt.Errorf("decode feedback for %s: %w", r.DocID, err)
	}
	return r, nil
}

// Recordings returns up to limit recordings of a user, pinned first then
// newest.
func (s *Store) Recordings(ctx context.Context, userID string, limit int) ([]Recording, error) {
	if limit <= 0 {
		limit = history.DefaultCap
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordingColumns+`
		FROM recordings
		WHERE userId = ?
		ORDER BY isPinned DESC, createdAt DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var recs []Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// RecordingByDocID returns one recording by its document id.
func (s *Store) RecordingByDocID(ctx context.Context, docID string) (Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE docId = ?`, docID)
	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, fmt.Errorf("recording %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return Recording{}, fmt.Errorf("scan recording: %w", err)
	}
	return r, nil
}

// RecordingByID returns one recording of a user by its numeric id.
func (s *Store) RecordingByID(ctx context.Context, userID string, id int64) (Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE userId = ? AND id = ?`, userID, id)
	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, fmt.Errorf("recording %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Recording{}, fmt.Errorf("scan recording: %w", err)
	}
	return r, nil
}

// DeleteRecording removes a recording of a user.
func (s *Store) DeleteRecording(ctx context.Context, userID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE userId = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetPinned sets the pin flag of a recording.
func (s *Store) SetPinned(ctx context.Context, userID string, id int64, pinned bool) error {
	v := 0
	if pinned {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE recordings SET isPinned = ? WHERE userId = ? AND id = ?`, v, userID, id)
	if err != nil {
		return fmt.Errorf("update pin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recording %d: %w", id, ErrNotFound)
	}
	return nil
}

// Stats averages every recording of a user. A user without recordings
// gets all zeros.
func (s *Store) Stats(ctx context.Context, userID string) (Stats, error) {
	return s.stats(ctx, `WHERE userId = ?`, userID)
}

func (s *Store) stats(ctx context.Context, where string, args ...any) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(AVG(overallScore), 0), COALESCE(AVG(clarityScore), 0),
			COALESCE(AVG(confidenceScore), 0), COALESCE(AVG(engagementScore), 0),
			COALESCE(AVG(structureScore), 0), COALESCE(AVG(wordsPerMinute), 0),
			COALESCE(AVG(fillerWordsCount), 0)
		FROM recordings `+where, args...)

	var st Stats
	if err := row.Scan(&st.TotalRecordings, &st.AvgOverallScore, &st.AvgClarityScore,
		&st.AvgConfidenceScore, &st.AvgEngagementScore, &st.AvgStructureScore,
		&st.AvgWPM, &st.AvgFillerCount); err != nil {
		return Stats{}, fmt.Errorf("scan stats: %w", err)
	}
	return st, nil
}

// CreateSnapshot records the averages of a user's recordings created in
// [start, end]. It returns nil when the period has no recordings.
func (s *Store) CreateSnapshot(ctx context.Context, userID string, start, end, now time.Time) (*Snapshot, error) {
	avg, err := s.stats(ctx, `WHERE userId = ? AND createdAt >= ? AND createdAt <= ?`,
		userID, unixFromTime(start), unixFromTime(end))
	if err != nil {
		return nil, err
	}
	if avg.TotalRecordings == 0 {
		return nil, nil
	}

	snap := &Snapshot{
		ID:                 uuid.NewString(),
		UserID:             userID,
		PeriodStart:        start,
		PeriodEnd:          end,
		CreatedAt:          now,
		Averages:           avg,
		RecordingsInPeriod: avg.TotalRecordings,
	}

	prev, err := s.previousSnapshot(ctx, userID, start)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		snap.ScoreImprovement = avg.AvgOverallScore - prev.Averages.AvgOverallScore
		snap.FillerReduction = prev.Averages.AvgFillerCount - avg.AvgFillerCount
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO progress_snapshots (id, userId, periodStart, periodEnd, createdAt,
			avgOverallScore, avgClarityScore, avgConfidenceScore, avgEngagementScore,
			avgStructureScore, avgWpm, avgFillerCount, scoreImprovement, fillerReduction,
			recordingsInPeriod)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, userID, unixFromTime(start), unixFromTime(end), unixFromTime(now),
		avg.AvgOverallScore, avg.AvgClarityScore, avg.AvgConfidenceScore, avg.AvgEngagementScore,
		avg.AvgStructureScore, avg.AvgWPM, avg.AvgFillerCount, snap.ScoreImprovement,
		snap.FillerReduction, snap.RecordingsInPeriod)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

const snapshotColumns = `id, userId, periodStart, periodEnd, createdAt,
	avgOverallScore, avgClarityScore, avgConfidenceScore, avgEngagementScore,
	avgStructureScore, avgWpm, avgFillerCount, scoreImprovement, fillerReduction,
	recordingsInPeriod`

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var sn Snapshot
	var start, end, created float64
	if err := row.Scan(&sn.ID, &sn.UserID, &start, &end, &created,
		&sn.Averages.AvgOverallScore, &sn.Averages.AvgClarityScore, &sn.Averages.AvgConfidenceScore,
		&sn.Averages.AvgEngagementScore, &sn.Averages.AvgStructureScore, &sn.Averages.AvgWPM,
		&sn.Averages.AvgFillerCount, &sn.ScoreImprovement, &sn.FillerReduction,
		&sn.RecordingsInPeriod); err != nil {
		return nil, err
	}
	sn.PeriodStart = timeFromUnix(start)
	sn.PeriodEnd = timeFromUnix(end)
	sn.CreatedAt = timeFromUnix(created)
	sn.Averages.TotalRecordings = sn.RecordingsInPeriod
	return &sn, nil
}

func (s *Store) previousSnapshot(ctx context.Context, userID string, before time.Time) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM progress_snapshots
		WHERE userId = ? AND periodEnd < ?
		ORDER BY periodEnd DESC
		LIMIT 1
	`, userID, unixFromTime(before))

	sn, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return sn, nil
}

// Snapshots returns up to limit snapshots of a user, newest period first.
func (s *Store) Snapshots(ctx context.Context, userID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 12
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM progress_snapshots
		WHERE userId = ?
		ORDER BY periodEnd DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		sn, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, *sn)
	}
	return out, rows.Err()
}

// UserIDs lists every known user.
func (s *Store) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
