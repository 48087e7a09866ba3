// Package mcpserver exposes saved recordings to MCP clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jwulff/podium/internal/db"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DefaultLimit caps list_recordings when no limit is given.
const DefaultLimit = 10

// Source is the read side of *db.Store used by the tools.
type Source interface {
	Recordings(ctx context.Context, userID string, limit int) ([]db.Recording, error)
	RecordingByID(ctx context.Context, userID string, id int64) (db.Recording, error)
	Stats(ctx context.Context, userID string) (db.Stats, error)
	Snapshots(ctx context.Context, userID string, limit int) ([]db.Snapshot, error)
}

// Server answers tool calls for one user.
type Server struct {
	src    Source
	userID string
	logger *slog.Logger
	mcp    *server.MCPServer
}

// New registers the tools.
func New(src Source, userID, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		src:    src,
		userID: userID,
		logger: logger.With("component", "mcp"),
		mcp:    server.NewMCPServer("podium", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("list_recordings",
		mcp.WithDescription("List saved speech recordings, pinned first, then newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of recordings to return (default 10).")),
	), s.listRecordings)

	s.mcp.AddTool(mcp.NewTool("get_recording",
		mcp.WithDescription("Get one recording with its full transcript and feedback."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Recording id as shown by list_recordings.")),
	), s.getRecording)

	s.mcp.AddTool(mcp.NewTool("recording_stats",
		mcp.WithDescription("Average scores across all recordings and the latest progress snapshots."),
	), s.recordingStats)

	return s
}

// Serve speaks MCP on r and w until ctx is done or r closes.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	err := stdio.Listen(ctx, r, w)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

type recordingSummary struct {
	ID        int64   `json:"id"`
	CreatedAt string  `json:"created_at"`
	Goal      string  `json:"goal"`
	Preview   string  `json:"preview"`
	Duration  int     `json:"duration_seconds"`
	WPM       int     `json:"wpm"`
	Score     float64 `json:"overall_score"`
	Pinned    bool    `json:"pinned"`
}

func (s *Server) listRecordings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", DefaultLimit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	recs, err := s.src.Recordings(ctx, s.userID, limit)
	if err != nil {
		s.logger.Error("list recordings", "error", err)
		return mcp.NewToolResultError("failed to list recordings: " + err.Error()), nil
	}

	out := make([]recordingSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, recordingSummary{
			ID:        r.ID,
			CreatedAt: r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Goal:      r.SpeechGoal,
			Preview:   r.TranscriptPreview,
			Duration:  r.DurationSeconds,
			WPM:       r.WordsPerMinute,
			Score:     r.OverallScore,
			Pinned:    r.IsPinned,
		})
	}
	return jsonResult(out)
}

type recordingDetail struct {
	recordingSummary
	Transcript  string         `json:"transcript"`
	WordCount   int            `json:"word_count"`
	FillerWords map[string]int `json:"filler_words,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Tip         string         `json:"tip,omitempty"`
	Clarity     float64        `json:"clarity_score"`
	Confidence  float64        `json:"confidence_score"`
	Engagement  float64        `json:"engagement_score"`
	Structure   float64        `json:"structure_score"`
}

func (s *Server) getRecording(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetInt("id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("id is required"), nil
	}
	r, err := s.src.RecordingByID(ctx, s.userID, int64(id))
	if errors.Is(err, db.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("recording %d not found", id)), nil
	}
	if err != nil {
		s.logger.Error("get recording", "id", id, "error", err)
		return mcp.NewToolResultError("failed to load recording: " + err.Error()), nil
	}

	return jsonResult(recordingDetail{
		recordingSummary: recordingSummary{
			ID:        r.ID,
			CreatedAt: r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Goal:      r.SpeechGoal,
			Preview:   r.TranscriptPreview,
			Duration:  r.DurationSeconds,
			WPM:       r.WordsPerMinute,
			Score:     r.OverallScore,
			Pinned:    r.IsPinned,
		},
		Transcript:  r.Transcript,
		WordCount:   r.WordCount,
		FillerWords: r.Feedback.FillerWords,
		Summary:     r.Feedback.Summary,
		Tip:         r.Feedback.Tip,
		Clarity:     r.ClarityScore,
		Confidence:  r.ConfidenceScore,
		Engagement:  r.EngagementScore,
		Structure:   r.StructureScore,
	})
}

type statsResult struct {
	db.Stats
	Snapshots []snapshotSummary `json:"snapshots,omitempty"`
}

type snapshotSummary struct {
	PeriodStart      string  `json:"period_start"`
	PeriodEnd        string  `json:"period_end"`
	Recordings       int     `json:"recordings"`
	AvgScore         float64 `json:"avg_overall_score"`
	ScoreImprovement float64 `json:"score_improvement"`
	FillerReduction  float64 `json:"filler_reduction"`
}

func (s *Server) recordingStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.src.Stats(ctx, s.userID)
	if err != nil {
		s.logger.Error("recording stats", "error", err)
		return mcp.NewToolResultError("failed to compute stats: " + err.Error()), nil
	}
	snaps, err := s.src.Snapshots(ctx, s.userID, 4)
	if err != nil {
		s.logger.Warn("load snapshots", "error", err)
	}

	out := statsResult{Stats: st}
	for _, sn := range snaps {
		out.Snapshots = append(out.Snapshots, snapshotSummary{
			PeriodStart:      sn.PeriodStart.UTC().Format("2006-01-02"),
			PeriodEnd:        sn.PeriodEnd.UTC().Format("2006-01-02"),
			Recordings:       sn.RecordingsInPeriod,
			AvgScore:         sn.Averages.AvgOverallScore,
			ScoreImprovement: sn.ScoreImprovement,
			FillerReduction:  sn.FillerReduction,
		})
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
