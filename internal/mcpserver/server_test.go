package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/db"
	"github.com/jwulff/podium/internal/history"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *db.Store) {
	t.Helper()
	ctx := context.Background()
	store, err := db.Open(ctx, filepath.Join(t.TempDir(), "podium.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, "u1", "test", nil), store
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func seed(t *testing.T, store *db.Store, n int) []db.Recording {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var out []db.Recording
	for i := 0; i < n; i++ {
		d := history.NewDraft("goal", "hello there everyone", 60, analysis.Result{
			OverallScore: float64(60 + i*10),
			FillerWords:  map[string]int{"um": i},
			Summary:      "fine",
		})
		rec, err := store.SaveRecording(ctx, "u1", d, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func TestListRecordings(t *testing.T) {
	s, store := newTestServer(t)
	seed(t, store, 3)

	res, err := s.listRecordings(context.Background(), call(map[string]any{"limit": 2}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got []recordingSummary
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got, 2)
	assert.Equal(t, 80.0, got[0].Score)
	assert.Equal(t, 70.0, got[1].Score)
}

func TestGetRecording(t *testing.T) {
	s, store := newTestServer(t)
	recs := seed(t, store, 2)

	res, err := s.getRecording(context.Background(), call(map[string]any{"id": float64(recs[1].ID)}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var got recordingDetail
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, recs[1].ID, got.ID)
	assert.Equal(t, "hello there everyone", got.Transcript)
	assert.Equal(t, map[string]int{"um": 1}, got.FillerWords)
}

func TestGetRecordingErrors(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.getRecording(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.getRecording(context.Background(), call(map[string]any{"id": 42}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "not found")
}

func TestRecordingStats(t *testing.T) {
	s, store := newTestServer(t)
	seed(t, store, 2)

	res, err := s.recordingStats(context.Background(), call(nil))
	require.NoError(t, err)

	var got statsResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.Equal(t, 2, got.TotalRecordings)
	assert.InDelta(t, 65, got.AvgOverallScore, 0.001)
	assert.Empty(t, got.Snapshots)
}
