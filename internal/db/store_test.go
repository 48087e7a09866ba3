package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/history"
	_ "modernc.org/sqlite"
)

// createTestStore creates an in-memory SQLite database with the podium schema.
func createTestStore(t *testing.T) *Store {
	t.Helper()

	rawDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// Every pooled connection would get its own empty in-memory database.
	rawDB.SetMaxOpenConns(1)
	t.Cleanup(func() { rawDB.Close() })

	store := &Store{db: rawDB}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testDraft(goal string, score float64) history.Draft {
	return history.NewDraft(goal, "so um I think like we should ship", 30, analysis.Result{
		OverallScore: score,
		ClarityScore: score - 1,
		Pace:         140,
		FillerWords:  map[string]int{"um": 1, "like": 2},
		Summary:      "solid",
	})
}

func TestSaveAndListRecordings(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	base := time.Unix(1700000000, 0)

	first, err := store.SaveRecording(ctx, "u1", testDraft("first", 6), base)
	if err != nil {
		t.Fatalf("SaveRecording: %v", err)
	}
	second, err := store.SaveRecording(ctx, "u1", testDraft("second", 8), base.Add(time.Minute))
	if err != nil {
		t.Fatalf("SaveRecording: %v", err)
	}
	if _, err := store.SaveRecording(ctx, "u2", testDraft("other user", 5), base); err != nil {
		t.Fatalf("SaveRecording: %v", err)
	}

	if first.DocID == "" || first.DocID == second.DocID {
		t.Errorf("doc ids = %q, %q, want distinct non-empty", first.DocID, second.DocID)
	}
	if second.ID <= first.ID {
		t.Errorf("ids = %d, %d, want increasing", first.ID, second.ID)
	}

	recs, err := store.Recordings(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("Recordings: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d recordings, want 2", len(recs))
	}
	if recs[0].SpeechGoal != "second" {
		t.Errorf("recs[0].SpeechGoal = %q, want %q", recs[0].SpeechGoal, "second")
	}
	if recs[1].FillerWordsCount != 3 {
		t.Errorf("FillerWordsCount = %d, want 3", recs[1].FillerWordsCount)
	}
	if recs[1].Feedback.Summary != "solid" || recs[1].Feedback.FillerWords["like"] != 2 {
		t.Errorf("feedback = %+v, want round-tripped result", recs[1].Feedback)
	}
	if !recs[1].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", recs[1].CreatedAt, base)
	}

	got, err := store.RecordingByDocID(ctx, first.DocID)
	if err != nil {
		t.Fatalf("RecordingByDocID: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("RecordingByDocID id = %d, want %d", got.ID, first.ID)
	}
}

func TestRecordingsPinnedFirstAndLimited(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	base := time.Unix(1700000000, 0)

	var ids []int64
	for i := 0; i < 12; i++ {
		rec, err := store.SaveRecording(ctx, "u1", testDraft("talk", 5), base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("SaveRecording: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	if err := store.SetPinned(ctx, "u1", ids[0], true); err != nil {
		t.Fatalf("SetPinned: %v", err)
	}

	recs, err := store.Recordings(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("Recordings: %v", err)
	}
	if len(recs) != 10 {
		t.Fatalf("got %d recordings, want 10", len(recs))
	}
	if recs[0].ID != ids[0] || !recs[0].IsPinned {
		t.Errorf("recs[0] = %d pinned=%v, want %d pinned", recs[0].ID, recs[0].IsPinned, ids[0])
	}
	if recs[1].ID != ids[11] {
		t.Errorf("recs[1] = %d, want newest %d", recs[1].ID, ids[11])
	}
}

func TestDeleteRecording(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)

	rec, _ := store.SaveRecording(ctx, "u1", testDraft("x", 5), time.Unix(1700000000, 0))

	if err := store.DeleteRecording(ctx, "u2", rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete as other user err = %v, want ErrNotFound", err)
	}
	if err := store.DeleteRecording(ctx, "u1", rec.ID); err != nil {
		t.Fatalf("DeleteRecording: %v", err)
	}
	if _, err := store.RecordingByID(ctx, "u1", rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("RecordingByID after delete err = %v, want ErrNotFound", err)
	}
}

func TestUserProfile(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	now := time.Unix(1700000000, 0)

	u, err := store.User(ctx, "u1")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil user, got %+v", u)
	}

	if err := store.EnsureUser(ctx, "u1", "a@example.com", "Ada", now); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if _, err := store.SaveRecording(ctx, "u1", testDraft("x", 5), now); err != nil {
		t.Fatalf("SaveRecording: %v", err)
	}
	if _, err := store.SaveRecording(ctx, "u1", testDraft("y", 5), now); err != nil {
		t.Fatalf("SaveRecording: %v", err)
	}
	if err := store.SetPreferredPersonality(ctx, "u1", analysis.Mentor); err != nil {
		t.Fatalf("SetPreferredPersonality: %v", err)
	}
	if err := store.EnsureUser(ctx, "u1", "ignored", "ignored", now.Add(time.Hour)); err != nil {
		t.Fatalf("EnsureUser again: %v", err)
	}

	u, err = store.User(ctx, "u1")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if u.TotalRecordings != 2 {
		t.Errorf("TotalRecordings = %d, want 2", u.TotalRecordings)
	}
	if u.PreferredAIPersonality != analysis.Mentor {
		t.Errorf("PreferredAIPersonality = %q, want %q", u.PreferredAIPersonality, analysis.Mentor)
	}
	if u.Email != "a@example.com" {
		t.Errorf("Email = %q, want %q", u.Email, "a@example.com")
	}
	if !u.LastLogin.Equal(now.Add(time.Hour)) {
		t.Errorf("LastLogin = %v, want %v", u.LastLogin, now.Add(time.Hour))
	}

	if err := store.SetPreferredPersonality(ctx, "u1", "snarky"); !errors.Is(err, analysis.ErrInvalidPersonality) {
		t.Errorf("invalid personality err = %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	now := time.Unix(1700000000, 0)

	empty, err := store.Stats(ctx, "nobody")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if empty.TotalRecordings != 0 || empty.AvgOverallScore != 0 {
		t.Errorf("empty stats = %+v, want zeros", empty)
	}

	store.SaveRecording(ctx, "u1", testDraft("a", 6), now)
	store.SaveRecording(ctx, "u1", testDraft("b", 8), now)

	st, err := store.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalRecordings != 2 {
		t.Errorf("TotalRecordings = %d, want 2", st.TotalRecordings)
	}
	if st.AvgOverallScore != 7 {
		t.Errorf("AvgOverallScore = %v, want 7", st.AvgOverallScore)
	}
	if st.AvgClarityScore != 6 {
		t.Errorf("AvgClarityScore = %v, want 6", st.AvgClarityScore)
	}
	if st.AvgFillerCount != 3 {
		t.Errorf("AvgFillerCount = %v, want 3", st.AvgFillerCount)
	}
}

func TestCreateSnapshotComparesWithPrevious(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	week1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	week2 := week1.AddDate(0, 0, 7)
	week3 := week2.AddDate(0, 0, 7)

	store.SaveRecording(ctx, "u1", testDraft("a", 5), week1.Add(time.Hour))
	store.SaveRecording(ctx, "u1", testDraft("b", 8), week2.Add(time.Hour))

	first, err := store.CreateSnapshot(ctx, "u1", week1, week2.Add(-time.Second), week2)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if first == nil || first.ScoreImprovement != 0 {
		t.Fatalf("first snapshot = %+v, want improvement 0", first)
	}

	second, err := store.CreateSnapshot(ctx, "u1", week2, week3.Add(-time.Second), week3)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if second.ScoreImprovement != 3 {
		t.Errorf("ScoreImprovement = %v, want 3", second.ScoreImprovement)
	}
	if second.RecordingsInPeriod != 1 {
		t.Errorf("RecordingsInPeriod = %d, want 1", second.RecordingsInPeriod)
	}

	none, err := store.CreateSnapshot(ctx, "u1", week3, week3.AddDate(0, 0, 7), week3)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if none != nil {
		t.Errorf("empty period snapshot = %+v, want nil", none)
	}

	snaps, err := store.Snapshots(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != second.ID {
		t.Errorf("Snapshots = %d items, want 2 newest first", len(snaps))
	}
}

func TestHistoryStoreAdapter(t *testing.T) {
	ctx := context.Background()
	store := createTestStore(t)
	hs := NewHistoryStore(store, "u1", 3)

	clock := time.Unix(1700000000, 0)
	hs.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	var saved []history.Entry
	for i := 0; i < 4; i++ {
		e, err := hs.Save(ctx, testDraft("goal", float64(i)))
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		saved = append(saved, e)
	}

	list, err := hs.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d entries, want 3", len(list))
	}
	if list[0].ID != saved[3].ID {
		t.Errorf("list[0].ID = %d, want %d", list[0].ID, saved[3].ID)
	}

	pinned, err := hs.TogglePin(ctx, saved[0].ID)
	if err != nil {
		t.Fatalf("TogglePin: %v", err)
	}
	if !pinned.IsPinned {
		t.Error("TogglePin did not pin")
	}
	list, _ = hs.List(ctx)
	if list[0].ID != saved[0].ID {
		t.Errorf("pinned entry not first: got %d", list[0].ID)
	}

	if err := hs.Delete(ctx, 12345); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("Delete unknown err = %v, want history.ErrNotFound", err)
	}
	if _, err := hs.TogglePin(ctx, 12345); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("TogglePin unknown err = %v, want history.ErrNotFound", err)
	}
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "podium.sqlite")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, err := store.Stats(context.Background(), "u1"); err != nil {
		t.Errorf("Stats on fresh database: %v", err)
	}
}

func TestTimeFromUnix(t *testing.T) {
	want := time.Unix(1700000000, 500000000)
	got := timeFromUnix(unixFromTime(want))
	if d := got.Sub(want); d > time.Microsecond || d < -time.Microsecond {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}
