package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/history"
	"github.com/jwulff/podium/internal/session"
)

type fakeController struct {
	snap    session.Snapshot
	updates chan session.Snapshot
	level   float64

	started  []string
	stopped  int
	retried  int
	resets   int
	startErr error
	stopErr  error
	retryErr error
}

func newFakeController() *fakeController {
	return &fakeController{
		snap:    session.Snapshot{State: session.Idle, Status: session.StatusReady},
		updates: make(chan session.Snapshot, 1),
	}
}

func (f *fakeController) Start(ctx context.Context, goal string, p analysis.Personality) error {
	f.started = append(f.started, goal+"/"+string(p))
	return f.startErr
}

func (f *fakeController) Stop(ctx context.Context) error {
	f.stopped++
	return f.stopErr
}

func (f *fakeController) Retry(ctx context.Context) error {
	f.retried++
	return f.retryErr
}

func (f *fakeController) Reset(ctx context.Context) error {
	f.resets++
	return nil
}

func (f *fakeController) Snapshot() session.Snapshot         { return f.snap }
func (f *fakeController) Updates() <-chan session.Snapshot { return f.updates }
func (f *fakeController) Level() float64                   { return f.level }

type fakeStore struct {
	entries []history.Entry
	pinned  []int64
	deleted []int64
}

func (s *fakeStore) List(ctx context.Context) ([]history.Entry, error) { return s.entries, nil }

func (s *fakeStore) Save(ctx context.Context, d history.Draft) (history.Entry, error) {
	return history.Entry{}, errors.New("not supported")
}

func (s *fakeStore) Delete(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) TogglePin(ctx context.Context, id int64) (history.Entry, error) {
	s.pinned = append(s.pinned, id)
	return history.Entry{ID: id, IsPinned: true}, nil
}

func newTestModel() (Model, *fakeController, *fakeStore) {
	ctrl := newFakeController()
	store := &fakeStore{}
	m := New(Config{Controller: ctrl, History: store, Goal: "Pitch my startup", Personality: analysis.Supportive})
	m.width = 100
	m.height = 30
	return m, ctrl, store
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func applyUpdate(m Model, msg tea.Msg) (Model, tea.Cmd) {
	newModel, cmd := m.Update(msg)
	return newModel.(Model), cmd
}

// run executes cmd and feeds a non-nil result back into the model. Batches
// are not expanded.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	if msg == nil {
		return m
	}
	m, _ = applyUpdate(m, msg)
	return m
}

func sampleEntries() []history.Entry {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []history.Entry{
		{ID: 3, Timestamp: ts, IsPinned: true, Goal: "Wedding toast", TranscriptPreview: "Friends and family", Score: 91, Duration: 75, WordCount: 180, WPM: 144},
		{ID: 2, Timestamp: ts.Add(-time.Hour), Goal: "Standup", TranscriptPreview: "Yesterday I worked on", Score: 64},
		{ID: 1, Timestamp: ts.Add(-2 * time.Hour), Goal: "Pitch", TranscriptPreview: "Our product", Score: 40},
	}
}

func TestNewModel(t *testing.T) {
	m, _, _ := newTestModel()
	if m.snap.State != session.Idle {
		t.Errorf("state = %v, want idle", m.snap.State)
	}
	if !m.transcriptLive {
		t.Error("new model should be in live mode")
	}
	if m.focusedPanel != FocusTranscript {
		t.Error("new model should focus transcript")
	}
	if m.personality != analysis.Supportive {
		t.Errorf("personality = %q", m.personality)
	}
}

func TestNewModelDefaultsPersonality(t *testing.T) {
	m := New(Config{})
	if m.personality != analysis.DefaultPersonality {
		t.Errorf("personality = %q, want %q", m.personality, analysis.DefaultPersonality)
	}
}

func TestSpaceStartsAndStops(t *testing.T) {
	m, ctrl, _ := newTestModel()

	m, cmd := applyUpdate(m, key(" "))
	m = run(t, m, cmd)
	if len(ctrl.started) != 1 || ctrl.started[0] != "Pitch my startup/supportive" {
		t.Fatalf("started = %v", ctrl.started)
	}

	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: session.Recording}})
	m, cmd = applyUpdate(m, key(" "))
	run(t, m, cmd)
	if ctrl.stopped != 1 {
		t.Errorf("stopped = %d, want 1", ctrl.stopped)
	}
}

func TestSpaceIgnoredWhileSubmitting(t *testing.T) {
	m, _, _ := newTestModel()
	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: session.Submitting}})

	_, cmd := applyUpdate(m, key(" "))
	if cmd != nil {
		t.Error("space while submitting should do nothing")
	}
}

func TestStopErrorIsTransient(t *testing.T) {
	m, ctrl, _ := newTestModel()
	ctrl.stopErr = errors.New("daemon gone")
	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: session.Recording}})

	m, cmd := applyUpdate(m, key(" "))
	m = run(t, m, cmd)
	if m.errorMessage != "daemon gone" {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}
	if !m.errorTransient {
		t.Error("action errors should be transient")
	}

	m, _ = applyUpdate(m, ClearTransientErrorMsg{})
	if m.errorMessage != "" {
		t.Errorf("errorMessage = %q after clear", m.errorMessage)
	}
}

func TestStartRefusalIsTransient(t *testing.T) {
	m, ctrl, _ := newTestModel()
	ctrl.startErr = session.ErrSessionActive

	m, cmd := applyUpdate(m, key(" "))
	m = run(t, m, cmd)
	if m.errorMessage != session.ErrSessionActive.Error() {
		t.Errorf("errorMessage = %q, want %q", m.errorMessage, session.ErrSessionActive.Error())
	}
	if !m.errorTransient {
		t.Error("start refusals should be transient")
	}
}

func TestStartFailureLeftToSnapshot(t *testing.T) {
	m, ctrl, _ := newTestModel()
	ctrl.startErr = analysis.ErrMissingGoal

	m, cmd := applyUpdate(m, key(" "))
	m = run(t, m, cmd)
	if m.errorMessage != "" {
		t.Errorf("errorMessage = %q, want it to come from the snapshot", m.errorMessage)
	}
}

func TestSnapshotErrorShownUntilNextSnapshot(t *testing.T) {
	m, _, _ := newTestModel()

	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{
		State:  session.Idle,
		Status: "Please enter your speech goal before recording!",
		Err:    analysis.ErrMissingGoal,
	}})
	if m.errorMessage != "Please enter your speech goal before recording!" {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}

	// Transient clear leaves session errors alone.
	m, _ = applyUpdate(m, ClearTransientErrorMsg{})
	if m.errorMessage == "" {
		t.Error("session error should survive a transient clear")
	}

	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: session.Recording}})
	if m.errorMessage != "" {
		t.Errorf("errorMessage = %q, want cleared", m.errorMessage)
	}
}

func TestRetryOnlyWhenAllowed(t *testing.T) {
	m, ctrl, _ := newTestModel()

	_, cmd := applyUpdate(m, key("r"))
	if cmd != nil {
		t.Error("retry without a failure should do nothing")
	}

	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: session.Failed, CanRetry: true, Err: errors.New("x")}})
	m, cmd = applyUpdate(m, key("r"))
	run(t, m, cmd)
	if ctrl.retried != 1 {
		t.Errorf("retried = %d, want 1", ctrl.retried)
	}

	m, cmd = applyUpdate(m, key("esc"))
	run(t, m, cmd)
	if ctrl.resets != 1 {
		t.Errorf("resets = %d, want 1", ctrl.resets)
	}
}

func TestRecordingStartsLevelTicks(t *testing.T) {
	m, ctrl, _ := newTestModel()
	ctrl.level = 0.7

	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: session.Recording}})
	if !m.ticking {
		t.Fatal("recording should start the level ticker")
	}

	m, cmd := applyUpdate(m, LevelTickMsg{})
	if m.level != 0.7 {
		t.Errorf("level = %v, want 0.7", m.level)
	}
	if cmd == nil {
		t.Error("tick should reschedule while recording")
	}

	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: session.Submitting}})
	m, cmd = applyUpdate(m, LevelTickMsg{})
	if cmd != nil || m.ticking || m.level != 0 {
		t.Errorf("ticker should stop: cmd=%v ticking=%v level=%v", cmd != nil, m.ticking, m.level)
	}
}

func TestPersonalityCycle(t *testing.T) {
	m, _, _ := newTestModel()

	m, _ = applyUpdate(m, key("m"))
	if m.personality != analysis.Direct {
		t.Errorf("personality = %q, want direct", m.personality)
	}

	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: session.Recording}})
	m, _ = applyUpdate(m, key("m"))
	if m.personality != analysis.Direct {
		t.Error("personality should not change while recording")
	}

	last := analysis.Personalities[len(analysis.Personalities)-1]
	if got := nextPersonality(last); got != analysis.Personalities[0] {
		t.Errorf("nextPersonality(%q) = %q", last, got)
	}
}

func TestHistoryLoadedKeepsExpansion(t *testing.T) {
	m, _, _ := newTestModel()
	m, _ = applyUpdate(m, HistoryLoadedMsg{Entries: sampleEntries()})
	if len(m.history) != 3 {
		t.Fatalf("history = %d, want 3", len(m.history))
	}

	m.focusedPanel = FocusHistory
	m, _ = applyUpdate(m, key("enter"))
	if !m.history[0].Expanded {
		t.Fatal("enter should expand entry 0")
	}

	m, _ = applyUpdate(m, HistoryLoadedMsg{Entries: sampleEntries()[:2]})
	if !m.history[0].Expanded {
		t.Error("reload should keep entry 3 expanded")
	}
}

func TestHistoryNavigation(t *testing.T) {
	m, _, _ := newTestModel()
	m, _ = applyUpdate(m, HistoryLoadedMsg{Entries: sampleEntries()})
	m, _ = applyUpdate(m, key("tab"))
	if m.focusedPanel != FocusHistory {
		t.Fatal("tab should focus history")
	}

	m, _ = applyUpdate(m, key("j"))
	m, _ = applyUpdate(m, key("j"))
	m, _ = applyUpdate(m, key("j"))
	if m.selected != 2 {
		t.Errorf("selected = %d, want 2", m.selected)
	}
	m, _ = applyUpdate(m, key("k"))
	if m.selected != 1 {
		t.Errorf("selected = %d, want 1", m.selected)
	}
}

func TestPinSelected(t *testing.T) {
	m, _, store := newTestModel()
	store.entries = sampleEntries()
	m, _ = applyUpdate(m, HistoryLoadedMsg{Entries: store.entries})
	m.focusedPanel = FocusHistory
	m.selected = 1

	m, cmd := applyUpdate(m, key("p"))
	m = run(t, m, cmd)
	if len(store.pinned) != 1 || store.pinned[0] != 2 {
		t.Fatalf("pinned = %v", store.pinned)
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	m, _, store := newTestModel()
	m, _ = applyUpdate(m, HistoryLoadedMsg{Entries: sampleEntries()})
	m.focusedPanel = FocusHistory

	m, _ = applyUpdate(m, key("d"))
	if m.confirmDelete != 3 {
		t.Fatalf("confirmDelete = %d, want 3", m.confirmDelete)
	}
	if len(store.deleted) != 0 {
		t.Fatal("first d should only ask for confirmation")
	}
	if !strings.Contains(m.View(), "press d again") {
		t.Error("view should show the confirmation prompt")
	}

	m, cmd := applyUpdate(m, key("d"))
	msg := cmd()
	if _, ok := msg.(HistoryChangedMsg); !ok {
		t.Fatalf("msg = %T, want HistoryChangedMsg", msg)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 3 {
		t.Errorf("deleted = %v", store.deleted)
	}
	if m.confirmDelete != 0 {
		t.Error("confirmation should reset after delete")
	}
}

func TestDeleteConfirmationExpires(t *testing.T) {
	m, _, _ := newTestModel()
	m, _ = applyUpdate(m, HistoryLoadedMsg{Entries: sampleEntries()})
	m.focusedPanel = FocusHistory

	m, _ = applyUpdate(m, key("d"))
	m, _ = applyUpdate(m, ClearConfirmMsg{ID: 3})
	if m.confirmDelete != 0 {
		t.Error("confirmation should expire")
	}
}

func TestNewEntryReloadsHistory(t *testing.T) {
	m, _, store := newTestModel()
	store.entries = sampleEntries()

	entry := store.entries[0]
	res := analysis.Result{OverallScore: 91}
	m, cmd := applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: session.Idle, Result: &res, Entry: &entry}})
	if cmd == nil {
		t.Fatal("expected commands")
	}
	if m.lastEntryID != 3 {
		t.Errorf("lastEntryID = %d, want 3", m.lastEntryID)
	}
}

func TestTranscriptScroll(t *testing.T) {
	m, _, _ := newTestModel()
	m.height = 12
	long := strings.Repeat("word ", 400)
	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: session.Recording, Final: long}})

	if m.maxTranscriptScroll() == 0 {
		t.Fatal("long transcript should scroll")
	}
	m, _ = applyUpdate(m, key("up"))
	if m.transcriptLive {
		t.Error("up should leave live mode")
	}
	for i := 0; i < 100; i++ {
		m, _ = applyUpdate(m, key("down"))
	}
	if !m.transcriptLive {
		t.Error("scrolling to the bottom should return to live mode")
	}
}

func TestViewRendersFeedback(t *testing.T) {
	m, _, _ := newTestModel()
	res := analysis.Result{
		OverallScore: 82,
		ClarityScore: 80,
		Pace:         140,
		FillerWords:  map[string]int{"um": 2, "like": 1},
		Summary:      "Clear and well structured.",
		Tip:          "Pause before your key point.",
	}
	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{
		State:       session.Idle,
		Final:       "Hello everyone ",
		Personality: analysis.Mentor,
		Result:      &res,
		Status:      session.StatusDone,
	}})

	view := m.View()
	for _, want := range []string{"FEEDBACK", "82/100", "140 wpm", "3 (um 2, like 1)", "Pause before", "Hello everyone"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewStates(t *testing.T) {
	tests := []struct {
		state session.State
		want  string
	}{
		{session.Idle, "IDLE"},
		{session.Recording, "REC 0:07"},
		{session.Stopping, "FINISHING"},
		{session.Submitting, "ANALYZING"},
		{session.Failed, "FAILED"},
	}
	for _, tt := range tests {
		m, _, _ := newTestModel()
		m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: tt.state, Duration: 7}})
		if view := m.View(); !strings.Contains(view, tt.want) {
			t.Errorf("%s view missing %q", tt.state, tt.want)
		}
	}
}

func TestViewWithoutGoal(t *testing.T) {
	m := New(Config{Controller: newFakeController()})
	m.width = 100
	m.height = 30
	if view := m.View(); !strings.Contains(view, "--goal") {
		t.Error("view should explain how to set a goal")
	}
}

func TestViewWithoutSize(t *testing.T) {
	m := New(Config{})
	view := m.View()
	if view != "Initializing..." {
		t.Errorf("view without size = %q, want 'Initializing...'", view)
	}
}

func TestFillerLine(t *testing.T) {
	tests := []struct {
		in   map[string]int
		want string
	}{
		{nil, "0"},
		{map[string]int{"um": 0}, "0"},
		{map[string]int{"so": 1, "um": 3, "like": 1}, "5 (um 3, like 1, so 1)"},
	}
	for _, tt := range tests {
		got := fillerLine(analysis.Result{FillerWords: tt.in})
		if got != tt.want {
			t.Errorf("fillerLine(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9)
	want := []string{"one two", "three", "four"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("wrapText = %q, want %q", got, want)
	}
}
