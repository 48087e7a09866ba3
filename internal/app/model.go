package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/history"
	"github.com/jwulff/podium/internal/session"
	"github.com/jwulff/podium/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// LevelInterval is how often the level meter is sampled while recording.
const LevelInterval = 50 * time.Millisecond

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusHistory PanelFocus = iota
	FocusTranscript
)

// Controller is the part of *session.Controller the TUI drives.
type Controller interface {
	Start(ctx context.Context, goal string, p analysis.Personality) error
	Stop(ctx context.Context) error
	Retry(ctx context.Context) error
	Reset(ctx context.Context) error
	Snapshot() session.Snapshot
	Updates() <-chan session.Snapshot
	Level() float64
}

// Config wires the model.
type Config struct {
	Controller  Controller
	History     history.Store
	Goal        string
	Personality analysis.Personality
	// Backend is shown in the header.
	Backend string
}

// HistoryDisplay holds a saved recording for the history panel.
type HistoryDisplay struct {
	Entry    history.Entry
	Expanded bool
}

// Model is the root bubbletea model for the podium TUI.
type Model struct {
	ctrl    Controller
	store   history.Store
	backend string

	goal        string
	personality analysis.Personality

	// Session
	snap    session.Snapshot
	level   float64
	ticking bool

	// History
	history       []HistoryDisplay
	selected      int
	confirmDelete int64
	lastEntryID   int64

	// UI state
	focusedPanel     PanelFocus
	width            int
	height           int
	transcriptScroll int
	transcriptLive   bool

	// Errors
	errorMessage   string
	errorTransient bool
	sessionError   bool
}

// New creates a Model showing the controller's current state.
func New(cfg Config) Model {
	p := cfg.Personality
	if p == "" {
		p = analysis.DefaultPersonality
	}
	m := Model{
		ctrl:           cfg.Controller,
		store:          cfg.History,
		backend:        cfg.Backend,
		goal:           strings.TrimSpace(cfg.Goal),
		personality:    p,
		transcriptLive: true,
		focusedPanel:   FocusTranscript,
	}
	if m.ctrl != nil {
		m.snap = m.ctrl.Snapshot()
	}
	return m
}

// Init starts listening for controller updates and loads the history.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForUpdateCmd(m.ctrl),
		loadHistoryCmd(m.store),
	)
}

// waitForUpdateCmd blocks until the controller publishes a snapshot.
func waitForUpdateCmd(ctrl Controller) tea.Cmd {
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ctrl.Updates()
		if !ok {
			return UpdatesClosedMsg{}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

func levelTickCmd() tea.Cmd {
	return tea.Tick(LevelInterval, func(time.Time) tea.Msg {
		return LevelTickMsg{}
	})
}

// loadHistoryCmd reads the saved recordings.
func loadHistoryCmd(store history.Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		entries, err := store.List(context.Background())
		return HistoryLoadedMsg{Entries: entries, Err: err}
	}
}

func startCmd(ctrl Controller, goal string, p analysis.Personality) tea.Cmd {
	return func() tea.Msg {
		err := ctrl.Start(context.Background(), goal, p)
		if startFailurePublished(err) {
			return nil
		}
		return ActionErrorMsg{Err: err}
	}
}

// startFailurePublished reports whether the controller already put err on a
// snapshot. Refusals that leave the controller untouched are not.
func startFailurePublished(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func stopCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Stop(context.Background()); err != nil && !errors.Is(err, session.ErrNotRecording) {
			return ActionErrorMsg{Err: err}
		}
		return nil
	}
}

func retryCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Retry(context.Background()); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return nil
	}
}

func resetCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Reset(context.Background()); err != nil {
			return ActionErrorMsg{Err: err}
		}
		return nil
	}
}

func togglePinCmd(store history.Store, id int64) tea.Cmd {
	return func() tea.Msg {
		if _, err := store.TogglePin(context.Background(), id); err != nil {
			return ActionErrorMsg{Err: fmt.Errorf("pin recording: %w", err)}
		}
		return HistoryChangedMsg{}
	}
}

func deleteCmd(store history.Store, id int64) tea.Cmd {
	return func() tea.Msg {
		if err := store.Delete(context.Background(), id); err != nil {
			return ActionErrorMsg{Err: fmt.Errorf("delete recording: %w", err)}
		}
		return HistoryChangedMsg{}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

func clearConfirmCmd(id int64) tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return ClearConfirmMsg{ID: id}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.transcriptLive {
			m.scrollToBottom()
		}
		return m, nil

	case SnapshotMsg:
		cmds := []tea.Cmd{waitForUpdateCmd(m.ctrl)}
		if cmd := m.applySnapshot(msg.Snapshot); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case UpdatesClosedMsg:
		return m, nil

	case LevelTickMsg:
		if m.snap.State != session.Recording || m.ctrl == nil {
			m.ticking = false
			m.level = 0
			return m, nil
		}
		m.level = m.ctrl.Level()
		return m, levelTickCmd()

	case HistoryLoadedMsg:
		if msg.Err != nil {
			return m, m.setTransientError("Could not load history: " + msg.Err.Error())
		}
		m.setHistory(msg.Entries)
		return m, nil

	case HistoryChangedMsg:
		return m, loadHistoryCmd(m.store)

	case ActionErrorMsg:
		return m, m.setTransientError(analysis.Message(msg.Err))

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil

	case ClearConfirmMsg:
		if m.confirmDelete == msg.ID {
			m.confirmDelete = 0
		}
		return m, nil
	}

	return m, nil
}

// applySnapshot stores a controller snapshot and returns follow-up work.
func (m *Model) applySnapshot(snap session.Snapshot) tea.Cmd {
	m.snap = snap

	switch {
	case snap.Err != nil:
		m.errorMessage = snap.Status
		m.errorTransient = false
		m.sessionError = true
	case m.sessionError:
		m.errorMessage = ""
		m.sessionError = false
	}

	if m.transcriptLive {
		m.scrollToBottom()
	}

	var cmds []tea.Cmd
	if snap.State == session.Recording && !m.ticking {
		m.ticking = true
		cmds = append(cmds, levelTickCmd())
	}
	if snap.Entry != nil && snap.Entry.ID != m.lastEntryID {
		m.lastEntryID = snap.Entry.ID
		cmds = append(cmds, loadHistoryCmd(m.store))
	}
	return tea.Batch(cmds...)
}

func (m *Model) setHistory(entries []history.Entry) {
	expanded := make(map[int64]bool, len(m.history))
	for _, h := range m.history {
		if h.Expanded {
			expanded[h.Entry.ID] = true
		}
	}
	m.history = make([]HistoryDisplay, 0, len(entries))
	for _, e := range entries {
		m.history = append(m.history, HistoryDisplay{Entry: e, Expanded: expanded[e.ID]})
	}
	if m.selected >= len(m.history) {
		m.selected = max(0, len(m.history)-1)
	}
}

func (m *Model) setTransientError(text string) tea.Cmd {
	m.errorMessage = text
	m.errorTransient = true
	m.sessionError = false
	return clearTransientErrorCmd()
}

func (m Model) selectedEntry() (history.Entry, bool) {
	if m.selected < 0 || m.selected >= len(m.history) {
		return history.Entry{}, false
	}
	return m.history[m.selected].Entry, true
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit

	case KeySpace:
		if m.ctrl == nil {
			return m, nil
		}
		switch m.snap.State {
		case session.Recording:
			return m, stopCmd(m.ctrl)
		case session.Idle, session.Failed:
			m.transcriptLive = true
			return m, startCmd(m.ctrl, m.goal, m.personality)
		}
		return m, nil

	case KeyRetry:
		if m.ctrl != nil && m.snap.CanRetry {
			return m, retryCmd(m.ctrl)
		}
		return m, nil

	case KeyEsc:
		if m.confirmDelete != 0 {
			m.confirmDelete = 0
			return m, nil
		}
		if m.ctrl != nil && m.snap.State == session.Failed {
			return m, resetCmd(m.ctrl)
		}
		return m, nil

	case KeyPersonality:
		if m.snap.State.Active() {
			return m, nil
		}
		m.personality = nextPersonality(m.personality)
		return m, nil

	case KeyTab:
		if m.focusedPanel == FocusHistory {
			m.focusedPanel = FocusTranscript
		} else {
			m.focusedPanel = FocusHistory
		}
		return m, nil

	case KeyJ:
		if m.focusedPanel == FocusHistory && m.selected < len(m.history)-1 {
			m.selected++
			m.confirmDelete = 0
		}
		return m, nil

	case KeyK:
		if m.focusedPanel == FocusHistory && m.selected > 0 {
			m.selected--
			m.confirmDelete = 0
		}
		return m, nil

	case KeyEnter:
		if m.focusedPanel == FocusHistory && m.selected < len(m.history) {
			m.history[m.selected].Expanded = !m.history[m.selected].Expanded
		}
		return m, nil

	case KeyPin:
		if e, ok := m.selectedEntry(); ok && m.focusedPanel == FocusHistory && m.store != nil {
			return m, togglePinCmd(m.store, e.ID)
		}
		return m, nil

	case KeyDelete:
		e, ok := m.selectedEntry()
		if !ok || m.focusedPanel != FocusHistory || m.store == nil {
			return m, nil
		}
		if m.confirmDelete == e.ID {
			m.confirmDelete = 0
			return m, deleteCmd(m.store, e.ID)
		}
		m.confirmDelete = e.ID
		return m, clearConfirmCmd(e.ID)

	case KeyUp:
		if m.focusedPanel == FocusTranscript {
			m.transcriptLive = false
			if m.transcriptScroll > 0 {
				m.transcriptScroll--
			}
		}
		return m, nil

	case KeyDown:
		if m.focusedPanel == FocusTranscript {
			maxScroll := m.maxTranscriptScroll()
			m.transcriptScroll++
			if m.transcriptScroll >= maxScroll {
				m.transcriptScroll = maxScroll
				m.transcriptLive = true
			}
		}
		return m, nil
	}

	return m, nil
}

func nextPersonality(p analysis.Personality) analysis.Personality {
	for i, known := range analysis.Personalities {
		if known == p {
			return analysis.Personalities[(i+1)%len(analysis.Personalities)]
		}
	}
	return analysis.DefaultPersonality
}

func (m *Model) scrollToBottom() {
	m.transcriptScroll = m.maxTranscriptScroll()
}

func (m Model) maxTranscriptScroll() int {
	total := len(m.transcriptLines(m.rightPanelWidth()))
	visible := m.transcriptHeight()
	if total <= visible {
		return 0
	}
	return total - visible
}

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + status(1) + dividers(2) + error(1) + footer(1) + padding
	reserved := 7
	return max(6, m.height-reserved)
}

// feedbackHeight is the number of rows the feedback section takes from the
// right column.
func (m Model) feedbackHeight() int {
	if m.snap.Result == nil {
		return 0
	}
	lines := len(m.feedbackLines(m.rightPanelWidth()))
	return min(lines, m.contentHeight()*55/100)
}

// transcriptHeight is the number of transcript text rows, without the
// panel header.
func (m Model) transcriptHeight() int {
	return max(1, m.contentHeight()-m.feedbackHeight()-1)
}

func (m Model) historyPanelWidth() int {
	if m.width == 0 {
		return 30
	}
	return max(24, m.width*35/100)
}

func (m Model) rightPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(30, m.width-m.historyPanelWidth()-1)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderMainContent())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("PODIUM PAL")

	goal := ui.DimStyle.Render(" - no goal set")
	if m.goal != "" {
		goal = ui.DimStyle.Render(" - ") + ui.GoalStyle.Render(m.goal)
	}
	p := ui.PersonalityStyle.Render(" [" + m.personality.Title() + "]")

	var backend string
	if m.backend != "" {
		backend = ui.DimStyle.Render("  " + m.backend)
	}
	return title + goal + p + backend
}

func (m Model) renderStatusBar() string {
	var state string
	switch m.snap.State {
	case session.Recording:
		state = ui.RecordingDotStyle.Render("● REC " + analysis.FormatDuration(m.snap.Duration))
		state += "  " + renderLevelMeter("MIC", m.level)
		wpm := analysis.WPM(m.snap.WordCount, m.snap.Duration)
		state += "  " + ui.DimStyle.Render(fmt.Sprintf("%d words  %d wpm", m.snap.WordCount, wpm))
	case session.Stopping:
		state = ui.AnalyzingStyle.Render("◌ FINISHING")
	case session.Submitting:
		state = ui.AnalyzingStyle.Render("⟳ ANALYZING")
	case session.Failed:
		state = ui.ErrorStyle.Render("✗ FAILED")
	default:
		state = ui.IdleDotStyle.Render("○ IDLE")
	}

	status := m.snap.Status
	if status == "" || m.snap.Err != nil {
		return state
	}
	style := ui.StatusStyle
	if strings.HasPrefix(status, session.StatusTranscriptOnly) || status == session.StatusNoSpeech {
		style = ui.WarningStyle
	}
	return state + "  " + style.Render(status)
}

func renderLevelMeter(label string, level float64) string {
	const barLen = 12
	filled := int(level * barLen)
	if filled > barLen {
		filled = barLen
	}

	var bar string
	for i := 0; i < barLen; i++ {
		if i < filled {
			pct := float64(i) / float64(barLen)
			switch {
			case pct > 0.85:
				bar += ui.LevelRedStyle.Render("█")
			case pct > 0.6:
				bar += ui.LevelYellowStyle.Render("█")
			default:
				bar += ui.LevelGreenStyle.Render("█")
			}
		} else {
			bar += ui.LevelGrayStyle.Render("░")
		}
	}
	return ui.LabelStyle.Render(label) + " " + bar
}

func (m Model) renderMainContent() string {
	historyW := m.historyPanelWidth()
	rightW := m.rightPanelWidth()
	contentH := m.contentHeight()

	historyLines := strings.Split(m.renderHistoryPanel(historyW, contentH), "\n")
	rightLines := strings.Split(m.renderRightPanel(rightW, contentH), "\n")

	for len(historyLines) < contentH {
		historyLines = append(historyLines, strings.Repeat(" ", historyW))
	}
	for len(rightLines) < contentH {
		rightLines = append(rightLines, "")
	}

	divider := ui.DividerStyle.Render("│")
	rows := make([]string, 0, contentH)
	for i := 0; i < contentH; i++ {
		rows = append(rows, historyLines[i]+divider+rightLines[i])
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderHistoryPanel(width, height int) string {
	title := fmt.Sprintf("HISTORY (%d)", len(m.history))
	var header string
	if m.focusedPanel == FocusHistory {
		header = ui.PanelTitleActiveStyle.Render(title)
	} else {
		header = ui.PanelTitleStyle.Render(title)
	}

	lines := []string{header}

	if len(m.history) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No recordings yet"))
		lines = append(lines, ui.DimStyle.Render("  Results are saved here"))
	}

	for i, h := range m.history {
		e := h.Entry
		selected := i == m.selected && m.focusedPanel == FocusHistory

		marker := "  "
		if selected {
			marker = "> "
		}
		pin := "  "
		if e.IsPinned {
			pin = ui.PinStyle.Render("★ ")
		}
		score := ui.ScoreStyle(e.Score).Render(fmt.Sprintf("%3.0f", e.Score))
		when := ui.TimestampStyle.Render(e.Timestamp.Local().Format("Jan 02 15:04"))

		if selected {
			marker = ui.SelectedStyle.Render(marker)
		}
		line := fitLine(marker+pin+when+" "+score+" ", e.TranscriptPreview, width)
		if m.confirmDelete == e.ID {
			line = ui.ErrorTextStyle.Render(truncateToWidth("  delete? press d again", width))
		}
		lines = append(lines, line)

		if h.Expanded {
			inner := max(10, width-6)
			lines = append(lines,
				fitLine("    "+ui.LabelStyle.Render("Goal: "), e.Goal, width),
				fitLine("    ", fmt.Sprintf("%s  %d words  %d wpm", analysis.FormatDuration(e.Duration), e.WordCount, e.WPM), width),
			)
			if e.Feedback.Summary != "" {
				for _, wl := range wrapText(e.Feedback.Summary, inner) {
					lines = append(lines, fitLine("    ", ui.DimStyle.Render(wl), width))
				}
			}
		}
	}

	if len(lines) > height {
		lines = m.scrollHistory(lines, height)
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, l := range lines {
		lines[i] = padRight(l, width)
	}
	return strings.Join(lines, "\n")
}

// scrollHistory keeps the selected row visible when the list overflows.
func (m Model) scrollHistory(lines []string, height int) []string {
	header, body := lines[0], lines[1:]
	visible := height - 1

	// Position of the selected entry, counting expanded detail rows.
	row := 0
	for i := 0; i < m.selected && i < len(m.history); i++ {
		row++
		if m.history[i].Expanded {
			row += 2
			if m.history[i].Entry.Feedback.Summary != "" {
				row += len(wrapText(m.history[i].Entry.Feedback.Summary, max(10, m.historyPanelWidth()-6)))
			}
		}
	}
	start := 0
	if row >= visible {
		start = row - visible + 1
	}
	end := min(len(body), start+visible)
	return append([]string{header}, body[start:end]...)
}

func (m Model) renderRightPanel(width, height int) string {
	fbH := m.feedbackHeight()
	transcriptH := height - fbH

	lines := m.renderTranscriptSection(width, transcriptH)
	if fbH > 0 {
		fb := m.feedbackLines(width)
		if len(fb) > fbH {
			fb = fb[:fbH]
		}
		lines = append(lines, fb...)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTranscriptSection(width, height int) []string {
	var badge string
	if m.transcriptLive {
		badge = ui.LiveBadgeStyle.Render(" LIVE")
	} else {
		badge = ui.ScrollBadgeStyle.Render(" SCROLL")
	}
	title := "TRANSCRIPT"
	if m.snap.WordCount > 0 {
		title = fmt.Sprintf("TRANSCRIPT (%d words)", m.snap.WordCount)
	}
	var header string
	if m.focusedPanel == FocusTranscript {
		header = ui.PanelTitleActiveStyle.Render(title) + badge
	} else {
		header = ui.PanelTitleStyle.Render(title) + badge
	}

	lines := []string{header}
	contentHeight := height - 1

	display := m.transcriptLines(width)
	if len(display) == 0 {
		lines = append(lines, "")
		switch {
		case m.ctrl == nil:
			lines = append(lines, ui.ErrorTextStyle.Render("  Speech engine unavailable."))
		case m.goal == "":
			lines = append(lines, ui.DimStyle.Render("  Set a goal with --goal, then press Space"))
		case m.snap.State == session.Recording:
			lines = append(lines, ui.DimStyle.Render("  Listening..."))
		default:
			lines = append(lines, ui.DimStyle.Render("  Press Space to start recording"))
		}
	} else {
		start := 0
		if m.transcriptLive {
			if len(display) > contentHeight {
				start = len(display) - contentHeight
			}
		} else {
			start = m.transcriptScroll
		}
		start = max(0, min(start, len(display)))
		end := min(len(display), start+contentHeight)
		for i := start; i < end; i++ {
			lines = append(lines, "  "+display[i])
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return lines
}

// transcriptLines wraps the final text and appends the interim text with a
// cursor.
func (m Model) transcriptLines(width int) []string {
	textWidth := max(10, width-4)
	var out []string
	final := strings.TrimSpace(m.snap.Final)
	if final != "" {
		out = append(out, wrapText(final, textWidth)...)
	}
	if interim := strings.TrimSpace(m.snap.Interim); interim != "" {
		for _, wl := range wrapText(interim+"▌", textWidth) {
			out = append(out, ui.InterimTextStyle.Render(wl))
		}
	}
	return out
}

func (m Model) feedbackLines(width int) []string {
	r := m.snap.Result
	if r == nil {
		return nil
	}
	textWidth := max(10, width-4)

	lines := []string{
		ui.PanelTitleStyle.Render("FEEDBACK ") +
			ui.ScoreStyle(r.OverallScore).Render(fmt.Sprintf("%.0f/100", r.OverallScore)) +
			ui.DimStyle.Render("  "+m.snap.Personality.Title()),
		"  " + scoreLine(*r),
		"  " + ui.LabelStyle.Render("Pace ") + fmt.Sprintf("%d wpm", r.Pace) +
			"   " + ui.LabelStyle.Render("Fillers ") + fillerLine(*r),
	}
	if r.Summary != "" {
		for _, wl := range wrapText(r.Summary, textWidth) {
			lines = append(lines, "  "+wl)
		}
	}
	if r.Tip != "" {
		for i, wl := range wrapText(r.Tip, textWidth-5) {
			if i == 0 {
				lines = append(lines, "  "+ui.LabelStyle.Render("Tip: ")+wl)
			} else {
				lines = append(lines, "       "+wl)
			}
		}
	}
	for _, s := range r.Strengths {
		lines = append(lines, fitLine("  "+ui.LevelGreenStyle.Render("+ "), s, width))
	}
	for _, s := range r.Improvements {
		lines = append(lines, fitLine("  "+ui.LevelYellowStyle.Render("- "), s, width))
	}
	return lines
}

func scoreLine(r analysis.Result) string {
	part := func(label string, v float64) string {
		return ui.DimStyle.Render(label+" ") + ui.ScoreStyle(v).Render(fmt.Sprintf("%.0f", v))
	}
	return strings.Join([]string{
		part("Clarity", r.ClarityScore),
		part("Confidence", r.ConfidenceScore),
		part("Engagement", r.EngagementScore),
		part("Structure", r.StructureScore),
	}, "  ")
}

func fillerLine(r analysis.Result) string {
	total := r.FillerTotal()
	if total == 0 {
		return "0"
	}
	words := make([]string, 0, len(r.FillerWords))
	for w, n := range r.FillerWords {
		if n > 0 {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if r.FillerWords[words[i]] != r.FillerWords[words[j]] {
			return r.FillerWords[words[i]] > r.FillerWords[words[j]]
		}
		return words[i] < words[j]
	})
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, fmt.Sprintf("%s %d", w, r.FillerWords[w]))
	}
	return fmt.Sprintf("%d (%s)", total, strings.Join(parts, ", "))
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return ui.FooterKeyStyle.Render(k) + ui.FooterDescStyle.Render(" "+desc)
	}
	var parts []string

	switch m.snap.State {
	case session.Recording:
		parts = append(parts, key("Space", "Stop"))
	case session.Stopping, session.Submitting:
	case session.Failed:
		parts = append(parts, key("r", "Retry"), key("Esc", "Discard"), key("Space", "Record"))
	default:
		parts = append(parts, key("Space", "Record"), key("m", "Personality"))
	}
	parts = append(parts, key("Tab", "Focus"))
	if m.focusedPanel == FocusHistory {
		parts = append(parts, key("j/k", "Nav"), key("Enter", "Expand"), key("p", "Pin"), key("d", "Delete"))
	} else {
		parts = append(parts, key("↑↓", "Scroll"))
	}
	parts = append(parts, key("q", "Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	// Simple truncation for non-styled strings
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

// fitLine appends text to a styled prefix, truncating the plain text so the
// line fits width.
func fitLine(prefix, text string, width int) string {
	room := width - lipgloss.Width(prefix)
	if room <= 1 {
		return prefix
	}
	return prefix + truncateToWidth(text, room)
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
