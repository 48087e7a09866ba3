// Package session runs the recording state machine: it starts speech
// recognition and audio capture, accumulates the transcript, submits the
// finished recording for analysis and stores the result in history.
//
// All state is owned by the goroutine running Controller.Run. Recognizer
// events, timer ticks and analysis completions are delivered to it as
// messages; stale messages from an earlier session are dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/audio"
	"github.com/jwulff/podium/internal/history"
	"github.com/jwulff/podium/internal/metrics"
	"github.com/jwulff/podium/internal/speech"
)

// Default timings.
const (
	DefaultTickInterval    = time.Second
	DefaultFinalizeTimeout = 3 * time.Second
)

// Status texts.
const (
	StatusReady          = "Ready to record"
	StatusRecording      = "Recording..."
	StatusTranscriptOnly = "Recording (transcript only)"
	StatusProcessing     = "Processing..."
	StatusAnalyzing      = "Analyzing your speech..."
	StatusNoSpeech       = "No speech detected. Please try recording again."
	StatusDone           = "Analysis complete"
)

var (
	// ErrSessionActive is returned by Start while a session is in progress.
	ErrSessionActive = errors.New("a recording session is already active")
	// ErrNotRecording is returned by Stop outside the Recording state.
	ErrNotRecording = errors.New("not recording")
	// ErrNothingToRetry is returned by Retry outside the Failed state.
	ErrNothingToRetry = errors.New("no failed submission to retry")
	// ErrStopped is returned once Run has exited.
	ErrStopped = errors.New("session controller stopped")
)

// Analyzer submits a recording for feedback.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

// Archiver stores the raw audio of a recording and returns its path.
type Archiver interface {
	Archive(ctx context.Context, sessionID string, data []byte, at time.Time) (string, error)
}

// Config wires a Controller to its collaborators. Recognizer and Analyzer
// are required; the rest are optional.
type Config struct {
	Recognizer speech.Recognizer
	Audio      audio.Source
	Analyzer   Analyzer
	History    history.Store
	Archiver   Archiver
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	Locale          string
	TickInterval    time.Duration
	FinalizeTimeout time.Duration
	FrameInterval   time.Duration
	Now             func() time.Time
}

// Controller owns the recording session lifecycle.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	cmds chan command
	msgs chan any
	done chan struct{}

	running atomic.Bool
	level   atomic.Uint64

	mu   sync.Mutex
	snap Snapshot

	updates chan Snapshot

	// Owned by Run.
	runCtx  context.Context
	seq     uint64
	state   State
	current *session
	lastErr error
	status  string
	result  *analysis.Result
	entry   *history.Entry
}

// New validates cfg and returns an idle controller. Call Run to start it.
func New(cfg Config) (*Controller, error) {
	if cfg.Recognizer == nil {
		return nil, errors.New("session: recognizer is required")
	}
	if cfg.Analyzer == nil {
		return nil, errors.New("session: analyzer is required")
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = DefaultFinalizeTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		cfg:     cfg,
		logger:  logger.With("component", "session"),
		cmds:    make(chan command),
		msgs:    make(chan any, 16),
		done:    make(chan struct{}),
		updates: make(chan Snapshot, 1),
		status:  StatusReady,
	}
	c.snap = Snapshot{State: Idle, Status: StatusReady}
	return c, nil
}

// Snapshot returns the latest published view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Updates delivers snapshots as they change. Only the latest unread
// snapshot is kept.
func (c *Controller) Updates() <-chan Snapshot { return c.updates }

// Level returns the current loudness in 0..1.
func (c *Controller) Level() float64 {
	return math.Float64frombits(c.level.Load())
}

func (c *Controller) setLevel(v float64) {
	c.level.Store(math.Float64bits(v))
}

// Start begins a session. A blank goal returns analysis.ErrMissingGoal
// and leaves the controller idle.
func (c *Controller) Start(ctx context.Context, goal string, p analysis.Personality) error {
	return c.send(ctx, command{kind: cmdStart, goal: goal, personality: p})
}

// Stop ends recording and submits the transcript once recognition has
// finished.
func (c *Controller) Stop(ctx context.Context) error {
	return c.send(ctx, command{kind: cmdStop})
}

// Retry resubmits the failed recording without recording again.
func (c *Controller) Retry(ctx context.Context) error {
	return c.send(ctx, command{kind: cmdRetry})
}

// Reset discards a failed recording, or the last result, and returns to
// Idle.
func (c *Controller) Reset(ctx context.Context) error {
	return c.send(ctx, command{kind: cmdReset})
}

func (c *Controller) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes commands and events until ctx is done. Any active session
// is torn down before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("session: Run called twice")
	}
	defer close(c.done)

	c.runCtx = ctx
	events := c.cfg.Recognizer.Events()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case cmd := <-c.cmds:
			cmd.reply <- c.handleCommand(cmd)
		case ev := <-events:
			c.handleSpeech(ev)
		case m := <-c.msgs:
			c.handleMessage(m)
		}
	}
}

// post delivers a message to Run from another goroutine.
func (c *Controller) post(m any) {
	select {
	case c.msgs <- m:
	case <-c.done:
	}
}

func (c *Controller) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdStart:
		return c.start(cmd.goal, cmd.personality)
	case cmdStop:
		return c.stop()
	case cmdRetry:
		return c.retry()
	case cmdReset:
		return c.reset()
	}
	return fmt.Errorf("unknown command %d", cmd.kind)
}

func (c *Controller) handleMessage(m any) {
	switch m := m.(type) {
	case tickMsg:
		c.onTick(m)
	case finalizeMsg:
		c.onFinalizeTimeout(m)
	case analysisDoneMsg:
		c.onAnalysisDone(m)
	default:
		c.logger.Warn("unknown message", "type", fmt.Sprintf("%T", m))
	}
}

func (c *Controller) start(goal string, p analysis.Personality) error {
	switch c.state {
	case Recording, Stopping, Submitting:
		return ErrSessionActive
	}

	if strings.TrimSpace(goal) == "" {
		c.fail(Idle, analysis.ErrMissingGoal, analysis.Message(analysis.ErrMissingGoal))
		return analysis.ErrMissingGoal
	}
	if p == "" {
		p = analysis.DefaultPersonality
	}
	if !p.Valid() {
		err := fmt.Errorf("%w: %q", analysis.ErrInvalidPersonality, p)
		c.fail(Idle, err, analysis.Message(err))
		return err
	}

	// A failed submission still waiting for retry is discarded.
	if c.current != nil {
		c.current.release(c.logger)
		c.current = nil
	}

	c.seq++
	s := newSession(c.runCtx, c.seq, strings.TrimSpace(goal), p, c.cfg.Now())
	c.current = s
	c.lastErr, c.result, c.entry = nil, nil, nil

	s.startTicker(c.cfg.TickInterval, c.post)

	rid, err := c.cfg.Recognizer.Start(s.ctx, c.cfg.Locale)
	if err != nil {
		c.logger.Error("speech recognition failed to start", "error", err)
		s.release(c.logger)
		c.current = nil
		c.fail(Idle, err, speech.Describe(err))
		return err
	}
	s.recognition = rid

	status := StatusRecording
	if c.cfg.Audio != nil {
		capture := audio.NewCapture(audio.CaptureConfig{
			Source:        c.cfg.Audio,
			FrameInterval: c.cfg.FrameInterval,
			OnLevel:       c.setLevel,
			Logger:        c.logger,
		})
		if err := capture.Start(s.ctx); err != nil {
			c.logger.Warn("audio capture unavailable, continuing with transcript only", "error", err)
			status = StatusTranscriptOnly + ": " + audio.Classify(err).Message()
			c.cfg.Metrics.AudioDegraded()
		} else {
			s.capture = capture
		}
	} else {
		status = StatusTranscriptOnly
	}

	c.state = Recording
	c.status = status
	c.cfg.Metrics.SessionStarted()
	c.logger.Info("session started", "session", s.id, "personality", string(p), "audio", s.capture != nil)
	c.publish()
	return nil
}

func (c *Controller) stop() error {
	s := c.current
	if c.state != Recording || s == nil {
		return ErrNotRecording
	}

	s.userStop = true
	s.stopTicker()
	s.duration = s.elapsed(c.cfg.Now())

	if err := c.cfg.Recognizer.Stop(); err != nil {
		c.logger.Warn("stop recognition", "error", err)
	}
	s.stopAudio(c.logger)

	c.state = Stopping
	c.status = StatusProcessing
	id := s.id
	s.fallback = time.AfterFunc(c.cfg.FinalizeTimeout, func() {
		c.post(finalizeMsg{id: id})
	})
	c.publish()
	return nil
}

func (c *Controller) onTick(m tickMsg) {
	s := c.current
	if s == nil || s.id != m.id || c.state != Recording {
		return
	}
	s.duration = s.elapsed(c.cfg.Now())
	c.publish()
}

func (c *Controller) handleSpeech(ev speech.Event) {
	s := c.current
	if s == nil || (c.state != Recording && c.state != Stopping) {
		c.logger.Debug("dropping recognizer event outside a session", "kind", ev.Kind)
		return
	}
	if ev.Session != "" && s.recognition != "" && ev.Session != s.recognition {
		c.logger.Debug("dropping event from an earlier recognizer run", "kind", ev.Kind, "run", ev.Session, "session", s.id)
		return
	}

	switch ev.Kind {
	case speech.KindResult:
		s.acc.Apply(ev.Segments)
		c.publish()

	case speech.KindEnd:
		if s.userStop {
			c.finalize()
			return
		}
		c.logger.Info("recognition ended unexpectedly, restarting", "session", s.id)
		c.cfg.Metrics.RecognizerRestarted()
		rid, err := c.cfg.Recognizer.Start(s.ctx, c.cfg.Locale)
		if err != nil {
			c.logger.Error("recognition restart failed", "error", err)
			c.abort(err, speech.Describe(err))
			return
		}
		s.recognition = rid

	case speech.KindError:
		code := ""
		if ev.Err != nil {
			code = ev.Err.Code
		}
		if speech.IsBenign(code) {
			c.logger.Debug("ignoring recognizer error", "code", code)
			return
		}
		if c.state == Stopping {
			// The user already stopped; submit what was captured.
			c.logger.Warn("recognizer error after stop", "code", code)
			c.finalize()
			return
		}
		var err error = ev.Err
		if ev.Err == nil {
			err = &speech.Error{Code: code}
		}
		c.logger.Error("recognition failed", "code", code, "error", err)
		c.abort(err, speech.Message(code))
	}
}

// abort tears the session down after a failure during recording. The
// transcript stays visible in the snapshot.
func (c *Controller) abort(err error, msg string) {
	s := c.current
	if s == nil {
		return
	}
	s.stopTicker()
	if stopErr := c.cfg.Recognizer.Stop(); stopErr != nil {
		c.logger.Debug("stop recognition after failure", "error", stopErr)
	}
	s.stopAudio(c.logger)
	s.duration = s.elapsed(c.cfg.Now())
	s.release(c.logger)
	c.cfg.Metrics.SessionFinished("error", time.Duration(s.duration)*time.Second)
	c.fail(Idle, err, msg)
}

func (c *Controller) onFinalizeTimeout(m finalizeMsg) {
	s := c.current
	if s == nil || s.id != m.id || c.state != Stopping {
		return
	}
	c.logger.Warn("recognizer did not confirm stop, finalizing anyway", "session", s.id)
	c.finalize()
}

func (c *Controller) finalize() {
	s := c.current
	if s == nil || c.state != Stopping {
		return
	}
	if s.fallback != nil {
		s.fallback.Stop()
	}

	text := strings.TrimSpace(s.acc.Final())
	if text == "" {
		s.release(c.logger)
		c.cfg.Metrics.SessionFinished("no_speech", time.Duration(s.duration)*time.Second)
		c.state = Idle
		c.status = StatusNoSpeech
		c.lastErr = nil
		c.publish()
		return
	}

	s.request = &analysis.Request{
		Transcript:  text,
		Audio:       s.audio,
		Duration:    s.duration,
		Goal:        s.goal,
		Personality: s.personality,
	}
	c.cfg.Metrics.SessionFinished("submitted", time.Duration(s.duration)*time.Second)
	c.submit(s)
}

func (c *Controller) submit(s *session) {
	c.state = Submitting
	c.status = StatusAnalyzing
	c.lastErr = nil
	c.publish()

	req := *s.request
	id := s.id
	ctx := s.ctx
	started := s.started
	go func() {
		t0 := time.Now()
		res, err := c.cfg.Analyzer.Analyze(ctx, req)
		c.cfg.Metrics.Analysis(time.Since(t0), err)
		if err != nil {
			c.post(analysisDoneMsg{id: id, err: err})
			return
		}
		entry := c.persist(ctx, id, req, res, started)
		c.post(analysisDoneMsg{id: id, result: res, entry: entry})
	}()
}

// persist archives the audio and saves the history entry. Failures are
// logged and never fail the session.
func (c *Controller) persist(ctx context.Context, id uint64, req analysis.Request, res analysis.Result, started time.Time) *history.Entry {
	draft := history.NewDraft(req.Goal, req.Transcript, req.Duration, res)

	if c.cfg.Archiver != nil && len(req.Audio) > 0 {
		name := res.SessionID
		if name == "" {
			name = strconv.FormatUint(id, 10)
		}
		path, err := c.cfg.Archiver.Archive(ctx, name, req.Audio, started)
		c.cfg.Metrics.ArchiveUpload(err)
		if err != nil {
			c.logger.Warn("audio archive failed", "error", err)
		} else {
			draft.AudioPath = path
		}
	}

	if c.cfg.History == nil {
		return nil
	}
	entry, err := c.cfg.History.Save(ctx, draft)
	c.cfg.Metrics.HistoryWrite("save", err)
	if err != nil {
		c.logger.Warn("history save failed", "error", err)
		return nil
	}
	return &entry
}

func (c *Controller) onAnalysisDone(m analysisDoneMsg) {
	s := c.current
	if s == nil || s.id != m.id || c.state != Submitting {
		return
	}

	if m.err != nil {
		c.logger.Error("analysis failed", "session", s.id, "error", m.err)
		c.fail(Failed, m.err, analysis.Message(m.err))
		return
	}

	res := m.result
	c.result = &res
	c.entry = m.entry
	c.lastErr = nil
	c.state = Idle
	c.status = StatusDone
	c.logger.Info("analysis complete", "session", s.id, "score", res.OverallScore)
	c.publish()

	// Keep the transcript visible until the next session starts.
	s.release(c.logger)
}

func (c *Controller) retry() error {
	s := c.current
	if c.state != Failed || s == nil || s.request == nil {
		return ErrNothingToRetry
	}
	c.submit(s)
	return nil
}

func (c *Controller) reset() error {
	switch c.state {
	case Recording, Stopping, Submitting:
		return ErrSessionActive
	}
	if c.current != nil {
		c.current.release(c.logger)
		c.current = nil
	}
	c.state = Idle
	c.status = StatusReady
	c.lastErr, c.result, c.entry = nil, nil, nil
	c.publish()
	return nil
}

// fail moves to state with an error shown to the user.
func (c *Controller) fail(state State, err error, msg string) {
	c.state = state
	c.lastErr = err
	c.status = msg
	c.publish()
}

func (c *Controller) shutdown() {
	s := c.current
	if s == nil {
		return
	}
	if c.state == Recording || c.state == Stopping {
		s.stopTicker()
		if err := c.cfg.Recognizer.Stop(); err != nil {
			c.logger.Debug("stop recognition on shutdown", "error", err)
		}
		s.stopAudio(c.logger)
		c.cfg.Metrics.SessionFinished("canceled", 0)
	}
	s.release(c.logger)
	c.current = nil
}

func (c *Controller) publish() {
	snap := Snapshot{
		State:  c.state,
		Status: c.status,
		Err:    c.lastErr,
		Result: c.result,
		Entry:  c.entry,
	}
	if s := c.current; s != nil {
		snap.SessionID = s.id
		snap.Goal = s.goal
		snap.Personality = s.personality
		snap.Final = s.acc.Final()
		snap.Interim = s.acc.Interim()
		snap.WordCount = s.acc.WordCount()
		snap.Duration = s.duration
		snap.HasAudio = s.capture != nil || len(s.audio) > 0
		snap.CanRetry = c.state == Failed && s.request != nil
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	select {
	case c.updates <- snap:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- snap:
	default:
	}
}
