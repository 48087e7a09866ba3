package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/jwulff/podium/internal/analysis"
	"github.com/jwulff/podium/internal/audio"
	"github.com/jwulff/podium/internal/history"
	"github.com/jwulff/podium/internal/transcript"
)

// State is the controller's lifecycle phase.
type State int

const (
	Idle State = iota
	Recording
	// Stopping waits for the recognizer to confirm the stop.
	Stopping
	Submitting
	// Failed holds a recording whose analysis failed; it can be retried.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	case Submitting:
		return "submitting"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Active reports whether a recording is being captured or submitted.
func (s State) Active() bool {
	return s == Recording || s == Stopping || s == Submitting
}

// Snapshot is a read-only view of the controller for rendering.
type Snapshot struct {
	State       State
	SessionID   uint64
	Goal        string
	Personality analysis.Personality

	Final     string
	Interim   string
	WordCount int
	// Duration is whole seconds since recording started.
	Duration int
	HasAudio bool

	Status   string
	Err      error
	CanRetry bool

	Result *analysis.Result
	Entry  *history.Entry
}

// Transcript is the final text followed by the interim tail.
func (s Snapshot) Transcript() string { return s.Final + s.Interim }

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdRetry
	cmdReset
)

type command struct {
	kind        commandKind
	goal        string
	personality analysis.Personality
	reply       chan error
}

type tickMsg struct{ id uint64 }

type finalizeMsg struct{ id uint64 }

type analysisDoneMsg struct {
	id     uint64
	result analysis.Result
	entry  *history.Entry
	err    error
}

// session is the state of one recording attempt.
type session struct {
	id          uint64
	goal        string
	personality analysis.Personality
	started     time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// recognition is the id of the recognizer run feeding this session.
	recognition string

	acc      transcript.Accumulator
	duration int
	userStop bool

	capture *audio.Capture
	audio   []byte

	tickStop chan struct{}
	fallback *time.Timer

	// request is set once the transcript is final and kept for retries.
	request *analysis.Request
}

func newSession(parent context.Context, id uint64, goal string, p analysis.Personality, now time.Time) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:          id,
		goal:        goal,
		personality: p,
		started:     now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *session) elapsed(now time.Time) int {
	d := now.Sub(s.started)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

func (s *session) startTicker(interval time.Duration, post func(any)) {
	stop := make(chan struct{})
	s.tickStop = stop
	id := s.id
	ctx := s.ctx
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				post(tickMsg{id: id})
			}
		}
	}()
}

func (s *session) stopTicker() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}

// stopAudio releases the microphone and keeps the recorded blob.
func (s *session) stopAudio(logger *slog.Logger) {
	if s.capture == nil {
		return
	}
	blob, err := s.capture.Stop()
	if err != nil {
		logger.Warn("audio release incomplete", "error", err)
	}
	s.audio = blob
	s.capture = nil
}

// release stops timers and cancels in-flight work. The transcript and
// request are kept.
func (s *session) release(logger *slog.Logger) {
	s.stopTicker()
	if s.fallback != nil {
		s.fallback.Stop()
		s.fallback = nil
	}
	s.stopAudio(logger)
	s.cancel()
}
