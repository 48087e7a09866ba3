// Package engine drives the speech daemon and exposes it as the speech
// recognizer and the microphone source of a recording session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwulff/podium/internal/audio"
	"github.com/jwulff/podium/internal/daemon"
	"github.com/jwulff/podium/internal/speech"
	"github.com/jwulff/podium/internal/transcript"
)

// DefaultReconnectDelay is the first wait after the daemon goes away.
// Later attempts double it up to 16 times the base.
const DefaultReconnectDelay = time.Second

const maxReconnectShift = 4

// Config configures an Engine.
type Config struct {
	SocketPath string
	// Device selects the microphone; empty means the system default.
	Device         string
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

// Engine holds two daemon connections: one for commands and one
// subscribed to the event stream. When the event stream drops it redials
// both with exponential backoff.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	connMu sync.Mutex
	cmd    *daemon.Client
	ev     *daemon.Client

	events chan speech.Event
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	stream *stream
	// session is the daemon id of the current recognition run; retired
	// holds ids of runs that were replaced.
	session string
	retired map[string]struct{}
}

var (
	_ speech.Recognizer = (*Engine)(nil)
	_ audio.Source      = (*Engine)(nil)
)

// New returns an unconnected engine.
func New(cfg Config) *Engine {
	if cfg.SocketPath == "" {
		cfg.SocketPath = daemon.SocketPath()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		logger:  logger.With("component", "engine"),
		events:  make(chan speech.Event, 64),
		done:    make(chan struct{}),
		retired: map[string]struct{}{},
	}
}

// Connect dials the daemon, subscribes to events and starts the read loop.
func (e *Engine) Connect(ctx context.Context) error {
	if err := e.dial(ctx); err != nil {
		return err
	}
	go e.readLoop()

	e.logger.Info("connected to speech daemon", "socket", e.cfg.SocketPath)
	return nil
}

// dial opens both connections and swaps them in, closing any previous ones.
func (e *Engine) dial(ctx context.Context) error {
	cmd, err := daemon.Dial(ctx, e.cfg.SocketPath)
	if err != nil {
		return err
	}
	ev, err := daemon.Dial(ctx, e.cfg.SocketPath)
	if err != nil {
		cmd.Close()
		return err
	}
	if err := ev.Subscribe(); err != nil {
		cmd.Close()
		ev.Close()
		return err
	}

	e.connMu.Lock()
	oldCmd, oldEv := e.cmd, e.ev
	e.cmd, e.ev = cmd, ev
	e.connMu.Unlock()

	if oldCmd != nil {
		oldCmd.Close()
	}
	if oldEv != nil {
		oldEv.Close()
	}
	return nil
}

// Close hangs up both connections. The event channel is not closed; the
// read loop simply stops feeding it.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		close(e.done)
		err = e.hangUp()
	})
	return err
}

func (e *Engine) hangUp() error {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	var err error
	if e.cmd != nil {
		err = errors.Join(err, e.cmd.Close())
	}
	if e.ev != nil {
		err = errors.Join(err, e.ev.Close())
	}
	return err
}

// Devices lists the microphones the daemon can open.
func (e *Engine) Devices() ([]string, error) {
	resp, err := e.send(daemon.Command{Cmd: daemon.CmdDevices})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("devices: %s", resp.Error)
	}
	return resp.Devices, nil
}

// Events implements speech.Recognizer.
func (e *Engine) Events() <-chan speech.Event { return e.events }

// Start implements speech.Recognizer. The returned id is the daemon's
// session id; events from earlier sessions are dropped from then on.
func (e *Engine) Start(ctx context.Context, locale string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resp, err := e.send(daemon.Command{Cmd: daemon.CmdStart, Locale: locale, Device: e.cfg.Device})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", &speech.Error{Code: resp.Code, Message: resp.Error}
	}

	e.mu.Lock()
	if e.session != "" && e.session != resp.SessionID {
		e.retired[e.session] = struct{}{}
	}
	e.session = resp.SessionID
	e.mu.Unlock()

	e.logger.Debug("recognition started", "session", resp.SessionID, "locale", locale)
	return resp.SessionID, nil
}

// Stop implements speech.Recognizer.
func (e *Engine) Stop() error {
	resp, err := e.send(daemon.Command{Cmd: daemon.CmdStop})
	if err != nil {
		return err
	}
	if !resp.OK {
		return &speech.Error{Code: resp.Code, Message: resp.Error}
	}
	return nil
}

// Acquire implements audio.Source by opening the daemon's microphone
// stream.
func (e *Engine) Acquire(ctx context.Context) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := e.send(daemon.Command{Cmd: daemon.CmdOpen, Device: e.cfg.Device})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, audio.ErrorForCode(resp.Code, resp.Error)
	}

	s := &stream{engine: e}
	e.mu.Lock()
	e.stream = s
	e.mu.Unlock()
	return s, nil
}

func (e *Engine) send(cmd daemon.Command) (daemon.Response, error) {
	e.connMu.Lock()
	c := e.cmd
	e.connMu.Unlock()
	if c == nil {
		return daemon.Response{}, errors.New("engine not connected")
	}
	return c.SendCommand(cmd)
}

func (e *Engine) eventClient() *daemon.Client {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	return e.ev
}

// stale reports whether id belongs to a recognition run that was replaced.
func (e *Engine) stale(id string) bool {
	if id == "" {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.retired[id]
	return ok
}

func (e *Engine) currentStream() *stream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream
}

func (e *Engine) releaseStream(s *stream) {
	e.mu.Lock()
	if e.stream == s {
		e.stream = nil
	}
	e.mu.Unlock()
}

func (e *Engine) emit(ev speech.Event) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Engine) readLoop() {
	for {
		ev, err := e.eventClient().ReadEvent()
		if err != nil {
			if e.closed() {
				return
			}
			e.logger.Error("event stream lost", "error", err)
			e.emit(speech.Event{Kind: speech.KindError, Err: &speech.Error{Code: speech.CodeDisconnected, Message: err.Error()}})
			if !e.reconnect() {
				return
			}
			continue
		}
		e.dispatch(ev)
	}
}

// reconnect redials until it succeeds or the engine is closed. Runs that
// were active before the drop are retired.
func (e *Engine) reconnect() bool {
	e.mu.Lock()
	if e.session != "" {
		e.retired[e.session] = struct{}{}
		e.session = ""
	}
	e.mu.Unlock()

	for attempt := 0; ; attempt++ {
		delay := e.cfg.ReconnectDelay << min(attempt, maxReconnectShift)
		select {
		case <-e.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), daemon.DialTimeout)
		err := e.dial(ctx)
		cancel()
		if err == nil {
			if e.closed() {
				e.hangUp()
				return false
			}
			e.logger.Info("reconnected to speech daemon", "attempt", attempt+1)
			return true
		}
		e.logger.Debug("reconnect failed", "attempt", attempt+1, "retry_in", delay, "error", err)
	}
}

func (e *Engine) closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *Engine) dispatch(ev daemon.Event) {
	switch ev.Event {
	case daemon.EventPartial, daemon.EventSegment, daemon.EventEnded, daemon.EventError:
		if e.stale(ev.SessionID) {
			e.logger.Debug("dropping event from an earlier session", "event", ev.Event, "session", ev.SessionID)
			return
		}
	}

	switch ev.Event {
	case daemon.EventPartial:
		e.emit(speech.Event{Kind: speech.KindResult, Session: ev.SessionID, Segments: []transcript.Segment{{Text: ev.Text}}})
	case daemon.EventSegment:
		e.emit(speech.Event{Kind: speech.KindResult, Session: ev.SessionID, Segments: []transcript.Segment{{Text: ev.Text, Final: true}}})
	case daemon.EventEnded:
		e.emit(speech.Event{Kind: speech.KindEnd, Session: ev.SessionID})
	case daemon.EventError:
		e.emit(speech.Event{Kind: speech.KindError, Session: ev.SessionID, Err: &speech.Error{Code: ev.Code, Message: ev.Message}})
	case daemon.EventAudio:
		if s := e.currentStream(); s != nil {
			s.chunk(ev.Data)
		}
	case daemon.EventSpectrum:
		if s := e.currentStream(); s != nil {
			s.spectrum(ev.Bins)
		}
	case daemon.EventLevel:
		if s := e.currentStream(); s != nil && ev.Mic != nil {
			s.level(float64(*ev.Mic))
		}
	default:
		e.logger.Debug("ignored daemon event", "event", ev.Event)
	}
}
