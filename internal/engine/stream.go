package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jwulff/podium/internal/audio"
	"github.com/jwulff/podium/internal/daemon"
)

// stream is an open daemon microphone. Audio and spectrum events are routed
// to it by the engine's read loop.
type stream struct {
	engine *Engine

	mu       sync.Mutex
	onChunk  func([]byte)
	recOn    bool
	bins     []uint8
	analyser bool
	// spectra is set once the daemon sends a spectrum; level events are
	// only used before that.
	spectra bool
	stopped bool
}

func (s *stream) NewRecorder(onChunk func([]byte)) (audio.Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errors.New("stream stopped")
	}
	s.onChunk = onChunk
	return &recorder{s: s}, nil
}

func (s *stream) NewAnalyser() (audio.Analyser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errors.New("stream stopped")
	}
	s.analyser = true
	return &analyser{s: s}, nil
}

func (s *stream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.recOn = false
	s.mu.Unlock()

	s.engine.releaseStream(s)
	resp, err := s.engine.send(daemon.Command{Cmd: daemon.CmdClose})
	if err != nil {
		return fmt.Errorf("close microphone: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("close microphone: %s", resp.Error)
	}
	return nil
}

func (s *stream) chunk(data []byte) {
	s.mu.Lock()
	on, fn := s.recOn, s.onChunk
	s.mu.Unlock()
	if on && fn != nil {
		fn(data)
	}
}

func (s *stream) spectrum(bins []int) {
	frame := make([]uint8, len(bins))
	for i, b := range bins {
		switch {
		case b < 0:
			frame[i] = 0
		case b > 255:
			frame[i] = 255
		default:
			frame[i] = uint8(b)
		}
	}
	s.mu.Lock()
	s.spectra = true
	if s.analyser {
		s.bins = frame
	}
	s.mu.Unlock()
}

// level feeds the meter from the daemon's mic level when it sends no
// spectra.
func (s *stream) level(v float64) {
	s.mu.Lock()
	if s.analyser && !s.spectra {
		s.bins = audio.LevelFrame(v)
	}
	s.mu.Unlock()
}

type recorder struct{ s *stream }

func (r *recorder) Start() error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.stopped {
		return errors.New("stream stopped")
	}
	r.s.recOn = true
	return nil
}

func (r *recorder) Stop() error {
	r.s.mu.Lock()
	r.s.recOn = false
	r.s.mu.Unlock()
	return nil
}

type analyser struct{ s *stream }

func (a *analyser) Frequencies() ([]uint8, bool) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if !a.s.analyser {
		return nil, false
	}
	return a.s.bins, true
}

func (a *analyser) Close() error {
	a.s.mu.Lock()
	a.s.analyser = false
	a.s.bins = nil
	a.s.mu.Unlock()
	return nil
}
