package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultFrameInterval matches a 60 Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// CaptureConfig configures a Capture.
type CaptureConfig struct {
	Source        Source
	FrameInterval time.Duration
	// OnLevel receives every computed level, and 0 on Stop. It is called
	// from the frame loop goroutine.
	OnLevel func(float64)
	Logger  *slog.Logger
}

// Capture runs the audio side of one recording session. Use a new Capture
// for every session.
type Capture struct {
	cfg CaptureConfig

	mu     sync.Mutex
	chunks [][]byte

	meter    Meter
	stream   Stream
	recorder Recorder
	analyser Analyser

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCapture returns an idle capture.
func NewCapture(cfg CaptureConfig) *Capture {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultFrameInterval
	}
	if cfg.OnLevel == nil {
		cfg.OnLevel = func(float64) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Capture{cfg: cfg}
}

// Start acquires the microphone and begins buffering chunks and computing
// levels. Device failures are returned as *DeviceError. On failure every
// resource acquired so far is released.
func (c *Capture) Start(ctx context.Context) error {
	if c.cfg.Source == nil {
		return &DeviceError{Kind: Unavailable, Err: errors.New("no audio source configured")}
	}

	stream, err := c.cfg.Source.Acquire(ctx)
	if err != nil {
		return Classify(err)
	}

	analyser, err := stream.NewAnalyser()
	if err != nil {
		return errors.Join(Classify(err), stream.Stop())
	}

	recorder, err := stream.NewRecorder(c.addChunk)
	if err != nil {
		return errors.Join(Classify(err), analyser.Close(), stream.Stop())
	}
	if err := recorder.Start(); err != nil {
		return errors.Join(Classify(err), analyser.Close(), stream.Stop())
	}

	c.stream, c.recorder, c.analyser = stream, recorder, analyser

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.frameLoop(loopCtx)

	return nil
}

func (c *Capture) addChunk(b []byte) {
	if len(b) == 0 {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)

	c.mu.Lock()
	c.chunks = append(c.chunks, cp)
	c.mu.Unlock()
}

func (c *Capture) frameLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}
		bins, ok := c.analyser.Frequencies()
		if !ok {
			return
		}
		c.cfg.OnLevel(c.meter.Sample(bins))
	}
}

// Stop releases everything Start acquired and returns the recorded audio as
// one blob. Every release step runs even if an earlier one fails; the
// failures are joined. Stop on a capture that never started returns nil.
func (c *Capture) Stop() ([]byte, error) {
	var errs []error

	// 1. frame loop
	if c.cancel != nil {
		c.cancel()
		<-c.done
		c.cancel = nil
	}
	// 2. recorder
	if c.recorder != nil {
		if err := c.recorder.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop recorder: %w", err))
		}
		c.recorder = nil
	}
	// 3. analyser
	if c.analyser != nil {
		if err := c.analyser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close analyser: %w", err))
		}
		c.analyser = nil
	}
	// 4. tracks
	if c.stream != nil {
		if err := c.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream: %w", err))
		}
		c.stream = nil
	}

	// 5. blob and level
	c.mu.Lock()
	blob := bytes.Join(c.chunks, nil)
	c.chunks = nil
	c.mu.Unlock()

	c.meter.Reset()
	c.cfg.OnLevel(0)

	err := errors.Join(errs...)
	if err != nil {
		c.cfg.Logger.Warn("audio release incomplete", "error", err)
	}
	return blob, err
}
