// Package audio captures microphone audio for a recording session: it
// buffers encoded chunks from a Recorder and turns analyser frequency data
// into a smoothed loudness level.
package audio

import (
	"context"
	"errors"
	"strings"
)

// Source hands out microphone streams.
type Source interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Stream is a live microphone stream.
type Stream interface {
	// NewRecorder creates an encoder that passes each encoded chunk to
	// onChunk. onChunk may be called from another goroutine.
	NewRecorder(onChunk func([]byte)) (Recorder, error)
	// NewAnalyser creates a frequency analyser attached to the stream.
	NewAnalyser() (Analyser, error)
	// Stop releases the microphone tracks.
	Stop() error
}

// Recorder encodes stream audio into chunks.
type Recorder interface {
	Start() error
	Stop() error
}

// Analyser exposes the latest byte frequency data of a stream.
type Analyser interface {
	// Frequencies returns the latest magnitudes in 0..255 and false once
	// the analyser has been closed.
	Frequencies() ([]uint8, bool)
	Close() error
}

// Device failure causes. Sources wrap one of these so Classify can tell
// them apart.
var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoDevice         = errors.New("no microphone found")
	ErrDeviceBusy       = errors.New("microphone in use")
)

// Kind is the classified cause of a device failure.
type Kind int

const (
	Unavailable Kind = iota
	PermissionDenied
	NoDevice
	DeviceBusy
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission-denied"
	case NoDevice:
		return "no-device"
	case DeviceBusy:
		return "device-busy"
	default:
		return "unavailable"
	}
}

// DeviceError is a classified microphone failure.
type DeviceError struct {
	Kind Kind
	Err  error
}

func (e *DeviceError) Error() string { return e.Message() }

func (e *DeviceError) Unwrap() error { return e.Err }

// Message returns the user facing message for the failure.
func (e *DeviceError) Message() string {
	switch e.Kind {
	case PermissionDenied:
		return "Microphone access denied. Please allow microphone access in your system settings."
	case NoDevice:
		return "No microphone found. Please connect a microphone and try again."
	case DeviceBusy:
		return "Microphone is already in use by another application."
	default:
		return "Could not access microphone. Please check permissions."
	}
}

// Classify wraps err in a DeviceError. Errors that are already classified
// are returned unchanged.
func Classify(err error) *DeviceError {
	if err == nil {
		return nil
	}
	var de *DeviceError
	if errors.As(err, &de) {
		return de
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return &DeviceError{Kind: PermissionDenied, Err: err}
	case errors.Is(err, ErrNoDevice):
		return &DeviceError{Kind: NoDevice, Err: err}
	case errors.Is(err, ErrDeviceBusy):
		return &DeviceError{Kind: DeviceBusy, Err: err}
	}
	return &DeviceError{Kind: Unavailable, Err: err}
}

// KindFromCode maps a device error code reported by a capture backend.
// Both media error names (NotAllowedError) and short codes (not-allowed)
// are accepted.
func KindFromCode(code string) Kind {
	c := strings.ToLower(strings.TrimSuffix(code, "Error"))
	c = strings.ReplaceAll(c, "-", "")
	switch c {
	case "notallowed", "permissiondenied", "securityerror", "security":
		return PermissionDenied
	case "notfound", "devicesnotfound", "overconstrained":
		return NoDevice
	case "notreadable", "trackstart", "busy", "deviceinuse":
		return DeviceBusy
	}
	return Unavailable
}

// ErrorForCode builds a DeviceError for a backend code and message.
func ErrorForCode(code, msg string) *DeviceError {
	if msg == "" {
		msg = code
	}
	return &DeviceError{Kind: KindFromCode(code), Err: errors.New(msg)}
}
