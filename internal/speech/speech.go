// Package speech defines the speech recognizer collaborator used by the
// recording session and the mapping from recognizer error codes to the
// messages shown to the user.
package speech

import (
	"context"
	"errors"

	"github.com/jwulff/podium/internal/transcript"
)

// Recognizer error codes.
const (
	CodeNoSpeech          = "no-speech"
	CodeAborted           = "aborted"
	CodeNotAllowed        = "not-allowed"
	CodePermissionDenied  = "permission-denied"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeNetwork           = "network"
	CodeAudioCapture      = "audio-capture"
	CodeLanguage          = "language-not-supported"
	// CodeDisconnected is reported when the recognition backend goes away.
	CodeDisconnected = "disconnected"
)

// EventKind tells the three recognizer event kinds apart.
type EventKind int

const (
	// KindResult carries one batch of segments.
	KindResult EventKind = iota
	// KindEnd reports that recognition stopped, either because Stop was
	// called or because the engine gave up on its own.
	KindEnd
	// KindError reports a recognition failure.
	KindError
)

// Event is emitted by a Recognizer on its Events channel.
type Event struct {
	Kind     EventKind
	Segments []transcript.Segment
	Err      *Error
	// Session is the recognition id returned by Start for the run that
	// produced the event. Empty when the engine cannot tell, as for a lost
	// connection.
	Session string
}

// Recognizer is a continuous speech recognizer with interim results.
type Recognizer interface {
	// Start begins recognition in the given locale and returns the id its
	// events will carry. The id may be empty if the engine has none.
	Start(ctx context.Context, locale string) (string, error)
	// Stop ends recognition. A KindEnd event follows eventually.
	Stop() error
	// Events delivers results, errors and end notifications.
	Events() <-chan Event
}

// Error is a recognition failure with its engine error code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return "speech: " + e.Code + ": " + e.Message
	}
	return "speech: " + e.Code
}

// IsBenign reports whether code is one the session ignores.
func IsBenign(code string) bool {
	return code == CodeNoSpeech || code == CodeAborted
}

// Message returns the user facing message for a recognizer error code.
func Message(code string) string {
	switch code {
	case CodeNotAllowed, CodePermissionDenied, CodeServiceNotAllowed:
		return "Microphone access denied. Please allow microphone access and try again."
	case CodeNetwork:
		return "Network error. Please check your internet connection."
	case CodeAudioCapture:
		return "No microphone detected. Please connect a microphone."
	case CodeLanguage:
		return "Speech recognition is not available for this language."
	case CodeDisconnected:
		return "Lost connection to the speech daemon."
	default:
		return "Recording error occurred"
	}
}

// Describe maps an error from Start or from the event stream to a message.
// Errors that carry no recognizer code fall back to a generic message.
func Describe(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return Message(se.Code)
	}
	return "Could not start speech recognition. Is the speech daemon running?"
}
