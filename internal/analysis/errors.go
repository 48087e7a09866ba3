package analysis

import (
	"context"
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrMissingGoal        = errors.New("speech goal is required")
	ErrEmptyTranscript    = errors.New("transcript is empty")
	ErrInvalidPersonality = errors.New("unknown AI personality")
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("analysis backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("analysis backend returned status %d: %s", e.StatusCode, e.Body)
}

// UnreachableError is returned when the backend cannot be reached or sends
// something that is not JSON.
type UnreachableError struct {
	Endpoint string
	Err      error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("analysis backend unreachable at %s: %v", e.Endpoint, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Message returns the text shown to the user for an analysis error.
func Message(err error) string {
	var (
		status      *StatusError
		unreachable *UnreachableError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingGoal):
		return "Please enter your speech goal before recording!"
	case errors.Is(err, ErrEmptyTranscript):
		return "No speech detected. Please try recording again."
	case errors.Is(err, ErrInvalidPersonality):
		return "Please choose one of the available AI personalities."
	case errors.As(err, &unreachable):
		return fmt.Sprintf("Could not connect to the backend. Please make sure the analysis server is running on %s", unreachable.Endpoint)
	case errors.As(err, &status):
		return fmt.Sprintf("Analysis failed (HTTP %d). Press r to retry.", status.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return "Analysis timed out. Press r to retry."
	}
	return err.Error()
}
