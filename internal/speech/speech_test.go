package speech

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBenign(t *testing.T) {
	assert.True(t, IsBenign(CodeNoSpeech))
	assert.True(t, IsBenign(CodeAborted))
	for _, code := range []string{CodeNotAllowed, CodeNetwork, CodeAudioCapture, "", "weird"} {
		assert.Falsef(t, IsBenign(code), "IsBenign(%q)", code)
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, Message(CodeNotAllowed), Message(CodePermissionDenied))
	assert.Contains(t, Message(CodeNotAllowed), "Microphone access denied")
	assert.Equal(t, "Network error. Please check your internet connection.", Message(CodeNetwork))
	assert.Equal(t, "No microphone detected. Please connect a microphone.", Message(CodeAudioCapture))
	assert.Equal(t, "Recording error occurred", Message("bad-grammar"))
}

func TestDescribe(t *testing.T) {
	wrapped := fmt.Errorf("start: %w", &Error{Code: CodeNetwork, Message: "offline"})
	assert.Equal(t, Message(CodeNetwork), Describe(wrapped))
	assert.Contains(t, Describe(errors.New("dial unix: no such file")), "speech daemon")
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "speech: network: offline", (&Error{Code: CodeNetwork, Message: "offline"}).Error())
	assert.Equal(t, "speech: aborted", (&Error{Code: CodeAborted}).Error())
}
