// Package analysis talks to the speech analysis backend: it submits a
// recording for feedback and reads back stored feedback.
package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Result is the feedback the backend returns for one recording.
type Result struct {
	OverallScore    float64        `json:"overall_score"`
	ClarityScore    float64        `json:"clarityScore"`
	ConfidenceScore float64        `json:"confidenceScore"`
	EngagementScore float64        `json:"engagementScore"`
	StructureScore  float64        `json:"structureScore"`
	Pace            int            `json:"pace"`
	FillerWords     map[string]int `json:"fillerWords"`
	Summary         string         `json:"aiSummary"`
	Tip             string         `json:"constructiveTip"`
	Strengths       []string       `json:"strengths,omitempty"`
	Improvements    []string       `json:"improvements,omitempty"`
	SessionID       string         `json:"sessionId,omitempty"`
}

// FillerTotal is the number of filler words across all kinds.
func (r Result) FillerTotal() int {
	n := 0
	for _, c := range r.FillerWords {
		n += c
	}
	return n
}

// Personality selects the tone of the generated feedback.
type Personality string

const (
	Supportive   Personality = "supportive"
	Direct       Personality = "direct"
	Critical     Personality = "critical"
	Humorous     Personality = "humorous"
	Mentor       Personality = "mentor"
	Professional Personality = "professional"
)

// DefaultPersonality is used when none is chosen.
const DefaultPersonality = Supportive

// Personalities lists every supported personality in display order.
var Personalities = []Personality{Supportive, Direct, Critical, Humorous, Mentor, Professional}

// Valid reports whether p is a supported personality.
func (p Personality) Valid() bool {
	for _, known := range Personalities {
		if p == known {
			return true
		}
	}
	return false
}

// Title is the display name, e.g. "Supportive".
func (p Personality) Title() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// ParsePersonality parses a case-insensitive name. Empty input yields the
// default personality.
func ParsePersonality(s string) (Personality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultPersonality, nil
	}
	p := Personality(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPersonality, s)
	}
	return p, nil
}

// WPM returns words per minute rounded to the nearest integer, 0 for a
// zero duration.
func WPM(words, seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Round(float64(words) / (float64(seconds) / 60)))
}

// FormatDuration renders seconds as M:SS.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
