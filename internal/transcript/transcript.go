// Package transcript accumulates speech recognition results into a live
// transcript made of a permanent final part and a transient interim part.
package transcript

import "strings"

// Segment is one recognition result. Final segments are committed to the
// transcript; interim segments are replaced on every update.
type Segment struct {
	Text  string
	Final bool
}

// Accumulator holds the transcript of a single recording session.
// It is not safe for concurrent use; the session controller owns it.
type Accumulator struct {
	final   strings.Builder
	interim string
}

// Apply folds one batch of recognition results into the transcript.
// Each final segment appends its text plus a trailing space. The interim part
// is rebuilt from the batch's non-final segments. An empty batch is a no-op.
func (a *Accumulator) Apply(segments []Segment) {
	if len(segments) == 0 {
		return
	}

	var interim strings.Builder
	for _, seg := range segments {
		if seg.Final {
			a.final.WriteString(seg.Text)
			a.final.WriteByte(' ')
			continue
		}
		interim.WriteString(seg.Text)
	}
	a.interim = interim.String()
}

// Final returns the committed text.
func (a *Accumulator) Final() string { return a.final.String() }

// Interim returns the latest uncommitted text.
func (a *Accumulator) Interim() string { return a.interim }

// Live returns final followed by interim text, as shown while recording.
func (a *Accumulator) Live() string { return a.final.String() + a.interim }

// WordCount counts the words of the live transcript.
func (a *Accumulator) WordCount() int { return CountWords(a.Live()) }

// Reset clears both parts.
func (a *Accumulator) Reset() {
	a.final.Reset()
	a.interim = ""
}

// CountWords returns the number of whitespace separated tokens in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
