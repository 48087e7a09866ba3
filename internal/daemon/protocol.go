// Package daemon provides the client and protocol types for talking to the
// local speech daemon over a Unix socket using NDJSON. The daemon owns the
// microphone: it runs speech recognition, streams encoded audio chunks and
// publishes frequency spectra for the level meter.
package daemon

// Command names understood by the speech daemon.
const (
	CmdSubscribe = "subscribe"
	CmdStart     = "start"
	CmdStop      = "stop"
	CmdOpen      = "open"
	CmdClose     = "close"
	CmdDevices   = "devices"
	CmdStatus    = "status"
)

// Event names streamed by the speech daemon.
const (
	EventPartial  = "partial"
	EventSegment  = "segment"
	EventEnded    = "ended"
	EventError    = "error"
	EventAudio    = "audio"
	EventSpectrum = "spectrum"
	// EventLevel carries the mic level in Mic (0..1) for daemons that do
	// not send spectra.
	EventLevel    = "level"
)

// Command is sent from a client to the daemon.
type Command struct {
	Cmd    string   `json:"cmd"`
	Locale string   `json:"locale,omitempty"`
	Device string   `json:"device,omitempty"`
	Events []string `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK        bool     `json:"ok"`
	SessionID string   `json:"sessionId,omitempty"`
	Recording *bool    `json:"recording,omitempty"`
	Devices   []string `json:"devices,omitempty"`
	Error     string   `json:"error,omitempty"`
	Code      string   `json:"code,omitempty"`
	Status    string   `json:"status,omitempty"`
	Device    string   `json:"device,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
//
// Audio chunks travel base64 encoded in Data (encoding/json does this for
// []byte). Bins holds one analyser frame of frequency magnitudes in 0..255,
// sent as a plain JSON array.
type Event struct {
	Event          string   `json:"event"`
	Text           string   `json:"text,omitempty"`
	SessionID      string   `json:"sessionId,omitempty"`
	SequenceNumber *int     `json:"sequenceNumber,omitempty"`
	Code           string   `json:"code,omitempty"`
	Message        string   `json:"message,omitempty"`
	Mic            *float32 `json:"mic,omitempty"`
	Data           []byte   `json:"data,omitempty"`
	Bins           []int    `json:"bins,omitempty"`
}

// BoolPtr returns a pointer to a bool value. Convenience for building fixtures.
func BoolPtr(b bool) *bool { return &b }
