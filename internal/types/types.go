package types

import "time"

// Mode is an automated stimulation mode driven by the dispatch loop.
type Mode int

const (
	ModeNone Mode = iota
	ModeAuto
	ModeMilking
	ModeEdging
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeAuto:
		return "auto"
	case ModeMilking:
		return "milking"
	case ModeEdging:
		return "edging"
	}
	return "unknown"
}

// ParseMode maps a wire string to a Mode. Unknown strings map to ModeNone
// with ok=false.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "auto":
		return ModeAuto, true
	case "milking":
		return ModeMilking, true
	case "edging":
		return ModeEdging, true
	case "none", "":
		return ModeNone, true
	}
	return ModeNone, false
}

// Event is one entry in a session's event log, surfaced to the UI and
// kept for debugging.
type Event struct {
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ChatMessage is one turn of the conversation history sent to the
// language model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
