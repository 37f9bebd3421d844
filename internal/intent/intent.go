// Package intent maps free-form user text and structured danger-zone
// payloads onto session directives. Matching is a fixed, ordered rule
// table: the first rule that fires wins, so safety phrases (climax,
// resume) can never be shadowed by generic keyword families.
package intent

import (
	"encoding/json"
	"errors"
	"strings"

	"haptic/agent/internal/motion"
	"haptic/agent/internal/types"
)

var ErrParse = errors.New("malformed directive payload")

// Kind tags a Directive variant.
type Kind int

const (
	None Kind = iota
	PhaseChange
	ParamAdjust
	ModeToggle
	Climax
	Resume
	Stop
	Reset
	RawPassthrough
	SetMood
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case PhaseChange:
		return "phase_change"
	case ParamAdjust:
		return "param_adjust"
	case ModeToggle:
		return "mode_toggle"
	case Climax:
		return "climax"
	case Resume:
		return "resume"
	case Stop:
		return "stop"
	case Reset:
		return "reset"
	case RawPassthrough:
		return "raw_passthrough"
	case SetMood:
		return "set_mood"
	}
	return "unknown"
}

// Adjust carries per-field target intervals for a parameter adjustment.
// A nil field is left untouched; the session draws a value from each set
// interval and clamps it into the active phase envelope.
type Adjust struct {
	Speed *motion.Interval
	Depth *motion.Interval
	Range *motion.Interval
}

// Directive is the parsed intent consumed exactly once by the session.
type Directive struct {
	Kind  Kind
	Phase motion.Phase // PhaseChange and Resume target
	Adj   Adjust       // ParamAdjust
	Mode  types.Mode   // ModeToggle
	On    bool         // ModeToggle
	Tuple motion.Tuple // RawPassthrough
	Mood  string       // SetMood
}

// Multilingual phrase sets, lifted from the production keyword lists.
// Order inside a set does not matter; order across rules does.
var climaxPhrases = []string{
	"i came", "i just came", "came", "i finished", "finished", "orgasm",
	"came already", "climax", "i came so hard", "i ejaculated",
	"ho finito", "sono venuto", "ho venuto",
}

var resumePhrases = []string{
	"continue", "resume", "again", "go on", "keep going", "start again",
	"riprendi", "continua", "di nuovo", "riprendiamo",
}

var modeCues = []struct {
	phrases []string
	mode    types.Mode
	on      bool
}{
	{[]string{"take over", "you drive", "auto mode"}, types.ModeAuto, true},
	{[]string{"manual", "my turn", "stop auto"}, types.ModeNone, false},
	{[]string{"i'm close", "make me cum", "finish me"}, types.ModeMilking, true},
	{[]string{"edge me", "start edging", "tease and deny"}, types.ModeEdging, true},
}

// paramFamilies is the fixed command table. Each entry sets absolute
// targets (Lo==Hi) or a draw interval for the fields it names.
var paramFamilies = []struct {
	phrases []string
	adj     Adjust
}{
	{[]string{"slow down", "gentle", "take it slow"},
		Adjust{Speed: iv(10, 25)}},
	{[]string{"faster", "speed up", "go harder"},
		Adjust{Speed: iv(55, 85)}},
	{[]string{"full stroke", "all the way"},
		Adjust{Depth: iv(50, 50), Range: iv(100, 100)}},
	{[]string{"just the tip", "tip only"},
		Adjust{Depth: iv(15, 15), Range: iv(15, 15)}},
	{[]string{"base only"},
		Adjust{Depth: iv(85, 85), Range: iv(15, 15)}},
	{[]string{"medium speed", "steady"},
		Adjust{Speed: iv(40, 55), Depth: iv(50, 50), Range: iv(50, 50)}},
}

func iv(lo, hi int) *motion.Interval { return &motion.Interval{Lo: lo, Hi: hi} }

func matchAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// phaseNamed returns an explicitly named phase in the text, if any.
func phaseNamed(s string) (motion.Phase, bool) {
	switch {
	case strings.Contains(s, "warm up") || strings.Contains(s, "warmup"):
		return motion.Warmup, true
	case strings.Contains(s, "active") || strings.Contains(s, "fase attiva"):
		return motion.Active, true
	case strings.Contains(s, "recovery"):
		return motion.Recovery, true
	}
	return motion.Warmup, false
}

// Parse maps raw user text to at most one directive. cur is the phase the
// session is in (needed for the "next phase" cycle) and locked reports
// whether the recovery lock is set (resume phrases are only meaningful
// then). Free chat returns a Kind of None; the caller still forwards the
// text to the language model unchanged.
func Parse(text string, cur motion.Phase, locked bool) Directive {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return Directive{Kind: None}
	}

	if matchAny(s, climaxPhrases) {
		return Directive{Kind: Climax}
	}

	if locked && matchAny(s, resumePhrases) {
		target := motion.Warmup
		if p, ok := phaseNamed(s); ok {
			target = p
		}
		return Directive{Kind: Resume, Phase: target}
	}

	if p, ok := phaseNamed(s); ok {
		return Directive{Kind: PhaseChange, Phase: p}
	}

	if strings.Contains(s, "next phase") || strings.Contains(s, "fase successiva") || strings.Contains(s, "prossima fase") {
		return Directive{Kind: PhaseChange, Phase: cur.Next()}
	}

	if s == "stop" {
		return Directive{Kind: Stop}
	}

	if s == "reset" {
		return Directive{Kind: Reset}
	}

	for _, c := range modeCues {
		if matchAny(s, c.phrases) {
			return Directive{Kind: ModeToggle, Mode: c.mode, On: c.on}
		}
	}

	for _, f := range paramFamilies {
		if matchAny(s, f.phrases) {
			return Directive{Kind: ParamAdjust, Adj: f.adj}
		}
	}

	return Directive{Kind: None}
}

// DangerPayload is the structured danger-zone request shape:
// {"chat": string, "move": {"sp","dp","rng"}, "new_mood": string?}.
// move fields are pointers so a missing field is distinguishable from 0.
type DangerPayload struct {
	Chat    string     `json:"chat,omitempty"`
	Move    *DangerMove `json:"move,omitempty"`
	NewMood string     `json:"new_mood,omitempty"`
}

type DangerMove struct {
	Sp *int `json:"sp"`
	Dp *int `json:"dp"`
	Rng *int `json:"rng"`
}

// ParseDanger validates a danger-zone JSON body and expands it into a
// directive set (raw passthrough and/or mood). A malformed body or a move
// object with missing fields returns ErrParse and no directives, so the
// caller mutates nothing.
func ParseDanger(body []byte) (DangerPayload, []Directive, error) {
	var p DangerPayload
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return DangerPayload{}, nil, ErrParse
	}

	var out []Directive
	if p.Move != nil {
		if p.Move.Sp == nil || p.Move.Dp == nil || p.Move.Rng == nil {
			return DangerPayload{}, nil, ErrParse
		}
		out = append(out, Directive{
			Kind:  RawPassthrough,
			Tuple: motion.Tuple{Speed: *p.Move.Sp, Depth: *p.Move.Dp, Range: *p.Move.Rng},
		})
	}
	if p.NewMood != "" {
		out = append(out, Directive{Kind: SetMood, Mood: p.NewMood})
	}
	return p, out, nil
}
