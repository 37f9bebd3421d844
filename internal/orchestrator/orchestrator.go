// Package orchestrator coordinates one user turn end to end: intent
// parsing, session transition, language model fallback for free chat,
// script scheduling, speech synthesis, and UI fanout.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"haptic/agent/internal/intent"
	"haptic/agent/internal/llm"
	"haptic/agent/internal/loop"
	"haptic/agent/internal/motion"
	"haptic/agent/internal/session"
	"haptic/agent/internal/store"
	"haptic/agent/internal/tts"
	"haptic/agent/internal/types"
	"haptic/agent/internal/uiws"
)

// Chat is the narrow language model surface the orchestrator needs.
type Chat interface {
	Complete(ctx context.Context, history []types.ChatMessage, sc llm.Scene) (llm.Reply, error)
}

// LastSender is implemented by device clients that track the last tuple
// actually written to hardware.
type LastSender interface {
	LastSent() motion.Tuple
}

type Orchestrator struct {
	sess    *session.Session
	disp    *loop.Dispatcher
	store   *store.Store
	chat    Chat
	speech  *tts.Client
	ui      *uiws.Registry
	dev     LastSender
	persona string
}

func New(sess *session.Session, disp *loop.Dispatcher, st *store.Store, chat Chat, speech *tts.Client, ui *uiws.Registry, dev LastSender, persona string) *Orchestrator {
	return &Orchestrator{
		sess:    sess,
		disp:    disp,
		store:   st,
		chat:    chat,
		speech:  speech,
		ui:      ui,
		dev:     dev,
		persona: persona,
	}
}

func (o *Orchestrator) SetPersona(p string) { o.persona = p }

// TextResult is the response to one user message.
type TextResult struct {
	Reply  string         `json:"reply"`
	Source string         `json:"source"` // "directive" or "chat"
	Kind   string         `json:"kind,omitempty"`
	State  session.Result `json:"state"`
}

// HandleText processes one free-form user message. A recognized
// directive short-circuits the language model entirely; anything else
// becomes a chat turn.
func (o *Orchestrator) HandleText(ctx context.Context, text string) (TextResult, error) {
	o.store.AppendMessage("user", text)

	snap := o.sess.Snapshot()
	d := intent.Parse(text, snap.Phase, snap.Locked)
	if d.Kind != intent.None {
		return o.handleDirective(ctx, d)
	}
	return o.handleChat(ctx, snap)
}

// safetyDirective reports whether a directive must answer with a fixed
// acknowledgment, never a model reply.
func safetyDirective(k intent.Kind) bool {
	switch k {
	case intent.Stop, intent.Reset, intent.Climax, intent.RawPassthrough:
		return true
	}
	return false
}

func (o *Orchestrator) handleDirective(ctx context.Context, d intent.Directive) (TextResult, error) {
	directivesTotal.WithLabelValues(d.Kind.String()).Inc()

	res, err := o.sess.Apply(d)
	switch d.Kind {
	case intent.Climax:
		climaxTotal.Inc()
		// The device must slow down now, not at the next tick; the
		// scheduled recovery script keeps gentle motion going after.
		o.disp.DeliverNow(ctx, res.Tuple)
		o.disp.PlayPhaseScript(res.Phase, res.Tuple)
	case intent.Stop, intent.Reset:
		o.disp.ClearScript()
		o.disp.HaltDevice(ctx)
		if d.Kind == intent.Reset {
			o.store.ClearHistory()
		}
	case intent.PhaseChange, intent.Resume:
		if res.Applied {
			o.disp.PlayPhaseScript(res.Phase, res.Tuple)
		}
	case intent.ParamAdjust:
		if res.Applied {
			o.disp.DeliverNow(ctx, res.Tuple)
			o.disp.PlayPhaseScript(res.Phase, res.Tuple)
		}
	case intent.ModeToggle:
		if d.On {
			o.disp.StartMode(d.Mode)
		} else {
			o.disp.StartMode(types.ModeNone)
		}
	}

	reply := ack(d, res, err)
	if err == nil && !safetyDirective(d.Kind) {
		// Ordinary directives still deserve an in-character reply; the
		// fixed acknowledgment is only the fallback when the model is
		// unavailable. The directive already decided the motion, so any
		// move in the model output is ignored.
		snap := o.sess.Snapshot()
		if mr, cerr := o.chat.Complete(ctx, o.store.History(), llm.Scene{
			Persona:   o.persona,
			Mood:      snap.Mood,
			Phase:     snap.Phase,
			EdgeCount: snap.EdgeCount,
			Directive: directiveNote(d, res),
		}); cerr == nil && mr.Chat != "" {
			reply = mr.Chat
			if mr.NewMood != "" {
				o.sess.SetMood(mr.NewMood)
			}
		}
	}

	o.finishTurn(ctx, reply, map[string]any{
		"kind":   d.Kind.String(),
		"status": res.Status,
		"phase":  res.PhaseS,
	})
	return TextResult{Reply: reply, Source: "directive", Kind: d.Kind.String(), State: res}, nil
}

// directiveNote describes the applied state change for the model so its
// reply matches what the device is actually doing.
func directiveNote(d intent.Directive, res session.Result) string {
	return fmt.Sprintf(
		"The user just issued a %s command. It was handled by the app: phase=%s, %s, mode=%s. Acknowledge it briefly in character; do not propose different move values.",
		d.Kind, res.PhaseS, res.Tuple, res.Mode)
}

func (o *Orchestrator) handleChat(ctx context.Context, snap session.Snapshot) (TextResult, error) {
	start := time.Now()
	reply, err := o.chat.Complete(ctx, o.store.History(), llm.Scene{
		Persona:   o.persona,
		Mood:      snap.Mood,
		Phase:     snap.Phase,
		EdgeCount: snap.EdgeCount,
	})
	llmLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		llmErrorsTotal.Inc()
		o.store.AppendEvent("llm_error", map[string]any{"error": err.Error()})
		return TextResult{}, err
	}

	if reply.NewMood != "" {
		o.sess.SetMood(reply.NewMood)
	}

	var res session.Result
	if reply.Move != nil {
		res, _ = o.sess.Apply(intent.Directive{Kind: intent.RawPassthrough, Tuple: *reply.Move})
		o.disp.DeliverNow(ctx, res.Tuple)
		o.disp.PlayPhaseScript(res.Phase, res.Tuple)
	} else {
		s := o.sess.Snapshot()
		res = session.Result{Tuple: s.Tuple, Phase: s.Phase, PhaseS: s.Phase.String(), Mood: s.Mood, Locked: s.Locked, Mode: s.Mode.String(), Status: session.StatusNoDirective}
	}

	o.finishTurn(ctx, reply.Chat, map[string]any{"source": "llm"})
	return TextResult{Reply: reply.Chat, Source: "chat", State: res}, nil
}

// DangerResult reports what a structured danger-zone payload did.
type DangerResult struct {
	Chat  string         `json:"chat,omitempty"`
	State session.Result `json:"state"`
}

// HandleJSON applies a danger-zone payload verbatim, skipping the
// language model. A malformed body mutates nothing.
func (o *Orchestrator) HandleJSON(ctx context.Context, body []byte) (DangerResult, error) {
	payload, ds, err := intent.ParseDanger(body)
	if err != nil {
		return DangerResult{}, err
	}

	var last session.Result
	for _, d := range ds {
		directivesTotal.WithLabelValues(d.Kind.String()).Inc()
		r, applyErr := o.sess.Apply(d)
		if applyErr != nil {
			return DangerResult{}, applyErr
		}
		last = r
		if d.Kind == intent.RawPassthrough {
			o.disp.DeliverNow(ctx, r.Tuple)
			o.disp.PlayPhaseScript(r.Phase, r.Tuple)
		}
	}
	if len(ds) == 0 {
		s := o.sess.Snapshot()
		last = session.Result{Tuple: s.Tuple, Phase: s.Phase, PhaseS: s.Phase.String(), Mood: s.Mood, Locked: s.Locked, Mode: s.Mode.String(), Status: session.StatusNoDirective}
	}

	if payload.Chat != "" {
		o.store.AppendMessage("user", payload.Chat)
		o.finishTurn(ctx, payload.Chat, map[string]any{"source": "danger"})
	} else {
		o.store.AppendEvent("danger_applied", map[string]any{"status": last.Status})
	}
	return DangerResult{Chat: payload.Chat, State: last}, nil
}

// ToggleMode starts or stops an automated mode by name.
func (o *Orchestrator) ToggleMode(name string, on bool) (session.Result, error) {
	m, ok := types.ParseMode(name)
	if !ok {
		return session.Result{}, fmt.Errorf("unknown mode %q", name)
	}
	res, err := o.sess.Apply(intent.Directive{Kind: intent.ModeToggle, Mode: m, On: on})
	if err != nil {
		return res, err
	}
	if on {
		o.disp.StartMode(m)
	} else {
		o.disp.StartMode(types.ModeNone)
	}
	o.store.AppendEvent("mode_toggle", map[string]any{"mode": m.String(), "on": on})
	return res, nil
}

// SignalEdge records the user reporting they are on the edge. During
// edging the pattern drops straight into its dip segment.
func (o *Orchestrator) SignalEdge() (int, bool) {
	count, taken := o.sess.SignalEdge()
	if taken {
		edgeSignalsTotal.Inc()
		o.disp.ForceDip()
		o.store.AppendEvent("edge_signal", map[string]any{"count": count})
	}
	return count, taken
}

// StatusView is the full state snapshot for the status endpoint.
type StatusView struct {
	SessionID string       `json:"session_id"`
	Phase     string       `json:"phase"`
	Tuple     motion.Tuple `json:"tuple"`
	Locked    bool         `json:"locked"`
	Mode      string       `json:"mode"`
	SubPhase  string       `json:"sub_phase,omitempty"`
	Mood      string       `json:"mood"`
	EdgeCount int          `json:"edge_count"`
	LastSent  motion.Tuple `json:"last_sent"`
}

func (o *Orchestrator) Status() StatusView {
	snap := o.sess.Snapshot()
	v := StatusView{
		SessionID: snap.ID,
		Phase:     snap.Phase.String(),
		Tuple:     snap.Tuple,
		Locked:    snap.Locked,
		Mode:      snap.Mode.String(),
		Mood:      snap.Mood,
		EdgeCount: snap.EdgeCount,
	}
	if snap.Mode == types.ModeEdging {
		v.SubPhase = o.disp.SubPhase()
	}
	if o.dev != nil {
		v.LastSent = o.dev.LastSent()
	}
	return v
}

// finishTurn records the assistant side of a turn and fans it out.
func (o *Orchestrator) finishTurn(ctx context.Context, reply string, payload map[string]any) {
	o.store.AppendMessage("assistant", reply)
	o.store.PushPending(reply)
	o.store.AppendEvent("assistant_reply", payload)

	snap := o.sess.Snapshot()
	o.ui.Broadcast(ctx, uiws.Message{
		Type: "chat",
		TsMs: time.Now().UnixMilli(),
		Payload: map[string]any{
			"text":   reply,
			"phase":  snap.Phase.String(),
			"tuple":  snap.Tuple,
			"locked": snap.Locked,
			"mode":   snap.Mode.String(),
			"mood":   snap.Mood,
		},
	})

	if o.speech != nil && o.speech.Enabled() {
		go func(text string) {
			sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := o.speech.Speak(sctx, text); err != nil {
				log.Printf("[orchestrator] tts: %v", err)
			}
		}(reply)
	}
}

// ack renders the fixed acknowledgement for an applied directive.
func ack(d intent.Directive, res session.Result, err error) string {
	if err != nil {
		return "Not yet. You need to recover first; tell me to continue when you're ready."
	}
	switch res.Status {
	case session.StatusClimax:
		return "That's it, let it all out. I'll hold you gently now while you come down."
	case session.StatusResumed:
		return fmt.Sprintf("Welcome back. Easing into %s again.", res.PhaseS)
	case session.StatusStopped:
		return "Stopped. Say continue whenever you want more."
	case session.StatusReset:
		return "Fresh start. Warming you up from the beginning."
	case session.StatusModeChanged:
		if d.On {
			return fmt.Sprintf("Mmh, %s mode it is. Let me drive.", d.Mode)
		}
		return "Alright, back to your hands."
	case session.StatusIgnored:
		return "We're already going. Just tell me what you want."
	case session.StatusClamped:
		return fmt.Sprintf("As much as this phase allows: %s.", res.Tuple)
	}
	switch d.Kind {
	case intent.PhaseChange:
		return fmt.Sprintf("Shifting into %s.", res.PhaseS)
	case intent.ParamAdjust:
		return fmt.Sprintf("Done. Now at %s.", res.Tuple)
	}
	return "Done."
}
