package intent

import (
	"testing"

	"haptic/agent/internal/motion"
	"haptic/agent/internal/types"
)

func TestClimaxShadowsOtherFamilies(t *testing.T) {
	// "faster" alone is a param family, but a climax phrase in the same
	// text must always win.
	d := Parse("faster... actually no, I came", motion.Active, false)
	if d.Kind != Climax {
		t.Fatalf("expected climax, got %s", d.Kind)
	}
}

func TestClimaxMultilingual(t *testing.T) {
	for _, txt := range []string{"I came", "ho finito", "sono venuto", "that was my climax"} {
		if d := Parse(txt, motion.Warmup, false); d.Kind != Climax {
			t.Fatalf("%q: expected climax, got %s", txt, d.Kind)
		}
	}
}

func TestResumeOnlyWhileLocked(t *testing.T) {
	if d := Parse("continue", motion.Recovery, false); d.Kind == Resume {
		t.Fatalf("resume should not fire when lock is clear")
	}
	d := Parse("continue", motion.Recovery, true)
	if d.Kind != Resume || d.Phase != motion.Warmup {
		t.Fatalf("expected resume to warmup, got %+v", d)
	}
}

func TestResumeNamesExplicitPhase(t *testing.T) {
	d := Parse("go on, back to active", motion.Recovery, true)
	if d.Kind != Resume || d.Phase != motion.Active {
		t.Fatalf("expected resume to active, got %+v", d)
	}
}

func TestPhaseKeywords(t *testing.T) {
	cases := map[string]motion.Phase{
		"warm up please": motion.Warmup,
		"active":         motion.Active,
		"recovery now":   motion.Recovery,
	}
	for txt, want := range cases {
		d := Parse(txt, motion.Warmup, false)
		if d.Kind != PhaseChange || d.Phase != want {
			t.Fatalf("%q: expected phase change to %s, got %+v", txt, want, d)
		}
	}
}

func TestNextPhaseCycles(t *testing.T) {
	cur := motion.Warmup
	want := []motion.Phase{motion.Active, motion.Recovery, motion.Warmup}
	for i, w := range want {
		d := Parse("next phase", cur, false)
		if d.Kind != PhaseChange || d.Phase != w {
			t.Fatalf("step %d: expected %s, got %+v", i, w, d)
		}
		cur = d.Phase
	}
}

func TestStopAndResetAreExactMatches(t *testing.T) {
	if d := Parse("stop", motion.Active, false); d.Kind != Stop {
		t.Fatalf("expected stop, got %s", d.Kind)
	}
	if d := Parse("don't stop", motion.Active, false); d.Kind == Stop {
		t.Fatalf("stop must only match the whole message")
	}
	if d := Parse("reset", motion.Active, false); d.Kind != Reset {
		t.Fatalf("expected reset, got %s", d.Kind)
	}
}

func TestModeCues(t *testing.T) {
	d := Parse("please take over", motion.Warmup, false)
	if d.Kind != ModeToggle || d.Mode != types.ModeAuto || !d.On {
		t.Fatalf("expected auto on, got %+v", d)
	}
	d = Parse("edge me", motion.Active, false)
	if d.Kind != ModeToggle || d.Mode != types.ModeEdging || !d.On {
		t.Fatalf("expected edging on, got %+v", d)
	}
	d = Parse("my turn now", motion.Active, false)
	if d.Kind != ModeToggle || d.On {
		t.Fatalf("expected mode off, got %+v", d)
	}
}

func TestParamFamilies(t *testing.T) {
	d := Parse("go harder", motion.Active, false)
	if d.Kind != ParamAdjust || d.Adj.Speed == nil || d.Adj.Speed.Lo != 55 || d.Adj.Speed.Hi != 85 {
		t.Fatalf("expected speed 55-85, got %+v", d)
	}
	d = Parse("just the tip", motion.Active, false)
	if d.Kind != ParamAdjust || d.Adj.Depth.Lo != 15 || d.Adj.Range.Lo != 15 {
		t.Fatalf("expected tip targets, got %+v", d)
	}
	d = Parse("nice and steady", motion.Active, false)
	if d.Kind != ParamAdjust || d.Adj.Speed.Lo != 40 || d.Adj.Speed.Hi != 55 ||
		d.Adj.Depth.Lo != 50 || d.Adj.Range.Lo != 50 {
		t.Fatalf("expected steady targets, got %+v", d)
	}
}

func TestFreeChatIsNoDirective(t *testing.T) {
	if d := Parse("tell me about your day", motion.Warmup, false); d.Kind != None {
		t.Fatalf("expected no directive, got %s", d.Kind)
	}
}

func TestParseDanger(t *testing.T) {
	_, ds, err := ParseDanger([]byte(`{"move":{"sp":200,"dp":55,"rng":55},"new_mood":"Dominant"}`))
	if err != nil {
		t.Fatalf("parse danger: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("expected passthrough + mood, got %d directives", len(ds))
	}
	if ds[0].Kind != RawPassthrough || ds[0].Tuple.Speed != 200 {
		t.Fatalf("expected raw passthrough sp=200, got %+v", ds[0])
	}
	if ds[1].Kind != SetMood || ds[1].Mood != "Dominant" {
		t.Fatalf("expected mood directive, got %+v", ds[1])
	}
}

func TestParseDangerRejectsPartialMove(t *testing.T) {
	if _, _, err := ParseDanger([]byte(`{"move":{"sp":50}}`)); err != ErrParse {
		t.Fatalf("expected ErrParse for partial move, got %v", err)
	}
	if _, _, err := ParseDanger([]byte(`{"move":`)); err != ErrParse {
		t.Fatalf("expected ErrParse for truncated body, got %v", err)
	}
}
